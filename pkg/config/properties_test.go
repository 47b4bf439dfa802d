package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/downfa11-org/segmentlog/pkg/config"
	"github.com/downfa11-org/segmentlog/util"
)

func TestNormalizeDefaults(t *testing.T) {
	cfg := &config.Config{}
	cfg.Normalize()

	if cfg.LogDir != "segment-logs" {
		t.Errorf("LogDir default incorrect: %s", cfg.LogDir)
	}
	if cfg.SegmentSize != 1<<20 {
		t.Errorf("SegmentSize default incorrect: %d", cfg.SegmentSize)
	}
	if cfg.WriteWorkers != 4 {
		t.Errorf("WriteWorkers default incorrect: %d", cfg.WriteWorkers)
	}
	if cfg.CompressionType != "none" {
		t.Errorf("CompressionType default incorrect: %s", cfg.CompressionType)
	}
	if cfg.ExporterPort != 9100 {
		t.Errorf("ExporterPort default incorrect: %d", cfg.ExporterPort)
	}
}

func TestCompressionNormalization(t *testing.T) {
	cfg := &config.Config{CompressionType: "garbage"}
	cfg.Normalize()
	if cfg.CompressionType != "none" {
		t.Errorf("CompressionType normalization failed: %s", cfg.CompressionType)
	}

	cfg = &config.Config{CompressionType: " LZ4 "}
	cfg.Normalize()
	if cfg.Compression() != util.CompressionLZ4 {
		t.Errorf("expected lz4, got %s", cfg.Compression())
	}
}

func TestSegmentSizeNormalization(t *testing.T) {
	cfg := &config.Config{SegmentSize: 16}
	cfg.Normalize()
	if cfg.SegmentSize != 1<<20 {
		t.Errorf("undersized SegmentSize not reset: %d", cfg.SegmentSize)
	}

	cfg = &config.Config{SegmentSize: 4096}
	cfg.Normalize()
	if cfg.SegmentSize != 4096 {
		t.Errorf("valid SegmentSize changed: %d", cfg.SegmentSize)
	}
}

func TestLoadConfigFlagDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	cfg, err := config.LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.LogDir != "segment-logs" || cfg.SegmentSize != 1<<20 || !cfg.Preallocate {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.LogLevel != util.LogLevelInfo {
		t.Errorf("LogLevel default incorrect: %s", cfg.LogLevel)
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "segment.yaml")
	yml := []byte(`log_dir: /var/lib/segments
segment_size: 4096
write_workers: 2
compression_type: snappy
log_level: debug
`)
	if err := os.WriteFile(path, yml, 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("SEGMENT_WRITE_WORKERS", "8")
	t.Setenv("SEGMENT_SIZE", "8192")

	cfg, err := config.LoadConfig([]string{"-config", path, "-segment-size", "2048"})
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.LogDir != "/var/lib/segments" {
		t.Errorf("file value not applied: %s", cfg.LogDir)
	}
	if cfg.WriteWorkers != 8 {
		t.Errorf("env override not applied: %d", cfg.WriteWorkers)
	}
	if cfg.SegmentSize != 2048 {
		t.Errorf("explicit flag should win over env: %d", cfg.SegmentSize)
	}
	if cfg.Compression() != util.CompressionSnappy {
		t.Errorf("compression not loaded: %s", cfg.CompressionType)
	}
	if cfg.LogLevel != util.LogLevelDebug {
		t.Errorf("log level not loaded: %s", cfg.LogLevel)
	}
	util.SetLevel(util.LogLevelInfo)
}

func TestLoadConfigJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "segment.json")
	js := []byte(`{"log_dir": "json-logs", "sync_force": true, "log_level": "warn", "write_queue_size": 0}`)
	if err := os.WriteFile(path, js, 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)

	cfg, err := config.LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.LogDir != "json-logs" || !cfg.SyncForce {
		t.Errorf("json values not applied: %+v", cfg)
	}
	if cfg.WriteQueueSize != 0 {
		t.Errorf("hand-off queue size should be kept: %d", cfg.WriteQueueSize)
	}
	if cfg.LogLevel != util.LogLevelWarn {
		t.Errorf("log level not loaded: %s", cfg.LogLevel)
	}
	util.SetLevel(util.LogLevelInfo)
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := config.LoadConfig([]string{"-config", filepath.Join(t.TempDir(), "nope.yaml")}); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
