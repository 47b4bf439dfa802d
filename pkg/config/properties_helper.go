package config

import (
	"os"
	"strings"

	"github.com/downfa11-org/segmentlog/util"
)

// MinSegmentSize is the smallest capacity Normalize keeps; anything below falls back to 1MB.
const MinSegmentSize = 64

func (cfg *Config) Normalize() {
	if strings.TrimSpace(cfg.LogDir) == "" {
		cfg.LogDir = "segment-logs"
	}
	if cfg.SegmentSize < MinSegmentSize {
		cfg.SegmentSize = 1 << 20 // 1MB
	}

	if cfg.WriteWorkers <= 0 {
		cfg.WriteWorkers = 4
	}
	if cfg.WriteQueueSize < 0 {
		cfg.WriteQueueSize = 0
	}

	cfg.CompressionType = strings.ToLower(strings.TrimSpace(cfg.CompressionType))
	if _, err := util.ParseCompression(cfg.CompressionType); err != nil {
		util.Warn("Invalid compression_type '%s', defaulting to 'none'", cfg.CompressionType)
		cfg.CompressionType = "none"
	}
	if cfg.CompressionType == "" {
		cfg.CompressionType = "none"
	}

	if cfg.LogLevel < util.LogLevelDebug || cfg.LogLevel > util.LogLevelError {
		cfg.LogLevel = util.LogLevelInfo
	}
	if cfg.ExporterPort <= 0 {
		cfg.ExporterPort = 9100
	}
}

// Compression returns the codec named by CompressionType.
func (cfg *Config) Compression() util.Compression {
	c, err := util.ParseCompression(cfg.CompressionType)
	if err != nil {
		return util.CompressionNone
	}
	return c
}

func overrideEnv(cfg *Config) {
	overrideEnvString(&cfg.LogDir, "SEGMENT_LOG_DIR")
	overrideEnvInt64(&cfg.SegmentSize, "SEGMENT_SIZE")
	overrideEnvBool(&cfg.Preallocate, "SEGMENT_PREALLOCATE")
	overrideEnvBool(&cfg.SyncForce, "SEGMENT_SYNC_FORCE")
	overrideEnvInt(&cfg.WriteWorkers, "SEGMENT_WRITE_WORKERS")
	overrideEnvInt(&cfg.WriteQueueSize, "SEGMENT_WRITE_QUEUE_SIZE")
	overrideEnvString(&cfg.CompressionType, "SEGMENT_COMPRESSION_TYPE")
	overrideEnvBool(&cfg.EnableExporter, "SEGMENT_ENABLE_EXPORTER")
	overrideEnvInt(&cfg.ExporterPort, "SEGMENT_EXPORTER_PORT")

	if v := os.Getenv("SEGMENT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = util.ParseLogLevel(v)
	}
}

func overrideEnvInt(target *int, key string) {
	if v := os.Getenv(key); v != "" {
		*target = util.ParseInt(v, *target)
	}
}

func overrideEnvInt64(target *int64, key string) {
	if v := os.Getenv(key); v != "" {
		*target = util.ParseInt64(v, *target)
	}
}

func overrideEnvBool(target *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*target = util.ParseBool(v, *target)
	}
}

func overrideEnvString(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}
