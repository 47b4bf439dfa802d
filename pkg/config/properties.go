package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/downfa11-org/segmentlog/util"
	"gopkg.in/yaml.v3"
)

// Config represents the segment log configuration including tunable performance options
type Config struct {
	// Disk persistence
	LogDir      string `yaml:"log_dir" json:"log_dir"`
	SegmentSize int64  `yaml:"segment_size" json:"segment_size"`
	Preallocate bool   `yaml:"preallocate" json:"preallocate"`
	SyncForce   bool   `yaml:"sync_force" json:"sync_force"`

	// Write pool
	WriteWorkers   int `yaml:"write_workers" json:"write_workers"`
	WriteQueueSize int `yaml:"write_queue_size" json:"write_queue_size"`

	CompressionType string `yaml:"compression_type" json:"compression_type"`

	// Observability
	LogLevel       util.LogLevel `yaml:"log_level" json:"log_level"`
	EnableExporter bool          `yaml:"enable_exporter" json:"enable_exporter"`
	ExporterPort   int           `yaml:"exporter_port" json:"exporter_port"`
}

// LoadConfig builds a Config from flag defaults, an optional YAML/JSON file,
// SEGMENT_* environment variables and explicitly set flags, in that order.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("segmentlog", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to YAML/JSON config file")
	logDirStr := fs.String("log-dir", "segment-logs", "Directory holding segment files")
	segmentSizeStr := fs.String("segment-size", "1048576", "Segment file capacity in bytes (default: 1MB)")
	preallocateStr := fs.String("preallocate", "true", "Reserve segment capacity on disk at open time")
	syncForceStr := fs.String("sync-force", "false", "Use fsync instead of fdatasync on sync")
	workersStr := fs.String("write-workers", "4", "Number of background write workers")
	queueSizeStr := fs.String("write-queue-size", "1024", "Pending write queue size (0 = hand-off)")
	compressionStr := fs.String("compression", "none", "Raft entry compression (none, gzip, snappy, lz4)")
	logLevelStr := fs.String("log-level", "info", "Log Level (debug, info, warn, error)")
	exporterStr := fs.String("exporter", "false", "Enable Prometheus exporter")
	exporterPortStr := fs.String("exporter-port", "9100", "Exporter port")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" && *configPath == "" {
		*configPath = envPath
	}

	flags := flagValues{
		logDir:      logDirStr,
		segmentSize: segmentSizeStr,
		preallocate: preallocateStr,
		syncForce:   syncForceStr,
		workers:     workersStr,
		queueSize:   queueSizeStr,
		compression: compressionStr,
		logLevel:    logLevelStr,
		exporter:    exporterStr,
		exporterPrt: exporterPortStr,
	}
	flags.applyDefaults(cfg)

	if *configPath != "" {
		if err := loadFromFile(cfg, *configPath); err != nil {
			return nil, err
		}
	}

	overrideEnv(cfg)
	flags.applyExplicit(cfg, fs)

	cfg.Normalize()
	util.SetLevel(cfg.LogLevel)
	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	if strings.HasSuffix(path, ".json") {
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

type flagValues struct {
	logDir      *string
	segmentSize *string
	preallocate *string
	syncForce   *string
	workers     *string
	queueSize   *string
	compression *string
	logLevel    *string
	exporter    *string
	exporterPrt *string
}

func (f flagValues) applyDefaults(cfg *Config) {
	cfg.LogDir = *f.logDir
	cfg.SegmentSize = util.ParseInt64(*f.segmentSize, 1<<20)
	cfg.Preallocate = util.ParseBool(*f.preallocate, true)
	cfg.SyncForce = util.ParseBool(*f.syncForce, false)
	cfg.WriteWorkers = util.ParseInt(*f.workers, 4)
	cfg.WriteQueueSize = util.ParseInt(*f.queueSize, 1024)
	cfg.CompressionType = *f.compression
	cfg.LogLevel = util.ParseLogLevel(*f.logLevel)
	cfg.EnableExporter = util.ParseBool(*f.exporter, false)
	cfg.ExporterPort = util.ParseInt(*f.exporterPrt, 9100)
}

func (f flagValues) applyExplicit(cfg *Config, fs *flag.FlagSet) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "log-dir":
			cfg.LogDir = *f.logDir
		case "segment-size":
			cfg.SegmentSize = util.ParseInt64(*f.segmentSize, cfg.SegmentSize)
		case "preallocate":
			cfg.Preallocate = util.ParseBool(*f.preallocate, cfg.Preallocate)
		case "sync-force":
			cfg.SyncForce = util.ParseBool(*f.syncForce, cfg.SyncForce)
		case "write-workers":
			cfg.WriteWorkers = util.ParseInt(*f.workers, cfg.WriteWorkers)
		case "write-queue-size":
			cfg.WriteQueueSize = util.ParseInt(*f.queueSize, cfg.WriteQueueSize)
		case "compression":
			cfg.CompressionType = *f.compression
		case "log-level":
			cfg.LogLevel = util.ParseLogLevel(*f.logLevel)
		case "exporter":
			cfg.EnableExporter = util.ParseBool(*f.exporter, cfg.EnableExporter)
		case "exporter-port":
			cfg.ExporterPort = util.ParseInt(*f.exporterPrt, cfg.ExporterPort)
		}
	})
}
