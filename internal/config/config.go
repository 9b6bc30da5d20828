// Package config handles global configuration loading using viper, following
// the teacher's capture-agent.* nested-struct-plus-defaults shape
// (internal/config/config.go) with the capture/decoder/reporter tree replaced
// by SnailTrail's source/exchange/sink/invariants tree.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"snailtrail.dev/st2/internal/stError"
)

// Config is the top-level static configuration for one analysis run. Maps to
// the `snailtrail:` root key in YAML.
type Config struct {
	JobID string `mapstructure:"job_id"`

	Source     SourceConfig     `mapstructure:"source"`
	Exchange   ExchangeConfig   `mapstructure:"exchange"`
	Sinks      SinksConfig      `mapstructure:"sinks"`
	Invariants InvariantsConfig `mapstructure:"invariants"`
	Dashboard  DashboardConfig  `mapstructure:"dashboard"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Log        LogConfig        `mapstructure:"log"`

	// OutputBuffer sizes the assembler's merged-tuple output channel.
	OutputBuffer int `mapstructure:"output_buffer"`
}

// ─── Source (replay) ───

// SourceConfig selects and configures one of the three EventSource kinds
// (spec §1 external interfaces: file dump, TCP trace tap, Kafka trace tap).
type SourceConfig struct {
	// Mode is "file", "tcp", or "kafka".
	Mode string `mapstructure:"mode"`

	// AdmissionWindow is the throttled replayer's K (spec §4.1): how far a
	// worker's capability frontier may run ahead of the slowest peer.
	AdmissionWindow uint64 `mapstructure:"admission_window"`

	// SourcePeers is the number of distinct source-side workers that
	// produced trace data (the instrumented computation's worker count).
	SourcePeers int `mapstructure:"source_peers"`

	// AnalysisWorkers is the number of analysis workers this process runs,
	// each owning a slice of SourcePeers per `i % AnalysisWorkers ==
	// workerIndex` (connect.rs's assignment rule).
	AnalysisWorkers int `mapstructure:"snailtrail_workers"`

	File  FileSourceConfig  `mapstructure:"file"`
	TCP   TCPSourceConfig   `mapstructure:"tcp"`
	Kafka KafkaSourceConfig `mapstructure:"kafka"`
}

// FileSourceConfig configures offline replay from `<worker>.dump` files.
type FileSourceConfig struct {
	Dir string `mapstructure:"dir"`
}

// TCPSourceConfig configures online replay over an accepted TCP listener.
type TCPSourceConfig struct {
	Interface string `mapstructure:"interface"`
	Port      int    `mapstructure:"port"`
}

// KafkaSourceConfig configures online replay from a Kafka topic, one
// partition per source worker.
type KafkaSourceConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

// ─── Exchange (remote-edge routing) ───

// ExchangeConfig configures the remote-edge builder's exchange policy
// (spec §4.5, §9 Open Question iii).
type ExchangeConfig struct {
	// ByChannel routes on (correlator_id, channel_id) instead of
	// correlator_id alone.
	ByChannel bool `mapstructure:"by_channel"`
}

// ─── Sinks ───

// SinksConfig selects and configures the PagSinks an analysis job writes to.
// Any number of sinks may be enabled at once.
type SinksConfig struct {
	Console ConsoleSinkConfig `mapstructure:"console"`
	CSV     CSVSinkConfig     `mapstructure:"csv"`
	Kafka   KafkaSinkConfig   `mapstructure:"kafka"`
}

// ConsoleSinkConfig configures the stdout sink.
type ConsoleSinkConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Format  string `mapstructure:"format"` // "text" | "json"
}

// CSVSinkConfig configures the aggregated metrics.csv sink (spec §9c).
type CSVSinkConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// KafkaSinkConfig configures the PAG-edge republish sink.
type KafkaSinkConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	Brokers      []string `mapstructure:"brokers"`
	Topic        string   `mapstructure:"topic"`
	BatchSize    int      `mapstructure:"batch_size"`
	BatchTimeout string   `mapstructure:"batch_timeout"`
	Compression  string   `mapstructure:"compression"`
	MaxAttempts  int      `mapstructure:"max_attempts"`
}

// ─── Invariants ───

// InvariantsConfig configures the invariants checker's enabled checks and
// their duration thresholds (spec §9c, grounded on invariants.rs's CLI
// flags). A zero duration disables the corresponding check.
type InvariantsConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Peers       int    `mapstructure:"peers"`
	MaxProgress string `mapstructure:"max_progress"`
	MaxEpoch    string `mapstructure:"max_epoch"`
	MaxOperator string `mapstructure:"max_operator"`
	MaxMessage  string `mapstructure:"max_message"`
}

// ─── Dashboard ───

// DashboardConfig configures the WebSocket dashboard server (spec §6).
type DashboardConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Listen     string `mapstructure:"listen"`
	RingBuffer int    `mapstructure:"ring_buffer"` // epochs retained for replay on reconnect
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics server settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Log ───

// LogConfig contains logging settings (see internal/log).
type LogConfig struct {
	Level   string           `mapstructure:"level"`  // debug / info / warn / error
	Format  string           `mapstructure:"format"` // json / text
	Outputs LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains structured log output destinations.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures rotated file log output (lumberjack).
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure
// `snailtrail: ...`.
type configRoot struct {
	SnailTrail Config `mapstructure:"snailtrail"`
}

// Load loads configuration from a YAML file plus environment overrides
// (SNAILTRAIL_ prefix) plus code defaults, in increasing precedence, then
// validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, stError.Wrap(stError.ConfigError, fmt.Sprintf("read config file %s", path), err)
		}
	}

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, stError.Wrap(stError.ConfigError, "unmarshal config", err)
	}
	cfg := root.SnailTrail

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("snailtrail.source.mode", "file")
	v.SetDefault("snailtrail.source.admission_window", 1)
	v.SetDefault("snailtrail.source.source_peers", 1)
	v.SetDefault("snailtrail.source.snailtrail_workers", 1)
	v.SetDefault("snailtrail.source.tcp.port", 8000)

	v.SetDefault("snailtrail.exchange.by_channel", false)

	v.SetDefault("snailtrail.output_buffer", 4096)

	v.SetDefault("snailtrail.sinks.console.enabled", true)
	v.SetDefault("snailtrail.sinks.console.format", "text")
	v.SetDefault("snailtrail.sinks.kafka.batch_size", 100)
	v.SetDefault("snailtrail.sinks.kafka.batch_timeout", "100ms")
	v.SetDefault("snailtrail.sinks.kafka.compression", "snappy")
	v.SetDefault("snailtrail.sinks.kafka.max_attempts", 3)

	v.SetDefault("snailtrail.invariants.enabled", false)

	v.SetDefault("snailtrail.dashboard.enabled", false)
	v.SetDefault("snailtrail.dashboard.listen", "127.0.0.1:3012")
	v.SetDefault("snailtrail.dashboard.ring_buffer", 64)

	v.SetDefault("snailtrail.metrics.enabled", true)
	v.SetDefault("snailtrail.metrics.listen", ":9091")
	v.SetDefault("snailtrail.metrics.path", "/metrics")

	v.SetDefault("snailtrail.log.level", "info")
	v.SetDefault("snailtrail.log.format", "text")
	v.SetDefault("snailtrail.log.outputs.file.enabled", false)
	v.SetDefault("snailtrail.log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("snailtrail.log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("snailtrail.log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("snailtrail.log.outputs.file.rotation.compress", true)
}

// Validate validates a fully-merged Config, returning a stError.ConfigError
// on any violation (spec §7: ConfigError is a CLI/config validation failure,
// fatal before startup, never a panic).
func (cfg *Config) Validate() error {
	if cfg.JobID == "" {
		return stError.New(stError.ConfigError, "job_id is required")
	}
	if cfg.Source.AdmissionWindow < 1 {
		return stError.New(stError.ConfigError, "source.admission_window must be >= 1")
	}
	if cfg.Source.SourcePeers < 1 {
		return stError.New(stError.ConfigError, "source.source_peers must be >= 1")
	}
	if cfg.Source.AnalysisWorkers < 1 {
		return stError.New(stError.ConfigError, "source.snailtrail_workers must be >= 1")
	}
	if cfg.Source.AnalysisWorkers > cfg.Source.SourcePeers {
		return stError.New(stError.ConfigError, "source.snailtrail_workers must be <= source.source_peers")
	}

	switch cfg.Source.Mode {
	case "file":
		if cfg.Source.File.Dir == "" {
			return stError.New(stError.ConfigError, "source.file.dir is required when source.mode=file")
		}
	case "tcp":
		if cfg.Source.TCP.Interface == "" {
			return stError.New(stError.ConfigError, "source.tcp.interface is required when source.mode=tcp")
		}
	case "kafka":
		if len(cfg.Source.Kafka.Brokers) == 0 {
			return stError.New(stError.ConfigError, "source.kafka.brokers is required when source.mode=kafka")
		}
		if cfg.Source.Kafka.Topic == "" {
			return stError.New(stError.ConfigError, "source.kafka.topic is required when source.mode=kafka")
		}
	default:
		return stError.New(stError.ConfigError, fmt.Sprintf("source.mode must be file/tcp/kafka, got %q", cfg.Source.Mode))
	}

	if cfg.Sinks.Kafka.Enabled {
		if len(cfg.Sinks.Kafka.Brokers) == 0 {
			return stError.New(stError.ConfigError, "sinks.kafka.brokers is required when sinks.kafka.enabled=true")
		}
		if cfg.Sinks.Kafka.Topic == "" {
			return stError.New(stError.ConfigError, "sinks.kafka.topic is required when sinks.kafka.enabled=true")
		}
	}
	if cfg.Sinks.CSV.Enabled && cfg.Sinks.CSV.Path == "" {
		return stError.New(stError.ConfigError, "sinks.csv.path is required when sinks.csv.enabled=true")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return stError.New(stError.ConfigError, fmt.Sprintf("invalid log level: %s (must be debug/info/warn/error)", cfg.Log.Level))
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return stError.New(stError.ConfigError, fmt.Sprintf("invalid log format: %s (must be json/text)", cfg.Log.Format))
	}

	return nil
}
