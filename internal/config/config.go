// Package config provides configuration management for s1see.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all s1see configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Redis         RedisConfig         `yaml:"redis"`
	WAL           WALConfig           `yaml:"wal"`
	Rules         RulesConfig         `yaml:"rules"`
	Sink          SinkConfig          `yaml:"sink"`
	Gateway       GatewayConfig       `yaml:"gateway"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// RedisConfig holds Redis connection settings, used by the ingest rate limiter.
type RedisConfig struct {
	Addr        string        `yaml:"addr"`
	PasswordEnv string        `yaml:"password_env"`
	DB          int           `yaml:"db"`
	PoolSize    int           `yaml:"pool_size"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
}

// WALConfig holds log/spool settings.
type WALConfig struct {
	BaseDir            string        `yaml:"base_dir"`
	Partitions         int           `yaml:"partitions"`
	SegmentMaxBytes    int64         `yaml:"segment_max_bytes"`
	WriteBufferBytes   int           `yaml:"write_buffer_bytes"`
	FsyncInterval      time.Duration `yaml:"fsync_interval"`
	RetentionMaxBytes  int64         `yaml:"retention_max_bytes"`
	RetentionMaxAge    time.Duration `yaml:"retention_max_age"`
	PruneInterval      time.Duration `yaml:"prune_interval"`
}

// RulesConfig holds rule-engine and rule-repository settings.
type RulesConfig struct {
	LocalPath      string        `yaml:"local_path"`
	RepoURL        string        `yaml:"repo_url"`
	RepoBranch     string        `yaml:"repo_branch"`
	SyncInterval   time.Duration `yaml:"sync_interval"`
	SequenceWindow time.Duration `yaml:"default_sequence_window"`
}

// SinkConfig holds the reference event-sink settings.
type SinkConfig struct {
	Receiver SinkReceiverConfig `yaml:"receiver"`
	Sender   SinkSenderConfig   `yaml:"sender"`
}

// SinkReceiverConfig holds reference HTTP receiver settings.
type SinkReceiverConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Port         int           `yaml:"port"`
	TokenEnv     string        `yaml:"token_env"`
	MaxBatchSize int           `yaml:"max_batch_size"`
	MaxEventSize int           `yaml:"max_event_size"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// SinkSenderConfig holds reference HTTP forwarder settings.
type SinkSenderConfig struct {
	Enabled      bool          `yaml:"enabled"`
	URL          string        `yaml:"url"`
	TokenEnv     string        `yaml:"token_env"`
	BatchSize    int           `yaml:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
	Timeout      time.Duration `yaml:"timeout"`
	RetryCount   int           `yaml:"retry_count"`
}

// GatewayConfig holds ingest-API rate limiting settings.
type GatewayConfig struct {
	Enabled        bool `yaml:"enabled"`
	IncludeHeaders bool `yaml:"include_headers"`
}

// ObservabilityConfig holds logging/tracing/metrics settings.
type ObservabilityConfig struct {
	LogLevel       string  `yaml:"log_level"`
	LogFormat      string  `yaml:"log_format"`
	TracingEnabled bool    `yaml:"tracing_enabled"`
	OTLPEndpoint   string  `yaml:"otlp_endpoint"`
	SamplingRate   float64 `yaml:"sampling_rate"`
	MetricsEnabled bool    `yaml:"metrics_enabled"`
	MetricsPort    int     `yaml:"metrics_port"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 1 * time.Hour,
		},
		WAL: WALConfig{
			BaseDir:           "./data/wal",
			Partitions:        4,
			SegmentMaxBytes:   100 * 1024 * 1024,
			WriteBufferBytes:  64 * 1024,
			FsyncInterval:     100 * time.Millisecond,
			RetentionMaxBytes: 1024 * 1024 * 1024,
			RetentionMaxAge:   7 * 24 * time.Hour,
			PruneInterval:     5 * time.Minute,
		},
		Rules: RulesConfig{
			LocalPath:      "rules",
			RepoBranch:     "main",
			SyncInterval:   5 * time.Minute,
			SequenceWindow: 15 * time.Second,
		},
		Sink: SinkConfig{
			Receiver: SinkReceiverConfig{
				Enabled:      false,
				Port:         8089,
				TokenEnv:     "S1SEE_SINK_TOKEN_INBOUND",
				MaxBatchSize: 1000,
				MaxEventSize: 1024 * 1024,
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 30 * time.Second,
			},
			Sender: SinkSenderConfig{
				Enabled:      false,
				TokenEnv:     "S1SEE_SINK_TOKEN_OUTBOUND",
				BatchSize:    100,
				BatchTimeout: 5 * time.Second,
				Timeout:      30 * time.Second,
				RetryCount:   3,
			},
		},
		Gateway: GatewayConfig{
			Enabled:        true,
			IncludeHeaders: true,
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			LogFormat:      "json",
			TracingEnabled: false,
			SamplingRate:   0.1,
			MetricsEnabled: true,
			MetricsPort:    9090,
		},
	}
}
