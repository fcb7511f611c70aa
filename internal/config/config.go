package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config represents the main chatlog configuration
type Config struct {
	// Session artifact directory
	LogDir string `json:"log_dir" mapstructure:"log_dir"`

	// Environment label stamped on every session
	Environment string `json:"environment" mapstructure:"environment"`

	// Sink (QuestDB over the Postgres wire)
	Sink SinkConfig `json:"sink" mapstructure:"sink"`

	// Stream delivery path
	Stream StreamConfig `json:"stream" mapstructure:"stream"`

	// Batch delivery path
	Batch BatchConfig `json:"batch" mapstructure:"batch"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Sweep reconciliation
	Sweep SweepConfig `json:"sweep" mapstructure:"sweep"`
}

// SinkConfig holds the QuestDB connection settings.
type SinkConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     int    `json:"port" mapstructure:"port"`
	Database string `json:"database" mapstructure:"database"`
	User     string `json:"user" mapstructure:"user"`
	Password string `json:"password" mapstructure:"password"`
}

// StreamConfig tunes the live delivery path.
type StreamConfig struct {
	Enabled       bool `json:"enabled" mapstructure:"enabled"`
	IntervalMs    int  `json:"interval_ms" mapstructure:"interval_ms"`
	IdleTimeoutMs int  `json:"idle_timeout_ms" mapstructure:"idle_timeout_ms"`
	MaxBufferCh   int  `json:"max_buffer_chars" mapstructure:"max_buffer_chars"`
	QueueCapacity int  `json:"queue_capacity" mapstructure:"queue_capacity"`
}

// Interval returns the poll cadence as a duration.
func (s StreamConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMs) * time.Millisecond
}

// IdleTimeout returns the flush inactivity window as a duration.
func (s StreamConfig) IdleTimeout() time.Duration {
	return time.Duration(s.IdleTimeoutMs) * time.Millisecond
}

// BatchConfig tunes timeline reconstruction.
type BatchConfig struct {
	IdleThresholdMs int `json:"idle_threshold_ms" mapstructure:"idle_threshold_ms"`
}

// IdleThreshold returns the chunk-boundary gap as a duration.
func (b BatchConfig) IdleThreshold() time.Duration {
	return time.Duration(b.IdleThresholdMs) * time.Millisecond
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
}

// SweepConfig holds the scheduled reconciliation settings.
type SweepConfig struct {
	Schedule string `json:"schedule" mapstructure:"schedule"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		LogDir:      "",
		Environment: "ai-agent-host",
		Sink: SinkConfig{
			Host:     "127.0.0.1",
			Port:     8812,
			Database: "qdb",
			User:     "admin",
			Password: "quest",
		},
		Stream: StreamConfig{
			Enabled:       true,
			IntervalMs:    500,
			IdleTimeoutMs: 2000,
			MaxBufferCh:   500,
			QueueCapacity: 64,
		},
		Batch: BatchConfig{
			IdleThresholdMs: 2000,
		},
		Logging: LoggingConfig{
			Level: "info",
			// Console stays off: in record mode stray log lines would
			// corrupt the wrapped interactive terminal.
			Console: false,
			Pretty:  false,
		},
		Sweep: SweepConfig{
			Schedule: "@hourly",
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if errs := NewValidator().ValidateConfig(c); len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errs[0])
	}
	return nil
}
