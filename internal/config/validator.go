package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateSink validates the QuestDB connection settings.
func (v *Validator) ValidateSink(s SinkConfig) error {
	if s.Host == "" {
		return fmt.Errorf("sink host cannot be empty")
	}
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("sink port must be between 1 and 65535, got %d", s.Port)
	}
	if s.Database == "" {
		return fmt.Errorf("sink database cannot be empty")
	}
	if s.User == "" {
		return fmt.Errorf("sink user cannot be empty")
	}
	return nil
}

// ValidateStream validates the live delivery settings.
func (v *Validator) ValidateStream(s StreamConfig) error {
	if s.IntervalMs <= 0 {
		return fmt.Errorf("stream interval_ms must be positive, got %d", s.IntervalMs)
	}
	if s.IdleTimeoutMs <= 0 {
		return fmt.Errorf("stream idle_timeout_ms must be positive, got %d", s.IdleTimeoutMs)
	}
	if s.MaxBufferCh <= 0 {
		return fmt.Errorf("stream max_buffer_chars must be positive, got %d", s.MaxBufferCh)
	}
	if s.QueueCapacity <= 0 {
		return fmt.Errorf("stream queue_capacity must be positive, got %d", s.QueueCapacity)
	}
	return nil
}

// ValidateSchedule validates a sweep cron expression. Accepts the
// standard five-field form plus descriptors like "@hourly".
func (v *Validator) ValidateSchedule(schedule string) error {
	if schedule == "" {
		return nil // Use default
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if cfg.Environment == "" {
		errors = append(errors, fmt.Errorf("environment label cannot be empty"))
	}

	if err := v.ValidateSink(cfg.Sink); err != nil {
		errors = append(errors, err)
	}

	if err := v.ValidateStream(cfg.Stream); err != nil {
		errors = append(errors, err)
	}

	if cfg.Batch.IdleThresholdMs <= 0 {
		errors = append(errors, fmt.Errorf("batch idle_threshold_ms must be positive, got %d", cfg.Batch.IdleThresholdMs))
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	if err := v.ValidateSchedule(cfg.Sweep.Schedule); err != nil {
		errors = append(errors, err)
	}

	return errors
}
