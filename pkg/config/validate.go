package config

import (
	"fmt"
	"net"
	"strings"
)

// FieldError is a validation error for one configuration field.
type FieldError struct {
	// Field is the dotted path to the field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every validation failure in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

var validBackends = map[string]bool{"memory": true, "sqlite": true}

// Validate checks the configuration and returns a ValidationError describing
// every failed rule, or nil.
func Validate(cfg *Config) error {
	var errs []FieldError

	if _, _, err := net.SplitHostPort(cfg.Server.ListenAddress); err != nil {
		errs = append(errs, FieldError{"server.listen_address", fmt.Sprintf("invalid address: %v", err)})
	}

	if !validBackends[cfg.Principles.Backend] {
		errs = append(errs, FieldError{"principles.backend", fmt.Sprintf("unknown backend %q", cfg.Principles.Backend)})
	}
	if !validBackends[cfg.Policy.Backend] {
		errs = append(errs, FieldError{"policy.backend", fmt.Sprintf("unknown backend %q", cfg.Policy.Backend)})
	}
	if !validBackends[cfg.Audit.Backend] {
		errs = append(errs, FieldError{"audit.backend", fmt.Sprintf("unknown backend %q", cfg.Audit.Backend)})
	}
	if cfg.Policy.KeepGenerations < 1 {
		errs = append(errs, FieldError{"policy.keep_generations", "must be at least 1"})
	}

	if cfg.Synth.ConfidenceThreshold < 0 || cfg.Synth.ConfidenceThreshold > 1 {
		errs = append(errs, FieldError{"synth.confidence_threshold", "must be within [0,1]"})
	}
	if cfg.Synth.Parallelism < 1 {
		errs = append(errs, FieldError{"synth.parallelism", "must be at least 1"})
	}
	if cfg.Synth.Suggester.Enabled && cfg.Synth.Suggester.APIKey == "" {
		errs = append(errs, FieldError{"synth.suggester.api_key", "required when the suggester is enabled"})
	}

	if cfg.Verify.AutomatedTimeout <= 0 {
		errs = append(errs, FieldError{"verify.automated_timeout", "must be positive"})
	}
	if cfg.Verify.RigorousTimeout < cfg.Verify.AutomatedTimeout {
		errs = append(errs, FieldError{"verify.rigorous_timeout", "must not be shorter than the automated timeout"})
	}

	if cfg.Evaluator.DecisionTimeout <= 0 {
		errs = append(errs, FieldError{"evaluator.decision_timeout", "must be positive"})
	}
	if cfg.Evaluator.CacheSize < 0 {
		errs = append(errs, FieldError{"evaluator.cache_size", "must not be negative"})
	}
	if cfg.Evaluator.PollInterval <= 0 {
		errs = append(errs, FieldError{"evaluator.poll_interval", "must be positive"})
	}

	if cfg.Audit.RetentionDays < 1 {
		errs = append(errs, FieldError{"audit.retention_days", "must be at least 1"})
	}

	for field, ft := range cfg.Vocabulary {
		switch ft {
		case "string", "number", "bool":
		default:
			errs = append(errs, FieldError{"vocabulary." + field, fmt.Sprintf("unknown field type %q", ft)})
		}
	}

	switch cfg.Telemetry.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{"telemetry.logging.level", fmt.Sprintf("unknown level %q", cfg.Telemetry.Logging.Level)})
	}
	switch cfg.Telemetry.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{"telemetry.logging.format", fmt.Sprintf("unknown format %q", cfg.Telemetry.Logging.Format)})
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}
