package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a YAML file, applies defaults, and validates.
// Fields with true defaults are seeded before unmarshalling, so an explicit
// false in the file is honored.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := &Config{}
	cfg.Audit.Enabled = DefaultAuditEnabled
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	cfg.Verify.AllowVacuous = DefaultAllowVacuous

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads configuration from a YAML file and overlays
// CHARTER_* environment variables. Environment variables always win.
func LoadWithEnvOverrides(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies CHARTER_SECTION_FIELD environment variables.
func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Server.ListenAddress, "CHARTER_SERVER_LISTEN_ADDRESS")
	setDuration(&cfg.Server.ReadTimeout, "CHARTER_SERVER_READ_TIMEOUT")
	setDuration(&cfg.Server.WriteTimeout, "CHARTER_SERVER_WRITE_TIMEOUT")
	setDuration(&cfg.Server.ShutdownTimeout, "CHARTER_SERVER_SHUTDOWN_TIMEOUT")

	setString(&cfg.Principles.Backend, "CHARTER_PRINCIPLES_BACKEND")
	setString(&cfg.Principles.SQLitePath, "CHARTER_PRINCIPLES_SQLITE_PATH")

	setString(&cfg.Policy.Backend, "CHARTER_POLICY_BACKEND")
	setString(&cfg.Policy.SQLitePath, "CHARTER_POLICY_SQLITE_PATH")
	setInt(&cfg.Policy.KeepGenerations, "CHARTER_POLICY_KEEP_GENERATIONS")

	setFloat(&cfg.Synth.ConfidenceThreshold, "CHARTER_SYNTH_CONFIDENCE_THRESHOLD")
	setInt(&cfg.Synth.Parallelism, "CHARTER_SYNTH_PARALLELISM")
	setBool(&cfg.Synth.Suggester.Enabled, "CHARTER_SYNTH_SUGGESTER_ENABLED")
	setString(&cfg.Synth.Suggester.APIKey, "CHARTER_SYNTH_SUGGESTER_API_KEY")
	setString(&cfg.Synth.Suggester.Model, "CHARTER_SYNTH_SUGGESTER_MODEL")

	setDuration(&cfg.Verify.AutomatedTimeout, "CHARTER_VERIFY_AUTOMATED_TIMEOUT")
	setDuration(&cfg.Verify.RigorousTimeout, "CHARTER_VERIFY_RIGOROUS_TIMEOUT")
	setBool(&cfg.Verify.AllowVacuous, "CHARTER_VERIFY_ALLOW_VACUOUS")

	setString(&cfg.Conflict.OverridesPath, "CHARTER_CONFLICT_OVERRIDES_PATH")
	setBool(&cfg.Conflict.Watch, "CHARTER_CONFLICT_WATCH")

	setDuration(&cfg.Evaluator.DecisionTimeout, "CHARTER_EVALUATOR_DECISION_TIMEOUT")
	setInt(&cfg.Evaluator.CacheSize, "CHARTER_EVALUATOR_CACHE_SIZE")
	setDuration(&cfg.Evaluator.PollInterval, "CHARTER_EVALUATOR_POLL_INTERVAL")

	setBool(&cfg.Audit.Enabled, "CHARTER_AUDIT_ENABLED")
	setString(&cfg.Audit.Backend, "CHARTER_AUDIT_BACKEND")
	setString(&cfg.Audit.SQLitePath, "CHARTER_AUDIT_SQLITE_PATH")
	setInt(&cfg.Audit.RetentionDays, "CHARTER_AUDIT_RETENTION_DAYS")

	setString(&cfg.Telemetry.Logging.Level, "CHARTER_LOGGING_LEVEL")
	setString(&cfg.Telemetry.Logging.Format, "CHARTER_LOGGING_FORMAT")
	setBool(&cfg.Telemetry.Metrics.Enabled, "CHARTER_METRICS_ENABLED")
}

func setString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func setInt(dst *int, key string) {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func setFloat(dst *float64, key string) {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
