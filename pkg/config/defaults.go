package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8086"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// Store defaults
	DefaultPrinciplesBackend = "sqlite"
	DefaultPrinciplesPath    = "data/principles.db"
	DefaultPolicyBackend     = "sqlite"
	DefaultPolicyPath        = "data/policy.db"
	DefaultBusyTimeout       = 5 * time.Second
	DefaultKeepGenerations   = 10
	DefaultPruneSchedule     = "30 3 * * *"

	// Synthesis defaults
	DefaultConfidenceThreshold = 0.6
	DefaultSynthParallelism    = 4
	DefaultSuggesterModel      = "gemini-2.0-flash"

	// Verification defaults
	DefaultAutomatedTimeout = 5 * time.Second
	DefaultRigorousTimeout  = 30 * time.Second
	DefaultAllowVacuous     = true

	// Evaluator defaults
	DefaultDecisionTimeout = 50 * time.Millisecond
	DefaultCacheSize       = 4096
	DefaultPollInterval    = 2 * time.Second

	// Audit defaults
	DefaultAuditEnabled      = true
	DefaultAuditBackend      = "sqlite"
	DefaultAuditPath         = "data/audit.db"
	DefaultAuditBuffer       = 1024
	DefaultAuditWriteTimeout = 5 * time.Second
	DefaultRetentionDays     = 90
	DefaultRetentionSchedule = "0 3 * * *"

	// Telemetry defaults
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "json"
	DefaultMetricsEnabled   = true
	DefaultMetricsNamespace = "charter"
	DefaultMetricsSubsystem = "policy"
	DefaultMetricsPath      = "/metrics"
)

// DefaultDecisionDurationBuckets cover the decision latency budget: most
// decisions land well under 50ms, the tail above it is what pages.
var DefaultDecisionDurationBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1,
}

// ApplyDefaults fills zero-valued fields with defaults. Explicitly configured
// values are never overwritten.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	if cfg.Principles.Backend == "" {
		cfg.Principles.Backend = DefaultPrinciplesBackend
	}
	if cfg.Principles.SQLitePath == "" {
		cfg.Principles.SQLitePath = DefaultPrinciplesPath
	}
	if cfg.Principles.BusyTimeout == 0 {
		cfg.Principles.BusyTimeout = DefaultBusyTimeout
	}

	if cfg.Policy.Backend == "" {
		cfg.Policy.Backend = DefaultPolicyBackend
	}
	if cfg.Policy.SQLitePath == "" {
		cfg.Policy.SQLitePath = DefaultPolicyPath
	}
	if cfg.Policy.BusyTimeout == 0 {
		cfg.Policy.BusyTimeout = DefaultBusyTimeout
	}
	if cfg.Policy.KeepGenerations == 0 {
		cfg.Policy.KeepGenerations = DefaultKeepGenerations
	}
	if cfg.Policy.PruneSchedule == "" {
		cfg.Policy.PruneSchedule = DefaultPruneSchedule
	}

	if cfg.Synth.ConfidenceThreshold == 0 {
		cfg.Synth.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if cfg.Synth.Parallelism == 0 {
		cfg.Synth.Parallelism = DefaultSynthParallelism
	}
	if cfg.Synth.Suggester.Model == "" {
		cfg.Synth.Suggester.Model = DefaultSuggesterModel
	}

	if cfg.Verify.AutomatedTimeout == 0 {
		cfg.Verify.AutomatedTimeout = DefaultAutomatedTimeout
	}
	if cfg.Verify.RigorousTimeout == 0 {
		cfg.Verify.RigorousTimeout = DefaultRigorousTimeout
	}

	if cfg.Evaluator.DecisionTimeout == 0 {
		cfg.Evaluator.DecisionTimeout = DefaultDecisionTimeout
	}
	if cfg.Evaluator.CacheSize == 0 {
		cfg.Evaluator.CacheSize = DefaultCacheSize
	}
	if cfg.Evaluator.PollInterval == 0 {
		cfg.Evaluator.PollInterval = DefaultPollInterval
	}

	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = DefaultAuditBackend
	}
	if cfg.Audit.SQLitePath == "" {
		cfg.Audit.SQLitePath = DefaultAuditPath
	}
	if cfg.Audit.Buffer == 0 {
		cfg.Audit.Buffer = DefaultAuditBuffer
	}
	if cfg.Audit.WriteTimeout == 0 {
		cfg.Audit.WriteTimeout = DefaultAuditWriteTimeout
	}
	if cfg.Audit.RetentionDays == 0 {
		cfg.Audit.RetentionDays = DefaultRetentionDays
	}
	if cfg.Audit.RetentionSchedule == "" {
		cfg.Audit.RetentionSchedule = DefaultRetentionSchedule
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if len(cfg.Telemetry.Metrics.DecisionDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.DecisionDurationBuckets = DefaultDecisionDurationBuckets
	}
}

// NewDefault returns a configuration with every default applied and audit
// plus metrics enabled, the shape Load produces for an empty file.
func NewDefault() *Config {
	cfg := &Config{}
	cfg.Audit.Enabled = DefaultAuditEnabled
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	cfg.Verify.AllowVacuous = DefaultAllowVacuous
	ApplyDefaults(cfg)
	return cfg
}
