package config

import "time"

// Config is the root configuration for the charter policy service.
type Config struct {
	// Server configures the HTTP API.
	Server ServerConfig `yaml:"server"`

	// Principles configures the principle store backend.
	Principles PrinciplesConfig `yaml:"principles"`

	// Policy configures the policy store backend and generation retention.
	Policy PolicyConfig `yaml:"policy"`

	// Synth configures rule synthesis and the optional LLM suggester.
	Synth SynthConfig `yaml:"synth"`

	// Verify configures the verification engine tiers.
	Verify VerifyConfig `yaml:"verify"`

	// Conflict configures conflict resolution.
	Conflict ConflictConfig `yaml:"conflict"`

	// Evaluator configures the runtime decision path.
	Evaluator EvaluatorConfig `yaml:"evaluator"`

	// Audit configures the audit trail.
	Audit AuditConfig `yaml:"audit"`

	// Vocabulary extends the built-in context vocabulary. Keys are field
	// names, values are "string", "number", or "bool".
	Vocabulary map[string]string `yaml:"vocabulary"`

	// Telemetry configures logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8086"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout bounds reading the entire request. Default: 10s.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds writing the response. Default: 10s.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout bounds keep-alive waits. Default: 120s.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown. Default: 30s.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes bounds request header size. Default: 1MB.
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// PrinciplesConfig configures the principle store.
type PrinciplesConfig struct {
	// Backend selects the storage backend: "memory" or "sqlite".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLitePath is the database file for the sqlite backend.
	// Default: "data/principles.db"
	SQLitePath string `yaml:"sqlite_path"`

	// BusyTimeout is how long a write waits on a locked database.
	// Default: 5s.
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// PolicyConfig configures the policy store.
type PolicyConfig struct {
	// Backend selects the storage backend: "memory" or "sqlite".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLitePath is the database file for the sqlite backend.
	// Default: "data/policy.db"
	SQLitePath string `yaml:"sqlite_path"`

	// BusyTimeout is how long a write waits on a locked database.
	// Default: 5s.
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// KeepGenerations is how many superseded generation snapshots to retain
	// for rollback. Default: 10.
	KeepGenerations int `yaml:"keep_generations"`

	// PruneSchedule is the cron expression for the generation pruning sweep.
	// Default: "30 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`
}

// SynthConfig configures rule synthesis.
type SynthConfig struct {
	// ConfidenceThreshold flags suggested rules below it low-confidence.
	// Default: 0.6.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	// Parallelism bounds concurrent synthesis across principles. Default: 4.
	Parallelism int `yaml:"parallelism"`

	// Suggester configures the optional LLM suggester.
	Suggester SuggesterConfig `yaml:"suggester"`
}

// SuggesterConfig configures the LLM boundary for principles without
// structured constraints.
type SuggesterConfig struct {
	// Enabled turns the suggester on. Default: false.
	Enabled bool `yaml:"enabled"`

	// APIKey authenticates against the model API. Usually supplied through
	// CHARTER_SYNTH_SUGGESTER_API_KEY rather than the file.
	APIKey string `yaml:"api_key"`

	// Model is the model name. Default: "gemini-2.0-flash".
	Model string `yaml:"model"`
}

// VerifyConfig configures the verification engine.
type VerifyConfig struct {
	// AutomatedTimeout bounds the automated tier. Default: 5s.
	AutomatedTimeout time.Duration `yaml:"automated_timeout"`

	// RigorousTimeout bounds the rigorous tier. Default: 30s.
	RigorousTimeout time.Duration `yaml:"rigorous_timeout"`

	// AllowVacuous lets rules without checkable constraints pass flagged.
	// Default: true.
	AllowVacuous bool `yaml:"allow_vacuous"`

	// SafetyCriticalScopes routes matching rules to the rigorous tier.
	SafetyCriticalScopes []string `yaml:"safety_critical_scopes"`
}

// ConflictConfig configures conflict resolution.
type ConflictConfig struct {
	// OverridesPath is the YAML file of operator precedence overrides.
	// Empty disables overrides.
	OverridesPath string `yaml:"overrides_path"`

	// Watch hot-reloads the overrides file on change. Default: true when
	// OverridesPath is set.
	Watch bool `yaml:"watch"`
}

// EvaluatorConfig configures the runtime decision path.
type EvaluatorConfig struct {
	// DecisionTimeout bounds one evaluation. Default: 50ms.
	DecisionTimeout time.Duration `yaml:"decision_timeout"`

	// CacheSize is the decision cache capacity in entries. Zero disables
	// caching. Default: 4096.
	CacheSize int `yaml:"cache_size"`

	// PollInterval is how often the evaluator polls the store for a new
	// generation. Default: 2s.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// AuditConfig configures the audit trail.
type AuditConfig struct {
	// Enabled turns audit recording on. Default: true.
	Enabled bool `yaml:"enabled"`

	// Backend selects the storage backend: "memory" or "sqlite".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLitePath is the database file for the sqlite backend.
	// Default: "data/audit.db"
	SQLitePath string `yaml:"sqlite_path"`

	// Buffer is the async recorder channel capacity. Default: 1024.
	Buffer int `yaml:"buffer"`

	// WriteTimeout bounds one storage write. Default: 5s.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// RetentionDays is how long events are kept. Default: 90.
	RetentionDays int `yaml:"retention_days"`

	// RetentionSchedule is the cron expression for the retention sweep.
	// Default: "0 3 * * *"
	RetentionSchedule string `yaml:"retention_schedule"`
}

// TelemetryConfig configures observability.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text". Default: "json".
	Format string `yaml:"format"`

	// AddSource includes source file and line in records. Default: false.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled turns metrics on. Default: true.
	Enabled bool `yaml:"enabled"`

	// Namespace and Subsystem prefix every metric name.
	// Defaults: "charter", "policy".
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`

	// Path is the scrape endpoint path. Default: "/metrics".
	Path string `yaml:"path"`

	// DecisionDurationBuckets are histogram buckets for decision latency in
	// seconds. Defaults cover 100µs to 100ms around the 50ms budget.
	DecisionDurationBuckets []float64 `yaml:"decision_duration_buckets"`
}
