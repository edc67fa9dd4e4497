package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"praxis-hq/charter/pkg/config"
)

// Collector owns the Prometheus registry and all metric groups.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	decision *DecisionMetrics
	pipeline *PipelineMetrics
	audit    *AuditMetrics
}

// NewCollector creates a collector with the given configuration and registry.
// A nil registry gets a fresh one.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if cfg.Path == "" {
		cfg.Path = config.DefaultMetricsPath
	}
	if len(cfg.DecisionDurationBuckets) == 0 {
		cfg.DecisionDurationBuckets = config.DefaultDecisionDurationBuckets
	}

	return &Collector{
		config:   cfg,
		registry: registry,
		decision: NewDecisionMetrics(cfg, registry),
		pipeline: NewPipelineMetrics(cfg, registry),
		audit:    NewAuditMetrics(cfg, registry),
	}
}

// Enabled reports whether recording is on.
func (c *Collector) Enabled() bool { return c.config.Enabled }

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Path returns the scrape endpoint path.
func (c *Collector) Path() string { return c.config.Path }

// Decision returns the runtime decision metrics.
func (c *Collector) Decision() *DecisionMetrics { return c.decision }

// Pipeline returns the compilation pipeline metrics.
func (c *Collector) Pipeline() *PipelineMetrics { return c.pipeline }

// Audit returns the audit recorder metrics.
func (c *Collector) Audit() *AuditMetrics { return c.audit }
