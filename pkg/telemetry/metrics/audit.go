package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"praxis-hq/charter/pkg/config"
)

// AuditMetrics tracks the async audit recorder.
type AuditMetrics struct {
	enabled bool

	eventsTotal  *prometheus.CounterVec
	droppedTotal prometheus.Counter
}

// NewAuditMetrics creates and registers audit metrics.
func NewAuditMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *AuditMetrics {
	am := &AuditMetrics{
		enabled: cfg.Enabled,

		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "audit_events_total",
				Help:      "Audit events recorded by entity type",
			},
			[]string{"entity_type"},
		),

		droppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "audit_events_dropped_total",
			Help:      "Audit events dropped because the buffer was full",
		}),
	}

	registry.MustRegister(am.eventsTotal, am.droppedTotal)
	return am
}

// RecordEvent records an accepted audit event.
func (am *AuditMetrics) RecordEvent(entityType string) {
	if am.enabled {
		am.eventsTotal.WithLabelValues(entityType).Inc()
	}
}

// RecordDropped records a dropped audit event.
func (am *AuditMetrics) RecordDropped() {
	if am.enabled {
		am.droppedTotal.Inc()
	}
}
