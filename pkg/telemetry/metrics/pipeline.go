package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"praxis-hq/charter/pkg/config"
)

// PipelineMetrics tracks the compilation pipeline: synthesis, verification,
// conflict handling, and promotions.
type PipelineMetrics struct {
	enabled bool

	synthesisTotal    *prometheus.CounterVec
	verificationTotal *prometheus.CounterVec
	verifyDuration    *prometheus.HistogramVec
	conflictsTotal    *prometheus.CounterVec
	promotionsTotal   *prometheus.CounterVec
	reviewQueueDepth  prometheus.Gauge
}

// NewPipelineMetrics creates and registers pipeline metrics.
func NewPipelineMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *PipelineMetrics {
	pm := &PipelineMetrics{
		enabled: cfg.Enabled,

		synthesisTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "synthesis_total",
				Help:      "Rule synthesis outcomes by origin and result",
			},
			[]string{"origin", "result"},
		),

		verificationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "verification_total",
				Help:      "Verification attempts by tier and status",
			},
			[]string{"tier", "status"},
		),

		verifyDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "verification_duration_seconds",
				Help:      "Verification attempt duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8), // 1ms to 16s
			},
			[]string{"tier"},
		),

		conflictsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "conflicts_total",
				Help:      "Conflict records by resolution strategy",
			},
			[]string{"strategy"},
		),

		promotionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "promotions_total",
				Help:      "Promotion attempts by result",
			},
			[]string{"result"},
		),

		reviewQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "review_queue_depth",
			Help:      "Rules waiting for human review",
		}),
	}

	registry.MustRegister(
		pm.synthesisTotal,
		pm.verificationTotal,
		pm.verifyDuration,
		pm.conflictsTotal,
		pm.promotionsTotal,
		pm.reviewQueueDepth,
	)
	return pm
}

// RecordSynthesis records one synthesis outcome.
func (pm *PipelineMetrics) RecordSynthesis(origin, result string) {
	if pm.enabled {
		pm.synthesisTotal.WithLabelValues(origin, result).Inc()
	}
}

// RecordVerification records one verification attempt.
func (pm *PipelineMetrics) RecordVerification(tier, status string, duration time.Duration) {
	if !pm.enabled {
		return
	}
	pm.verificationTotal.WithLabelValues(tier, status).Inc()
	pm.verifyDuration.WithLabelValues(tier).Observe(duration.Seconds())
}

// RecordConflict records a conflict by how it was resolved.
func (pm *PipelineMetrics) RecordConflict(strategy string) {
	if pm.enabled {
		pm.conflictsTotal.WithLabelValues(strategy).Inc()
	}
}

// RecordPromotion records a promotion attempt.
func (pm *PipelineMetrics) RecordPromotion(result string) {
	if pm.enabled {
		pm.promotionsTotal.WithLabelValues(result).Inc()
	}
}

// SetReviewQueueDepth updates the review queue gauge.
func (pm *PipelineMetrics) SetReviewQueueDepth(depth int) {
	if pm.enabled {
		pm.reviewQueueDepth.Set(float64(depth))
	}
}
