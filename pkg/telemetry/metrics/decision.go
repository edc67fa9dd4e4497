package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"praxis-hq/charter/pkg/config"
)

// DecisionMetrics tracks the runtime evaluation path.
type DecisionMetrics struct {
	enabled bool

	decisionsTotal   *prometheus.CounterVec
	decisionDuration prometheus.Histogram
	cacheHitsTotal   prometheus.Counter
	cacheMissesTotal prometheus.Counter
	generation       prometheus.Gauge
	snapshotSwaps    prometheus.Counter
	rollbacksTotal   prometheus.Counter
}

// NewDecisionMetrics creates and registers decision metrics.
func NewDecisionMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *DecisionMetrics {
	dm := &DecisionMetrics{
		enabled: cfg.Enabled,

		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "decisions_total",
				Help:      "Total runtime decisions by effect and rationale",
			},
			[]string{"effect", "rationale"},
		),

		decisionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "decision_duration_seconds",
				Help:      "Decision latency in seconds",
				Buckets:   cfg.DecisionDurationBuckets,
			},
		),

		cacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "decision_cache_hits_total",
			Help:      "Decision cache hits",
		}),

		cacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "decision_cache_misses_total",
			Help:      "Decision cache misses",
		}),

		generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "active_generation",
			Help:      "Generation number of the active rule set snapshot",
		}),

		snapshotSwaps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "snapshot_swaps_total",
			Help:      "Atomic snapshot swaps performed by the evaluator",
		}),

		rollbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "rollbacks_triggered_total",
			Help:      "Rollbacks triggered by runtime invariant violations",
		}),
	}

	registry.MustRegister(
		dm.decisionsTotal,
		dm.decisionDuration,
		dm.cacheHitsTotal,
		dm.cacheMissesTotal,
		dm.generation,
		dm.snapshotSwaps,
		dm.rollbacksTotal,
	)
	return dm
}

// RecordDecision records one decision outcome.
func (dm *DecisionMetrics) RecordDecision(effect, rationale string, duration time.Duration) {
	if !dm.enabled {
		return
	}
	dm.decisionsTotal.WithLabelValues(effect, rationale).Inc()
	dm.decisionDuration.Observe(duration.Seconds())
}

// RecordCacheHit records a decision served from the cache.
func (dm *DecisionMetrics) RecordCacheHit() {
	if dm.enabled {
		dm.cacheHitsTotal.Inc()
	}
}

// RecordCacheMiss records a decision that required full evaluation.
func (dm *DecisionMetrics) RecordCacheMiss() {
	if dm.enabled {
		dm.cacheMissesTotal.Inc()
	}
}

// RecordSwap records a snapshot swap to the given generation.
func (dm *DecisionMetrics) RecordSwap(generation uint64) {
	if !dm.enabled {
		return
	}
	dm.generation.Set(float64(generation))
	dm.snapshotSwaps.Inc()
}

// RecordRollback records a triggered rollback.
func (dm *DecisionMetrics) RecordRollback() {
	if dm.enabled {
		dm.rollbacksTotal.Inc()
	}
}
