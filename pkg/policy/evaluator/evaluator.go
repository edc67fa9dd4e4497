package evaluator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"praxis-hq/charter/pkg/config"
	"praxis-hq/charter/pkg/policy/store"
	"praxis-hq/charter/pkg/predicate"
	"praxis-hq/charter/pkg/telemetry/metrics"
)

// snapshot pins one generation together with its index and decision cache.
// Swapped as a unit so a decision is always internally consistent with
// exactly one generation.
type snapshot struct {
	set   *store.ActiveRuleSet
	index *ruleIndex
	cache *decisionCache

	// rollback guards the generation against repeated rollback triggers
	// when many concurrent requests hit the same contradiction.
	rollback sync.Once
}

// Evaluator serves runtime decisions from the current active generation.
type Evaluator struct {
	store   store.Store
	cfg     config.EvaluatorConfig
	metrics *metrics.DecisionMetrics
	logger  *slog.Logger

	current atomic.Pointer[snapshot]

	stopCh chan struct{}
	wg     sync.WaitGroup

	// closeMu orders background goroutine registration against Close, so a
	// rollback fired mid-shutdown cannot race the wait.
	closeMu sync.Mutex
	closed  bool
}

// New creates an evaluator, loads the current generation if one exists, and
// starts polling the store for newer ones. A store with no promoted
// generation yet is not an error; the evaluator reports ErrNotReady until the
// first promotion lands.
func New(ctx context.Context, st store.Store, cfg config.EvaluatorConfig, dm *metrics.DecisionMetrics, logger *slog.Logger) (*Evaluator, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if cfg.DecisionTimeout <= 0 {
		cfg.DecisionTimeout = config.DefaultDecisionTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = config.DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Evaluator{
		store:   st,
		cfg:     cfg,
		metrics: dm,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}

	if err := e.Refresh(ctx); err != nil && !errors.Is(err, store.ErrGenerationNotFound) {
		return nil, fmt.Errorf("loading initial generation: %w", err)
	}

	e.wg.Add(1)
	go e.pollLoop()

	return e, nil
}

// Ready reports whether a generation has been loaded.
func (e *Evaluator) Ready() bool {
	return e.current.Load() != nil
}

// Generation returns the loaded generation number, or 0 when not ready.
func (e *Evaluator) Generation() uint64 {
	if snap := e.current.Load(); snap != nil {
		return snap.set.Generation
	}
	return 0
}

// Evaluate decides the request context against the loaded generation. The
// decision budget is enforced here; a budget overrun, a contradiction between
// matched rules, and an unevaluable rule body all resolve to deny. Only a
// missing snapshot is surfaced as an error.
func (e *Evaluator) Evaluate(ctx context.Context, reqCtx predicate.Context) (*Decision, error) {
	snap := e.current.Load()
	if snap == nil {
		return nil, ErrNotReady
	}

	start := time.Now()

	key := cacheKey(reqCtx)
	if d, ok := snap.cache.get(key); ok {
		if e.metrics != nil {
			e.metrics.RecordCacheHit()
		}
		d.Cached = true
		d.Duration = time.Since(start)
		e.record(&d)
		return &d, nil
	}
	if e.metrics != nil {
		e.metrics.RecordCacheMiss()
	}

	evalCtx, cancel := context.WithTimeout(ctx, e.cfg.DecisionTimeout)
	defer cancel()

	d := e.decide(evalCtx, snap, reqCtx)
	d.Generation = snap.set.Generation
	d.Duration = time.Since(start)

	// Only clean outcomes are worth caching. A timeout this time may not
	// be one next time, and a contradiction forces a generation swap that
	// would discard the cache anyway.
	if d.Rationale == RationaleMatched || d.Rationale == RationaleNoMatchingRule {
		snap.cache.put(key, *d)
	}

	if d.Rationale == RationaleInvariantViolation {
		e.triggerRollback(snap, d.MatchedRuleIDs)
	}

	e.record(d)
	return d, nil
}

// decide runs the match loop. The deadline is checked between rules; bodies
// are cheap to evaluate so the granularity is fine.
func (e *Evaluator) decide(ctx context.Context, snap *snapshot, reqCtx predicate.Context) *Decision {
	var (
		matched []string
		effect  predicate.Effect
	)

	for _, rule := range snap.index.candidates(reqCtx) {
		select {
		case <-ctx.Done():
			return &Decision{Effect: predicate.EffectDeny, Rationale: RationaleTimeout}
		default:
		}

		ok, err := predicate.Evaluate(rule.Body, reqCtx)
		if err != nil {
			e.logger.Error("rule body evaluation failed",
				"rule_id", rule.ID,
				"rule_version", rule.Version,
				"error", err,
			)
			return &Decision{Effect: predicate.EffectDeny, Rationale: RationaleEvaluationError}
		}
		if !ok {
			continue
		}

		if len(matched) > 0 && rule.Effect.Opposes(effect) {
			return &Decision{
				Effect:         predicate.EffectDeny,
				MatchedRuleIDs: append(matched, rule.ID),
				Rationale:      RationaleInvariantViolation,
			}
		}
		matched = append(matched, rule.ID)
		effect = rule.Effect
	}

	if len(matched) == 0 {
		return &Decision{Effect: predicate.EffectDeny, Rationale: RationaleNoMatchingRule}
	}

	sort.Strings(matched)
	return &Decision{Effect: effect, MatchedRuleIDs: matched, Rationale: RationaleMatched}
}

// triggerRollback asks the store to re-materialize the previous generation.
// At most one rollback fires per loaded snapshot; the poller picks up the
// resulting generation like any other.
func (e *Evaluator) triggerRollback(snap *snapshot, ruleIDs []string) {
	snap.rollback.Do(func() {
		gen := snap.set.Generation
		e.logger.Error("contradictory rules matched in active generation, rolling back",
			"generation", gen,
			"rule_ids", ruleIDs,
		)
		if e.metrics != nil {
			e.metrics.RecordRollback()
		}
		if gen <= 1 {
			e.logger.Error("no previous generation to roll back to", "generation", gen)
			return
		}

		e.closeMu.Lock()
		if e.closed {
			e.closeMu.Unlock()
			return
		}
		e.wg.Add(1)
		e.closeMu.Unlock()
		go func() {
			defer e.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if _, err := e.store.Rollback(ctx, gen-1, "evaluator"); err != nil {
				e.logger.Error("rollback failed",
					"from_generation", gen,
					"to_generation", gen-1,
					"error", err,
				)
				return
			}
			if err := e.Refresh(ctx); err != nil {
				e.logger.Error("refresh after rollback failed", "error", err)
			}
		}()
	})
}

// Refresh loads the newest generation from the store and swaps it in if it
// differs from the loaded one. Safe to call concurrently with Evaluate.
func (e *Evaluator) Refresh(ctx context.Context) error {
	gen, err := e.store.CurrentGeneration(ctx)
	if err != nil {
		return err
	}
	if gen == 0 {
		return store.ErrGenerationNotFound
	}
	if snap := e.current.Load(); snap != nil && snap.set.Generation == gen {
		return nil
	}

	set, err := e.store.GetGeneration(ctx, gen)
	if err != nil {
		return err
	}

	e.current.Store(&snapshot{
		set:   set,
		index: buildIndex(set.Rules),
		cache: newDecisionCache(e.cfg.CacheSize),
	})
	if e.metrics != nil {
		e.metrics.RecordSwap(set.Generation)
	}
	e.logger.Info("active generation swapped",
		"generation", set.Generation,
		"rule_count", len(set.Rules),
	)
	return nil
}

func (e *Evaluator) pollLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), e.cfg.PollInterval)
			err := e.Refresh(ctx)
			cancel()
			if err != nil && !errors.Is(err, store.ErrGenerationNotFound) {
				e.logger.Error("generation poll failed", "error", err)
			}
		}
	}
}

func (e *Evaluator) record(d *Decision) {
	if e.metrics != nil {
		e.metrics.RecordDecision(string(d.Effect), d.Rationale, d.Duration)
	}
}

// Close stops the poller and waits for in-flight background work. Safe to
// call more than once.
func (e *Evaluator) Close() error {
	e.closeMu.Lock()
	if !e.closed {
		e.closed = true
		close(e.stopCh)
	}
	e.closeMu.Unlock()
	e.wg.Wait()
	return nil
}
