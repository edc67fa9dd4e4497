package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"praxis-hq/charter/pkg/conflict"
	"praxis-hq/charter/pkg/policy/store"
	"praxis-hq/charter/pkg/principle"
	"praxis-hq/charter/pkg/review"
	"praxis-hq/charter/pkg/synth"
	"praxis-hq/charter/pkg/telemetry/metrics"
	"praxis-hq/charter/pkg/verify"
)

// Config tunes the pipeline.
type Config struct {
	// PromoteRetries bounds how often a promotion is retried after losing
	// the generation race. Each retry re-runs conflict detection. Default: 3.
	PromoteRetries int `yaml:"promote_retries"`

	// Parallelism bounds concurrent principle chains in a batch. Default: 4.
	Parallelism int `yaml:"parallelism"`
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{PromoteRetries: 3, Parallelism: 4}
}

// Pipeline drives a principle change through synthesis, verification,
// conflict resolution, and promotion.
type Pipeline struct {
	principles  principle.Store
	policies    store.Store
	synthesizer *synth.Synthesizer
	verifier    *verify.Engine
	detector    *conflict.Detector
	resolver    *conflict.Resolver
	queue       *review.Queue
	metrics     *metrics.PipelineMetrics
	cfg         Config
	logger      *slog.Logger

	// locks serialize chains per principle id; chains for distinct
	// principles run concurrently.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New wires the pipeline and installs its verdict handler on the review
// queue. The metrics group may be nil.
func New(
	principles principle.Store,
	policies store.Store,
	synthesizer *synth.Synthesizer,
	verifier *verify.Engine,
	detector *conflict.Detector,
	resolver *conflict.Resolver,
	queue *review.Queue,
	pm *metrics.PipelineMetrics,
	cfg Config,
	logger *slog.Logger,
) *Pipeline {
	if cfg.PromoteRetries <= 0 {
		cfg.PromoteRetries = DefaultConfig().PromoteRetries
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = DefaultConfig().Parallelism
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pipeline{
		principles:  principles,
		policies:    policies,
		synthesizer: synthesizer,
		verifier:    verifier,
		detector:    detector,
		resolver:    resolver,
		queue:       queue,
		metrics:     pm,
		cfg:         cfg,
		logger:      logger.With("component", "pipeline"),
		locks:       make(map[string]*sync.Mutex),
	}
	if queue != nil {
		queue.SetHandler(p.handleVerdict)
	}
	return p
}

// PrincipleChanged runs the full chain for one principle. Chains for the
// same principle are serialized; the state machine makes replays idempotent.
func (p *Pipeline) PrincipleChanged(ctx context.Context, principleID string) error {
	lock := p.lock(principleID)
	lock.Lock()
	defer lock.Unlock()

	pr, err := p.principles.GetActive(ctx, principleID)
	if err != nil {
		return fmt.Errorf("pipeline: load principle %s: %w", principleID, err)
	}
	return p.run(ctx, pr)
}

// PrinciplesChanged runs the chain for a batch of principles concurrently.
// The first failure cancels the batch.
func (p *Pipeline) PrinciplesChanged(ctx context.Context, principleIDs []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Parallelism)
	for _, id := range principleIDs {
		g.Go(func() error {
			return p.PrincipleChanged(gctx, id)
		})
	}
	return g.Wait()
}

func (p *Pipeline) lock(principleID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[principleID]
	if !ok {
		l = &sync.Mutex{}
		p.locks[principleID] = l
	}
	return l
}

func (p *Pipeline) run(ctx context.Context, pr *principle.Principle) error {
	rules, err := p.synthesizer.Synthesize(ctx, []*principle.Principle{pr})
	if err != nil {
		if p.metrics != nil {
			p.metrics.RecordSynthesis("none", "gap")
		}
		return fmt.Errorf("pipeline: synthesize principle %s: %w", pr.ID, err)
	}
	rule := rules[0]
	if p.metrics != nil {
		p.metrics.RecordSynthesis(string(rule.Origin), "ok")
	}

	switch rule.Status {
	case store.StatusPendingVerification:
		return p.verifyAndAdvance(ctx, rule)
	case store.StatusVerified:
		// Replay of a chain that died between verification and promotion.
		return p.advance(ctx, rule)
	default:
		// Active, failed, or retired: nothing left to drive.
		p.logger.Info("chain complete at synthesis",
			"rule_id", rule.ID, "version", rule.Version, "status", rule.Status)
		return nil
	}
}

func (p *Pipeline) verifyAndAdvance(ctx context.Context, rule *store.PolicyRule) error {
	sources, err := p.sourcePrinciples(ctx, rule)
	if err != nil {
		return err
	}

	result, err := p.verifier.Verify(ctx, rule, sources)
	if err != nil {
		return fmt.Errorf("pipeline: verify rule %s: %w", rule.ID, err)
	}
	if p.metrics != nil {
		p.metrics.RecordVerification(string(result.Tier), string(result.Status), result.Duration)
	}
	defer p.reportQueueDepth()

	switch result.Status {
	case verify.StatusPassed:
		if result.Vacuous {
			if err := p.policies.MarkVacuousPass(ctx, rule.Key()); err != nil {
				return fmt.Errorf("pipeline: flag vacuous pass for rule %s: %w", rule.ID, err)
			}
		}
		verified, err := p.policies.Transition(ctx, rule.Key(), store.StatusVerified, result.Feedback, "verify")
		if err != nil {
			return fmt.Errorf("pipeline: mark rule %s verified: %w", rule.ID, err)
		}
		return p.advance(ctx, verified)

	case verify.StatusFailed:
		if _, err := p.policies.Transition(ctx, rule.Key(), store.StatusFailed, result.Feedback, "verify"); err != nil {
			return fmt.Errorf("pipeline: mark rule %s failed: %w", rule.ID, err)
		}
		p.logger.Warn("verification failed",
			"rule_id", rule.ID, "version", rule.Version, "feedback", result.Feedback)
		return nil

	default:
		// Inconclusive: the rule stays pending and the verifier has already
		// escalated it. A verdict resumes the chain via the queue handler.
		p.logger.Info("verification inconclusive, awaiting review",
			"rule_id", rule.ID, "version", rule.Version)
		return nil
	}
}

// advance takes a verified rule through conflict resolution and promotion.
// Losing the generation race re-runs detection; the loop is bounded.
func (p *Pipeline) advance(ctx context.Context, rule *store.PolicyRule) error {
	for attempt := 0; attempt <= p.cfg.PromoteRetries; attempt++ {
		blocked, err := p.resolveConflicts(ctx, rule)
		if err != nil {
			return err
		}
		if blocked {
			p.recordPromotion("blocked")
			p.logger.Warn("promotion blocked by conflict",
				"rule_id", rule.ID, "version", rule.Version)
			return nil
		}

		// Resolution may have retired the rule as a conflict loser.
		current, err := p.policies.GetRule(ctx, rule.Key())
		if err != nil {
			return err
		}
		switch current.Status {
		case store.StatusVerified:
		case store.StatusActive:
			return nil // replayed chain, already promoted
		default:
			p.recordPromotion("blocked")
			p.logger.Info("rule retired before promotion",
				"rule_id", rule.ID, "version", rule.Version, "status", current.Status)
			return nil
		}

		gen, err := p.policies.CurrentGeneration(ctx)
		if err != nil {
			return err
		}
		set, err := p.policies.Promote(ctx, []store.Key{rule.Key()}, gen, "pipeline")
		if errors.Is(err, store.ErrGenerationConflict) {
			p.logger.Info("lost generation race, re-running conflict detection",
				"rule_id", rule.ID, "expected_generation", gen)
			continue
		}
		var perr *store.PromotionError
		if errors.As(err, &perr) {
			p.recordPromotion("blocked")
			p.logger.Warn("promotion rejected", "rule_id", rule.ID, "reason", perr.Reason)
			return nil
		}
		if err != nil {
			p.recordPromotion("error")
			return fmt.Errorf("pipeline: promote rule %s: %w", rule.ID, err)
		}

		p.recordPromotion("ok")
		p.logger.Info("rule promoted",
			"rule_id", rule.ID, "version", rule.Version, "generation", set.Generation)
		return nil
	}
	p.recordPromotion("error")
	return fmt.Errorf("pipeline: rule %s lost the generation race %d times", rule.ID, p.cfg.PromoteRetries+1)
}

// resolveConflicts detects contradictions between the rule and the rules it
// would join, resolves what the total order can decide, and reports whether
// anything blocks this rule's promotion.
func (p *Pipeline) resolveConflicts(ctx context.Context, rule *store.PolicyRule) (bool, error) {
	others, err := p.candidateSet(ctx)
	if err != nil {
		return false, err
	}

	records, err := p.detector.Detect(ctx, rule, others)
	if err != nil {
		return false, fmt.Errorf("pipeline: detect conflicts for rule %s: %w", rule.ID, err)
	}

	blocked := false
	for _, rec := range records {
		resolved, err := p.resolver.Resolve(ctx, rec)
		if err != nil {
			return false, fmt.Errorf("pipeline: resolve conflict %s: %w", rec.ID, err)
		}
		if p.metrics != nil {
			p.metrics.RecordConflict(resolved.ResolutionStrategy)
		}
		if resolved.Unresolved {
			blocked = true
			continue
		}
		for _, loser := range resolved.LosingRuleIDs {
			if loser == rule.ID {
				blocked = true
			}
		}
	}
	p.reportQueueDepth()
	return blocked, nil
}

// candidateSet is every rule the candidate could contradict: the active set
// plus verified rules racing toward it.
func (p *Pipeline) candidateSet(ctx context.Context) ([]*store.PolicyRule, error) {
	active, err := p.policies.ListRules(ctx, store.RuleFilter{Status: store.StatusActive})
	if err != nil {
		return nil, err
	}
	verified, err := p.policies.ListRules(ctx, store.RuleFilter{Status: store.StatusVerified})
	if err != nil {
		return nil, err
	}
	return append(active, verified...), nil
}

func (p *Pipeline) sourcePrinciples(ctx context.Context, rule *store.PolicyRule) ([]*principle.Principle, error) {
	sources := make([]*principle.Principle, 0, len(rule.SourcePrincipleIDs))
	for _, pid := range rule.SourcePrincipleIDs {
		pr, err := p.principles.GetActive(ctx, pid)
		if err != nil {
			return nil, fmt.Errorf("pipeline: load principle %s for rule %s: %w", pid, rule.ID, err)
		}
		sources = append(sources, pr)
	}
	return sources, nil
}

// handleVerdict is the review queue handler. Approval of a pending rule
// marks it verified and resumes the chain; approval of a rule stalled on a
// conflict tie re-runs resolution, picking up any precedence override the
// reviewer added. Rejection fails the rule.
func (p *Pipeline) handleVerdict(ctx context.Context, item review.Item, verdict review.Verdict, reviewer string) error {
	defer p.reportQueueDepth()

	version, err := p.policies.LatestVersion(ctx, item.RuleID)
	if err != nil {
		return err
	}
	if version == 0 {
		return fmt.Errorf("pipeline: reviewed rule %s: %w", item.RuleID, store.ErrRuleNotFound)
	}
	key := store.Key{ID: item.RuleID, Version: version}
	rule, err := p.policies.GetRule(ctx, key)
	if err != nil {
		return err
	}

	if verdict == review.VerdictReject {
		if !store.CanTransition(rule.Status, store.StatusFailed) {
			p.logger.Warn("rejected rule cannot move to failed",
				"rule_id", rule.ID, "status", rule.Status, "reviewer", reviewer)
			return nil
		}
		_, err := p.policies.Transition(ctx, key, store.StatusFailed,
			fmt.Sprintf("rejected by %s (%s)", reviewer, item.Reason), reviewer)
		return err
	}

	switch rule.Status {
	case store.StatusPendingVerification:
		verified, err := p.policies.Transition(ctx, key, store.StatusVerified,
			fmt.Sprintf("approved by %s (%s)", reviewer, item.Reason), reviewer)
		if err != nil {
			return err
		}
		return p.advance(ctx, verified)
	case store.StatusVerified:
		return p.advance(ctx, rule)
	default:
		p.logger.Info("approval for rule with nothing to resume",
			"rule_id", rule.ID, "status", rule.Status, "reviewer", reviewer)
		return nil
	}
}

func (p *Pipeline) recordPromotion(result string) {
	if p.metrics != nil {
		p.metrics.RecordPromotion(result)
	}
}

func (p *Pipeline) reportQueueDepth() {
	if p.metrics != nil && p.queue != nil {
		p.metrics.SetReviewQueueDepth(len(p.queue.Pending()))
	}
}
