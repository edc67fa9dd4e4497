package conflict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"praxis-hq/charter/pkg/policy/store"
	"praxis-hq/charter/pkg/principle"
	"praxis-hq/charter/pkg/review"
)

// Strategy names the rule of the total order that decided a conflict.
const (
	StrategyPriorityWeight     = "priority_weight"
	StrategyPrecedenceOverride = "precedence_override"
	StrategyVerifiedAt         = "verified_at"
	StrategyUnresolved         = "unresolved"
)

// Resolver applies the total order to detected conflicts.
type Resolver struct {
	policies   store.Store
	principles principle.Store
	overrides  *Overrides
	queue      *review.Queue
	logger     *slog.Logger
}

// NewResolver creates a resolver. The queue may be nil; ties are then left
// unresolved without escalation.
func NewResolver(policies store.Store, principles principle.Store, overrides *Overrides, queue *review.Queue, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		policies:   policies,
		principles: principles,
		overrides:  overrides,
		queue:      queue,
		logger:     logger.With("component", "conflict.resolver"),
	}
}

// Resolve decides a conflict record and persists the outcome. Losing rules
// are superseded when their state allows it; a losing rule still in flight is
// blocked from promotion by the record itself.
func (r *Resolver) Resolve(ctx context.Context, rec *store.ConflictRecord) (*store.ConflictRecord, error) {
	if len(rec.ConflictingRuleIDs) != 2 {
		return nil, fmt.Errorf("conflict: record %s names %d rules, want 2", rec.ID, len(rec.ConflictingRuleIDs))
	}

	a, err := r.latestRule(ctx, rec.ConflictingRuleIDs[0])
	if err != nil {
		return nil, err
	}
	b, err := r.latestRule(ctx, rec.ConflictingRuleIDs[1])
	if err != nil {
		return nil, err
	}

	winner, strategy, err := r.decide(ctx, a, b)
	if err != nil {
		return nil, err
	}

	resolved := &store.ConflictRecord{
		ID:                 rec.ID,
		ConflictingRuleIDs: rec.ConflictingRuleIDs,
		DetectedAt:         rec.DetectedAt,
		Witness:            rec.Witness,
		ResolutionStrategy: strategy,
	}

	if winner == nil {
		resolved.Unresolved = true
		if err := r.policies.RecordConflict(ctx, resolved); err != nil {
			return nil, err
		}
		if r.queue != nil {
			r.queue.Enqueue(a.ID, review.ReasonConflictTie,
				fmt.Sprintf("tie with %s in conflict %s", b.ID, rec.ID))
		}
		r.logger.Warn("conflict unresolved, escalated", "record", rec.ID)
		return resolved, nil
	}

	loser := a
	if winner.ID == a.ID {
		loser = b
	}
	resolved.WinningRuleID = winner.ID
	resolved.LosingRuleIDs = []string{loser.ID}
	resolved.ResolvedAt = time.Now().UTC()

	if err := r.policies.RecordConflict(ctx, resolved); err != nil {
		return nil, err
	}
	if err := r.supersedeLoser(ctx, loser); err != nil {
		return nil, err
	}

	r.logger.Info("conflict resolved",
		"record", rec.ID,
		"strategy", strategy,
		"winner", winner.ID,
		"loser", loser.ID)
	return resolved, nil
}

// decide applies the total order. A nil winner means a full tie.
func (r *Resolver) decide(ctx context.Context, a, b *store.PolicyRule) (*store.PolicyRule, string, error) {
	weightA, err := r.weight(ctx, a)
	if err != nil {
		return nil, "", err
	}
	weightB, err := r.weight(ctx, b)
	if err != nil {
		return nil, "", err
	}
	switch {
	case weightA > weightB:
		return a, StrategyPriorityWeight, nil
	case weightB > weightA:
		return b, StrategyPriorityWeight, nil
	}

	if r.overrides != nil && len(a.SourcePrincipleIDs) > 0 && len(b.SourcePrincipleIDs) > 0 {
		pa, pb := a.SourcePrincipleIDs[0], b.SourcePrincipleIDs[0]
		if winner, ok := r.overrides.Lookup(pa, pb); ok {
			if winner == pa {
				return a, StrategyPrecedenceOverride, nil
			}
			return b, StrategyPrecedenceOverride, nil
		}
	}

	switch {
	case a.VerifiedAt.After(b.VerifiedAt):
		return a, StrategyVerifiedAt, nil
	case b.VerifiedAt.After(a.VerifiedAt):
		return b, StrategyVerifiedAt, nil
	}

	return nil, StrategyUnresolved, nil
}

// weight is the highest priority weight among the rule's source principles.
func (r *Resolver) weight(ctx context.Context, rule *store.PolicyRule) (float64, error) {
	var max float64
	for _, pid := range rule.SourcePrincipleIDs {
		p, err := r.principles.GetActive(ctx, pid)
		if err != nil {
			return 0, fmt.Errorf("conflict: load principle %s for rule %s: %w", pid, rule.ID, err)
		}
		if p.PriorityWeight > max {
			max = p.PriorityWeight
		}
	}
	return max, nil
}

func (r *Resolver) latestRule(ctx context.Context, id string) (*store.PolicyRule, error) {
	version, err := r.policies.LatestVersion(ctx, id)
	if err != nil {
		return nil, err
	}
	if version == 0 {
		return nil, fmt.Errorf("conflict: rule %s: %w", id, store.ErrRuleNotFound)
	}
	return r.policies.GetRule(ctx, store.Key{ID: id, Version: version})
}

// supersedeLoser retires a losing rule that already reached verified or
// active. Earlier states cannot move to superseded; the conflict record
// blocks them at promotion instead.
func (r *Resolver) supersedeLoser(ctx context.Context, loser *store.PolicyRule) error {
	if !store.CanTransition(loser.Status, store.StatusSuperseded) {
		return nil
	}
	_, err := r.policies.Transition(ctx, loser.Key(), store.StatusSuperseded, "lost conflict resolution", "conflict.resolver")
	var terr *store.TransitionError
	if errors.As(err, &terr) {
		return nil
	}
	return err
}
