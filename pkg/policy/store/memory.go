package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"praxis-hq/charter/pkg/audit"
)

// MemoryStore is an in-memory Store for tests and ephemeral deployments. All
// snapshots handed out are deep copies; callers never share mutable state
// with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	rules       map[Key]*PolicyRule
	conflicts   []*ConflictRecord
	generations map[uint64]*ActiveRuleSet
	currentGen  uint64
	auditor     audit.Sink
}

// NewMemoryStore creates an empty in-memory policy store.
func NewMemoryStore(auditor audit.Sink) *MemoryStore {
	if auditor == nil {
		auditor = audit.NopSink{}
	}
	return &MemoryStore{
		rules:       make(map[Key]*PolicyRule),
		generations: make(map[uint64]*ActiveRuleSet),
		auditor:     auditor,
	}
}

// CreateRule persists a freshly synthesized rule version.
func (s *MemoryStore) CreateRule(ctx context.Context, rule *PolicyRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rule.Key()
	if _, exists := s.rules[key]; exists {
		return nil // idempotent replay
	}
	s.rules[key] = cloneRule(rule)

	s.auditor.Record(audit.Event{
		EntityType: audit.EntityRule,
		EntityID:   key.ID,
		ToStatus:   string(rule.Status),
		Actor:      "synth",
		Detail:     fmt.Sprintf("version %d created", key.Version),
	})
	return nil
}

// GetRule returns one rule version.
func (s *MemoryStore) GetRule(ctx context.Context, key Key) (*PolicyRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, ok := s.rules[key]
	if !ok {
		return nil, ErrRuleNotFound
	}
	return cloneRule(rule), nil
}

// LatestVersion returns the highest version number for a rule id, or 0.
func (s *MemoryStore) LatestVersion(ctx context.Context, id string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := 0
	for key := range s.rules {
		if key.ID == id && key.Version > latest {
			latest = key.Version
		}
	}
	return latest, nil
}

// ListRules returns rules matching the filter, ordered by id then version.
func (s *MemoryStore) ListRules(ctx context.Context, filter RuleFilter) ([]*PolicyRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*PolicyRule
	for _, rule := range s.rules {
		if filter.Status != "" && rule.Status != filter.Status {
			continue
		}
		if filter.PrincipleID != "" && !containsString(rule.SourcePrincipleIDs, filter.PrincipleID) {
			continue
		}
		out = append(out, cloneRule(rule))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID != out[j].ID {
			return out[i].ID < out[j].ID
		}
		return out[i].Version < out[j].Version
	})
	return out, nil
}

// Transition moves a rule version to a new status.
func (s *MemoryStore) Transition(ctx context.Context, key Key, to RuleStatus, feedback, actor string) (*PolicyRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(key, to, feedback, actor)
}

func (s *MemoryStore) transitionLocked(key Key, to RuleStatus, feedback, actor string) (*PolicyRule, error) {
	rule, ok := s.rules[key]
	if !ok {
		return nil, ErrRuleNotFound
	}
	from := rule.Status
	if !CanTransition(from, to) {
		return nil, &TransitionError{Key: key, From: from, To: to}
	}

	rule.Status = to
	if feedback != "" {
		rule.VerificationFeedback = feedback
	}
	if to == StatusVerified {
		rule.VerifiedAt = time.Now().UTC()
	}

	s.auditor.Record(audit.Event{
		EntityType: audit.EntityRule,
		EntityID:   key.ID,
		FromStatus: string(from),
		ToStatus:   string(to),
		Actor:      actor,
		Detail:     feedback,
	})
	return cloneRule(rule), nil
}

// MarkVacuousPass flags a rule version as verified without checkable
// constraints.
func (s *MemoryStore) MarkVacuousPass(ctx context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.rules[key]
	if !ok {
		return ErrRuleNotFound
	}
	rule.VacuousPass = true
	return nil
}

// RecordConflict persists a conflict record.
func (s *MemoryStore) RecordConflict(ctx context.Context, rec *ConflictRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *rec
	copied.ConflictingRuleIDs = append([]string(nil), rec.ConflictingRuleIDs...)
	copied.LosingRuleIDs = append([]string(nil), rec.LosingRuleIDs...)

	// A resolved record replaces the unresolved record with the same id;
	// resolved records are immutable.
	for i, existing := range s.conflicts {
		if existing.ID == rec.ID {
			if !existing.Unresolved {
				return &StorageError{Backend: "memory", Operation: "record conflict",
					Cause: fmt.Errorf("conflict %s already resolved", rec.ID)}
			}
			s.conflicts[i] = &copied
			s.auditConflict(rec)
			return nil
		}
	}
	s.conflicts = append(s.conflicts, &copied)
	s.auditConflict(rec)
	return nil
}

func (s *MemoryStore) auditConflict(rec *ConflictRecord) {
	to := "resolved"
	if rec.Unresolved {
		to = "unresolved"
	}
	s.auditor.Record(audit.Event{
		EntityType: audit.EntityConflict,
		EntityID:   rec.ID,
		ToStatus:   to,
		Actor:      "conflict.resolver",
		Detail:     rec.ResolutionStrategy,
	})
}

// ListConflicts returns records referencing the rule id, newest first.
func (s *MemoryStore) ListConflicts(ctx context.Context, ruleID string) ([]*ConflictRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*ConflictRecord
	for i := len(s.conflicts) - 1; i >= 0; i-- {
		rec := s.conflicts[i]
		if ruleID != "" && !containsString(rec.ConflictingRuleIDs, ruleID) {
			continue
		}
		copied := *rec
		out = append(out, &copied)
	}
	return out, nil
}

// Promote activates the given verified rules and materializes the next
// generation atomically.
func (s *MemoryStore) Promote(ctx context.Context, keys []Key, expectedGen uint64, actor string) (*ActiveRuleSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentGen != expectedGen {
		return nil, ErrGenerationConflict
	}

	for _, key := range keys {
		rule, ok := s.rules[key]
		if !ok {
			return nil, ErrRuleNotFound
		}
		if rule.Status != StatusVerified {
			return nil, &PromotionError{Key: key, Reason: fmt.Sprintf("status is %s, want %s", rule.Status, StatusVerified)}
		}
		if reason := s.conflictBlockLocked(key.ID); reason != "" {
			return nil, &PromotionError{Key: key, Reason: reason}
		}
	}

	for _, key := range keys {
		if _, err := s.transitionLocked(key, StatusActive, "", actor); err != nil {
			return nil, err
		}
	}

	return s.materializeLocked(actor, "promotion"), nil
}

// conflictBlockLocked returns a non-empty reason when conflict records bar
// the rule from activation.
func (s *MemoryStore) conflictBlockLocked(ruleID string) string {
	for _, rec := range s.conflicts {
		if rec.Unresolved && containsString(rec.ConflictingRuleIDs, ruleID) {
			return fmt.Sprintf("unresolved conflict %s references the rule", rec.ID)
		}
		if containsString(rec.LosingRuleIDs, ruleID) {
			return fmt.Sprintf("rule lost conflict %s", rec.ID)
		}
	}
	return ""
}

// materializeLocked builds the next generation from every currently active
// rule.
func (s *MemoryStore) materializeLocked(actor, cause string) *ActiveRuleSet {
	var active []*PolicyRule
	for _, rule := range s.rules {
		if rule.Status == StatusActive {
			active = append(active, cloneRule(rule))
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })

	s.currentGen++
	snapshot := &ActiveRuleSet{
		Generation: s.currentGen,
		Rules:      active,
		PromotedAt: time.Now().UTC(),
	}
	s.generations[snapshot.Generation] = snapshot

	s.auditor.Record(audit.Event{
		EntityType: audit.EntityGeneration,
		EntityID:   fmt.Sprintf("%d", snapshot.Generation),
		ToStatus:   "current",
		Actor:      actor,
		Detail:     fmt.Sprintf("%s, %d rules", cause, len(active)),
	})
	return cloneSet(snapshot)
}

// CurrentGeneration returns the newest generation number.
func (s *MemoryStore) CurrentGeneration(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentGen, nil
}

// GetGeneration returns a specific snapshot.
func (s *MemoryStore) GetGeneration(ctx context.Context, gen uint64) (*ActiveRuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.generations[gen]
	if !ok {
		return nil, ErrGenerationNotFound
	}
	return cloneSet(snapshot), nil
}

// Rollback re-materializes a retained snapshot as the next generation.
func (s *MemoryStore) Rollback(ctx context.Context, toGen uint64, actor string) (*ActiveRuleSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.generations[toGen]
	if !ok {
		return nil, ErrGenerationNotFound
	}

	// Reinstate exactly the target's membership: rules active now but absent
	// from the target are superseded, target rules are reactivated.
	inTarget := make(map[Key]bool, len(target.Rules))
	for _, rule := range target.Rules {
		inTarget[rule.Key()] = true
	}
	for key, rule := range s.rules {
		if rule.Status == StatusActive && !inTarget[key] {
			rule.Status = StatusSuperseded
			s.auditor.Record(audit.Event{
				EntityType: audit.EntityRule,
				EntityID:   key.ID,
				FromStatus: string(StatusActive),
				ToStatus:   string(StatusSuperseded),
				Actor:      actor,
				Detail:     fmt.Sprintf("rolled back to generation %d", toGen),
			})
		}
	}
	for key := range inTarget {
		if rule, ok := s.rules[key]; ok && rule.Status != StatusActive {
			rule.Status = StatusActive
		}
	}

	return s.materializeLocked(actor, fmt.Sprintf("rollback to %d", toGen)), nil
}

// PruneGenerations drops superseded snapshots beyond the newest keep.
func (s *MemoryStore) PruneGenerations(ctx context.Context, keep int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keep < 1 {
		keep = 1
	}
	pruned := 0
	for gen := range s.generations {
		if gen+uint64(keep) <= s.currentGen {
			delete(s.generations, gen)
			pruned++
		}
	}
	return pruned, nil
}

// Close is a no-op for the memory backend.
func (s *MemoryStore) Close() error { return nil }

func cloneRule(r *PolicyRule) *PolicyRule {
	out := *r
	out.SourcePrincipleIDs = append([]string(nil), r.SourcePrincipleIDs...)
	out.Scope = append([]string(nil), r.Scope...)
	out.Body = r.Body.Clone()
	return &out
}

func cloneSet(set *ActiveRuleSet) *ActiveRuleSet {
	out := &ActiveRuleSet{
		Generation: set.Generation,
		PromotedAt: set.PromotedAt,
		Rules:      make([]*PolicyRule, len(set.Rules)),
	}
	for i, r := range set.Rules {
		out.Rules[i] = cloneRule(r)
	}
	return out
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
