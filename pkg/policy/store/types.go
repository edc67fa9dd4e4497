package store

import (
	"context"
	"time"

	"praxis-hq/charter/pkg/predicate"
)

// RuleStatus is the lifecycle state of a policy rule version.
type RuleStatus string

const (
	StatusPendingSynthesis    RuleStatus = "pending_synthesis"
	StatusPendingVerification RuleStatus = "pending_verification"
	StatusVerified            RuleStatus = "verified"
	StatusFailed              RuleStatus = "failed"
	StatusActive              RuleStatus = "active"
	StatusSuperseded          RuleStatus = "superseded"
	StatusArchived            RuleStatus = "archived"
)

// RuleOrigin records how a rule body was produced.
type RuleOrigin string

const (
	OriginTemplate  RuleOrigin = "template"
	OriginSuggested RuleOrigin = "suggested"
)

// PolicyRule is one version of a machine-evaluable policy rule.
type PolicyRule struct {
	// ID identifies the rule across versions.
	ID string `json:"id"`

	// Version is the rule version, starting at 1.
	Version int `json:"version"`

	// SourcePrincipleIDs link back to the principles the rule derives from.
	SourcePrincipleIDs []string `json:"source_principle_ids"`

	// Body is the structured predicate the rule matches contexts with.
	Body *predicate.Node `json:"body"`

	// Effect is the decision the rule yields when Body matches.
	Effect predicate.Effect `json:"effect"`

	// Scope mirrors the source principles' scopes, used for tier routing
	// and indexing.
	Scope []string `json:"scope"`

	// Origin records whether the body came from deterministic templating or
	// an external suggestion source.
	Origin RuleOrigin `json:"origin"`

	// Confidence is the synthesis confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// LowConfidence flags rules below the synthesis threshold; they require
	// human sign-off regardless of automated verification.
	LowConfidence bool `json:"low_confidence"`

	// VacuousPass flags rules verified against constraint-free principles.
	VacuousPass bool `json:"vacuous_pass"`

	// Status is the lifecycle state.
	Status RuleStatus `json:"status"`

	// VerificationFeedback carries the verifier's findings.
	VerificationFeedback string `json:"verification_feedback,omitempty"`

	// SynthesizedAt and VerifiedAt are lifecycle timestamps. VerifiedAt is
	// zero until verification passes.
	SynthesizedAt time.Time `json:"synthesized_at"`
	VerifiedAt    time.Time `json:"verified_at,omitempty"`
}

// Key identifies one rule version.
type Key struct {
	ID      string
	Version int
}

// Key returns the rule's version key.
func (r *PolicyRule) Key() Key {
	return Key{ID: r.ID, Version: r.Version}
}

// ConflictRecord documents a detected contradiction between rules. Records
// are immutable once resolved; re-detections create new records.
type ConflictRecord struct {
	// ID identifies the record.
	ID string `json:"id"`

	// ConflictingRuleIDs lists the rules that can contradict each other.
	ConflictingRuleIDs []string `json:"conflicting_rule_ids"`

	// DetectedAt is when detection ran.
	DetectedAt time.Time `json:"detected_at"`

	// Witness is a context on which the rules contradict.
	Witness predicate.Context `json:"witness,omitempty"`

	// ResolutionStrategy names the rule of the total order that decided the
	// winner ("priority_weight", "precedence_override", "verified_at"), or
	// "unresolved".
	ResolutionStrategy string `json:"resolution_strategy,omitempty"`

	// WinningRuleID and LosingRuleIDs record the outcome.
	WinningRuleID string   `json:"winning_rule_id,omitempty"`
	LosingRuleIDs []string `json:"losing_rule_ids,omitempty"`

	// ResolvedAt is when resolution completed (zero while unresolved).
	ResolvedAt time.Time `json:"resolved_at,omitempty"`

	// Unresolved marks records awaiting a human precedence decision.
	Unresolved bool `json:"unresolved"`
}

// ActiveRuleSet is an immutable, versioned snapshot of all enforceable rules.
type ActiveRuleSet struct {
	// Generation is the monotonically increasing snapshot counter.
	Generation uint64 `json:"generation"`

	// Rules are the active rules in the snapshot.
	Rules []*PolicyRule `json:"rules"`

	// PromotedAt is when the snapshot was created.
	PromotedAt time.Time `json:"promoted_at"`
}

// RuleFilter narrows ListRules.
type RuleFilter struct {
	Status      RuleStatus
	PrincipleID string
}

// Store owns rule lifecycle transitions, conflict records, and generations.
type Store interface {
	// CreateRule persists a freshly synthesized rule version. Writes are
	// idempotent keyed by (id, version).
	CreateRule(ctx context.Context, rule *PolicyRule) error

	// GetRule returns one rule version.
	GetRule(ctx context.Context, key Key) (*PolicyRule, error)

	// LatestVersion returns the highest version number for a rule id, or 0.
	LatestVersion(ctx context.Context, id string) (int, error)

	// ListRules returns rules matching the filter.
	ListRules(ctx context.Context, filter RuleFilter) ([]*PolicyRule, error)

	// Transition moves a rule version to a new status, enforcing the state
	// machine. Feedback is stored for verification outcomes; actor is
	// recorded in the audit trail.
	Transition(ctx context.Context, key Key, to RuleStatus, feedback, actor string) (*PolicyRule, error)

	// MarkVacuousPass flags a rule version whose verification rested on no
	// checkable constraints. The flag travels with the rule into every
	// generation it is materialized into.
	MarkVacuousPass(ctx context.Context, key Key) error

	// RecordConflict persists a conflict record (create or final resolved
	// form; resolved records are never mutated afterwards).
	RecordConflict(ctx context.Context, rec *ConflictRecord) error

	// ListConflicts returns records referencing the rule id, newest first.
	// An empty id returns all records.
	ListConflicts(ctx context.Context, ruleID string) ([]*ConflictRecord, error)

	// Promote activates the given verified rule versions and materializes
	// the next generation atomically. expectedGen must equal the current
	// generation or ErrGenerationConflict is returned and the caller must
	// re-run conflict detection and retry.
	Promote(ctx context.Context, keys []Key, expectedGen uint64, actor string) (*ActiveRuleSet, error)

	// CurrentGeneration returns the newest generation number (0 before the
	// first promotion).
	CurrentGeneration(ctx context.Context) (uint64, error)

	// GetGeneration returns a specific snapshot.
	GetGeneration(ctx context.Context, gen uint64) (*ActiveRuleSet, error)

	// Rollback re-materializes a retained snapshot's rules as the next
	// generation. Used when the evaluator reports an invariant violation.
	Rollback(ctx context.Context, toGen uint64, actor string) (*ActiveRuleSet, error)

	// PruneGenerations drops superseded snapshots beyond the newest keep,
	// returning how many were dropped. The current generation is never
	// pruned.
	PruneGenerations(ctx context.Context, keep int) (int, error)

	// Close releases backend resources.
	Close() error
}
