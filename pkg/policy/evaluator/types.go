package evaluator

import (
	"errors"
	"time"

	"praxis-hq/charter/pkg/predicate"
)

// Rationale explains why a decision came out the way it did.
const (
	// RationaleMatched means one or more rules matched and agreed on the
	// effect.
	RationaleMatched = "matched"

	// RationaleNoMatchingRule means no active rule matched the context.
	RationaleNoMatchingRule = "no_matching_rule"

	// RationaleInvariantViolation means matched rules contradicted each
	// other. The snapshot is considered corrupt and a rollback is triggered.
	RationaleInvariantViolation = "invariant_violation"

	// RationaleTimeout means the decision budget elapsed before evaluation
	// finished.
	RationaleTimeout = "timeout"

	// RationaleEvaluationError means a rule body could not be evaluated
	// against the context, usually a type mismatch.
	RationaleEvaluationError = "evaluation_error"
)

// ErrNotReady is returned before the first generation has been loaded. The
// caller should surface it as service unavailability, not as a deny.
var ErrNotReady = errors.New("evaluator: no active generation loaded")

// Decision is the outcome of evaluating one request context.
type Decision struct {
	// Effect is permit or deny.
	Effect predicate.Effect `json:"effect"`

	// MatchedRuleIDs lists the rules whose bodies matched, sorted.
	MatchedRuleIDs []string `json:"matched_rule_ids,omitempty"`

	// Rationale is one of the Rationale constants.
	Rationale string `json:"rationale"`

	// Generation is the snapshot generation the decision was made against.
	Generation uint64 `json:"generation"`

	// Cached reports whether the decision was served from the cache.
	Cached bool `json:"cached,omitempty"`

	// Duration is how long evaluation took.
	Duration time.Duration `json:"duration_ns"`
}
