package store

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrRuleNotFound indicates the rule version does not exist.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrGenerationNotFound indicates the snapshot does not exist.
	ErrGenerationNotFound = errors.New("generation not found")

	// ErrGenerationConflict indicates a promotion raced another promotion;
	// the caller must re-run conflict detection against the new generation
	// and retry.
	ErrGenerationConflict = errors.New("generation changed since conflict check")
)

// TransitionError reports a state machine violation.
type TransitionError struct {
	Key  Key
	From RuleStatus
	To   RuleStatus
}

// Error returns the error message.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("rule %s v%d: illegal transition %s → %s (create a new version instead)",
		e.Key.ID, e.Key.Version, e.From, e.To)
}

// PromotionError reports a rule that cannot enter a generation.
type PromotionError struct {
	Key    Key
	Reason string
}

// Error returns the error message.
func (e *PromotionError) Error() string {
	return fmt.Sprintf("cannot promote rule %s v%d: %s", e.Key.ID, e.Key.Version, e.Reason)
}

// StorageError wraps a backend failure.
type StorageError struct {
	Backend   string
	Operation string
	Cause     error
}

// Error returns the error message.
func (e *StorageError) Error() string {
	return fmt.Sprintf("policy storage (%s) %s failed: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *StorageError) Unwrap() error {
	return e.Cause
}
