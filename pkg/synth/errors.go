package synth

import "fmt"

// GapError reports a principle that no synthesis path could express as a
// machine-evaluable rule. It is a hard failure, not a fallback.
type GapError struct {
	PrincipleID string
	Reason      string
}

// Error returns the error message.
func (e *GapError) Error() string {
	return fmt.Sprintf("synthesis gap for principle %s: %s", e.PrincipleID, e.Reason)
}

// SuggestionError wraps a Suggester failure or an invalid proposal.
type SuggestionError struct {
	PrincipleID string
	Cause       error
}

// Error returns the error message.
func (e *SuggestionError) Error() string {
	return fmt.Sprintf("suggestion failed for principle %s: %v", e.PrincipleID, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *SuggestionError) Unwrap() error { return e.Cause }
