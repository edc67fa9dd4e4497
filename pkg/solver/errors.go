package solver

import "fmt"

// SolveError reports a failure inside the Datalog backend. Source carries the
// generated program for diagnosis.
type SolveError struct {
	Source string
	Cause  error
}

// Error returns the error message.
func (e *SolveError) Error() string {
	return fmt.Sprintf("solver backend failed: %v", e.Cause)
}

// Unwrap returns the underlying cause.
func (e *SolveError) Unwrap() error {
	return e.Cause
}
