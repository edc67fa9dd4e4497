package principle

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested principle or version does not exist.
var ErrNotFound = errors.New("principle not found")

// ValidationError reports invalid ingestion input.
type ValidationError struct {
	Field  string
	Reason string
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid principle: field %q: %s", e.Field, e.Reason)
}

// StorageError wraps a backend failure.
type StorageError struct {
	Backend   string
	Operation string
	Cause     error
}

// Error returns the error message.
func (e *StorageError) Error() string {
	return fmt.Sprintf("principle storage (%s) %s failed: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *StorageError) Unwrap() error {
	return e.Cause
}
