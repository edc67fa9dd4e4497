package audit

import (
	"context"
	"time"
)

// EntityType identifies what kind of entity an event describes.
type EntityType string

const (
	EntityPrinciple  EntityType = "principle"
	EntityRule       EntityType = "rule"
	EntityConflict   EntityType = "conflict"
	EntityGeneration EntityType = "generation"
)

// Event is one immutable audit record.
type Event struct {
	// ID is a UUID assigned by the recorder.
	ID string `json:"id"`

	// EntityType is the kind of entity that transitioned.
	EntityType EntityType `json:"entity_type"`

	// EntityID identifies the entity.
	EntityID string `json:"entity_id"`

	// FromStatus and ToStatus describe the transition. FromStatus is empty
	// for creations.
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`

	// Actor names the component or reviewer that caused the transition.
	Actor string `json:"actor"`

	// Detail carries optional free-form context (feedback strings, conflict
	// resolution strategy, generation numbers).
	Detail string `json:"detail,omitempty"`

	// Timestamp is when the transition happened.
	Timestamp time.Time `json:"timestamp"`
}

// Sink is the minimal interface pipeline components emit events through.
type Sink interface {
	// Record enqueues an event. It never blocks and never fails the caller.
	Record(event Event)
}

// NopSink discards events; used in tests and when auditing is disabled.
type NopSink struct{}

// Record discards the event.
func (NopSink) Record(Event) {}

// Query filters stored events.
type Query struct {
	EntityType EntityType
	EntityID   string
	Since      time.Time
	Limit      int
}

// Storage persists audit events.
type Storage interface {
	// Append stores one event.
	Append(ctx context.Context, event *Event) error

	// List returns events matching the query, newest first.
	List(ctx context.Context, q Query) ([]*Event, error)

	// Prune deletes events older than the cutoff and reports how many.
	Prune(ctx context.Context, olderThan time.Time) (int64, error)

	// Close releases backend resources.
	Close() error
}
