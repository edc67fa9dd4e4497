package principle

import (
	"context"
	"time"

	"praxis-hq/charter/pkg/predicate"
)

// Status is the lifecycle state of a principle version.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// Principle is one version of a constitutional principle. Versions are
// immutable; amendments create new versions.
type Principle struct {
	// ID identifies the principle across versions.
	ID string `json:"id"`

	// Version is the version number, starting at 1.
	Version int `json:"version"`

	// Status is the lifecycle state of this version.
	Status Status `json:"status"`

	// PriorityWeight orders principles during conflict resolution, in [0,1].
	PriorityWeight float64 `json:"priority_weight"`

	// Scope lists the governance scopes the principle applies to
	// (e.g. "safety", "efficiency"). Never empty.
	Scope []string `json:"scope"`

	// Category selects the synthesis template family.
	Category string `json:"category"`

	// NormativeStatement is the human-authored statement of the principle.
	NormativeStatement string `json:"normative_statement"`

	// Constraints are the structured constraint entries proof obligations
	// derive from. May be empty for purely aspirational principles.
	Constraints []predicate.Constraint `json:"constraints"`

	// Rationale documents why the principle exists.
	Rationale string `json:"rationale"`

	// CreatedAt is when this version was written.
	CreatedAt time.Time `json:"created_at"`

	// PrevVersion links an amendment to the version it replaces (0 for the
	// first version).
	PrevVersion int `json:"prev_version"`
}

// Input carries the caller-supplied fields for Create and Amend.
type Input struct {
	Name               string
	PriorityWeight     float64
	Scope              []string
	Category           string
	NormativeStatement string
	Constraints        []predicate.Constraint
	Rationale          string
}

// Validate checks ingestion invariants: weight within [0,1], non-empty scope,
// non-empty normative statement.
func (in *Input) Validate() error {
	if in.PriorityWeight < 0 || in.PriorityWeight > 1 {
		return &ValidationError{Field: "priority_weight", Reason: "must be within [0,1]"}
	}
	if len(in.Scope) == 0 {
		return &ValidationError{Field: "scope", Reason: "must not be empty"}
	}
	if in.NormativeStatement == "" {
		return &ValidationError{Field: "normative_statement", Reason: "must not be empty"}
	}
	return nil
}

// HasScope reports whether the principle carries the given scope.
func (p *Principle) HasScope(scope string) bool {
	for _, s := range p.Scope {
		if s == scope {
			return true
		}
	}
	return false
}

// Store is the versioned principle repository.
type Store interface {
	// Create writes version 1 of a new principle and activates it.
	Create(ctx context.Context, in Input) (*Principle, error)

	// Amend writes a new version of an existing principle, activates it,
	// and archives the previously active version.
	Amend(ctx context.Context, id string, in Input) (*Principle, error)

	// Get returns a specific version.
	Get(ctx context.Context, id string, version int) (*Principle, error)

	// GetActive returns the active version of a principle id.
	GetActive(ctx context.Context, id string) (*Principle, error)

	// ListActive returns the active version of every principle.
	ListActive(ctx context.Context) ([]*Principle, error)

	// Archive retires the active version of a principle without replacement.
	Archive(ctx context.Context, id string) error

	// Close releases backend resources.
	Close() error
}
