package principle

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"praxis-hq/charter/pkg/predicate"
)

// MemoryStore is an in-memory Store for tests and ephemeral deployments.
// Versions are append-only; the map value holds every version of one id.
type MemoryStore struct {
	mu       sync.RWMutex
	versions map[string][]*Principle
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{versions: make(map[string][]*Principle)}
}

// Create writes version 1 of a new principle and activates it.
func (s *MemoryStore) Create(ctx context.Context, in Input) (*Principle, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	p := fromInput(uuid.NewString(), 1, 0, in)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions[p.ID] = []*Principle{p}
	return clone(p), nil
}

// Amend writes a new active version and archives the prior active one.
func (s *MemoryStore) Amend(ctx context.Context, id string, in Input) (*Principle, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.versions[id]
	if !ok || len(history) == 0 {
		return nil, ErrNotFound
	}

	prev := history[len(history)-1]
	if prev.Status == StatusActive {
		prev.Status = StatusArchived
	}

	p := fromInput(id, prev.Version+1, prev.Version, in)
	s.versions[id] = append(history, p)
	return clone(p), nil
}

// Get returns a specific version.
func (s *MemoryStore) Get(ctx context.Context, id string, version int) (*Principle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.versions[id] {
		if p.Version == version {
			return clone(p), nil
		}
	}
	return nil, ErrNotFound
}

// GetActive returns the active version of a principle id.
func (s *MemoryStore) GetActive(ctx context.Context, id string) (*Principle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.versions[id] {
		if p.Status == StatusActive {
			return clone(p), nil
		}
	}
	return nil, ErrNotFound
}

// ListActive returns the active version of every principle, ordered by id.
func (s *MemoryStore) ListActive(ctx context.Context) ([]*Principle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Principle
	for _, history := range s.versions {
		for _, p := range history {
			if p.Status == StatusActive {
				out = append(out, clone(p))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Archive retires the active version of a principle.
func (s *MemoryStore) Archive(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.versions[id] {
		if p.Status == StatusActive {
			p.Status = StatusArchived
			return nil
		}
	}
	return ErrNotFound
}

// Close is a no-op for the memory backend.
func (s *MemoryStore) Close() error { return nil }

func fromInput(id string, version, prev int, in Input) *Principle {
	return &Principle{
		ID:                 id,
		Version:            version,
		Status:             StatusActive,
		PriorityWeight:     in.PriorityWeight,
		Scope:              append([]string(nil), in.Scope...),
		Category:           in.Category,
		NormativeStatement: in.NormativeStatement,
		Constraints:        append([]predicate.Constraint(nil), in.Constraints...),
		Rationale:          in.Rationale,
		CreatedAt:          time.Now().UTC(),
		PrevVersion:        prev,
	}
}

func clone(p *Principle) *Principle {
	out := *p
	out.Scope = append([]string(nil), p.Scope...)
	out.Constraints = append([]predicate.Constraint(nil), p.Constraints...)
	return &out
}
