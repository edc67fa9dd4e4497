package principle

import (
	"context"
	"path/filepath"
	"testing"

	"praxis-hq/charter/pkg/predicate"
)

// storeFactories lets every lifecycle test run against both backends.
func storeFactories(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"sqlite": func(t *testing.T) Store {
			cfg := DefaultSQLiteConfig()
			cfg.Path = filepath.Join(t.TempDir(), "principles.db")
			s, err := NewSQLiteStore(cfg, nil)
			if err != nil {
				t.Fatalf("failed to open sqlite store: %v", err)
			}
			return s
		},
	}
}

func testInput() Input {
	return Input{
		Name:               "no-unsafe-deletes",
		PriorityWeight:     0.9,
		Scope:              []string{"safety"},
		Category:           "prohibition",
		NormativeStatement: "Destructive actions on production data must be denied.",
		Constraints: []predicate.Constraint{
			{Field: "action", Op: predicate.OpEqual, Value: predicate.String("delete")},
			{Field: "environment", Op: predicate.OpEqual, Value: predicate.String("prod")},
		},
		Rationale: "Production deletions are irreversible.",
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer s.Close()
			ctx := context.Background()

			created, err := s.Create(ctx, testInput())
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			if created.Version != 1 {
				t.Errorf("expected version 1, got %d", created.Version)
			}
			if created.Status != StatusActive {
				t.Errorf("expected active, got %s", created.Status)
			}

			got, err := s.GetActive(ctx, created.ID)
			if err != nil {
				t.Fatalf("GetActive failed: %v", err)
			}
			if got.NormativeStatement != created.NormativeStatement {
				t.Error("round-tripped statement differs")
			}
			if len(got.Constraints) != 2 {
				t.Errorf("expected 2 constraints, got %d", len(got.Constraints))
			}
			if got.Constraints[0].Value.Str != "delete" {
				t.Errorf("constraint value lost: %+v", got.Constraints[0])
			}
		})
	}
}

func TestStore_AmendKeepsSingleActiveVersion(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer s.Close()
			ctx := context.Background()

			created, err := s.Create(ctx, testInput())
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}

			amended := testInput()
			amended.PriorityWeight = 0.95
			v2, err := s.Amend(ctx, created.ID, amended)
			if err != nil {
				t.Fatalf("Amend failed: %v", err)
			}
			if v2.Version != 2 || v2.PrevVersion != 1 {
				t.Errorf("unexpected version chain: v=%d prev=%d", v2.Version, v2.PrevVersion)
			}

			v1, err := s.Get(ctx, created.ID, 1)
			if err != nil {
				t.Fatalf("Get v1 failed: %v", err)
			}
			if v1.Status != StatusArchived {
				t.Errorf("expected v1 archived, got %s", v1.Status)
			}

			active, err := s.GetActive(ctx, created.ID)
			if err != nil {
				t.Fatalf("GetActive failed: %v", err)
			}
			if active.Version != 2 {
				t.Errorf("expected active version 2, got %d", active.Version)
			}

			all, err := s.ListActive(ctx)
			if err != nil {
				t.Fatalf("ListActive failed: %v", err)
			}
			if len(all) != 1 {
				t.Errorf("expected exactly one active version, got %d", len(all))
			}
		})
	}
}

func TestStore_Archive(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer s.Close()
			ctx := context.Background()

			created, err := s.Create(ctx, testInput())
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}

			if err := s.Archive(ctx, created.ID); err != nil {
				t.Fatalf("Archive failed: %v", err)
			}
			if _, err := s.GetActive(ctx, created.ID); err != ErrNotFound {
				t.Errorf("expected ErrNotFound after archive, got %v", err)
			}
			if err := s.Archive(ctx, created.ID); err != ErrNotFound {
				t.Errorf("double archive should be ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStore_ValidationRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Input)
	}{
		{"weight above one", func(in *Input) { in.PriorityWeight = 1.2 }},
		{"weight negative", func(in *Input) { in.PriorityWeight = -0.1 }},
		{"empty scope", func(in *Input) { in.Scope = nil }},
		{"empty statement", func(in *Input) { in.NormativeStatement = "" }},
	}

	s := NewMemoryStore()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := testInput()
			tt.mutate(&in)
			if _, err := s.Create(context.Background(), in); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}
