package predicate

import "testing"

// TestEvaluate_Compare tests leaf comparison evaluation against contexts.
func TestEvaluate_Compare(t *testing.T) {
	tests := []struct {
		name      string
		node      *Node
		ctx       Context
		wantMatch bool
		wantError bool
	}{
		{
			name:      "string equal",
			node:      Compare("action", OpEqual, String("delete")),
			ctx:       Context{"action": "delete"},
			wantMatch: true,
		},
		{
			name:      "string not equal",
			node:      Compare("action", OpNotEqual, String("delete")),
			ctx:       Context{"action": "read"},
			wantMatch: true,
		},
		{
			name:      "missing field does not match",
			node:      Compare("action", OpEqual, String("delete")),
			ctx:       Context{},
			wantMatch: false,
		},
		{
			name:      "number less than",
			node:      Compare("risk_score", OpLessThan, Number(5)),
			ctx:       Context{"risk_score": 3},
			wantMatch: true,
		},
		{
			name:      "int context value widened",
			node:      Compare("risk_score", OpGreaterEqual, Number(7)),
			ctx:       Context{"risk_score": int64(7)},
			wantMatch: true,
		},
		{
			name:      "in list",
			node:      Compare("environment", OpIn, List(String("prod"), String("staging"))),
			ctx:       Context{"environment": "prod"},
			wantMatch: true,
		},
		{
			name:      "not in list",
			node:      Compare("environment", OpNotIn, List(String("prod"))),
			ctx:       Context{"environment": "dev"},
			wantMatch: true,
		},
		{
			name:      "ordering on string errors",
			node:      Compare("action", OpLessThan, Number(5)),
			ctx:       Context{"action": "delete"},
			wantError: true,
		},
		{
			name:      "bool equal",
			node:      Compare("automated", OpEqual, Bool(true)),
			ctx:       Context{"automated": true},
			wantMatch: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.node, tt.ctx)
			if tt.wantError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.wantMatch {
				t.Errorf("Evaluate() = %v, want %v", got, tt.wantMatch)
			}
		})
	}
}

// TestEvaluate_Logical tests all/any/not composition.
func TestEvaluate_Logical(t *testing.T) {
	body := All(
		Compare("environment", OpEqual, String("prod")),
		Any(
			Compare("risk_score", OpGreaterThan, Number(7)),
			Compare("data_class", OpEqual, String("pii")),
		),
		Not(Compare("actor_role", OpEqual, String("admin"))),
	)

	tests := []struct {
		name string
		ctx  Context
		want bool
	}{
		{
			name: "high risk non-admin in prod matches",
			ctx:  Context{"environment": "prod", "risk_score": 9, "actor_role": "analyst"},
			want: true,
		},
		{
			name: "pii branch matches",
			ctx:  Context{"environment": "prod", "risk_score": 2, "data_class": "pii", "actor_role": "analyst"},
			want: true,
		},
		{
			name: "admin excluded",
			ctx:  Context{"environment": "prod", "risk_score": 9, "actor_role": "admin"},
			want: false,
		},
		{
			name: "wrong environment",
			ctx:  Context{"environment": "dev", "risk_score": 9, "actor_role": "analyst"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(body, tt.ctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestEvaluate_NilBody confirms the vacuous body matches everything.
func TestEvaluate_NilBody(t *testing.T) {
	got, err := Evaluate(nil, Context{"anything": "at all"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Error("nil body should match any context")
	}
}
