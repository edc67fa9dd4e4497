package predicate

import (
	"testing"
)

// TestCanonical_OrderIndependent verifies that reordering conjunction children
// does not change the canonical form.
func TestCanonical_OrderIndependent(t *testing.T) {
	a := All(
		Compare("action", OpEqual, String("delete")),
		Compare("risk_score", OpGreaterThan, Number(5)),
	)
	b := All(
		Compare("risk_score", OpGreaterThan, Number(5)),
		Compare("action", OpEqual, String("delete")),
	)

	if a.Canonical() != b.Canonical() {
		t.Errorf("canonical forms differ:\n%s\n%s", a.Canonical(), b.Canonical())
	}
}

// TestCanonical_DistinguishesSemantics verifies distinct bodies canonicalize
// differently.
func TestCanonical_DistinguishesSemantics(t *testing.T) {
	a := Compare("risk_score", OpGreaterThan, Number(5))
	b := Compare("risk_score", OpGreaterEqual, Number(5))
	if a.Canonical() == b.Canonical() {
		t.Error("different operators must not canonicalize identically")
	}
}

// TestLeadingField covers index-key extraction.
func TestLeadingField(t *testing.T) {
	tests := []struct {
		name string
		node *Node
		want string
	}{
		{
			name: "compare leaf",
			node: Compare("action", OpEqual, String("x")),
			want: "action",
		},
		{
			name: "conjunction uses first leaf",
			node: All(Compare("action", OpEqual, String("x")), Compare("resource", OpEqual, String("y"))),
			want: "action",
		},
		{
			name: "disjunction with common lead",
			node: Any(Compare("action", OpEqual, String("x")), Compare("action", OpEqual, String("y"))),
			want: "action",
		},
		{
			name: "disjunction with mixed leads",
			node: Any(Compare("action", OpEqual, String("x")), Compare("resource", OpEqual, String("y"))),
			want: "",
		},
		{
			name: "negation has no lead",
			node: Not(Compare("action", OpEqual, String("x"))),
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.node.LeadingField(); got != tt.want {
				t.Errorf("LeadingField() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestNNF verifies negations are pushed down to the leaves.
func TestNNF(t *testing.T) {
	body := Not(All(
		Compare("risk_score", OpLessThan, Number(5)),
		Not(Compare("action", OpEqual, String("read"))),
	))

	got := NNF(body)

	if got.Type != NodeAny {
		t.Fatalf("expected any node after De Morgan, got %s", got.Type)
	}
	if got.Children[0].Type != NodeNot || got.Children[0].Children[0].Op != OpLessThan {
		t.Errorf("expected negated < leaf, got %+v", got.Children[0])
	}
	if got.Children[1].Type != NodeCompare || got.Children[1].Op != OpEqual {
		t.Errorf("expected double negation to restore the bare == leaf, got %+v", got.Children[1])
	}

	// NNF must preserve semantics, including over partial contexts where a
	// negated comparison matches precisely because the field is missing.
	ctxs := []Context{
		{"risk_score": 3, "action": "read"},
		{"risk_score": 3, "action": "write"},
		{"risk_score": 7, "action": "read"},
		{"risk_score": 7, "action": "write"},
		{"risk_score": 3},
		{"action": "write"},
		{},
	}
	for _, ctx := range ctxs {
		orig, err := Evaluate(body, ctx)
		if err != nil {
			t.Fatal(err)
		}
		norm, err := Evaluate(got, ctx)
		if err != nil {
			t.Fatal(err)
		}
		if orig != norm {
			t.Errorf("NNF changed semantics for %v: %v vs %v", ctx, orig, norm)
		}
	}
}

// TestVocabulary_Validate covers vocabulary checks.
func TestVocabulary_Validate(t *testing.T) {
	vocab := DefaultVocabulary()

	tests := []struct {
		name    string
		body    *Node
		wantErr bool
	}{
		{
			name: "valid comparison",
			body: Compare("risk_score", OpGreaterThan, Number(5)),
		},
		{
			name:    "unknown field",
			body:    Compare("nonexistent", OpEqual, String("x")),
			wantErr: true,
		},
		{
			name:    "ordering on string field",
			body:    Compare("action", OpLessThan, Number(1)),
			wantErr: true,
		},
		{
			name:    "type mismatch",
			body:    Compare("risk_score", OpEqual, String("high")),
			wantErr: true,
		},
		{
			name:    "in requires list",
			body:    Compare("action", OpIn, String("delete")),
			wantErr: true,
		},
		{
			name: "valid in list",
			body: Compare("action", OpIn, List(String("delete"), String("update"))),
		},
		{
			name:    "empty conjunction",
			body:    All(),
			wantErr: true,
		},
		{
			name:    "nil body",
			body:    nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := vocab.Validate(tt.body)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
