package predicate

import (
	"fmt"
	"sort"
	"strings"
)

// Effect is the decision a rule yields when its body matches.
type Effect string

const (
	EffectPermit Effect = "permit"
	EffectDeny   Effect = "deny"
)

// Opposes reports whether two effects contradict each other.
func (e Effect) Opposes(other Effect) bool {
	return (e == EffectPermit && other == EffectDeny) ||
		(e == EffectDeny && other == EffectPermit)
}

// NodeType identifies the shape of a predicate node.
type NodeType string

const (
	NodeCompare NodeType = "compare" // field op value
	NodeAll     NodeType = "all"     // AND of children
	NodeAny     NodeType = "any"     // OR of children
	NodeNot     NodeType = "not"     // negation of single child
)

// Op is a comparison operator in a leaf node.
type Op string

const (
	OpEqual        Op = "=="
	OpNotEqual     Op = "!="
	OpLessThan     Op = "<"
	OpLessEqual    Op = "<="
	OpGreaterThan  Op = ">"
	OpGreaterEqual Op = ">="
	OpIn           Op = "in"
	OpNotIn        Op = "not_in"
)

// IsOrdering reports whether the operator requires a numeric field.
func (o Op) IsOrdering() bool {
	switch o {
	case OpLessThan, OpLessEqual, OpGreaterThan, OpGreaterEqual:
		return true
	}
	return false
}

// Node is a predicate body node. Compare nodes use Field/Op/Value; all/any
// nodes use Children; not nodes use a single child.
type Node struct {
	Type     NodeType `json:"type" yaml:"type"`
	Field    string   `json:"field,omitempty" yaml:"field,omitempty"`
	Op       Op       `json:"op,omitempty" yaml:"op,omitempty"`
	Value    Value    `json:"value,omitempty" yaml:"value,omitempty"`
	Children []*Node  `json:"children,omitempty" yaml:"children,omitempty"`
}

// Compare constructs a leaf comparison node.
func Compare(field string, op Op, value Value) *Node {
	return &Node{Type: NodeCompare, Field: field, Op: op, Value: value}
}

// All constructs a conjunction node.
func All(children ...*Node) *Node {
	return &Node{Type: NodeAll, Children: children}
}

// Any constructs a disjunction node.
func Any(children ...*Node) *Node {
	return &Node{Type: NodeAny, Children: children}
}

// Not constructs a negation node.
func Not(child *Node) *Node {
	return &Node{Type: NodeNot, Children: []*Node{child}}
}

// IsCompare returns true for leaf comparison nodes.
func (n *Node) IsCompare() bool { return n.Type == NodeCompare }

// IsLogical returns true for all/any/not nodes.
func (n *Node) IsLogical() bool {
	return n.Type == NodeAll || n.Type == NodeAny || n.Type == NodeNot
}

// Fields returns the sorted set of field names the body references.
func (n *Node) Fields() []string {
	set := make(map[string]struct{})
	n.collectFields(set)
	fields := make([]string, 0, len(set))
	for f := range set {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

func (n *Node) collectFields(set map[string]struct{}) {
	if n == nil {
		return
	}
	if n.Type == NodeCompare {
		set[n.Field] = struct{}{}
		return
	}
	for _, c := range n.Children {
		c.collectFields(set)
	}
}

// LeadingField returns the field most useful for indexing this body: the
// first field that appears in every satisfying assignment. For a conjunction
// that is any compared field; for a disjunction a field is leading only if it
// leads every branch. Returns "" when no single field dominates.
func (n *Node) LeadingField() string {
	if n == nil {
		return ""
	}
	switch n.Type {
	case NodeCompare:
		return n.Field
	case NodeAll:
		for _, c := range n.Children {
			if f := c.LeadingField(); f != "" {
				return f
			}
		}
		return ""
	case NodeAny:
		if len(n.Children) == 0 {
			return ""
		}
		first := n.Children[0].LeadingField()
		if first == "" {
			return ""
		}
		for _, c := range n.Children[1:] {
			if c.LeadingField() != first {
				return ""
			}
		}
		return first
	case NodeNot:
		// A negation matches almost everything; indexing on it is useless.
		return ""
	}
	return ""
}

// Clone returns a deep copy of the body.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{Type: n.Type, Field: n.Field, Op: n.Op, Value: n.Value}
	if len(n.Children) > 0 {
		out.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = c.Clone()
		}
	}
	return out
}

// Canonical returns a stable textual form of the body. Conjunction and
// disjunction children are sorted, so semantically reordered bodies produced
// by deterministic templating canonicalize identically.
func (n *Node) Canonical() string {
	if n == nil {
		return "true"
	}
	switch n.Type {
	case NodeCompare:
		return fmt.Sprintf("(%s %s %s)", n.Field, n.Op, n.Value.Canonical())
	case NodeAll, NodeAny:
		parts := make([]string, 0, len(n.Children))
		for _, c := range n.Children {
			parts = append(parts, c.Canonical())
		}
		sort.Strings(parts)
		return fmt.Sprintf("%s(%s)", n.Type, strings.Join(parts, " "))
	case NodeNot:
		if len(n.Children) == 1 {
			return fmt.Sprintf("not(%s)", n.Children[0].Canonical())
		}
	}
	return "<invalid>"
}
