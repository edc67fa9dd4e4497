package predicate

// NNF rewrites the body into negation normal form: not nodes are pushed down
// to the leaves, so the result contains only compare/all/any nodes plus not
// nodes wrapping a single comparison. Leaf negation is kept as a not node
// rather than a complemented operator because the two differ on absent
// fields: a comparison over a missing field never matches, its negation
// always does, and a complemented operator would claim the field is present.
func NNF(body *Node) *Node {
	return nnf(body, false)
}

func nnf(n *Node, negate bool) *Node {
	if n == nil {
		return nil
	}
	switch n.Type {
	case NodeCompare:
		out := &Node{Type: NodeCompare, Field: n.Field, Op: n.Op, Value: n.Value}
		if negate {
			return Not(out)
		}
		return out
	case NodeNot:
		if len(n.Children) != 1 {
			return n.Clone()
		}
		return nnf(n.Children[0], !negate)
	case NodeAll, NodeAny:
		typ := n.Type
		if negate {
			// De Morgan
			if typ == NodeAll {
				typ = NodeAny
			} else {
				typ = NodeAll
			}
		}
		children := make([]*Node, len(n.Children))
		for i, c := range n.Children {
			children[i] = nnf(c, negate)
		}
		return &Node{Type: typ, Children: children}
	}
	return n.Clone()
}

// Constraint is a single structured constraint entry on a principle. The
// verification engine derives proof obligations from these, and the rule
// synthesizer fills template placeholders from them.
type Constraint struct {
	Field string `json:"field" yaml:"field"`
	Op    Op     `json:"op" yaml:"op"`
	Value Value  `json:"value" yaml:"value"`
}

// Node converts the constraint into a leaf comparison node.
func (c Constraint) Node() *Node {
	return Compare(c.Field, c.Op, c.Value)
}

// ConjoinConstraints builds a single conjunction body from a constraint list.
// Returns nil for an empty list (the vacuous body).
func ConjoinConstraints(cs []Constraint) *Node {
	if len(cs) == 0 {
		return nil
	}
	if len(cs) == 1 {
		return cs[0].Node()
	}
	children := make([]*Node, len(cs))
	for i, c := range cs {
		children[i] = c.Node()
	}
	return All(children...)
}
