package predicate

import "fmt"

// Context is a request context: field name to value. Values may be string,
// bool, or any numeric type; integers are widened before comparison.
type Context map[string]any

// Evaluate evaluates the body against a context. A comparison over a field
// absent from the context does not match (and its negation does), so partial
// contexts degrade toward non-match rather than errors. Type mismatches
// between context value and declared comparison are reported as errors: they
// indicate a caller bug, not an unmatched rule.
func Evaluate(body *Node, ctx Context) (bool, error) {
	if body == nil {
		return true, nil
	}
	switch body.Type {
	case NodeCompare:
		return evalCompare(body, ctx)
	case NodeAll:
		for _, c := range body.Children {
			ok, err := Evaluate(c, ctx)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case NodeAny:
		for _, c := range body.Children {
			ok, err := Evaluate(c, ctx)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case NodeNot:
		if len(body.Children) != 1 {
			return false, fmt.Errorf("not node must have exactly one child")
		}
		ok, err := Evaluate(body.Children[0], ctx)
		if err != nil {
			return false, err
		}
		return !ok, nil
	default:
		return false, fmt.Errorf("unknown node type %q", body.Type)
	}
}

func evalCompare(n *Node, ctx Context) (bool, error) {
	raw, present := ctx[n.Field]
	if !present {
		return false, nil
	}
	actual, err := FromAny(raw)
	if err != nil {
		return false, fmt.Errorf("field %q: %w", n.Field, err)
	}

	switch n.Op {
	case OpEqual:
		return actual.Equal(n.Value), nil
	case OpNotEqual:
		return !actual.Equal(n.Value), nil
	case OpIn:
		return valueInList(actual, n.Value), nil
	case OpNotIn:
		return !valueInList(actual, n.Value), nil
	case OpLessThan, OpLessEqual, OpGreaterThan, OpGreaterEqual:
		if actual.Kind != KindNumber || n.Value.Kind != KindNumber {
			return false, fmt.Errorf("field %q: operator %s requires numbers, got %s and %s",
				n.Field, n.Op, actual.Kind, n.Value.Kind)
		}
		return compareNumbers(actual.Num, n.Op, n.Value.Num), nil
	default:
		return false, fmt.Errorf("field %q: unknown operator %q", n.Field, n.Op)
	}
}

func valueInList(v Value, list Value) bool {
	for _, m := range list.List {
		if v.Equal(m) {
			return true
		}
	}
	return false
}

func compareNumbers(a float64, op Op, b float64) bool {
	switch op {
	case OpLessThan:
		return a < b
	case OpLessEqual:
		return a <= b
	case OpGreaterThan:
		return a > b
	case OpGreaterEqual:
		return a >= b
	}
	return false
}
