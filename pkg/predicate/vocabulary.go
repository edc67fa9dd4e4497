package predicate

import (
	"fmt"
	"sort"
)

// FieldType is the declared type of a context field in the vocabulary.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldNumber FieldType = "number"
	FieldBool   FieldType = "bool"
)

// Vocabulary is the bounded set of typed context fields rule bodies may
// reference. Bounding the vocabulary is what keeps satisfiability questions
// over bodies decidable.
type Vocabulary struct {
	Fields map[string]FieldType `yaml:"fields"`
}

// DefaultVocabulary returns the built-in governance vocabulary. Deployments
// extend it through configuration.
func DefaultVocabulary() *Vocabulary {
	return &Vocabulary{
		Fields: map[string]FieldType{
			"action":        FieldString,
			"resource":      FieldString,
			"actor_role":    FieldString,
			"environment":   FieldString,
			"data_class":    FieldString,
			"risk_score":    FieldNumber,
			"request_cost":  FieldNumber,
			"record_count":  FieldNumber,
			"safety_rating": FieldNumber,
			"automated":     FieldBool,
			"reversible":    FieldBool,
		},
	}
}

// FieldNames returns the sorted field names.
func (v *Vocabulary) FieldNames() []string {
	names := make([]string, 0, len(v.Fields))
	for name := range v.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether the vocabulary declares the field.
func (v *Vocabulary) Has(field string) bool {
	_, ok := v.Fields[field]
	return ok
}

// Validate checks a body against the vocabulary: every referenced field must
// be declared, comparison values must match the field type, and ordering
// operators are restricted to numeric fields.
func (v *Vocabulary) Validate(body *Node) error {
	if body == nil {
		return &ValidationError{Reason: "body is nil"}
	}
	return v.validateNode(body)
}

func (v *Vocabulary) validateNode(n *Node) error {
	switch n.Type {
	case NodeCompare:
		return v.validateCompare(n)
	case NodeAll, NodeAny:
		if len(n.Children) == 0 {
			return &ValidationError{Reason: fmt.Sprintf("%s node has no children", n.Type)}
		}
		for _, c := range n.Children {
			if err := v.validateNode(c); err != nil {
				return err
			}
		}
		return nil
	case NodeNot:
		if len(n.Children) != 1 {
			return &ValidationError{Reason: "not node must have exactly one child"}
		}
		return v.validateNode(n.Children[0])
	default:
		return &ValidationError{Reason: fmt.Sprintf("unknown node type %q", n.Type)}
	}
}

func (v *Vocabulary) validateCompare(n *Node) error {
	ft, ok := v.Fields[n.Field]
	if !ok {
		return &ValidationError{Field: n.Field, Reason: "field not in vocabulary"}
	}
	if n.Op.IsOrdering() && ft != FieldNumber {
		return &ValidationError{Field: n.Field, Reason: fmt.Sprintf("operator %s requires a numeric field", n.Op)}
	}
	switch n.Op {
	case OpIn, OpNotIn:
		if n.Value.Kind != KindList {
			return &ValidationError{Field: n.Field, Reason: fmt.Sprintf("operator %s requires a list value", n.Op)}
		}
		for _, m := range n.Value.List {
			if err := checkScalarKind(ft, m); err != nil {
				return &ValidationError{Field: n.Field, Reason: err.Error()}
			}
		}
		return nil
	case OpEqual, OpNotEqual, OpLessThan, OpLessEqual, OpGreaterThan, OpGreaterEqual:
		if err := checkScalarKind(ft, n.Value); err != nil {
			return &ValidationError{Field: n.Field, Reason: err.Error()}
		}
		return nil
	default:
		return &ValidationError{Field: n.Field, Reason: fmt.Sprintf("unknown operator %q", n.Op)}
	}
}

func checkScalarKind(ft FieldType, v Value) error {
	switch ft {
	case FieldString:
		if v.Kind != KindString {
			return fmt.Errorf("expected string value, got %s", v.Kind)
		}
	case FieldNumber:
		if v.Kind != KindNumber {
			return fmt.Errorf("expected number value, got %s", v.Kind)
		}
	case FieldBool:
		if v.Kind != KindBool {
			return fmt.Errorf("expected bool value, got %s", v.Kind)
		}
	}
	return nil
}

// ValidationError reports a body that fails vocabulary validation.
type ValidationError struct {
	Field  string
	Reason string
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid predicate: field %q: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid predicate: %s", e.Reason)
}
