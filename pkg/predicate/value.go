package predicate

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ValueKind identifies the type of a constant value in a predicate body.
type ValueKind string

const (
	KindString ValueKind = "string"
	KindNumber ValueKind = "number"
	KindBool   ValueKind = "bool"
	KindList   ValueKind = "list"
)

// Value is a typed constant appearing on the right-hand side of a comparison.
type Value struct {
	Kind ValueKind `json:"kind" yaml:"kind"`
	Str  string    `json:"str,omitempty" yaml:"str,omitempty"`
	Num  float64   `json:"num,omitempty" yaml:"num,omitempty"`
	Bool bool      `json:"bool,omitempty" yaml:"bool,omitempty"`
	List []Value   `json:"list,omitempty" yaml:"list,omitempty"`
}

// String constructs a string constant.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Number constructs a numeric constant.
func Number(n float64) Value { return Value{Kind: KindNumber, Num: n} }

// Bool constructs a boolean constant.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// List constructs a list constant from scalar members.
func List(members ...Value) Value { return Value{Kind: KindList, List: members} }

// FromAny converts a dynamically-typed context value into a Value.
// Integers are widened to float64 so numeric comparison has a single path.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case float64:
		return Number(val), nil
	case float32:
		return Number(float64(val)), nil
	case int:
		return Number(float64(val)), nil
	case int64:
		return Number(float64(val)), nil
	case []any:
		list := make([]Value, 0, len(val))
		for _, m := range val {
			mv, err := FromAny(m)
			if err != nil {
				return Value{}, err
			}
			list = append(list, mv)
		}
		return Value{Kind: KindList, List: list}, nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", v)
	}
}

// Equal reports whether two values are identical in kind and content.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindString:
		return v.Str == other.Str
	case KindNumber:
		return v.Num == other.Num
	case KindBool:
		return v.Bool == other.Bool
	case KindList:
		if len(v.List) != len(other.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(other.List[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Canonical returns a stable textual form of the value. List members are
// sorted so two lists with the same membership canonicalize identically.
func (v Value) Canonical() string {
	switch v.Kind {
	case KindString:
		return strconv.Quote(v.Str)
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindList:
		members := make([]string, 0, len(v.List))
		for _, m := range v.List {
			members = append(members, m.Canonical())
		}
		sort.Strings(members)
		return "[" + strings.Join(members, ",") + "]"
	}
	return "<invalid>"
}
