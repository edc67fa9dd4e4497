package solver

import (
	"sort"

	"praxis-hq/charter/pkg/predicate"
)

// otherString stands in for "any string not mentioned by the formula" when
// building representatives for string fields.
const otherString = "__charter_other__"

// absent stands for "field missing from the request context". Runtime
// evaluation never matches a comparison over a missing field and always
// matches its negation, so every field domain carries this row too.
var absent = predicate.Value{}

// isAbsent reports whether a representative is the missing-field marker.
func isAbsent(v predicate.Value) bool { return v.Kind == "" }

// fieldDomain holds the finite representative set for one field.
type fieldDomain struct {
	field string
	typ   predicate.FieldType
	reps  []predicate.Value
}

// buildDomains computes, for every field referenced by the bodies, the finite
// set of representative values induced by the constants the bodies mention.
// For numeric fields that is every mentioned constant plus a point strictly
// between each adjacent pair, one below the minimum, and one above the
// maximum. For string fields it is every mentioned constant plus a fresh
// unmentioned string. Booleans always get both values. Every domain ends
// with the absent marker.
func buildDomains(vocab *predicate.Vocabulary, bodies []*predicate.Node) []fieldDomain {
	constants := make(map[string][]predicate.Value)
	for _, b := range bodies {
		collectConstants(b, constants)
	}

	fields := make([]string, 0, len(constants))
	for f := range constants {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	domains := make([]fieldDomain, 0, len(fields))
	for _, f := range fields {
		typ := vocab.Fields[f]
		domains = append(domains, fieldDomain{
			field: f,
			typ:   typ,
			reps:  representatives(typ, constants[f]),
		})
	}
	return domains
}

func collectConstants(n *predicate.Node, out map[string][]predicate.Value) {
	if n == nil {
		return
	}
	if n.Type == predicate.NodeCompare {
		if n.Value.Kind == predicate.KindList {
			out[n.Field] = append(out[n.Field], n.Value.List...)
		} else {
			out[n.Field] = append(out[n.Field], n.Value)
		}
		return
	}
	for _, c := range n.Children {
		collectConstants(c, out)
	}
}

func representatives(typ predicate.FieldType, constants []predicate.Value) []predicate.Value {
	return append(presentRepresentatives(typ, constants), absent)
}

func presentRepresentatives(typ predicate.FieldType, constants []predicate.Value) []predicate.Value {
	switch typ {
	case predicate.FieldBool:
		return []predicate.Value{predicate.Bool(false), predicate.Bool(true)}

	case predicate.FieldNumber:
		nums := make([]float64, 0, len(constants))
		seen := make(map[float64]struct{})
		for _, c := range constants {
			if c.Kind != predicate.KindNumber {
				continue
			}
			if _, dup := seen[c.Num]; !dup {
				seen[c.Num] = struct{}{}
				nums = append(nums, c.Num)
			}
		}
		if len(nums) == 0 {
			return []predicate.Value{predicate.Number(0)}
		}
		sort.Float64s(nums)

		reps := make([]predicate.Value, 0, 2*len(nums)+1)
		reps = append(reps, predicate.Number(nums[0]-1))
		for i, n := range nums {
			reps = append(reps, predicate.Number(n))
			if i+1 < len(nums) {
				reps = append(reps, predicate.Number((n+nums[i+1])/2))
			}
		}
		reps = append(reps, predicate.Number(nums[len(nums)-1]+1))
		return reps

	default: // string
		reps := make([]predicate.Value, 0, len(constants)+1)
		seen := make(map[string]struct{})
		for _, c := range constants {
			if c.Kind != predicate.KindString {
				continue
			}
			if _, dup := seen[c.Str]; !dup {
				seen[c.Str] = struct{}{}
				reps = append(reps, predicate.String(c.Str))
			}
		}
		reps = append(reps, predicate.String(otherString))
		return reps
	}
}
