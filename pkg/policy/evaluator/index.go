package evaluator

import (
	"praxis-hq/charter/pkg/policy/store"
	"praxis-hq/charter/pkg/predicate"
)

// ruleIndex buckets rules by their leading field. A rule whose leading field
// is absent from a context cannot match it, so evaluation only touches the
// buckets for fields the context actually carries plus the catch-all bucket
// of rules with no dominating field.
type ruleIndex struct {
	byField  map[string][]*store.PolicyRule
	catchAll []*store.PolicyRule
	total    int
}

func buildIndex(rules []*store.PolicyRule) *ruleIndex {
	idx := &ruleIndex{
		byField: make(map[string][]*store.PolicyRule),
		total:   len(rules),
	}
	for _, r := range rules {
		if f := r.Body.LeadingField(); f != "" {
			idx.byField[f] = append(idx.byField[f], r)
		} else {
			idx.catchAll = append(idx.catchAll, r)
		}
	}
	return idx
}

// candidates returns the rules that could match the context.
func (idx *ruleIndex) candidates(ctx predicate.Context) []*store.PolicyRule {
	out := make([]*store.PolicyRule, 0, len(idx.catchAll))
	out = append(out, idx.catchAll...)
	for f := range ctx {
		out = append(out, idx.byField[f]...)
	}
	return out
}
