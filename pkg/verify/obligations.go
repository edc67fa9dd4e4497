package verify

import (
	"praxis-hq/charter/pkg/policy/store"
	"praxis-hq/charter/pkg/predicate"
	"praxis-hq/charter/pkg/principle"
)

// Obligations derives the proof obligations for a rule from its source
// principles. Each obligation's expression is checked for unsatisfiability.
func Obligations(rule *store.PolicyRule, principles []*principle.Principle, rigorous bool) []ProofObligation {
	var out []ProofObligation

	for _, p := range principles {
		if len(p.Constraints) == 0 {
			out = append(out, ProofObligation{
				RuleID:      rule.ID,
				PrincipleID: p.ID,
				Name:        "coverage",
				Vacuous:     true,
			})
			continue
		}

		constraints := predicate.ConjoinConstraints(p.Constraints)

		// Coverage: every context the principle's constraints describe is
		// matched by the rule body. Unsat of (constraints AND NOT body).
		var coverage *predicate.Node
		if rule.Body != nil {
			coverage = predicate.All(constraints, predicate.Not(rule.Body))
		}
		out = append(out, ProofObligation{
			RuleID:      rule.ID,
			PrincipleID: p.ID,
			Name:        "coverage",
			Expression:  coverage,
			Vacuous:     coverage == nil,
		})
	}

	if rule.Body != nil {
		// Non-vacuity: the body matches at least one context. Unlike
		// coverage this obligation holds when its expression is
		// satisfiable; the engine keys the polarity off the name.
		out = append(out, ProofObligation{
			RuleID:     rule.ID,
			Name:       "satisfiable",
			Expression: rule.Body,
		})
	}

	if rigorous && rule.Body != nil {
		// Consistency: the body must not cover the entire context space,
		// otherwise the rule is a blanket effect rather than a policy.
		out = append(out, ProofObligation{
			RuleID:     rule.ID,
			Name:       "bounded",
			Expression: predicate.Not(rule.Body),
		})
	}

	return out
}
