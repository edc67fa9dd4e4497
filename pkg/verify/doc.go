// Package verify checks synthesized rules against the principles they were
// compiled from.
//
// For each source principle the engine regenerates proof obligations from the
// principle's structured constraints and discharges them with the solver:
// the rule body must cover every context the constraints describe, and must
// itself be satisfiable. Obligations are never persisted; a retry regenerates
// them from the current principle version.
//
// Verification runs in tiers. The automated tier always runs under a short
// deadline. Rules in safety-critical scopes get the rigorous tier, the same
// checks under a longer deadline plus a body-consistency obligation. Rules
// the automated tier cannot settle, and low-confidence suggested rules, are
// escalated to the human tier through the review queue.
package verify
