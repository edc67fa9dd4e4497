// Package synth turns constitutional principles into candidate policy rules.
//
// The deterministic path compiles a principle's structured constraints into a
// rule body through a template keyed by the principle's category; running it
// twice on the same principle version yields byte-identical rules. Principles
// that carry no structured constraints fall through to an optional Suggester,
// an LLM boundary whose proposals are validated against the vocabulary,
// scored, and flagged low-confidence below the configured threshold. A
// principle neither path can express surfaces as a GapError instead of a
// silently weakened rule.
package synth
