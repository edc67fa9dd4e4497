// Package conflict detects and resolves contradictions between policy rules.
//
// Two rules conflict when some context satisfies both bodies and their
// effects oppose each other. Detection asks the solver for such a context and
// records it as the witness, so every conflict record carries a concrete
// request the rules disagree on.
//
// Resolution applies a total order: higher source-principle priority weight
// wins; equal weights fall to an operator-curated precedence override; equal
// there, the later-verified rule wins as the fresher expression of intent.
// A full tie stays unresolved, blocks promotion of both rules, and is
// escalated to human review.
package conflict
