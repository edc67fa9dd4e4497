// Package predicate defines the structured predicate form shared by the
// synthesis, verification, conflict resolution, and runtime evaluation
// subsystems.
//
// A rule body is a tree of Nodes: leaf nodes compare a context field against a
// constant value, interior nodes combine children with all/any/not. The
// vocabulary of fields a body may reference is bounded and typed, which keeps
// every question the pipeline asks about bodies (satisfiability, overlap,
// entailment) decidable.
//
// The package provides:
//
//   - Node construction and validation against a Vocabulary
//   - Evaluation of a body against a request context (the evaluator hot path)
//   - Negation-normal-form rewriting (consumed by the solver)
//   - A canonical string form used for deterministic body comparison
package predicate
