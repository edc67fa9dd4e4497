// Package solver provides the decision procedure used by the verification
// engine and the conflict resolver to answer satisfiability questions about
// predicate bodies.
//
// Bodies compare bounded-vocabulary fields against constants, so
// satisfiability reduces to a finite search: the constants mentioned in a
// formula partition each field's domain into regions, and a formula is
// satisfiable iff it holds for some choice of one representative per region.
// Each field also carries an absent representative, because request contexts
// are partial and runtime evaluation distinguishes a failing comparison from
// a missing field. The solver computes the representatives and which leaf
// comparisons each one satisfies in Go, then hands the combinatorial part
// (the join across fields and the boolean structure) to the Mangle Datalog
// engine and reads the derived sat relation back, including a concrete
// witness context when one exists.
//
// The abstraction is sound and complete for the operator set in package
// predicate under the runtime's partial-context semantics: every truth
// assignment of the leaves reachable by any concrete context, including
// contexts that omit fields, is reachable by a representative tuple.
package solver
