package solver

import (
	"context"
	"time"

	"praxis-hq/charter/pkg/predicate"
)

// Result is the outcome of a satisfiability check.
type Result struct {
	// Satisfiable reports whether some context satisfies every body passed
	// to CheckSat simultaneously.
	Satisfiable bool

	// Witness is a concrete satisfying context when Satisfiable is true.
	Witness predicate.Context

	// Duration is the wall time the check took.
	Duration time.Duration
}

// Solver answers satisfiability questions over predicate bodies. The
// verification engine and the conflict resolver treat it as a black box.
type Solver interface {
	// CheckSat reports whether the conjunction of the given bodies is
	// satisfiable by some context over the solver's vocabulary. A nil body
	// is vacuously true and constrains nothing.
	CheckSat(ctx context.Context, bodies ...*predicate.Node) (Result, error)
}

// Overlap reports whether two bodies can match the same context.
func Overlap(ctx context.Context, s Solver, a, b *predicate.Node) (Result, error) {
	return s.CheckSat(ctx, a, b)
}

// Entails reports whether every context matching a also matches b, checked
// as unsatisfiability of a AND NOT b.
func Entails(ctx context.Context, s Solver, a, b *predicate.Node) (bool, error) {
	if b == nil {
		return true, nil
	}
	res, err := s.CheckSat(ctx, a, predicate.Not(b))
	if err != nil {
		return false, err
	}
	return !res.Satisfiable, nil
}
