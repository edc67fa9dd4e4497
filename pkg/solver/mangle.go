package solver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/mangle/analysis"
	mast "github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"

	"praxis-hq/charter/pkg/predicate"
)

// MangleSolver implements Solver by compiling bodies to a Datalog program and
// evaluating it with the Mangle engine. Each check builds a fresh program and
// fact store; programs are small (one relation per node, facts bounded by the
// region abstraction) so there is nothing worth pooling.
type MangleSolver struct {
	vocab  *predicate.Vocabulary
	logger *slog.Logger
}

// NewMangleSolver creates a solver over the given vocabulary.
func NewMangleSolver(vocab *predicate.Vocabulary, logger *slog.Logger) *MangleSolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &MangleSolver{
		vocab:  vocab,
		logger: logger.With("component", "solver"),
	}
}

// CheckSat reports whether the conjunction of the bodies is satisfiable.
func (s *MangleSolver) CheckSat(ctx context.Context, bodies ...*predicate.Node) (Result, error) {
	start := time.Now()

	normalized := make([]*predicate.Node, 0, len(bodies))
	for _, b := range bodies {
		if b == nil {
			continue // vacuous body constrains nothing
		}
		normalized = append(normalized, predicate.NNF(b))
	}
	if len(normalized) == 0 {
		return Result{Satisfiable: true, Witness: predicate.Context{}, Duration: time.Since(start)}, nil
	}

	domains := buildDomains(s.vocab, normalized)

	prog := newProgram(domains)
	roots := make([]compiled, 0, len(normalized))
	for _, b := range normalized {
		roots = append(roots, prog.compile(b))
	}

	// Constant folding may already decide the question.
	allTrue := true
	for _, r := range roots {
		if r.constFalse {
			return Result{Satisfiable: false, Duration: time.Since(start)}, nil
		}
		if !r.constTrue {
			allTrue = false
		}
	}
	if allTrue {
		return Result{Satisfiable: true, Witness: prog.defaultWitness(), Duration: time.Since(start)}, nil
	}

	source := prog.render(roots)
	witnessIdx, sat, err := s.evaluate(ctx, source, len(domains))
	if err != nil {
		return Result{}, &SolveError{Source: source, Cause: err}
	}
	res := Result{Satisfiable: sat, Duration: time.Since(start)}
	if sat {
		res.Witness = prog.witness(witnessIdx)
	}
	return res, nil
}

// evaluate parses, analyzes, and runs the program, then reads the sat
// relation. Mangle evaluation is not context-aware, so it runs in a goroutine
// and the context deadline abandons it.
func (s *MangleSolver) evaluate(ctx context.Context, source string, arity int) ([]int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	type evalResult struct {
		witness []int64
		sat     bool
		err     error
	}
	done := make(chan evalResult, 1)

	go func() {
		unit, err := parse.Unit(strings.NewReader(source))
		if err != nil {
			done <- evalResult{err: fmt.Errorf("parse: %w", err)}
			return
		}
		info, err := analysis.AnalyzeOneUnit(unit, nil)
		if err != nil {
			done <- evalResult{err: fmt.Errorf("analyze: %w", err)}
			return
		}
		store := factstore.NewSimpleInMemoryStore()
		if _, err := mengine.EvalProgramWithStats(info, store); err != nil {
			done <- evalResult{err: fmt.Errorf("eval: %w", err)}
			return
		}

		query := mast.NewQuery(mast.PredicateSym{Symbol: "sat", Arity: arity})
		var witness []int64
		found := false
		err = store.GetFacts(query, func(atom mast.Atom) error {
			if found {
				return nil
			}
			found = true
			witness = make([]int64, 0, len(atom.Args))
			for _, arg := range atom.Args {
				c, ok := arg.(mast.Constant)
				if !ok || c.Type != mast.NumberType {
					return fmt.Errorf("unexpected sat argument %v", arg)
				}
				witness = append(witness, c.NumValue)
			}
			return nil
		})
		done <- evalResult{witness: witness, sat: found, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case r := <-done:
		return r.witness, r.sat, r.err
	}
}
