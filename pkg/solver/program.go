package solver

import (
	"fmt"
	"strings"

	"praxis-hq/charter/pkg/predicate"
)

// compiled is the result of compiling one node: either a constant (the node
// is true/false under every assignment) or the name of a Datalog relation
// holding exactly the satisfying representative tuples.
type compiled struct {
	constTrue  bool
	constFalse bool
	pred       string
}

// program accumulates the Datalog source for one satisfiability check.
type program struct {
	domains  []fieldDomain
	fieldIdx map[string]int
	nextID   int
	facts    []string
	rules    []string
}

func newProgram(domains []fieldDomain) *program {
	idx := make(map[string]int, len(domains))
	for i, d := range domains {
		idx[d.field] = i
	}
	p := &program{domains: domains, fieldIdx: idx}
	for i, d := range domains {
		for j := range d.reps {
			p.facts = append(p.facts, fmt.Sprintf("cand_%d(%d).", i, j))
		}
	}
	return p
}

func (p *program) fresh() string {
	name := fmt.Sprintf("n%d", p.nextID)
	p.nextID++
	return name
}

// tuple renders the full variable tuple "V0, V1, ..., Vn-1".
func (p *program) tuple() string {
	vars := make([]string, len(p.domains))
	for i := range p.domains {
		vars[i] = fmt.Sprintf("V%d", i)
	}
	return strings.Join(vars, ", ")
}

// candBody renders the cand_i(Vi) atoms binding every tuple variable.
func (p *program) candBody() string {
	atoms := make([]string, len(p.domains))
	for i := range p.domains {
		atoms[i] = fmt.Sprintf("cand_%d(V%d)", i, i)
	}
	return strings.Join(atoms, ", ")
}

// compile lowers a NNF body node into the program. Leaves whose satisfying
// representative set is empty or total fold to constants, and the folds
// propagate upward, so every emitted relation does real filtering.
func (p *program) compile(n *predicate.Node) compiled {
	switch n.Type {
	case predicate.NodeCompare:
		return p.compileLeaf(n)

	case predicate.NodeNot:
		// NNF leaves negation only on single comparisons.
		if len(n.Children) != 1 || n.Children[0].Type != predicate.NodeCompare {
			return compiled{constFalse: true}
		}
		return p.compileLeaf(n)

	case predicate.NodeAll:
		kept := make([]compiled, 0, len(n.Children))
		for _, c := range n.Children {
			cc := p.compile(c)
			if cc.constFalse {
				return compiled{constFalse: true}
			}
			if cc.constTrue {
				continue
			}
			kept = append(kept, cc)
		}
		if len(kept) == 0 {
			return compiled{constTrue: true}
		}
		if len(kept) == 1 {
			return kept[0]
		}
		name := p.fresh()
		atoms := make([]string, len(kept))
		for i, k := range kept {
			atoms[i] = fmt.Sprintf("%s(%s)", k.pred, p.tuple())
		}
		p.rules = append(p.rules, fmt.Sprintf("%s(%s) :- %s.", name, p.tuple(), strings.Join(atoms, ", ")))
		return compiled{pred: name}

	case predicate.NodeAny:
		kept := make([]compiled, 0, len(n.Children))
		for _, c := range n.Children {
			cc := p.compile(c)
			if cc.constTrue {
				return compiled{constTrue: true}
			}
			if cc.constFalse {
				continue
			}
			kept = append(kept, cc)
		}
		if len(kept) == 0 {
			return compiled{constFalse: true}
		}
		if len(kept) == 1 {
			return kept[0]
		}
		name := p.fresh()
		for _, k := range kept {
			p.rules = append(p.rules, fmt.Sprintf("%s(%s) :- %s(%s).", name, p.tuple(), k.pred, p.tuple()))
		}
		return compiled{pred: name}

	default:
		// NNF output contains no other node types; an unexpected one is a
		// bug upstream, treated as unsatisfiable so the pipeline fails
		// closed.
		return compiled{constFalse: true}
	}
}

// compileLeaf lowers a comparison, bare or negated. Each representative is
// evaluated exactly as the runtime would see it: the absent row uses a
// context without the field, so a negated comparison satisfies it and a bare
// one does not.
func (p *program) compileLeaf(n *predicate.Node) compiled {
	field := n.Field
	if n.Type == predicate.NodeNot {
		field = n.Children[0].Field
	}
	i := p.fieldIdx[field]
	dom := p.domains[i]

	satisfying := make([]int, 0, len(dom.reps))
	for j, rep := range dom.reps {
		reqCtx := predicate.Context{}
		if !isAbsent(rep) {
			reqCtx[field] = concrete(rep)
		}
		ok, err := predicate.Evaluate(n, reqCtx)
		if err != nil {
			// A malformed leaf cannot be satisfied.
			return compiled{constFalse: true}
		}
		if ok {
			satisfying = append(satisfying, j)
		}
	}

	if len(satisfying) == 0 {
		return compiled{constFalse: true}
	}
	if len(satisfying) == len(dom.reps) {
		return compiled{constTrue: true}
	}

	leaf := p.fresh()
	for _, j := range satisfying {
		p.facts = append(p.facts, fmt.Sprintf("%s(%d).", leaf, j))
	}
	name := p.fresh()
	p.rules = append(p.rules, fmt.Sprintf("%s(%s) :- %s, %s(V%d).", name, p.tuple(), p.candBody(), leaf, i))
	return compiled{pred: name}
}

// render produces the final program source including the sat relation over
// the non-constant roots.
func (p *program) render(roots []compiled) string {
	var b strings.Builder
	for _, f := range p.facts {
		b.WriteString(f)
		b.WriteByte('\n')
	}
	for _, r := range p.rules {
		b.WriteString(r)
		b.WriteByte('\n')
	}

	atoms := make([]string, 0, len(roots))
	for _, r := range roots {
		if r.constTrue {
			continue
		}
		atoms = append(atoms, fmt.Sprintf("%s(%s)", r.pred, p.tuple()))
	}
	b.WriteString(fmt.Sprintf("sat(%s) :- %s.\n", p.tuple(), strings.Join(atoms, ", ")))
	return b.String()
}

// witness maps a satisfying representative tuple back to a concrete context.
// Fields whose satisfying row is the absent marker are left out, mirroring
// the partial request context the tuple stands for.
func (p *program) witness(indices []int64) predicate.Context {
	ctx := make(predicate.Context, len(p.domains))
	for i, d := range p.domains {
		j := int(indices[i])
		if j < 0 || j >= len(d.reps) || isAbsent(d.reps[j]) {
			continue
		}
		ctx[d.field] = concrete(d.reps[j])
	}
	return ctx
}

// defaultWitness returns an arbitrary context when every root folded to true.
func (p *program) defaultWitness() predicate.Context {
	ctx := make(predicate.Context, len(p.domains))
	for _, d := range p.domains {
		if len(d.reps) > 0 && !isAbsent(d.reps[0]) {
			ctx[d.field] = concrete(d.reps[0])
		}
	}
	return ctx
}

func concrete(v predicate.Value) any {
	switch v.Kind {
	case predicate.KindString:
		return v.Str
	case predicate.KindNumber:
		return v.Num
	case predicate.KindBool:
		return v.Bool
	}
	return nil
}
