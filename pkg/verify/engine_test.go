package verify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"praxis-hq/charter/pkg/audit"
	"praxis-hq/charter/pkg/policy/store"
	"praxis-hq/charter/pkg/predicate"
	"praxis-hq/charter/pkg/principle"
	"praxis-hq/charter/pkg/review"
	"praxis-hq/charter/pkg/solver"
)

// slowSolver blocks until the context deadline on every check.
type slowSolver struct{}

func (slowSolver) CheckSat(ctx context.Context, bodies ...*predicate.Node) (solver.Result, error) {
	<-ctx.Done()
	return solver.Result{}, ctx.Err()
}

func testEngine(t *testing.T, cfg Config) (*Engine, *review.Queue) {
	t.Helper()
	queue := review.NewQueue(audit.NopSink{}, nil)
	s := solver.NewMangleSolver(predicate.DefaultVocabulary(), nil)
	return NewEngine(s, queue, cfg, nil), queue
}

func constrainedPrinciple(id string, cs ...predicate.Constraint) *principle.Principle {
	return &principle.Principle{
		ID:             id,
		Version:        1,
		Status:         principle.StatusActive,
		PriorityWeight: 0.9,
		Scope:          []string{"payments"},
		Category:       "safety",
		Constraints:    cs,
	}
}

func ruleFor(p *principle.Principle) *store.PolicyRule {
	return &store.PolicyRule{
		ID:                 "rule-" + p.ID,
		Version:            1,
		SourcePrincipleIDs: []string{p.ID},
		Body:               predicate.ConjoinConstraints(p.Constraints),
		Effect:             predicate.EffectDeny,
		Scope:              p.Scope,
		Origin:             store.OriginTemplate,
		Confidence:         1.0,
		Status:             store.StatusPendingVerification,
	}
}

func TestVerifyTemplateRulePasses(t *testing.T) {
	e, _ := testEngine(t, DefaultConfig())
	p := constrainedPrinciple("p1",
		predicate.Constraint{Field: "risk_score", Op: predicate.OpGreaterThan, Value: predicate.Number(0.7)})

	res, err := e.Verify(context.Background(), ruleFor(p), []*principle.Principle{p})
	require.NoError(t, err)
	assert.Equal(t, StatusPassed, res.Status)
	assert.Equal(t, TierAutomated, res.Tier)
	assert.False(t, res.Vacuous)
}

func TestVerifyCoverageFailure(t *testing.T) {
	e, _ := testEngine(t, DefaultConfig())
	p := constrainedPrinciple("p1",
		predicate.Constraint{Field: "risk_score", Op: predicate.OpGreaterThan, Value: predicate.Number(0.5)})

	// The body only covers risk above 0.8, leaving the band (0.5, 0.8]
	// unenforced.
	rule := ruleFor(p)
	rule.Body = predicate.Compare("risk_score", predicate.OpGreaterThan, predicate.Number(0.8))

	res, err := e.Verify(context.Background(), rule, []*principle.Principle{p})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Feedback, "coverage")
	assert.Contains(t, res.Feedback, "counterexample")
}

func TestVerifyVacuousPass(t *testing.T) {
	e, _ := testEngine(t, DefaultConfig())
	p := constrainedPrinciple("p1") // no constraints

	rule := ruleFor(p)
	rule.Body = nil

	res, err := e.Verify(context.Background(), rule, []*principle.Principle{p})
	require.NoError(t, err)
	assert.Equal(t, StatusPassed, res.Status)
	assert.True(t, res.Vacuous)
	assert.Contains(t, res.Feedback, "vacuous")
}

func TestVerifyVacuousDisallowed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowVacuous = false
	e, _ := testEngine(t, cfg)
	p := constrainedPrinciple("p1")

	rule := ruleFor(p)
	rule.Body = nil

	res, err := e.Verify(context.Background(), rule, []*principle.Principle{p})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.True(t, res.Vacuous)
}

func TestVerifyTimeoutEscalatesOnce(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutomatedTimeout = 10 * time.Millisecond
	queue := review.NewQueue(audit.NopSink{}, nil)
	e := NewEngine(slowSolver{}, queue, cfg, nil)

	p := constrainedPrinciple("p1",
		predicate.Constraint{Field: "risk_score", Op: predicate.OpGreaterThan, Value: predicate.Number(0.7)})
	rule := ruleFor(p)

	res, err := e.Verify(context.Background(), rule, []*principle.Principle{p})
	require.NoError(t, err)
	assert.Equal(t, StatusInconclusive, res.Status)
	assert.Contains(t, res.Feedback, "timed out")

	// A retry that times out again must not re-enqueue.
	res, err = e.Verify(context.Background(), rule, []*principle.Principle{p})
	require.NoError(t, err)
	assert.Equal(t, StatusInconclusive, res.Status)

	pending := queue.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, rule.ID, pending[0].RuleID)
	assert.Equal(t, review.ReasonInconclusive, pending[0].Reason)
}

func TestVerifyLowConfidenceGoesToHumanTier(t *testing.T) {
	e, queue := testEngine(t, DefaultConfig())
	p := constrainedPrinciple("p1",
		predicate.Constraint{Field: "data_class", Op: predicate.OpEqual, Value: predicate.String("pii")})

	rule := ruleFor(p)
	rule.Origin = store.OriginSuggested
	rule.Confidence = 0.4
	rule.LowConfidence = true

	res, err := e.Verify(context.Background(), rule, []*principle.Principle{p})
	require.NoError(t, err)
	assert.Equal(t, StatusInconclusive, res.Status)
	assert.Equal(t, TierHuman, res.Tier)
	assert.True(t, queue.IsPending(rule.ID))
}

func TestVerifySafetyCriticalRigorousTier(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SafetyCriticalScopes = []string{"payments"}
	e, _ := testEngine(t, cfg)
	p := constrainedPrinciple("p1",
		predicate.Constraint{Field: "risk_score", Op: predicate.OpGreaterThan, Value: predicate.Number(0.7)})

	res, err := e.Verify(context.Background(), ruleFor(p), []*principle.Principle{p})
	require.NoError(t, err)
	assert.Equal(t, StatusPassed, res.Status)
	assert.Equal(t, TierRigorous, res.Tier)
	// The rigorous tier adds the bounded obligation: coverage + satisfiable + bounded.
	assert.Equal(t, 3, res.Obligations)
}

func TestObligationsRegeneratedPerAttempt(t *testing.T) {
	p := constrainedPrinciple("p1",
		predicate.Constraint{Field: "risk_score", Op: predicate.OpGreaterThan, Value: predicate.Number(0.7)})
	rule := ruleFor(p)

	first := Obligations(rule, []*principle.Principle{p}, false)
	require.Len(t, first, 2)

	// Amending the principle changes what a later attempt must prove.
	p.Constraints = append(p.Constraints,
		predicate.Constraint{Field: "automated", Op: predicate.OpEqual, Value: predicate.Bool(true)})
	second := Obligations(rule, []*principle.Principle{p}, false)
	require.Len(t, second, 2)
	assert.NotEqual(t, first[0].Expression.Canonical(), second[0].Expression.Canonical())
}
