package synth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"praxis-hq/charter/pkg/audit"
	"praxis-hq/charter/pkg/policy/store"
	"praxis-hq/charter/pkg/predicate"
	"praxis-hq/charter/pkg/principle"
)

type fakeSuggester struct {
	suggestion *Suggestion
	err        error
	calls      int
}

func (f *fakeSuggester) Suggest(ctx context.Context, statement, category string, scope []string) (*Suggestion, error) {
	f.calls++
	return f.suggestion, f.err
}

func testPrinciple(id, category string, constraints []predicate.Constraint) *principle.Principle {
	return &principle.Principle{
		ID:                 id,
		Version:            1,
		Status:             principle.StatusActive,
		PriorityWeight:     0.8,
		Scope:              []string{"payments"},
		Category:           category,
		NormativeStatement: "irreversible automated actions above moderate risk must not proceed",
		Constraints:        constraints,
		CreatedAt:          time.Now().UTC(),
	}
}

func riskConstraints() []predicate.Constraint {
	return []predicate.Constraint{
		{Field: "risk_score", Op: predicate.OpGreaterThan, Value: predicate.Number(0.7)},
		{Field: "automated", Op: predicate.OpEqual, Value: predicate.Bool(true)},
	}
}

func TestSynthesizeTemplatePath(t *testing.T) {
	st := store.NewMemoryStore(audit.NopSink{})
	s := New(st, nil, nil, DefaultConfig(), nil)

	rules, err := s.Synthesize(context.Background(), []*principle.Principle{
		testPrinciple("p1", "safety", riskConstraints()),
	})
	require.NoError(t, err)
	require.Len(t, rules, 1)

	rule := rules[0]
	assert.Equal(t, "rule-p1", rule.ID)
	assert.Equal(t, 1, rule.Version)
	assert.Equal(t, predicate.EffectDeny, rule.Effect)
	assert.Equal(t, store.OriginTemplate, rule.Origin)
	assert.Equal(t, 1.0, rule.Confidence)
	assert.False(t, rule.LowConfidence)
	assert.Equal(t, store.StatusPendingVerification, rule.Status)
	assert.Equal(t, []string{"p1"}, rule.SourcePrincipleIDs)
	require.NotNil(t, rule.Body)

	matched, err := predicate.Evaluate(rule.Body, predicate.Context{"risk_score": 0.9, "automated": true})
	require.NoError(t, err)
	assert.True(t, matched)
}

func TestSynthesizeTemplateIdempotent(t *testing.T) {
	st := store.NewMemoryStore(audit.NopSink{})
	s := New(st, nil, nil, DefaultConfig(), nil)
	p := testPrinciple("p1", "safety", riskConstraints())

	first, err := s.Synthesize(context.Background(), []*principle.Principle{p})
	require.NoError(t, err)

	// Re-running on the same principle version replays the same (id, version)
	// and must not mint a second draft or rewind status.
	reordered := testPrinciple("p1", "safety", []predicate.Constraint{
		riskConstraints()[1], riskConstraints()[0],
	})
	second, err := s.Synthesize(context.Background(), []*principle.Principle{reordered})
	require.NoError(t, err)

	assert.Equal(t, first[0].Key(), second[0].Key())
	assert.Equal(t, first[0].Body.Canonical(), second[0].Body.Canonical(),
		"constraint order must not change the body")
	assert.Equal(t, store.StatusPendingVerification, second[0].Status)

	latest, err := st.LatestVersion(context.Background(), "rule-p1")
	require.NoError(t, err)
	assert.Equal(t, 1, latest)
}

func TestSynthesizeSuggestedPath(t *testing.T) {
	st := store.NewMemoryStore(audit.NopSink{})
	sugg := &fakeSuggester{suggestion: &Suggestion{
		Body:       predicate.Compare("data_class", predicate.OpEqual, predicate.String("pii")),
		Effect:     predicate.EffectDeny,
		Confidence: 0.45,
	}}
	s := New(st, sugg, nil, DefaultConfig(), nil)

	rules, err := s.Synthesize(context.Background(), []*principle.Principle{
		testPrinciple("p1", "safety", nil),
	})
	require.NoError(t, err)
	require.Len(t, rules, 1)

	rule := rules[0]
	assert.Equal(t, store.OriginSuggested, rule.Origin)
	assert.Equal(t, 0.45, rule.Confidence)
	assert.True(t, rule.LowConfidence, "confidence below 0.6 must be flagged")
	assert.Equal(t, 1, sugg.calls)
}

func TestSynthesizeRejectsInvalidSuggestion(t *testing.T) {
	st := store.NewMemoryStore(audit.NopSink{})
	sugg := &fakeSuggester{suggestion: &Suggestion{
		Body:       predicate.Compare("no_such_field", predicate.OpEqual, predicate.String("x")),
		Effect:     predicate.EffectDeny,
		Confidence: 0.9,
	}}
	s := New(st, sugg, nil, DefaultConfig(), nil)

	_, err := s.Synthesize(context.Background(), []*principle.Principle{
		testPrinciple("p1", "safety", nil),
	})
	var serr *SuggestionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "p1", serr.PrincipleID)

	latest, err := st.LatestVersion(context.Background(), "rule-p1")
	require.NoError(t, err)
	assert.Equal(t, 0, latest, "rejected suggestions must not persist drafts")
}

func TestSynthesizeGap(t *testing.T) {
	st := store.NewMemoryStore(audit.NopSink{})
	s := New(st, nil, nil, DefaultConfig(), nil)

	_, err := s.Synthesize(context.Background(), []*principle.Principle{
		testPrinciple("p1", "uncharted", nil),
	})
	var gap *GapError
	require.ErrorAs(t, err, &gap)
	assert.Equal(t, "p1", gap.PrincipleID)
}

func TestSynthesizeGapDespiteSuggester(t *testing.T) {
	st := store.NewMemoryStore(audit.NopSink{})
	sugg := &fakeSuggester{suggestion: &Suggestion{
		Body:       predicate.Compare("data_class", predicate.OpEqual, predicate.String("pii")),
		Effect:     predicate.EffectDeny,
		Confidence: 0.9,
	}}
	s := New(st, sugg, nil, DefaultConfig(), nil)

	// The suggester fills in bodies within a known category. It never stands
	// in for a missing template.
	_, err := s.Synthesize(context.Background(), []*principle.Principle{
		testPrinciple("p1", "uncharted", nil),
	})
	var gap *GapError
	require.ErrorAs(t, err, &gap)
	assert.Equal(t, "p1", gap.PrincipleID)
	assert.Zero(t, sugg.calls, "template miss must not consult the suggester")
}

func TestSynthesizeReplaySkipsSuggester(t *testing.T) {
	st := store.NewMemoryStore(audit.NopSink{})
	sugg := &fakeSuggester{suggestion: &Suggestion{
		Body:       predicate.Compare("data_class", predicate.OpEqual, predicate.String("pii")),
		Effect:     predicate.EffectDeny,
		Confidence: 0.9,
	}}
	s := New(st, sugg, nil, DefaultConfig(), nil)
	p := testPrinciple("p1", "safety", nil)

	first, err := s.Synthesize(context.Background(), []*principle.Principle{p})
	require.NoError(t, err)
	second, err := s.Synthesize(context.Background(), []*principle.Principle{p})
	require.NoError(t, err)

	assert.Equal(t, first[0].Key(), second[0].Key())
	assert.Equal(t, 1, sugg.calls, "replaying an unchanged principle version must not re-invoke the suggester")
}

func TestSynthesizeSuggesterFailure(t *testing.T) {
	st := store.NewMemoryStore(audit.NopSink{})
	cause := errors.New("model unavailable")
	s := New(st, &fakeSuggester{err: cause}, nil, DefaultConfig(), nil)

	_, err := s.Synthesize(context.Background(), []*principle.Principle{
		testPrinciple("p1", "safety", nil),
	})
	assert.ErrorIs(t, err, cause)
}

func TestSynthesizeBatchParallel(t *testing.T) {
	st := store.NewMemoryStore(audit.NopSink{})
	s := New(st, nil, nil, DefaultConfig(), nil)

	principles := []*principle.Principle{
		testPrinciple("p1", "safety", riskConstraints()),
		testPrinciple("p2", "efficiency", []predicate.Constraint{
			{Field: "request_cost", Op: predicate.OpLessThan, Value: predicate.Number(10)},
		}),
		testPrinciple("p3", "privacy", []predicate.Constraint{
			{Field: "data_class", Op: predicate.OpEqual, Value: predicate.String("pii")},
		}),
	}
	rules, err := s.Synthesize(context.Background(), principles)
	require.NoError(t, err)
	require.Len(t, rules, 3)
	// Results keep input order regardless of completion order.
	assert.Equal(t, "rule-p1", rules[0].ID)
	assert.Equal(t, "rule-p2", rules[1].ID)
	assert.Equal(t, "rule-p3", rules[2].ID)
	assert.Equal(t, predicate.EffectPermit, rules[1].Effect)
}
