package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"praxis-hq/charter/pkg/audit"
	"praxis-hq/charter/pkg/config"
	"praxis-hq/charter/pkg/conflict"
	"praxis-hq/charter/pkg/pipeline"
	"praxis-hq/charter/pkg/policy/evaluator"
	"praxis-hq/charter/pkg/policy/store"
	"praxis-hq/charter/pkg/predicate"
	"praxis-hq/charter/pkg/principle"
	"praxis-hq/charter/pkg/review"
	"praxis-hq/charter/pkg/solver"
	"praxis-hq/charter/pkg/synth"
	"praxis-hq/charter/pkg/verify"
)

type testEnv struct {
	handler   http.Handler
	evaluator *evaluator.Evaluator
	policies  *store.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	principles := principle.NewMemoryStore()
	policies := store.NewMemoryStore(nil)
	queue := review.NewQueue(audit.NopSink{}, nil)
	vocab := predicate.DefaultVocabulary()
	s := solver.NewMangleSolver(vocab, nil)

	pipe := pipeline.New(
		principles,
		policies,
		synth.New(policies, nil, vocab, synth.DefaultConfig(), nil),
		verify.NewEngine(s, queue, verify.DefaultConfig(), nil),
		conflict.NewDetector(s, nil),
		conflict.NewResolver(policies, principles, nil, queue, nil),
		queue,
		nil,
		pipeline.DefaultConfig(),
		nil,
	)

	eval, err := evaluator.New(context.Background(), policies, config.EvaluatorConfig{
		DecisionTimeout: 50 * time.Millisecond,
		CacheSize:       64,
		PollInterval:    time.Hour,
	}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eval.Close() })

	cfg := config.NewDefault()
	srv := NewServer(&cfg.Server, eval, principles, policies, pipe, queue, nil, nil)

	return &testEnv{handler: srv.Handler(), evaluator: eval, policies: policies}
}

func (e *testEnv) request(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) ingest(t *testing.T, body string) principleResponse {
	t.Helper()
	rec := e.request(t, http.MethodPost, "/v1/principles", body)
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())

	var resp principleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Empty(t, resp.CompileError)
	require.NoError(t, e.evaluator.Refresh(context.Background()))
	return resp
}

const riskPrinciple = `{
	"name": "no high-risk actions",
	"priority_weight": 0.9,
	"scope": ["safety"],
	"category": "safety",
	"normative_statement": "High-risk actions must be denied.",
	"constraints": [
		{"field": "risk_score", "op": ">", "value": {"kind": "number", "num": 0.8}}
	]
}`

func TestEvaluateBeforeFirstGeneration(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/v1/evaluate", `{"context":{"risk_score":0.9}}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestIngestAndEvaluate(t *testing.T) {
	env := newTestEnv(t)
	resp := env.ingest(t, riskPrinciple)
	require.NotNil(t, resp.Principle)
	assert.Equal(t, 1, resp.Principle.Version)

	rec := env.request(t, http.MethodPost, "/v1/evaluate", `{"context":{"risk_score":0.95}}`)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	var d evaluator.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, predicate.EffectDeny, d.Effect)
	assert.Equal(t, evaluator.RationaleMatched, d.Rationale)
	assert.Equal(t, uint64(1), d.Generation)

	rec = env.request(t, http.MethodPost, "/v1/evaluate", `{"context":{"risk_score":0.1}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, predicate.EffectDeny, d.Effect)
	assert.Equal(t, evaluator.RationaleNoMatchingRule, d.Rationale)
}

func TestEvaluateBadRequest(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/v1/evaluate", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.request(t, http.MethodPost, "/v1/evaluate", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/v1/principles",
		`{"name":"x","priority_weight":0.5,"scope":["safety"],"category":"safety"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "normative_statement")

	rec = env.request(t, http.MethodPost, "/v1/principles",
		`{"name":"x","priority_weight":1.5,"scope":["safety"],"category":"safety","normative_statement":"y"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAmendPrinciple(t *testing.T) {
	env := newTestEnv(t)
	resp := env.ingest(t, riskPrinciple)

	amended := strings.Replace(riskPrinciple, "0.8", "0.6", 1)
	rec := env.request(t, http.MethodPut, "/v1/principles/"+resp.Principle.ID, amended)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	var out principleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 2, out.Principle.Version)

	rec = env.request(t, http.MethodPut, "/v1/principles/missing", amended)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetAndListPrinciples(t *testing.T) {
	env := newTestEnv(t)
	resp := env.ingest(t, riskPrinciple)

	rec := env.request(t, http.MethodGet, "/v1/principles/"+resp.Principle.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodGet, "/v1/principles/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.request(t, http.MethodGet, "/v1/principles", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Principles []json.RawMessage `json:"principles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Principles, 1)
}

func TestListRulesAndCurrentGeneration(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/v1/generations/current", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	env.ingest(t, riskPrinciple)

	rec = env.request(t, http.MethodGet, "/v1/rules?status=active", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rules struct {
		Rules []*store.PolicyRule `json:"rules"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rules))
	require.Len(t, rules.Rules, 1)
	assert.Equal(t, store.StatusActive, rules.Rules[0].Status)

	rec = env.request(t, http.MethodGet, "/v1/generations/current", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var set store.ActiveRuleSet
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &set))
	assert.Equal(t, uint64(1), set.Generation)
	assert.Len(t, set.Rules, 1)
}

func TestReviewSignalValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/v1/review/signal",
		`{"rule_id":"rule-x","verdict":"maybe","reviewer":"alice"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.request(t, http.MethodPost, "/v1/review/signal",
		`{"rule_id":"rule-x","verdict":"approve","reviewer":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.request(t, http.MethodPost, "/v1/review/signal",
		`{"rule_id":"rule-x","verdict":"approve","reviewer":"alice"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndReadiness(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	env.ingest(t, riskPrinciple)

	rec = env.request(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"generation":1`)
}

func TestRequestIDPropagation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/healthz", "")
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "caller-supplied")
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	assert.Equal(t, "caller-supplied", rr.Header().Get(RequestIDHeader))
}
