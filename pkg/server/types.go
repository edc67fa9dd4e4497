package server

import (
	"encoding/json"
	"net/http"

	"praxis-hq/charter/pkg/predicate"
	"praxis-hq/charter/pkg/principle"
)

// evaluateRequest is the body of POST /v1/evaluate.
type evaluateRequest struct {
	Context map[string]any `json:"context"`
}

// principleRequest is the body of POST /v1/principles and PUT
// /v1/principles/{id}.
type principleRequest struct {
	Name               string                 `json:"name"`
	PriorityWeight     float64                `json:"priority_weight"`
	Scope              []string               `json:"scope"`
	Category           string                 `json:"category"`
	NormativeStatement string                 `json:"normative_statement"`
	Constraints        []predicate.Constraint `json:"constraints,omitempty"`
	Rationale          string                 `json:"rationale,omitempty"`
}

func (r *principleRequest) input() principle.Input {
	return principle.Input{
		Name:               r.Name,
		PriorityWeight:     r.PriorityWeight,
		Scope:              r.Scope,
		Category:           r.Category,
		NormativeStatement: r.NormativeStatement,
		Constraints:        r.Constraints,
		Rationale:          r.Rationale,
	}
}

// principleResponse wraps an ingested principle together with the outcome of
// its compilation chain. CompileError is set when the chain did not complete;
// the principle itself is stored either way.
type principleResponse struct {
	Principle    *principle.Principle `json:"principle"`
	CompileError string               `json:"compile_error,omitempty"`
}

// reviewSignalRequest is the body of POST /v1/review/signal.
type reviewSignalRequest struct {
	RuleID   string `json:"rule_id"`
	Verdict  string `json:"verdict"`
	Reviewer string `json:"reviewer"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
