package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"praxis-hq/charter/pkg/policy/evaluator"
	"praxis-hq/charter/pkg/policy/store"
	"praxis-hq/charter/pkg/predicate"
	"praxis-hq/charter/pkg/principle"
	"praxis-hq/charter/pkg/review"
)

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Context == nil {
		writeError(w, http.StatusBadRequest, "context is required")
		return
	}

	decision, err := s.evaluator.Evaluate(r.Context(), predicate.Context(req.Context))
	if errors.Is(err, evaluator.ErrNotReady) {
		writeError(w, http.StatusServiceUnavailable, "no active rule generation loaded")
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "evaluation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "evaluation failed")
		return
	}
	if decision.Rationale == evaluator.RationaleInvariantViolation {
		// The deny decision is still the answer, but the generation is
		// corrupt; surface that to the caller.
		writeJSON(w, http.StatusInternalServerError, decision)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (s *Server) handleCreatePrinciple(w http.ResponseWriter, r *http.Request) {
	var req principleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	p, err := s.principles.Create(r.Context(), req.input())
	if err != nil {
		writePrincipleError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, principleResponse{
		Principle:    p,
		CompileError: s.compile(r, p.ID),
	})
}

func (s *Server) handleAmendPrinciple(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req principleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	p, err := s.principles.Amend(r.Context(), id, req.input())
	if err != nil {
		writePrincipleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, principleResponse{
		Principle:    p,
		CompileError: s.compile(r, p.ID),
	})
}

// compile drives the pipeline for an ingested principle. The principle is
// already durable; a chain failure is reported to the caller, not rolled
// back.
func (s *Server) compile(r *http.Request, principleID string) string {
	if s.compiler == nil {
		return ""
	}
	if err := s.compiler.PrincipleChanged(r.Context(), principleID); err != nil {
		s.logger.ErrorContext(r.Context(), "compilation chain failed",
			"principle_id", principleID, "error", err)
		return err.Error()
	}
	return ""
}

func writePrincipleError(w http.ResponseWriter, err error) {
	var verr *principle.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, principle.ErrNotFound):
		writeError(w, http.StatusNotFound, "principle not found")
	default:
		writeError(w, http.StatusInternalServerError, "storing principle failed")
	}
}

func (s *Server) handleListPrinciples(w http.ResponseWriter, r *http.Request) {
	active, err := s.principles.ListActive(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing principles failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"principles": active})
}

func (s *Server) handleGetPrinciple(w http.ResponseWriter, r *http.Request) {
	p, err := s.principles.GetActive(r.Context(), r.PathValue("id"))
	if errors.Is(err, principle.ErrNotFound) {
		writeError(w, http.StatusNotFound, "principle not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading principle failed")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	filter := store.RuleFilter{
		Status:      store.RuleStatus(r.URL.Query().Get("status")),
		PrincipleID: r.URL.Query().Get("principle_id"),
	}
	rules, err := s.policies.ListRules(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing rules failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

func (s *Server) handleCurrentGeneration(w http.ResponseWriter, r *http.Request) {
	gen := s.evaluator.Generation()
	if gen == 0 {
		writeError(w, http.StatusServiceUnavailable, "no active rule generation loaded")
		return
	}
	set, err := s.policies.GetGeneration(r.Context(), gen)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading generation failed")
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (s *Server) handleReviewPending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"pending": s.queue.Pending()})
}

func (s *Server) handleReviewSignal(w http.ResponseWriter, r *http.Request) {
	var req reviewSignalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	verdict := review.Verdict(req.Verdict)
	if verdict != review.VerdictApprove && verdict != review.VerdictReject {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown verdict %q", req.Verdict))
		return
	}
	if req.Reviewer == "" {
		writeError(w, http.StatusBadRequest, "reviewer is required")
		return
	}

	err := s.queue.Signal(r.Context(), req.RuleID, verdict, req.Reviewer)
	if errors.Is(err, review.ErrNotPending) {
		writeError(w, http.StatusNotFound, "rule is not pending review")
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "verdict handling failed",
			"rule_id", req.RuleID, "error", err)
		writeError(w, http.StatusInternalServerError, "applying verdict failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"rule_id": req.RuleID,
		"verdict": req.Verdict,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if !s.evaluator.Ready() {
		writeError(w, http.StatusServiceUnavailable, "no active rule generation loaded")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ready",
		"generation": s.evaluator.Generation(),
	})
}
