package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"praxis-hq/charter/pkg/policy/store"
	"praxis-hq/charter/pkg/principle"
	"praxis-hq/charter/pkg/review"
	"praxis-hq/charter/pkg/solver"
)

// Engine discharges proof obligations for synthesized rules.
type Engine struct {
	solver solver.Solver
	queue  *review.Queue
	cfg    Config
	logger *slog.Logger
}

// NewEngine creates a verification engine. The review queue may be nil when
// no human tier is wired, in which case escalations are logged and dropped.
func NewEngine(s solver.Solver, queue *review.Queue, cfg Config, logger *slog.Logger) *Engine {
	if cfg.AutomatedTimeout <= 0 {
		cfg.AutomatedTimeout = DefaultConfig().AutomatedTimeout
	}
	if cfg.RigorousTimeout <= 0 {
		cfg.RigorousTimeout = DefaultConfig().RigorousTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		solver: s,
		queue:  queue,
		cfg:    cfg,
		logger: logger.With("component", "verify"),
	}
}

// Verify checks the rule against its source principles and returns the
// attempt's outcome. The caller applies the resulting state transition.
func (e *Engine) Verify(ctx context.Context, rule *store.PolicyRule, principles []*principle.Principle) (*Result, error) {
	start := time.Now()

	tier := TierAutomated
	timeout := e.cfg.AutomatedTimeout
	if e.safetyCritical(rule.Scope) {
		tier = TierRigorous
		timeout = e.cfg.RigorousTimeout
	}

	obligations := Obligations(rule, principles, tier == TierRigorous)

	allVacuous := true
	for _, ob := range obligations {
		if !ob.Vacuous {
			allVacuous = false
			break
		}
	}
	if allVacuous {
		result := &Result{
			Tier:        tier,
			Vacuous:     true,
			Obligations: len(obligations),
			Duration:    time.Since(start),
		}
		if e.cfg.AllowVacuous {
			result.Status = StatusPassed
			result.Feedback = "vacuous pass: no checkable constraints"
		} else {
			result.Status = StatusFailed
			result.Feedback = "no checkable constraints and vacuous passes are disabled"
		}
		return result, nil
	}

	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	discharged := 0
	for _, ob := range obligations {
		if ob.Vacuous {
			discharged++
			continue
		}
		holds, witness, err := e.discharge(tctx, ob)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return e.inconclusive(rule, tier, discharged, len(obligations), start), nil
			}
			return nil, err
		}
		if !holds {
			feedback := fmt.Sprintf("obligation %s failed for principle %s", ob.Name, ob.PrincipleID)
			if witness != nil {
				feedback += fmt.Sprintf("; counterexample: %v", witness)
			}
			return &Result{
				Status:      StatusFailed,
				Tier:        tier,
				Feedback:    feedback,
				Obligations: len(obligations),
				Duration:    time.Since(start),
			}, nil
		}
		discharged++
	}

	// The automated checks hold, but a low-confidence suggested body still
	// needs a human to vouch for its intent.
	if rule.LowConfidence {
		e.escalate(rule.ID, review.ReasonLowConfidence,
			fmt.Sprintf("confidence %.2f below threshold", rule.Confidence))
		return &Result{
			Status:      StatusInconclusive,
			Tier:        TierHuman,
			Feedback:    "automated checks passed; awaiting human review of low-confidence body",
			Obligations: len(obligations),
			Duration:    time.Since(start),
		}, nil
	}

	return &Result{
		Status:      StatusPassed,
		Tier:        tier,
		Feedback:    fmt.Sprintf("%d obligations discharged", len(obligations)),
		Obligations: len(obligations),
		Duration:    time.Since(start),
	}, nil
}

// discharge runs one obligation. Coverage obligations hold when their
// expression is unsatisfiable; satisfiability obligations hold when it is
// satisfiable. The returned witness is the counterexample for a failed
// coverage check.
func (e *Engine) discharge(ctx context.Context, ob ProofObligation) (bool, map[string]any, error) {
	res, err := e.solver.CheckSat(ctx, ob.Expression)
	if err != nil {
		return false, nil, err
	}
	switch ob.Name {
	case "satisfiable", "bounded":
		return res.Satisfiable, nil, nil
	default:
		if res.Satisfiable {
			return false, res.Witness, nil
		}
		return true, nil, nil
	}
}

func (e *Engine) inconclusive(rule *store.PolicyRule, tier Tier, discharged, total int, start time.Time) *Result {
	e.escalate(rule.ID, review.ReasonInconclusive,
		fmt.Sprintf("solver deadline after %d/%d obligations", discharged, total))
	return &Result{
		Status:      StatusInconclusive,
		Tier:        tier,
		Feedback:    fmt.Sprintf("verification timed out after %d of %d obligations", discharged, total),
		Obligations: total,
		Duration:    time.Since(start),
	}
}

// escalate enqueues the rule for human review. The queue deduplicates by
// rule id, so repeated inconclusive attempts surface once.
func (e *Engine) escalate(ruleID string, reason review.Reason, detail string) {
	if e.queue == nil {
		e.logger.Warn("escalation dropped, no review queue wired", "rule_id", ruleID, "reason", reason)
		return
	}
	if e.queue.Enqueue(ruleID, reason, detail) {
		e.logger.Info("rule escalated to human review", "rule_id", ruleID, "reason", reason)
	}
}

func (e *Engine) safetyCritical(scope []string) bool {
	for _, s := range scope {
		for _, critical := range e.cfg.SafetyCriticalScopes {
			if s == critical {
				return true
			}
		}
	}
	return false
}
