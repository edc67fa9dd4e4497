package conflict

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"praxis-hq/charter/pkg/policy/store"
	"praxis-hq/charter/pkg/solver"
)

// Detector finds contradictions between a candidate rule and the rules it
// would join.
type Detector struct {
	solver solver.Solver
	logger *slog.Logger
}

// NewDetector creates a detector.
func NewDetector(s solver.Solver, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{solver: s, logger: logger.With("component", "conflict.detector")}
}

// Detect checks the candidate against each other rule. A conflict exists
// when the effects oppose and the solver finds a context both bodies match.
// Record ids are deterministic per rule pair, so re-detection updates the
// existing unresolved record instead of piling up duplicates.
func (d *Detector) Detect(ctx context.Context, candidate *store.PolicyRule, others []*store.PolicyRule) ([]*store.ConflictRecord, error) {
	var records []*store.ConflictRecord
	for _, other := range others {
		if other.ID == candidate.ID {
			continue
		}
		if !candidate.Effect.Opposes(other.Effect) {
			continue
		}

		res, err := solver.Overlap(ctx, d.solver, candidate.Body, other.Body)
		if err != nil {
			return nil, fmt.Errorf("conflict: overlap check %s vs %s: %w", candidate.ID, other.ID, err)
		}
		if !res.Satisfiable {
			continue
		}

		d.logger.Warn("conflict detected",
			"candidate", candidate.ID,
			"other", other.ID,
			"witness", res.Witness)
		records = append(records, &store.ConflictRecord{
			ID:                 RecordID(candidate.ID, other.ID),
			ConflictingRuleIDs: []string{candidate.ID, other.ID},
			DetectedAt:         time.Now().UTC(),
			Witness:            res.Witness,
			Unresolved:         true,
		})
	}
	return records, nil
}

// RecordID derives the stable conflict record id for a rule pair.
func RecordID(ruleA, ruleB string) string {
	pair := []string{ruleA, ruleB}
	sort.Strings(pair)
	return "cfl-" + strings.Join(pair, "-")
}
