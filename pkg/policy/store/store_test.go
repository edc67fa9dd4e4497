package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"praxis-hq/charter/pkg/audit"
	"praxis-hq/charter/pkg/predicate"
)

func testBackends(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore(audit.NopSink{})
		},
		"sqlite": func(t *testing.T) Store {
			cfg := DefaultSQLiteConfig()
			cfg.Path = filepath.Join(t.TempDir(), "policy.db")
			s, err := NewSQLiteStore(cfg, audit.NopSink{}, nil)
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func testRule(id string, version int, effect predicate.Effect) *PolicyRule {
	return &PolicyRule{
		ID:                 id,
		Version:            version,
		SourcePrincipleIDs: []string{"prn-" + id},
		Body:               predicate.Compare("risk_score", predicate.OpGreaterThan, predicate.Number(0.5)),
		Effect:             effect,
		Scope:              []string{"payments"},
		Origin:             OriginTemplate,
		Confidence:         0.9,
		Status:             StatusPendingSynthesis,
		SynthesizedAt:      time.Now().UTC().Truncate(time.Millisecond),
	}
}

// advance walks a rule from pending_synthesis to the given status.
func advance(t *testing.T, s Store, key Key, to RuleStatus) {
	t.Helper()
	ctx := context.Background()
	path := []RuleStatus{StatusPendingVerification, StatusVerified, StatusActive}
	for _, status := range path {
		_, err := s.Transition(ctx, key, status, "", "test")
		require.NoError(t, err)
		if status == to {
			return
		}
	}
	t.Fatalf("status %s not on the promotion path", to)
}

func TestCreateAndGetRule(t *testing.T) {
	for name, newStore := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			rule := testRule("r1", 1, predicate.EffectDeny)
			require.NoError(t, s.CreateRule(ctx, rule))

			got, err := s.GetRule(ctx, Key{ID: "r1", Version: 1})
			require.NoError(t, err)
			assert.Equal(t, rule.ID, got.ID)
			assert.Equal(t, rule.Effect, got.Effect)
			assert.Equal(t, rule.SourcePrincipleIDs, got.SourcePrincipleIDs)
			assert.Equal(t, StatusPendingSynthesis, got.Status)
			require.NotNil(t, got.Body)
			assert.Equal(t, rule.Body.Canonical(), got.Body.Canonical())

			_, err = s.GetRule(ctx, Key{ID: "r1", Version: 2})
			assert.ErrorIs(t, err, ErrRuleNotFound)
		})
	}
}

func TestCreateRuleIdempotent(t *testing.T) {
	for name, newStore := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			rule := testRule("r1", 1, predicate.EffectDeny)
			require.NoError(t, s.CreateRule(ctx, rule))

			// A replayed write with the same key must not clobber progress.
			_, err := s.Transition(ctx, rule.Key(), StatusPendingVerification, "", "test")
			require.NoError(t, err)
			require.NoError(t, s.CreateRule(ctx, testRule("r1", 1, predicate.EffectDeny)))

			got, err := s.GetRule(ctx, rule.Key())
			require.NoError(t, err)
			assert.Equal(t, StatusPendingVerification, got.Status)
		})
	}
}

func TestLatestVersion(t *testing.T) {
	for name, newStore := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			latest, err := s.LatestVersion(ctx, "r1")
			require.NoError(t, err)
			assert.Equal(t, 0, latest)

			require.NoError(t, s.CreateRule(ctx, testRule("r1", 1, predicate.EffectDeny)))
			require.NoError(t, s.CreateRule(ctx, testRule("r1", 2, predicate.EffectDeny)))

			latest, err = s.LatestVersion(ctx, "r1")
			require.NoError(t, err)
			assert.Equal(t, 2, latest)
		})
	}
}

func TestTransitionStateMachine(t *testing.T) {
	for name, newStore := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			rule := testRule("r1", 1, predicate.EffectDeny)
			require.NoError(t, s.CreateRule(ctx, rule))
			key := rule.Key()

			// Skipping verification is not a legal move.
			_, err := s.Transition(ctx, key, StatusActive, "", "test")
			var terr *TransitionError
			require.ErrorAs(t, err, &terr)
			assert.Equal(t, StatusPendingSynthesis, terr.From)

			got, err := s.Transition(ctx, key, StatusPendingVerification, "", "test")
			require.NoError(t, err)
			assert.Equal(t, StatusPendingVerification, got.Status)

			got, err = s.Transition(ctx, key, StatusVerified, "all obligations hold", "verify")
			require.NoError(t, err)
			assert.Equal(t, "all obligations hold", got.VerificationFeedback)
			assert.False(t, got.VerifiedAt.IsZero())

			// Terminal states accept nothing further.
			_, err = s.Transition(ctx, key, StatusArchived, "", "test")
			require.NoError(t, err)
			_, err = s.Transition(ctx, key, StatusActive, "", "test")
			require.ErrorAs(t, err, &terr)
		})
	}
}

func TestTransitionFailedKeepsFeedback(t *testing.T) {
	for name, newStore := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			rule := testRule("r1", 1, predicate.EffectDeny)
			require.NoError(t, s.CreateRule(ctx, rule))
			_, err := s.Transition(ctx, rule.Key(), StatusPendingVerification, "", "test")
			require.NoError(t, err)

			got, err := s.Transition(ctx, rule.Key(), StatusFailed, "counterexample on action=delete", "verify")
			require.NoError(t, err)
			assert.Equal(t, StatusFailed, got.Status)
			assert.Equal(t, "counterexample on action=delete", got.VerificationFeedback)
			assert.True(t, IsTerminal(got.Status))
		})
	}
}

func TestMarkVacuousPass(t *testing.T) {
	for name, newStore := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			rule := testRule("r1", 1, predicate.EffectPermit)
			rule.Body = nil
			require.NoError(t, s.CreateRule(ctx, rule))

			require.NoError(t, s.MarkVacuousPass(ctx, rule.Key()))

			got, err := s.GetRule(ctx, rule.Key())
			require.NoError(t, err)
			assert.True(t, got.VacuousPass)

			err = s.MarkVacuousPass(ctx, Key{ID: "missing", Version: 1})
			assert.ErrorIs(t, err, ErrRuleNotFound)
		})
	}
}

func TestPromoteRequiresVerified(t *testing.T) {
	for name, newStore := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			rule := testRule("r1", 1, predicate.EffectDeny)
			require.NoError(t, s.CreateRule(ctx, rule))

			_, err := s.Promote(ctx, []Key{rule.Key()}, 0, "pipeline")
			var perr *PromotionError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, rule.Key(), perr.Key)

			gen, err := s.CurrentGeneration(ctx)
			require.NoError(t, err)
			assert.Equal(t, uint64(0), gen, "failed promotion must not mint a generation")
		})
	}
}

func TestPromoteMintsGeneration(t *testing.T) {
	for name, newStore := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			rule := testRule("r1", 1, predicate.EffectDeny)
			require.NoError(t, s.CreateRule(ctx, rule))
			advance(t, s, rule.Key(), StatusVerified)

			snapshot, err := s.Promote(ctx, []Key{rule.Key()}, 0, "pipeline")
			require.NoError(t, err)
			assert.Equal(t, uint64(1), snapshot.Generation)
			require.Len(t, snapshot.Rules, 1)
			assert.Equal(t, StatusActive, snapshot.Rules[0].Status)

			got, err := s.GetGeneration(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, snapshot.Generation, got.Generation)
			require.Len(t, got.Rules, 1)
			assert.Equal(t, "r1", got.Rules[0].ID)
		})
	}
}

func TestPromoteGenerationCAS(t *testing.T) {
	for name, newStore := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			rule := testRule("r1", 1, predicate.EffectDeny)
			require.NoError(t, s.CreateRule(ctx, rule))
			advance(t, s, rule.Key(), StatusVerified)

			other := testRule("r2", 1, predicate.EffectPermit)
			require.NoError(t, s.CreateRule(ctx, other))
			advance(t, s, other.Key(), StatusVerified)

			_, err := s.Promote(ctx, []Key{rule.Key()}, 0, "pipeline")
			require.NoError(t, err)

			// A promotion built against the stale generation must fail and
			// leave the candidate untouched.
			_, err = s.Promote(ctx, []Key{other.Key()}, 0, "pipeline")
			assert.ErrorIs(t, err, ErrGenerationConflict)

			got, err := s.GetRule(ctx, other.Key())
			require.NoError(t, err)
			assert.Equal(t, StatusVerified, got.Status)

			// Retrying with the fresh generation succeeds.
			snapshot, err := s.Promote(ctx, []Key{other.Key()}, 1, "pipeline")
			require.NoError(t, err)
			assert.Equal(t, uint64(2), snapshot.Generation)
			assert.Len(t, snapshot.Rules, 2)
		})
	}
}

func TestPromoteBlockedByUnresolvedConflict(t *testing.T) {
	for name, newStore := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			rule := testRule("r1", 1, predicate.EffectDeny)
			require.NoError(t, s.CreateRule(ctx, rule))
			advance(t, s, rule.Key(), StatusVerified)

			require.NoError(t, s.RecordConflict(ctx, &ConflictRecord{
				ID:                 "c1",
				ConflictingRuleIDs: []string{"r1", "r2"},
				DetectedAt:         time.Now().UTC(),
				Witness:            predicate.Context{"risk_score": 0.8},
				Unresolved:         true,
			}))

			_, err := s.Promote(ctx, []Key{rule.Key()}, 0, "pipeline")
			var perr *PromotionError
			require.ErrorAs(t, err, &perr)

			// Resolving the conflict in r1's favor unblocks it.
			require.NoError(t, s.RecordConflict(ctx, &ConflictRecord{
				ID:                 "c1",
				ConflictingRuleIDs: []string{"r1", "r2"},
				DetectedAt:         time.Now().UTC(),
				ResolutionStrategy: "priority_weight",
				WinningRuleID:      "r1",
				LosingRuleIDs:      []string{"r2"},
				ResolvedAt:         time.Now().UTC(),
			}))
			_, err = s.Promote(ctx, []Key{rule.Key()}, 0, "pipeline")
			require.NoError(t, err)
		})
	}
}

func TestPromoteBlockedForConflictLoser(t *testing.T) {
	for name, newStore := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			rule := testRule("r2", 1, predicate.EffectPermit)
			require.NoError(t, s.CreateRule(ctx, rule))
			advance(t, s, rule.Key(), StatusVerified)

			require.NoError(t, s.RecordConflict(ctx, &ConflictRecord{
				ID:                 "c1",
				ConflictingRuleIDs: []string{"r1", "r2"},
				DetectedAt:         time.Now().UTC(),
				ResolutionStrategy: "priority_weight",
				WinningRuleID:      "r1",
				LosingRuleIDs:      []string{"r2"},
				ResolvedAt:         time.Now().UTC(),
			}))

			_, err := s.Promote(ctx, []Key{rule.Key()}, 0, "pipeline")
			var perr *PromotionError
			require.ErrorAs(t, err, &perr)
		})
	}
}

func TestPromoteReadsConflictsInTransaction(t *testing.T) {
	// The sqlite backend runs on a single pooled connection, so the
	// conflict check inside Promote must go through the open
	// transaction or the call never returns.
	for name, newStore := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			rule := testRule("r1", 1, predicate.EffectDeny)
			require.NoError(t, s.CreateRule(ctx, rule))
			advance(t, s, rule.Key(), StatusVerified)

			require.NoError(t, s.RecordConflict(ctx, &ConflictRecord{
				ID:                 "c-other",
				ConflictingRuleIDs: []string{"r8", "r9"},
				DetectedAt:         time.Now().UTC(),
				Unresolved:         true,
			}))

			snapshot, err := s.Promote(ctx, []Key{rule.Key()}, 0, "pipeline")
			require.NoError(t, err)
			assert.Equal(t, uint64(1), snapshot.Generation)
		})
	}
}

func TestListConflictsByRule(t *testing.T) {
	for name, newStore := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			require.NoError(t, s.RecordConflict(ctx, &ConflictRecord{
				ID:                 "c1",
				ConflictingRuleIDs: []string{"r1", "r2"},
				DetectedAt:         time.Now().UTC(),
				Unresolved:         true,
			}))
			require.NoError(t, s.RecordConflict(ctx, &ConflictRecord{
				ID:                 "c2",
				ConflictingRuleIDs: []string{"r3", "r4"},
				DetectedAt:         time.Now().UTC(),
				Unresolved:         true,
			}))

			recs, err := s.ListConflicts(ctx, "r2")
			require.NoError(t, err)
			require.Len(t, recs, 1)
			assert.Equal(t, "c1", recs[0].ID)

			all, err := s.ListConflicts(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 2)
		})
	}
}

func TestRollbackReinstatesSnapshot(t *testing.T) {
	for name, newStore := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			r1 := testRule("r1", 1, predicate.EffectDeny)
			require.NoError(t, s.CreateRule(ctx, r1))
			advance(t, s, r1.Key(), StatusVerified)
			_, err := s.Promote(ctx, []Key{r1.Key()}, 0, "pipeline")
			require.NoError(t, err)

			r2 := testRule("r2", 1, predicate.EffectPermit)
			require.NoError(t, s.CreateRule(ctx, r2))
			advance(t, s, r2.Key(), StatusVerified)
			_, err = s.Promote(ctx, []Key{r2.Key()}, 1, "pipeline")
			require.NoError(t, err)

			// Rolling back to generation 1 mints generation 3 with only r1.
			snapshot, err := s.Rollback(ctx, 1, "operator")
			require.NoError(t, err)
			assert.Equal(t, uint64(3), snapshot.Generation)
			require.Len(t, snapshot.Rules, 1)
			assert.Equal(t, "r1", snapshot.Rules[0].ID)

			got, err := s.GetRule(ctx, r2.Key())
			require.NoError(t, err)
			assert.Equal(t, StatusSuperseded, got.Status)

			_, err = s.Rollback(ctx, 99, "operator")
			assert.ErrorIs(t, err, ErrGenerationNotFound)
		})
	}
}

func TestPruneGenerations(t *testing.T) {
	for name, newStore := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			for i := 1; i <= 5; i++ {
				rule := testRule(fmt.Sprintf("r%d", i), 1, predicate.EffectDeny)
				require.NoError(t, s.CreateRule(ctx, rule))
				advance(t, s, rule.Key(), StatusVerified)
				_, err := s.Promote(ctx, []Key{rule.Key()}, uint64(i-1), "pipeline")
				require.NoError(t, err)
			}

			pruned, err := s.PruneGenerations(ctx, 2)
			require.NoError(t, err)
			assert.Equal(t, 3, pruned)

			_, err = s.GetGeneration(ctx, 3)
			assert.ErrorIs(t, err, ErrGenerationNotFound)
			_, err = s.GetGeneration(ctx, 4)
			require.NoError(t, err)
			_, err = s.GetGeneration(ctx, 5)
			require.NoError(t, err)
		})
	}
}

func TestCanTransitionTable(t *testing.T) {
	cases := []struct {
		from, to RuleStatus
		ok       bool
	}{
		{StatusPendingSynthesis, StatusPendingVerification, true},
		{StatusPendingVerification, StatusVerified, true},
		{StatusPendingVerification, StatusFailed, true},
		{StatusVerified, StatusActive, true},
		{StatusVerified, StatusSuperseded, true},
		{StatusVerified, StatusArchived, true},
		{StatusActive, StatusSuperseded, true},
		{StatusActive, StatusArchived, true},
		{StatusPendingSynthesis, StatusActive, false},
		{StatusFailed, StatusVerified, false},
		{StatusArchived, StatusActive, false},
		{StatusSuperseded, StatusActive, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}
