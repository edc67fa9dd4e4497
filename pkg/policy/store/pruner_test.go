package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"praxis-hq/charter/pkg/predicate"
)

func TestPrunerSweep(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		rule := testRule(fmt.Sprintf("r%d", i), 1, predicate.EffectDeny)
		require.NoError(t, s.CreateRule(ctx, rule))
		advance(t, s, rule.Key(), StatusVerified)
		_, err := s.Promote(ctx, []Key{rule.Key()}, uint64(i-1), "pipeline")
		require.NoError(t, err)
	}

	p := NewPruner(s, &PrunerConfig{Keep: 2, Schedule: "30 3 * * *"}, nil)
	p.sweep()

	_, err := s.GetGeneration(ctx, 2)
	assert.ErrorIs(t, err, ErrGenerationNotFound)
	_, err = s.GetGeneration(ctx, 3)
	require.NoError(t, err)
	_, err = s.GetGeneration(ctx, 4)
	require.NoError(t, err)
}

func TestPrunerConfigDefaults(t *testing.T) {
	p := NewPruner(NewMemoryStore(nil), nil, nil)
	assert.Equal(t, 10, p.config.Keep)

	p = NewPruner(NewMemoryStore(nil), &PrunerConfig{Keep: 0, Schedule: "* * * * *"}, nil)
	assert.Equal(t, 1, p.config.Keep)

	require.NoError(t, p.Start())
	p.Stop()
}
