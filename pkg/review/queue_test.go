package review

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"praxis-hq/charter/pkg/audit"
)

func TestEnqueueDedupByRuleID(t *testing.T) {
	q := NewQueue(audit.NopSink{}, nil)

	assert.True(t, q.Enqueue("r1", ReasonInconclusive, "obligation timed out"))
	assert.False(t, q.Enqueue("r1", ReasonLowConfidence, "second attempt"))
	assert.True(t, q.Enqueue("r2", ReasonConflictTie, ""))

	pending := q.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "r1", pending[0].RuleID)
	assert.Equal(t, ReasonInconclusive, pending[0].Reason, "first reason wins")
}

func TestSignalInvokesHandlerAndClears(t *testing.T) {
	q := NewQueue(audit.NopSink{}, nil)

	var gotItem Item
	var gotVerdict Verdict
	q.SetHandler(func(ctx context.Context, item Item, verdict Verdict, reviewer string) error {
		gotItem = item
		gotVerdict = verdict
		return nil
	})

	q.Enqueue("r1", ReasonLowConfidence, "confidence 0.4")
	require.NoError(t, q.Signal(context.Background(), "r1", VerdictApprove, "alice"))

	assert.Equal(t, "r1", gotItem.RuleID)
	assert.Equal(t, VerdictApprove, gotVerdict)
	assert.False(t, q.IsPending("r1"))

	// The rule can be escalated again after resolution.
	assert.True(t, q.Enqueue("r1", ReasonInconclusive, ""))
}

func TestSignalErrors(t *testing.T) {
	q := NewQueue(audit.NopSink{}, nil)

	err := q.Signal(context.Background(), "ghost", VerdictReject, "alice")
	assert.ErrorIs(t, err, ErrNotPending)

	q.Enqueue("r1", ReasonInconclusive, "")
	err = q.Signal(context.Background(), "r1", Verdict("maybe"), "alice")
	assert.Error(t, err)
	assert.True(t, q.IsPending("r1"), "bad verdict must not consume the item")
}
