package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"praxis-hq/charter/pkg/audit"
)

// Reason explains why a rule was escalated to a human.
type Reason string

const (
	ReasonLowConfidence Reason = "low_confidence"
	ReasonInconclusive  Reason = "inconclusive"
	ReasonConflictTie   Reason = "conflict_tie"
)

// Verdict is a reviewer's answer.
type Verdict string

const (
	VerdictApprove Verdict = "approve"
	VerdictReject  Verdict = "reject"
)

// ErrNotPending is returned by Signal when no item is waiting for the rule.
var ErrNotPending = errors.New("review: rule is not pending review")

// Item is one entry awaiting human review.
type Item struct {
	RuleID     string    `json:"rule_id"`
	Reason     Reason    `json:"reason"`
	Detail     string    `json:"detail,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Handler receives a reviewer's verdict for a pending item. The pipeline
// installs one that transitions the rule and resumes the chain.
type Handler func(ctx context.Context, item Item, verdict Verdict, reviewer string) error

// Queue is an in-memory review queue with at-most-one pending item per rule.
type Queue struct {
	mu      sync.Mutex
	pending map[string]Item

	handler Handler
	auditor audit.Sink
	logger  *slog.Logger
}

// NewQueue creates an empty queue.
func NewQueue(auditor audit.Sink, logger *slog.Logger) *Queue {
	if auditor == nil {
		auditor = audit.NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		pending: make(map[string]Item),
		auditor: auditor,
		logger:  logger.With("component", "review.queue"),
	}
}

// SetHandler installs the verdict handler. Must be called before Signal.
func (q *Queue) SetHandler(h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handler = h
}

// Enqueue adds a rule to the queue. Returns false when the rule already has a
// pending item; the original reason wins.
func (q *Queue) Enqueue(ruleID string, reason Reason, detail string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.pending[ruleID]; ok {
		return false
	}
	q.pending[ruleID] = Item{
		RuleID:     ruleID,
		Reason:     reason,
		Detail:     detail,
		EnqueuedAt: time.Now().UTC(),
	}

	q.logger.Info("rule enqueued for review", "rule_id", ruleID, "reason", reason)
	q.auditor.Record(audit.Event{
		EntityType: audit.EntityRule,
		EntityID:   ruleID,
		ToStatus:   "pending_review",
		Actor:      "review.queue",
		Detail:     fmt.Sprintf("%s: %s", reason, detail),
	})
	return true
}

// Signal resolves the pending item for a rule with the reviewer's verdict.
// The item is removed before the handler runs, so a handler failure does not
// leave a phantom entry blocking re-review.
func (q *Queue) Signal(ctx context.Context, ruleID string, verdict Verdict, reviewer string) error {
	if verdict != VerdictApprove && verdict != VerdictReject {
		return fmt.Errorf("review: unknown verdict %q", verdict)
	}

	q.mu.Lock()
	item, ok := q.pending[ruleID]
	if !ok {
		q.mu.Unlock()
		return ErrNotPending
	}
	delete(q.pending, ruleID)
	handler := q.handler
	q.mu.Unlock()

	q.auditor.Record(audit.Event{
		EntityType: audit.EntityRule,
		EntityID:   ruleID,
		FromStatus: "pending_review",
		ToStatus:   string(verdict),
		Actor:      reviewer,
		Detail:     string(item.Reason),
	})

	if handler == nil {
		q.logger.Warn("verdict received with no handler installed", "rule_id", ruleID)
		return nil
	}
	return handler(ctx, item, verdict, reviewer)
}

// Pending returns waiting items ordered by enqueue time.
func (q *Queue) Pending() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := make([]Item, 0, len(q.pending))
	for _, item := range q.pending {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].EnqueuedAt.Before(items[j].EnqueuedAt) })
	return items
}

// IsPending reports whether the rule has a waiting item.
func (q *Queue) IsPending(ruleID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.pending[ruleID]
	return ok
}
