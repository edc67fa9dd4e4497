// Package review is the boundary to human reviewers.
//
// The pipeline enqueues rules that automated verification could not settle
// (low confidence, inconclusive results, unresolved conflict ties). The queue
// deduplicates by rule id so a rule that times out on several obligations is
// surfaced to reviewers exactly once. Reviewers answer through Signal, which
// hands the verdict to a handler installed by the pipeline; the queue itself
// never touches rule state.
package review
