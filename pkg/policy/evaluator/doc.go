// Package evaluator implements the runtime decision path. It serves
// permit/deny decisions from an in-memory snapshot of the active rule
// generation, swapped atomically so in-flight evaluations never observe a
// half-updated rule set. All failure modes resolve to deny.
package evaluator
