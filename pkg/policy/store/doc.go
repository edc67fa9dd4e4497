// Package store is the policy store: the single source of truth for rule
// lifecycle state, conflict records, and the active rule set.
//
// Rule versions move through a fixed state machine
//
//	pending_synthesis → pending_verification → {verified | failed}
//	verified → active → superseded
//
// with failed, superseded, and archived terminal. Backward moves are
// rejected; correcting a rule means synthesizing a new version. Promotion to
// active is atomic with the generation counter increment: a promotion carries
// the generation it observed, and a concurrent promotion that got there first
// forces a retry (compare-and-swap on the counter). No generation ever
// contains a rule that failed verification or lost a conflict.
//
// Superseded generations are retained for rollback and audit, pruned beyond a
// configured horizon.
package store
