// Package principle defines constitutional principles and their versioned
// store.
//
// Principles are immutable once written: an amendment creates a new version
// row linked to its predecessor, and at most one version of a principle id is
// active at any time. The store is the leaf data authority of the pipeline;
// everything downstream (synthesis, verification, conflict resolution) reads
// principles and never writes them.
//
// Two backends are provided: an in-memory store for tests and ephemeral
// deployments, and a SQLite store for durable ones. Writes are idempotent
// keyed by (id, version).
package principle
