package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"praxis-hq/charter/pkg/audit"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS rules (
    id TEXT NOT NULL,
    version INTEGER NOT NULL,
    source_principle_ids TEXT NOT NULL,
    body TEXT,
    effect TEXT NOT NULL,
    scope TEXT NOT NULL,
    origin TEXT NOT NULL,
    confidence REAL NOT NULL,
    low_confidence BOOLEAN NOT NULL,
    vacuous_pass BOOLEAN NOT NULL,
    status TEXT NOT NULL,
    verification_feedback TEXT,
    synthesized_at TIMESTAMP NOT NULL,
    verified_at TIMESTAMP,
    PRIMARY KEY (id, version)
);

CREATE INDEX IF NOT EXISTS idx_rules_status ON rules(status);

CREATE TABLE IF NOT EXISTS conflicts (
    id TEXT PRIMARY KEY,
    conflicting_rule_ids TEXT NOT NULL,
    detected_at TIMESTAMP NOT NULL,
    witness TEXT,
    resolution_strategy TEXT,
    winning_rule_id TEXT,
    losing_rule_ids TEXT,
    resolved_at TIMESTAMP,
    unresolved BOOLEAN NOT NULL
);

CREATE TABLE IF NOT EXISTS generations (
    generation INTEGER PRIMARY KEY,
    rules TEXT NOT NULL,
    promoted_at TIMESTAMP NOT NULL
);
`

// SQLiteConfig configures the SQLite policy store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is how long a write waits on a locked database.
	// Default: 5s.
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:        "data/policy.db",
		BusyTimeout: 5 * time.Second,
	}
}

// SQLiteStore is the durable policy store. The generation table's primary key
// doubles as the compare-and-swap: a racing promotion inserting the same next
// generation fails the unique constraint and surfaces ErrGenerationConflict.
type SQLiteStore struct {
	db      *sql.DB
	auditor audit.Sink
	logger  *slog.Logger
}

// NewSQLiteStore opens (and if needed initializes) the policy database.
func NewSQLiteStore(cfg *SQLiteConfig, auditor audit.Sink, logger *slog.Logger) (*SQLiteStore, error) {
	if cfg == nil {
		cfg = DefaultSQLiteConfig()
	}
	if auditor == nil {
		auditor = audit.NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, &StorageError{Backend: "sqlite", Operation: "open", Cause: err}
	}
	// The generation CAS relies on serialized writers.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, &StorageError{Backend: "sqlite", Operation: "pragma", Cause: err}
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, &StorageError{Backend: "sqlite", Operation: "init schema", Cause: err}
	}

	return &SQLiteStore{
		db:      db,
		auditor: auditor,
		logger:  logger.With("component", "policy.store"),
	}, nil
}

// CreateRule persists a freshly synthesized rule version.
func (s *SQLiteStore) CreateRule(ctx context.Context, rule *PolicyRule) error {
	body, sourceIDs, scope, err := marshalRuleFields(rule)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
        INSERT INTO rules (id, version, source_principle_ids, body, effect, scope, origin,
            confidence, low_confidence, vacuous_pass, status, verification_feedback,
            synthesized_at, verified_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id, version) DO NOTHING`,
		rule.ID, rule.Version, sourceIDs, body, rule.Effect, scope, rule.Origin,
		rule.Confidence, rule.LowConfidence, rule.VacuousPass, rule.Status,
		rule.VerificationFeedback, rule.SynthesizedAt, nullableTime(rule.VerifiedAt))
	if err != nil {
		return &StorageError{Backend: "sqlite", Operation: "create rule", Cause: err}
	}

	s.auditor.Record(audit.Event{
		EntityType: audit.EntityRule,
		EntityID:   rule.ID,
		ToStatus:   string(rule.Status),
		Actor:      "synth",
		Detail:     fmt.Sprintf("version %d created", rule.Version),
	})
	return nil
}

// GetRule returns one rule version.
func (s *SQLiteStore) GetRule(ctx context.Context, key Key) (*PolicyRule, error) {
	row := s.db.QueryRowContext(ctx, selectRule+" WHERE id = ? AND version = ?", key.ID, key.Version)
	return scanRule(row)
}

// LatestVersion returns the highest version number for a rule id, or 0.
func (s *SQLiteStore) LatestVersion(ctx context.Context, id string) (int, error) {
	var latest sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT MAX(version) FROM rules WHERE id = ?", id).Scan(&latest)
	if err != nil {
		return 0, &StorageError{Backend: "sqlite", Operation: "latest version", Cause: err}
	}
	return int(latest.Int64), nil
}

// ListRules returns rules matching the filter, ordered by id then version.
func (s *SQLiteStore) ListRules(ctx context.Context, filter RuleFilter) ([]*PolicyRule, error) {
	query := selectRule
	var args []any
	if filter.Status != "" {
		query += " WHERE status = ?"
		args = append(args, filter.Status)
	}
	query += " ORDER BY id, version"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StorageError{Backend: "sqlite", Operation: "list rules", Cause: err}
	}
	defer rows.Close()

	var out []*PolicyRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		if filter.PrincipleID != "" && !containsString(rule.SourcePrincipleIDs, filter.PrincipleID) {
			continue
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// Transition moves a rule version to a new status.
func (s *SQLiteStore) Transition(ctx context.Context, key Key, to RuleStatus, feedback, actor string) (*PolicyRule, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &StorageError{Backend: "sqlite", Operation: "begin", Cause: err}
	}
	defer tx.Rollback()

	rule, err := s.transitionTx(ctx, tx, key, to, feedback, actor)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, &StorageError{Backend: "sqlite", Operation: "commit", Cause: err}
	}
	return rule, nil
}

func (s *SQLiteStore) transitionTx(ctx context.Context, tx *sql.Tx, key Key, to RuleStatus, feedback, actor string) (*PolicyRule, error) {
	row := tx.QueryRowContext(ctx, selectRule+" WHERE id = ? AND version = ?", key.ID, key.Version)
	rule, err := scanRule(row)
	if err != nil {
		return nil, err
	}

	from := rule.Status
	if !CanTransition(from, to) {
		return nil, &TransitionError{Key: key, From: from, To: to}
	}

	rule.Status = to
	if feedback != "" {
		rule.VerificationFeedback = feedback
	}
	if to == StatusVerified {
		rule.VerifiedAt = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx, `
        UPDATE rules SET status = ?, verification_feedback = ?, verified_at = ?
        WHERE id = ? AND version = ?`,
		rule.Status, rule.VerificationFeedback, nullableTime(rule.VerifiedAt), key.ID, key.Version)
	if err != nil {
		return nil, &StorageError{Backend: "sqlite", Operation: "transition", Cause: err}
	}

	s.auditor.Record(audit.Event{
		EntityType: audit.EntityRule,
		EntityID:   key.ID,
		FromStatus: string(from),
		ToStatus:   string(to),
		Actor:      actor,
		Detail:     feedback,
	})
	return rule, nil
}

// MarkVacuousPass flags a rule version as verified without checkable
// constraints.
func (s *SQLiteStore) MarkVacuousPass(ctx context.Context, key Key) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE rules SET vacuous_pass = 1 WHERE id = ? AND version = ?`,
		key.ID, key.Version)
	if err != nil {
		return &StorageError{Backend: "sqlite", Operation: "mark vacuous", Cause: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &StorageError{Backend: "sqlite", Operation: "mark vacuous", Cause: err}
	}
	if n == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// RecordConflict persists a conflict record.
func (s *SQLiteStore) RecordConflict(ctx context.Context, rec *ConflictRecord) error {
	var resolved sql.NullBool
	err := s.db.QueryRowContext(ctx,
		"SELECT NOT unresolved FROM conflicts WHERE id = ?", rec.ID).Scan(&resolved)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// new record
	case err != nil:
		return &StorageError{Backend: "sqlite", Operation: "record conflict", Cause: err}
	case resolved.Valid && resolved.Bool:
		return &StorageError{Backend: "sqlite", Operation: "record conflict",
			Cause: fmt.Errorf("conflict %s already resolved", rec.ID)}
	}

	ids, err := json.Marshal(rec.ConflictingRuleIDs)
	if err != nil {
		return &StorageError{Backend: "sqlite", Operation: "marshal conflict", Cause: err}
	}
	losers, err := json.Marshal(rec.LosingRuleIDs)
	if err != nil {
		return &StorageError{Backend: "sqlite", Operation: "marshal conflict", Cause: err}
	}
	witness, err := json.Marshal(rec.Witness)
	if err != nil {
		return &StorageError{Backend: "sqlite", Operation: "marshal conflict", Cause: err}
	}

	_, err = s.db.ExecContext(ctx, `
        INSERT INTO conflicts (id, conflicting_rule_ids, detected_at, witness,
            resolution_strategy, winning_rule_id, losing_rule_ids, resolved_at, unresolved)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            resolution_strategy = excluded.resolution_strategy,
            winning_rule_id = excluded.winning_rule_id,
            losing_rule_ids = excluded.losing_rule_ids,
            resolved_at = excluded.resolved_at,
            unresolved = excluded.unresolved`,
		rec.ID, string(ids), rec.DetectedAt, string(witness), rec.ResolutionStrategy,
		rec.WinningRuleID, string(losers), nullableTime(rec.ResolvedAt), rec.Unresolved)
	if err != nil {
		return &StorageError{Backend: "sqlite", Operation: "record conflict", Cause: err}
	}

	to := "resolved"
	if rec.Unresolved {
		to = "unresolved"
	}
	s.auditor.Record(audit.Event{
		EntityType: audit.EntityConflict,
		EntityID:   rec.ID,
		ToStatus:   to,
		Actor:      "conflict.resolver",
		Detail:     rec.ResolutionStrategy,
	})
	return nil
}

// ListConflicts returns records referencing the rule id, newest first.
func (s *SQLiteStore) ListConflicts(ctx context.Context, ruleID string) ([]*ConflictRecord, error) {
	return listConflicts(ctx, s.db, ruleID)
}

type conflictQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listConflicts(ctx context.Context, q conflictQuerier, ruleID string) ([]*ConflictRecord, error) {
	rows, err := q.QueryContext(ctx, `
        SELECT id, conflicting_rule_ids, detected_at, witness, resolution_strategy,
            winning_rule_id, losing_rule_ids, resolved_at, unresolved
        FROM conflicts ORDER BY detected_at DESC`)
	if err != nil {
		return nil, &StorageError{Backend: "sqlite", Operation: "list conflicts", Cause: err}
	}
	defer rows.Close()

	var out []*ConflictRecord
	for rows.Next() {
		var (
			rec        ConflictRecord
			ids        string
			witness    string
			losers     string
			resolvedAt sql.NullTime
		)
		if err := rows.Scan(&rec.ID, &ids, &rec.DetectedAt, &witness, &rec.ResolutionStrategy,
			&rec.WinningRuleID, &losers, &resolvedAt, &rec.Unresolved); err != nil {
			return nil, &StorageError{Backend: "sqlite", Operation: "scan conflict", Cause: err}
		}
		if err := json.Unmarshal([]byte(ids), &rec.ConflictingRuleIDs); err != nil {
			return nil, &StorageError{Backend: "sqlite", Operation: "unmarshal conflict", Cause: err}
		}
		if err := json.Unmarshal([]byte(losers), &rec.LosingRuleIDs); err != nil {
			return nil, &StorageError{Backend: "sqlite", Operation: "unmarshal conflict", Cause: err}
		}
		if witness != "" && witness != "null" {
			if err := json.Unmarshal([]byte(witness), &rec.Witness); err != nil {
				return nil, &StorageError{Backend: "sqlite", Operation: "unmarshal witness", Cause: err}
			}
		}
		if resolvedAt.Valid {
			rec.ResolvedAt = resolvedAt.Time
		}
		if ruleID != "" && !containsString(rec.ConflictingRuleIDs, ruleID) {
			continue
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// Promote activates the given verified rules and materializes the next
// generation atomically.
func (s *SQLiteStore) Promote(ctx context.Context, keys []Key, expectedGen uint64, actor string) (*ActiveRuleSet, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &StorageError{Backend: "sqlite", Operation: "begin", Cause: err}
	}
	defer tx.Rollback()

	current, err := currentGenerationTx(ctx, tx)
	if err != nil {
		return nil, err
	}
	if current != expectedGen {
		return nil, ErrGenerationConflict
	}

	conflicts, err := listConflicts(ctx, tx, "")
	if err != nil {
		return nil, err
	}

	for _, key := range keys {
		row := tx.QueryRowContext(ctx, selectRule+" WHERE id = ? AND version = ?", key.ID, key.Version)
		rule, err := scanRule(row)
		if err != nil {
			return nil, err
		}
		if rule.Status != StatusVerified {
			return nil, &PromotionError{Key: key, Reason: fmt.Sprintf("status is %s, want %s", rule.Status, StatusVerified)}
		}
		for _, rec := range conflicts {
			if rec.Unresolved && containsString(rec.ConflictingRuleIDs, key.ID) {
				return nil, &PromotionError{Key: key, Reason: fmt.Sprintf("unresolved conflict %s references the rule", rec.ID)}
			}
			if containsString(rec.LosingRuleIDs, key.ID) {
				return nil, &PromotionError{Key: key, Reason: fmt.Sprintf("rule lost conflict %s", rec.ID)}
			}
		}
	}

	for _, key := range keys {
		if _, err := s.transitionTx(ctx, tx, key, StatusActive, "", actor); err != nil {
			return nil, err
		}
	}

	snapshot, err := s.materializeTx(ctx, tx, current+1, actor, "promotion")
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, &StorageError{Backend: "sqlite", Operation: "commit", Cause: err}
	}
	return snapshot, nil
}

func (s *SQLiteStore) materializeTx(ctx context.Context, tx *sql.Tx, gen uint64, actor, cause string) (*ActiveRuleSet, error) {
	rows, err := tx.QueryContext(ctx, selectRule+" WHERE status = ? ORDER BY id", StatusActive)
	if err != nil {
		return nil, &StorageError{Backend: "sqlite", Operation: "materialize", Cause: err}
	}
	defer rows.Close()

	var active []*PolicyRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		active = append(active, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Backend: "sqlite", Operation: "materialize", Cause: err}
	}

	snapshot := &ActiveRuleSet{
		Generation: gen,
		Rules:      active,
		PromotedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(snapshot.Rules)
	if err != nil {
		return nil, &StorageError{Backend: "sqlite", Operation: "marshal generation", Cause: err}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO generations (generation, rules, promoted_at) VALUES (?, ?, ?)",
		snapshot.Generation, string(payload), snapshot.PromotedAt); err != nil {
		// A unique-constraint failure means another writer took this
		// generation between our check and insert.
		return nil, ErrGenerationConflict
	}

	s.auditor.Record(audit.Event{
		EntityType: audit.EntityGeneration,
		EntityID:   fmt.Sprintf("%d", snapshot.Generation),
		ToStatus:   "current",
		Actor:      actor,
		Detail:     fmt.Sprintf("%s, %d rules", cause, len(active)),
	})
	return snapshot, nil
}

// CurrentGeneration returns the newest generation number.
func (s *SQLiteStore) CurrentGeneration(ctx context.Context) (uint64, error) {
	var gen sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT MAX(generation) FROM generations").Scan(&gen)
	if err != nil {
		return 0, &StorageError{Backend: "sqlite", Operation: "current generation", Cause: err}
	}
	return uint64(gen.Int64), nil
}

func currentGenerationTx(ctx context.Context, tx *sql.Tx) (uint64, error) {
	var gen sql.NullInt64
	err := tx.QueryRowContext(ctx, "SELECT MAX(generation) FROM generations").Scan(&gen)
	if err != nil {
		return 0, &StorageError{Backend: "sqlite", Operation: "current generation", Cause: err}
	}
	return uint64(gen.Int64), nil
}

// GetGeneration returns a specific snapshot.
func (s *SQLiteStore) GetGeneration(ctx context.Context, gen uint64) (*ActiveRuleSet, error) {
	var (
		payload    string
		promotedAt time.Time
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT rules, promoted_at FROM generations WHERE generation = ?", gen).
		Scan(&payload, &promotedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGenerationNotFound
	}
	if err != nil {
		return nil, &StorageError{Backend: "sqlite", Operation: "get generation", Cause: err}
	}

	snapshot := &ActiveRuleSet{Generation: gen, PromotedAt: promotedAt}
	if err := json.Unmarshal([]byte(payload), &snapshot.Rules); err != nil {
		return nil, &StorageError{Backend: "sqlite", Operation: "unmarshal generation", Cause: err}
	}
	return snapshot, nil
}

// Rollback re-materializes a retained snapshot as the next generation.
func (s *SQLiteStore) Rollback(ctx context.Context, toGen uint64, actor string) (*ActiveRuleSet, error) {
	target, err := s.GetGeneration(ctx, toGen)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &StorageError{Backend: "sqlite", Operation: "begin", Cause: err}
	}
	defer tx.Rollback()

	current, err := currentGenerationTx(ctx, tx)
	if err != nil {
		return nil, err
	}

	inTarget := make(map[Key]bool, len(target.Rules))
	for _, rule := range target.Rules {
		inTarget[rule.Key()] = true
	}

	rows, err := tx.QueryContext(ctx, "SELECT id, version FROM rules WHERE status = ?", StatusActive)
	if err != nil {
		return nil, &StorageError{Backend: "sqlite", Operation: "rollback", Cause: err}
	}
	var activeKeys []Key
	for rows.Next() {
		var key Key
		if err := rows.Scan(&key.ID, &key.Version); err != nil {
			rows.Close()
			return nil, &StorageError{Backend: "sqlite", Operation: "rollback", Cause: err}
		}
		activeKeys = append(activeKeys, key)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Backend: "sqlite", Operation: "rollback", Cause: err}
	}

	for _, key := range activeKeys {
		if !inTarget[key] {
			if _, err := s.transitionTx(ctx, tx, key, StatusSuperseded,
				fmt.Sprintf("rolled back to generation %d", toGen), actor); err != nil {
				return nil, err
			}
		}
	}
	for key := range inTarget {
		if _, err := tx.ExecContext(ctx,
			"UPDATE rules SET status = ? WHERE id = ? AND version = ? AND status != ?",
			StatusActive, key.ID, key.Version, StatusActive); err != nil {
			return nil, &StorageError{Backend: "sqlite", Operation: "rollback", Cause: err}
		}
	}

	snapshot, err := s.materializeTx(ctx, tx, current+1, actor, fmt.Sprintf("rollback to %d", toGen))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, &StorageError{Backend: "sqlite", Operation: "commit", Cause: err}
	}
	return snapshot, nil
}

// PruneGenerations drops superseded snapshots beyond the newest keep.
func (s *SQLiteStore) PruneGenerations(ctx context.Context, keep int) (int, error) {
	if keep < 1 {
		keep = 1
	}
	current, err := s.CurrentGeneration(ctx)
	if err != nil {
		return 0, err
	}
	if current <= uint64(keep) {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM generations WHERE generation <= ?", current-uint64(keep))
	if err != nil {
		return 0, &StorageError{Backend: "sqlite", Operation: "prune generations", Cause: err}
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

const selectRule = `SELECT id, version, source_principle_ids, body, effect, scope, origin,
    confidence, low_confidence, vacuous_pass, status, verification_feedback,
    synthesized_at, verified_at FROM rules`

func marshalRuleFields(rule *PolicyRule) (body, sourceIDs, scope string, err error) {
	b, err := json.Marshal(rule.Body)
	if err != nil {
		return "", "", "", &StorageError{Backend: "sqlite", Operation: "marshal body", Cause: err}
	}
	ids, err := json.Marshal(rule.SourcePrincipleIDs)
	if err != nil {
		return "", "", "", &StorageError{Backend: "sqlite", Operation: "marshal source ids", Cause: err}
	}
	sc, err := json.Marshal(rule.Scope)
	if err != nil {
		return "", "", "", &StorageError{Backend: "sqlite", Operation: "marshal scope", Cause: err}
	}
	return string(b), string(ids), string(sc), nil
}

type ruleScanner interface {
	Scan(dest ...any) error
}

func scanRule(row ruleScanner) (*PolicyRule, error) {
	var (
		rule       PolicyRule
		body       string
		sourceIDs  string
		scope      string
		verifiedAt sql.NullTime
	)
	err := row.Scan(&rule.ID, &rule.Version, &sourceIDs, &body, &rule.Effect, &scope,
		&rule.Origin, &rule.Confidence, &rule.LowConfidence, &rule.VacuousPass,
		&rule.Status, &rule.VerificationFeedback, &rule.SynthesizedAt, &verifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRuleNotFound
	}
	if err != nil {
		return nil, &StorageError{Backend: "sqlite", Operation: "scan rule", Cause: err}
	}
	if err := json.Unmarshal([]byte(sourceIDs), &rule.SourcePrincipleIDs); err != nil {
		return nil, &StorageError{Backend: "sqlite", Operation: "unmarshal source ids", Cause: err}
	}
	if err := json.Unmarshal([]byte(scope), &rule.Scope); err != nil {
		return nil, &StorageError{Backend: "sqlite", Operation: "unmarshal scope", Cause: err}
	}
	if body != "" && body != "null" {
		if err := json.Unmarshal([]byte(body), &rule.Body); err != nil {
			return nil, &StorageError{Backend: "sqlite", Operation: "unmarshal body", Cause: err}
		}
	}
	if verifiedAt.Valid {
		rule.VerifiedAt = verifiedAt.Time
	}
	return &rule, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
