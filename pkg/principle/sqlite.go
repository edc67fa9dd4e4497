package principle

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// sqliteSchema creates the principle tables. Writes are keyed by
// (id, version) so replays of the same version are no-ops.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS principles (
    id TEXT NOT NULL,
    version INTEGER NOT NULL,
    status TEXT NOT NULL,
    priority_weight REAL NOT NULL,
    scope TEXT NOT NULL,
    category TEXT NOT NULL,
    normative_statement TEXT NOT NULL,
    constraints TEXT NOT NULL,
    rationale TEXT,
    created_at TIMESTAMP NOT NULL,
    prev_version INTEGER NOT NULL,
    PRIMARY KEY (id, version)
);

CREATE INDEX IF NOT EXISTS idx_principles_status ON principles(status);
`

// SQLiteConfig configures the SQLite principle store.
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
		Path:        "data/principles.db",
		BusyTimeout: 5 * time.Second,
	}
}

// SQLiteStore is the durable principle store.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (and if needed initializes) the principle database.
func NewSQLiteStore(cfg *SQLiteConfig, logger *slog.Logger) (*SQLiteStore, error) {
	if cfg == nil {
		cfg = DefaultSQLiteConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, &StorageError{Backend: "sqlite", Operation: "open", Cause: err}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds())); err != nil {
		db.Close()
		return nil, &StorageError{Backend: "sqlite", Operation: "pragma", Cause: err}
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, &StorageError{Backend: "sqlite", Operation: "pragma", Cause: err}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, &StorageError{Backend: "sqlite", Operation: "init schema", Cause: err}
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "principle.store"),
	}, nil
}

// Create writes version 1 of a new principle and activates it.
func (s *SQLiteStore) Create(ctx context.Context, in Input) (*Principle, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	p := fromInput(uuid.NewString(), 1, 0, in)
	if err := s.insert(ctx, s.db, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Amend writes a new active version and archives the prior active one in a
// single transaction.
func (s *SQLiteStore) Amend(ctx context.Context, id string, in Input) (*Principle, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &StorageError{Backend: "sqlite", Operation: "begin", Cause: err}
	}
	defer tx.Rollback()

	var latest sql.NullInt64
	err = tx.QueryRowContext(ctx, "SELECT MAX(version) FROM principles WHERE id = ?", id).Scan(&latest)
	if err != nil {
		return nil, &StorageError{Backend: "sqlite", Operation: "select latest", Cause: err}
	}
	if !latest.Valid || latest.Int64 == 0 {
		return nil, ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE principles SET status = ? WHERE id = ? AND status = ?",
		StatusArchived, id, StatusActive); err != nil {
		return nil, &StorageError{Backend: "sqlite", Operation: "archive prior", Cause: err}
	}

	p := fromInput(id, int(latest.Int64)+1, int(latest.Int64), in)
	if err := s.insert(ctx, tx, p); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, &StorageError{Backend: "sqlite", Operation: "commit", Cause: err}
	}
	return p, nil
}

// Get returns a specific version.
func (s *SQLiteStore) Get(ctx context.Context, id string, version int) (*Principle, error) {
	row := s.db.QueryRowContext(ctx,
		selectColumns+" WHERE id = ? AND version = ?", id, version)
	return scanPrinciple(row)
}

// GetActive returns the active version of a principle id.
func (s *SQLiteStore) GetActive(ctx context.Context, id string) (*Principle, error) {
	row := s.db.QueryRowContext(ctx,
		selectColumns+" WHERE id = ? AND status = ?", id, StatusActive)
	return scanPrinciple(row)
}

// ListActive returns the active version of every principle, ordered by id.
func (s *SQLiteStore) ListActive(ctx context.Context) ([]*Principle, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+" WHERE status = ? ORDER BY id", StatusActive)
	if err != nil {
		return nil, &StorageError{Backend: "sqlite", Operation: "list", Cause: err}
	}
	defer rows.Close()

	var out []*Principle
	for rows.Next() {
		p, err := scanPrinciple(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Archive retires the active version of a principle.
func (s *SQLiteStore) Archive(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE principles SET status = ? WHERE id = ? AND status = ?",
		StatusArchived, id, StatusActive)
	if err != nil {
		return &StorageError{Backend: "sqlite", Operation: "archive", Cause: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &StorageError{Backend: "sqlite", Operation: "archive", Cause: err}
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

const selectColumns = `SELECT id, version, status, priority_weight, scope, category,
    normative_statement, constraints, rationale, created_at, prev_version FROM principles`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) insert(ctx context.Context, db execer, p *Principle) error {
	scope, err := json.Marshal(p.Scope)
	if err != nil {
		return &StorageError{Backend: "sqlite", Operation: "marshal scope", Cause: err}
	}
	constraints, err := json.Marshal(p.Constraints)
	if err != nil {
		return &StorageError{Backend: "sqlite", Operation: "marshal constraints", Cause: err}
	}

	_, err = db.ExecContext(ctx, `
        INSERT INTO principles (id, version, status, priority_weight, scope, category,
            normative_statement, constraints, rationale, created_at, prev_version)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id, version) DO NOTHING`,
		p.ID, p.Version, p.Status, p.PriorityWeight, string(scope), p.Category,
		p.NormativeStatement, string(constraints), p.Rationale, p.CreatedAt, p.PrevVersion)
	if err != nil {
		return &StorageError{Backend: "sqlite", Operation: "insert", Cause: err}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrinciple(row rowScanner) (*Principle, error) {
	var (
		p           Principle
		scope       string
		constraints string
	)
	err := row.Scan(&p.ID, &p.Version, &p.Status, &p.PriorityWeight, &scope, &p.Category,
		&p.NormativeStatement, &constraints, &p.Rationale, &p.CreatedAt, &p.PrevVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StorageError{Backend: "sqlite", Operation: "scan", Cause: err}
	}
	if err := json.Unmarshal([]byte(scope), &p.Scope); err != nil {
		return nil, &StorageError{Backend: "sqlite", Operation: "unmarshal scope", Cause: err}
	}
	if err := json.Unmarshal([]byte(constraints), &p.Constraints); err != nil {
		return nil, &StorageError{Backend: "sqlite", Operation: "unmarshal constraints", Cause: err}
	}
	return &p, nil
}
