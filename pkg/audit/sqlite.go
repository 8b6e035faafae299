package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"sentrix-hq/charon/pkg/pipeline"
)

// schema creates the audit table. The full outcome is stored as JSON with
// the queryable columns lifted out for indexing.
const schema = `
CREATE TABLE IF NOT EXISTS audit_records (
	request_id   TEXT PRIMARY KEY,
	recorded_at  INTEGER NOT NULL,
	mode         TEXT NOT NULL,
	outcome      TEXT NOT NULL,
	failure_stage TEXT NOT NULL DEFAULT '',
	payload      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_recorded_at ON audit_records(recorded_at);
`

// SQLiteConfig configures the SQLite audit backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns bounds the connection pool (default 10).
	MaxOpenConns int

	// BusyTimeout is how long to wait on a locked database (default 5s).
	BusyTimeout time.Duration
}

// SQLiteStore is the durable audit backend.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the audit database and prepares the
// schema. WAL mode is always enabled for concurrent readers.
func NewSQLiteStore(config SQLiteConfig, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MaxOpenConns <= 0 {
		config.MaxOpenConns = 10
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = 5 * time.Second
	}

	db, err := sql.Open(driverName, config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database %q: %w", config.Path, err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)

	s := &SQLiteStore{
		db:     db,
		logger: logger.With("component", "audit.sqlite"),
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", config.BusyTimeout.Milliseconds())); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create audit schema: %w", err)
	}

	s.logger.Info("audit store initialized", "path", config.Path)
	return s, nil
}

// Record persists one outcome.
func (s *SQLiteStore) Record(ctx context.Context, outcome *pipeline.Outcome) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}

	decisionOutcome := ""
	if outcome.Decision != nil {
		decisionOutcome = string(outcome.Decision.Outcome)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO audit_records
			(request_id, recorded_at, mode, outcome, failure_stage, payload)
		VALUES (?, ?, ?, ?, ?, ?)`,
		outcome.RequestID,
		time.Now().UnixMilli(),
		string(outcome.Mode),
		decisionOutcome,
		string(outcome.FailureStage),
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// Get returns the record for a request ID, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, requestID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT request_id, recorded_at, payload
		FROM audit_records WHERE request_id = ?`, requestID)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return rec, err
}

// List returns the most recent records, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT request_id, recorded_at, payload
		FROM audit_records ORDER BY recorded_at DESC, request_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Count returns the number of stored records.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_records`).Scan(&n)
	return n, err
}

// PruneBefore deletes records recorded before cutoff.
func (s *SQLiteStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM audit_records WHERE recorded_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit records: %w", err)
	}
	return res.RowsAffected()
}

// PruneToCount deletes the oldest records until at most max remain.
func (s *SQLiteStore) PruneToCount(ctx context.Context, max int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM audit_records WHERE request_id IN (
			SELECT request_id FROM audit_records
			ORDER BY recorded_at DESC, request_id DESC
			LIMIT -1 OFFSET ?
		)`, max)
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit records: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// rowScanner matches *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord decodes one audit row.
func scanRecord(row rowScanner) (*Record, error) {
	var (
		requestID  string
		recordedAt int64
		payload    string
	)
	if err := row.Scan(&requestID, &recordedAt, &payload); err != nil {
		return nil, err
	}

	var outcome pipeline.Outcome
	if err := json.Unmarshal([]byte(payload), &outcome); err != nil {
		return nil, fmt.Errorf("failed to decode audit payload for %q: %w", requestID, err)
	}

	return &Record{
		RequestID:  requestID,
		RecordedAt: time.UnixMilli(recordedAt),
		Outcome:    &outcome,
	}, nil
}
