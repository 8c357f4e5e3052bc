package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/okian/akut/internal/domain/model"
	"github.com/okian/akut/pkg/metrics"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	owner_id    TEXT NOT NULL,
	session_id  TEXT NOT NULL DEFAULT '',
	case_id     TEXT NOT NULL,
	score       REAL NOT NULL,
	created_at  INTEGER NOT NULL,
	doc         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_owner ON runs (owner_id, created_at);
CREATE INDEX IF NOT EXISTS runs_session ON runs (session_id, created_at);
CREATE INDEX IF NOT EXISTS runs_rank ON runs (case_id, score DESC, run_id);

CREATE TABLE IF NOT EXISTS session_events (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL,
	event_id    TEXT NOT NULL,
	t_rel_ms    INTEGER NOT NULL,
	doc         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS session_events_order ON session_events (session_id, t_rel_ms, seq);
CREATE UNIQUE INDEX IF NOT EXISTS session_events_id ON session_events (session_id, event_id);
`

// SQLiteStore persists runs and session events in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ Store    = (*SQLiteStore)(nil)
	_ EventLog = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens a SQLite database at path and creates the schema.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	s, err := NewSQLiteStoreDB(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStoreDB wraps an open database and creates the schema.
func NewSQLiteStoreDB(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func observeUpdate(start time.Time) {
	metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
}

func observeQuery(start time.Time) {
	metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
}

// Save implements Store.Save.
func (s *SQLiteStore) Save(ctx context.Context, run model.Run) error {
	if run.RunID == "" {
		return ErrInvalidID
	}
	defer observeUpdate(time.Now())

	doc, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, owner_id, session_id, case_id, score, created_at, doc)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (run_id) DO UPDATE SET
			owner_id = excluded.owner_id, session_id = excluded.session_id, case_id = excluded.case_id,
			score = excluded.score, created_at = excluded.created_at, doc = excluded.doc`,
		run.RunID, run.OwnerID, run.SessionID, run.CaseID, run.Summary.Score, run.CreatedAt.UnixNano(), string(doc),
	)
	if err != nil {
		metrics.RecordErrorByComponent("repository", "sqlite_write")
		return fmt.Errorf("insert run %s: %w", run.RunID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	metrics.UpdateRepositoryRecordsTotal(s.Count(ctx))
	return nil
}

// Get implements Store.Get.
func (s *SQLiteStore) Get(ctx context.Context, runID string) (model.Run, error) {
	defer observeQuery(time.Now())

	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM runs WHERE run_id = ?`, runID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, ErrNotFound
	}
	if err != nil {
		return model.Run{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	return decodeRun(doc)
}

// Delete implements Store.Delete.
func (s *SQLiteStore) Delete(ctx context.Context, runID string) error {
	defer observeUpdate(time.Now())

	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	return nil
}

// ListByOwner implements Store.ListByOwner.
func (s *SQLiteStore) ListByOwner(ctx context.Context, ownerID string, limit int) ([]model.Run, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	return s.listRuns(ctx,
		`SELECT doc FROM runs WHERE owner_id = ? ORDER BY created_at DESC, run_id ASC LIMIT ?`, ownerID, limit)
}

// ListBySession implements Store.ListBySession.
func (s *SQLiteStore) ListBySession(ctx context.Context, sessionID string) ([]model.Run, error) {
	return s.listRuns(ctx,
		`SELECT doc FROM runs WHERE session_id = ? ORDER BY created_at DESC, run_id ASC`, sessionID)
}

func (s *SQLiteStore) listRuns(ctx context.Context, query string, args ...any) ([]model.Run, error) {
	defer observeQuery(time.Now())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	out := []model.Run{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r, err := decodeRun(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TopN implements Store.TopN.
func (s *SQLiteStore) TopN(ctx context.Context, caseID string, n int) ([]Entry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}

	var (
		runs []model.Run
		err  error
	)
	if caseID == "" {
		runs, err = s.listRuns(ctx, `SELECT doc FROM runs ORDER BY score DESC, run_id ASC LIMIT ?`, n)
	} else {
		runs, err = s.listRuns(ctx,
			`SELECT doc FROM runs WHERE case_id = ? ORDER BY score DESC, run_id ASC LIMIT ?`, caseID, n)
	}
	if err != nil {
		return nil, err
	}

	out := make([]Entry, len(runs))
	for i, r := range runs {
		out[i] = entryFromRun(r)
	}
	assignRanksWithTies(out)
	return out, nil
}

// Count implements Store.Count. Errors count as zero.
func (s *SQLiteStore) Count(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Append implements EventLog.Append.
func (s *SQLiteStore) Append(ctx context.Context, sessionID string, ev model.SessionEvent) error {
	if sessionID == "" {
		return ErrInvalidID
	}
	defer observeUpdate(time.Now())

	doc, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO session_events (session_id, event_id, t_rel_ms, doc) VALUES (?, ?, ?, ?)`,
		sessionID, ev.ID, ev.TRelMs, string(doc))
	if err != nil {
		metrics.RecordErrorByComponent("repository", "sqlite_write")
		return fmt.Errorf("insert event: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrDuplicateEvent, sessionID, ev.ID)
	}
	return nil
}

// Events implements EventLog.Events.
func (s *SQLiteStore) Events(ctx context.Context, sessionID string) ([]model.SessionEvent, error) {
	defer observeQuery(time.Now())

	rows, err := s.db.QueryContext(ctx,
		`SELECT doc FROM session_events WHERE session_id = ? ORDER BY t_rel_ms ASC, seq ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	out := []model.SessionEvent{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var ev model.SessionEvent
		if err := json.Unmarshal([]byte(doc), &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func decodeRun(doc string) (model.Run, error) {
	var r model.Run
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		return model.Run{}, fmt.Errorf("decode run: %w", err)
	}
	return r, nil
}
