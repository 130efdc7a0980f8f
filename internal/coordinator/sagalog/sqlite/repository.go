// Package sqlite provides a SQLite-backed implementation of sagalog.Repository.
//
// The journal gets its own database file so that journal writes never wait
// behind an open order transaction.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jcmexdev/order-registration/internal/coordinator/sagalog"

	// Register the pure-Go SQLite driver as "sqlite".
	_ "modernc.org/sqlite"
)

// The table is append-only: each row is one transition. The latest row per
// saga_id is its current state.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS saga_log (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		saga_id      TEXT NOT NULL,
		status       TEXT NOT NULL,
		step         TEXT NOT NULL DEFAULT '',
		payload      TEXT,
		errors       TEXT NOT NULL DEFAULT '[]',
		trace_id     TEXT NOT NULL DEFAULT '',
		span_id      TEXT NOT NULL DEFAULT '',
		recorded_at  TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_saga_log_saga_id ON saga_log(saga_id, id)`,
	`CREATE INDEX IF NOT EXISTS idx_saga_log_trace_id ON saga_log(trace_id)`,
}

type Repository struct {
	db *sql.DB
}

var _ sagalog.Repository = (*Repository)(nil)

// Open opens (or creates) the journal database at path.
//
//	repo, err := sqlite.Open("./data/saga.db")
func Open(path string) (*Repository, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sagalog: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sagalog: apply schema: %w", err)
		}
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) Save(ctx context.Context, entry *sagalog.Entry) error {
	const q = `
		INSERT INTO saga_log
			(saga_id, status, step, payload, errors, trace_id, span_id, recorded_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?)`

	errs := entry.Errors
	if errs == nil {
		errs = []string{}
	}
	errJSON, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("sagalog: encode errors: %w", err)
	}

	res, err := r.db.ExecContext(ctx, q,
		entry.SagaID,
		string(entry.Status),
		entry.Step,
		nullableString(entry.Payload),
		string(errJSON),
		entry.TraceID,
		entry.SpanID,
		formatTime(entry.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("sagalog: save %s for %q: %w", entry.Status, entry.SagaID, err)
	}
	if id, err := res.LastInsertId(); err == nil {
		entry.ID = id
	}
	return nil
}

const selectEntries = `
	SELECT id, saga_id, status, step, COALESCE(payload, ''), errors, trace_id, span_id, recorded_at
	FROM   saga_log
	WHERE  saga_id = ?`

func (r *Repository) History(ctx context.Context, sagaID string) ([]sagalog.Entry, error) {
	rows, err := r.db.QueryContext(ctx, selectEntries+` ORDER BY id`, sagaID)
	if err != nil {
		return nil, fmt.Errorf("sagalog: history of %q: %w", sagaID, err)
	}
	defer rows.Close()

	var out []sagalog.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sagalog: history of %q: %w", sagaID, err)
	}
	return out, nil
}

func (r *Repository) Latest(ctx context.Context, sagaID string) (*sagalog.Entry, error) {
	row := r.db.QueryRowContext(ctx, selectEntries+` ORDER BY id DESC LIMIT 1`, sagaID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", sagalog.ErrNotFound, sagaID)
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*sagalog.Entry, error) {
	var (
		e          sagalog.Entry
		status     string
		errJSON    string
		recordedAt string
	)
	if err := s.Scan(&e.ID, &e.SagaID, &status, &e.Step, &e.Payload, &errJSON,
		&e.TraceID, &e.SpanID, &recordedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("sagalog: scan entry: %w", err)
	}
	e.Status = sagalog.Status(status)
	if err := json.Unmarshal([]byte(errJSON), &e.Errors); err != nil {
		return nil, fmt.Errorf("sagalog: decode errors: %w", err)
	}
	t, err := parseTime(recordedAt)
	if err != nil {
		return nil, err
	}
	e.RecordedAt = t
	return &e, nil
}

// nullableString keeps the payload column NULL on every row but STARTED.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
