package journal

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite writes journal events to a local SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a journal database.
// DSN format:
//   - "sqlite:///path/to/file.db"
//   - "/path/to/file.db" (without prefix)
//   - ":memory:" (in-memory, tests only)
func OpenSQLite(dsn string) (*SQLite, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty sqlite DSN")
	}
	if strings.HasPrefix(strings.ToLower(dsn), "sqlite://") {
		dsn = strings.TrimPrefix(dsn, "sqlite://")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	s := &SQLite{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) ensureSchema(ctx context.Context) error {
	// Append-only audit table, no primary key.
	stmt := `CREATE TABLE IF NOT EXISTS lifecycle_events(
		occurred_at TIMESTAMP NOT NULL,
		run_id TEXT NOT NULL,
		event TEXT NOT NULL,
		port INTEGER NOT NULL DEFAULT 0,
		pid INTEGER NOT NULL DEFAULT 0,
		detail TEXT
	);`
	_, err := s.db.ExecContext(ctx, stmt)
	return err
}

// Record appends one event. A full disk or locked database must not take
// the shell down, so callers treat errors as diagnostics.
func (s *SQLite) Record(ctx context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lifecycle_events(occurred_at, run_id, event, port, pid, detail) VALUES(?,?,?,?,?,?)`,
		e.OccurredAt.UTC(), e.RunID, string(e.Type), e.Port, e.PID, e.Detail,
	)
	return err
}

// Recent returns up to limit events for the given run, newest first.
// An empty runID returns events across all runs.
func (s *SQLite) Recent(ctx context.Context, runID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT occurred_at, run_id, event, port, pid, COALESCE(detail,'')
		FROM lifecycle_events`
	args := make([]any, 0, 2)
	if runID != "" {
		q += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	q += ` ORDER BY occurred_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Event
	for rows.Next() {
		var e Event
		var typ string
		if err := rows.Scan(&e.OccurredAt, &e.RunID, &typ, &e.Port, &e.PID, &e.Detail); err != nil {
			return nil, err
		}
		e.Type = EventType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error { return s.db.Close() }
