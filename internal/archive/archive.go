// Package archive persists emitted log records to a SQLite journal so recent
// activity can be inspected after the fact (see the tail command). A Store
// plugs into a logging.Manager as an event sink; inserts happen on a
// background goroutine so emission never waits on the database.
package archive

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"logkit/internal/logging"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; stale databases are rejected rather than migrated.
const schemaVersion = 1

// timeLayout pads fractional seconds to a fixed width so the ts column
// compares correctly as text. RFC3339Nano trims trailing zeros, which
// misorders sub-second boundaries under string comparison.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Record is one archived log event.
type Record struct {
	ID      int64
	Time    time.Time
	Level   string
	Service string
	TraceID string
	Source  string
	Message string
}

// Store is a SQLite-backed journal of log events.
type Store struct {
	db   *sql.DB
	path string

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []logging.Event
	pending int
	closed  bool
	done    chan struct{}
}

// Open connects to (or creates) the archive database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	s := &Store{db: db, path: path, done: make(chan struct{})}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.cond = sync.NewCond(&s.mu)
	go s.pump()
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	var version sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case version.Int64 != schemaVersion:
		return fmt.Errorf("archive schema version %d, expected %d (delete %s to reset)", version.Int64, schemaVersion, s.path)
	}
	return nil
}

// Append queues one event for insertion. It satisfies logging.EventSink and
// returns before the row is written.
func (s *Store) Append(evt logging.Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, evt)
	s.pending++
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *Store) pump() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.closed {
			s.mu.Unlock()
			close(s.done)
			return
		}
		evt := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		_, _ = s.db.Exec(
			"INSERT INTO log_events (ts, level, service, trace_id, source, message) VALUES (?, ?, ?, ?, ?, ?)",
			evt.Time.UTC().Format(timeLayout), evt.Level, evt.Service, evt.TraceID, evt.Source, evt.Message,
		)

		s.mu.Lock()
		s.pending--
		if s.pending == 0 {
			s.cond.Broadcast()
		}
		s.mu.Unlock()
	}
}

// Flush blocks until every queued event has been inserted.
func (s *Store) Flush() {
	s.mu.Lock()
	for s.pending > 0 && !s.closed {
		s.cond.Wait()
	}
	s.mu.Unlock()
}

// Close drains the queue and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
	<-s.done
	return s.db.Close()
}

// Tail returns the most recent limit records, newest first.
func (s *Store) Tail(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, ts, level, service, trace_id, source, message FROM log_events ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query tail: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Since returns records at or after the given instant, oldest first.
func (s *Store) Since(ctx context.Context, t time.Time, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, ts, level, service, trace_id, source, message FROM log_events WHERE ts >= ? ORDER BY id ASC LIMIT ?",
		t.UTC().Format(timeLayout), limit)
	if err != nil {
		return nil, fmt.Errorf("query since: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		var rec Record
		var ts string
		if err := rows.Scan(&rec.ID, &ts, &rec.Level, &rec.Service, &rec.TraceID, &rec.Source, &rec.Message); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if parsed, err := time.Parse(timeLayout, ts); err == nil {
			rec.Time = parsed
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}
