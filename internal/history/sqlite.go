// Package history persists build reports in a local SQLite database so past
// runs can be listed after the process exits.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/scheduler"
)

// Record is one stored build.
type Record struct {
	ID        string
	Entry     string
	Outcome   scheduler.Outcome
	Error     string
	StartedAt time.Time
	Duration  time.Duration
	Tasks     []scheduler.TaskResult
}

// Store implements build history using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens or creates the database at path. Use ":memory:" for an
// in-memory store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryHistory, "create history directory").
				WithContext("path", path).Build()
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryHistory, "open history database").
			WithContext("path", path).Build()
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, ferrors.WrapError(err, ferrors.CategoryHistory, "initialize history schema").Build()
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		entry TEXT NOT NULL,
		outcome TEXT NOT NULL,
		error TEXT,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		tasks TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_builds_started_at ON builds(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append stores a finished report.
func (s *Store) Append(ctx context.Context, r *scheduler.Report) error {
	if r == nil {
		return nil
	}
	tasks, err := json.Marshal(r.Tasks)
	if err != nil {
		return fmt.Errorf("marshal tasks: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO builds (id, entry, outcome, error, started_at, duration_ms, tasks) VALUES (?, ?, ?, ?, ?, ?, ?)",
		r.BuildID, r.Entry, string(r.Outcome), r.Error, r.Start.UnixMilli(), r.Duration().Milliseconds(), string(tasks),
	)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryHistory, "insert build").WithContext("build_id", r.BuildID).Build()
	}
	return nil
}

// Recent returns up to n builds, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Record, error) {
	if n <= 0 {
		n = 20
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, entry, outcome, error, started_at, duration_ms, tasks FROM builds ORDER BY started_at DESC, rowid DESC LIMIT ?",
		n,
	)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryHistory, "query builds").Build()
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec                   Record
			outcome, tasks        string
			errText               sql.NullString
			startedMS, durationMS int64
		)
		if err := rows.Scan(&rec.ID, &rec.Entry, &outcome, &errText, &startedMS, &durationMS, &tasks); err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}
		rec.Outcome = scheduler.Outcome(outcome)
		rec.Error = errText.String
		rec.StartedAt = time.UnixMilli(startedMS)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		if err := json.Unmarshal([]byte(tasks), &rec.Tasks); err != nil {
			return nil, fmt.Errorf("unmarshal tasks: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// Prune keeps the newest keep builds and deletes the rest.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM builds WHERE id NOT IN (SELECT id FROM builds ORDER BY started_at DESC, rowid DESC LIMIT ?)",
		keep,
	)
	if err != nil {
		return 0, ferrors.WrapError(err, ferrors.CategoryHistory, "prune builds").Build()
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Observer persists every completed sequence. Failures to write are logged
// and never affect the build.
type Observer struct {
	Store  *Store
	Logger *slog.Logger
}

func (o *Observer) OnTaskStart(string, string)                  {}
func (o *Observer) OnTaskComplete(string, scheduler.TaskResult) {}

func (o *Observer) OnSequenceComplete(r *scheduler.Report) {
	if err := o.Store.Append(context.Background(), r); err != nil {
		log := o.Logger
		if log == nil {
			log = slog.Default()
		}
		log.Warn("Could not record build history", logfields.BuildID(r.BuildID), logfields.Error(err))
	}
}
