// Package history persists completed run results so consecutive runs
// can be compared. Nothing is written until a run has finished.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"cruft/internal/engine/issues"
)

const driverName = "sqlite"

type Store struct {
	path string
	db   *sql.DB
}

// Run is one persisted row.
type Run struct {
	ID          string
	CreatedAt   time.Time
	Processed   int
	Total       int
	IssueCounts map[string]int
}

// TotalIssues sums the per-type counts.
func (r *Run) TotalIssues() int {
	n := 0
	for _, count := range r.IssueCounts {
		n += count
	}
	return n
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordRun stores a completed report.
func (s *Store) RecordRun(report *issues.Report) error {
	counts, err := json.Marshal(report.CountsByType())
	if err != nil {
		return fmt.Errorf("marshal issue counts: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO runs (id, created_at, processed, total, issue_counts) VALUES (?, ?, ?, ?, ?)`,
		report.RunID,
		time.Now().Unix(),
		report.Counters.Processed,
		report.Counters.Total,
		string(counts),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// LastRun returns the most recent recorded run, or nil when the store
// is empty.
func (s *Store) LastRun() (*Run, error) {
	return s.lastRunBefore("")
}

// PreviousRun returns the newest run whose ID differs from the given
// one, for trend deltas.
func (s *Store) PreviousRun(excludeID string) (*Run, error) {
	return s.lastRunBefore(excludeID)
}

func (s *Store) lastRunBefore(excludeID string) (*Run, error) {
	query := `SELECT id, created_at, processed, total, issue_counts FROM runs`
	args := []any{}
	if excludeID != "" {
		query += ` WHERE id != ?`
		args = append(args, excludeID)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT 1`

	row := s.db.QueryRow(query, args...)
	var run Run
	var createdAt int64
	var counts string
	if err := row.Scan(&run.ID, &createdAt, &run.Processed, &run.Total, &counts); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.CreatedAt = time.Unix(createdAt, 0)
	if err := json.Unmarshal([]byte(counts), &run.IssueCounts); err != nil {
		return nil, fmt.Errorf("unmarshal issue counts: %w", err)
	}
	return &run, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	processed INTEGER NOT NULL,
	total INTEGER NOT NULL,
	issue_counts TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs (created_at);
`)
	return err
}
