// Package synclog records sync history: one row per completed or failed
// sync run, plus one row per item touched, so `ipodsync history` can
// report what happened without replaying the executor (SPEC_FULL.md §3
// supplement, grounded in internal/database/database.go's sqlite
// table-creation idiom).
package synclog

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is a sqlite-backed append-only log of sync runs.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sync history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("synclog: opening %s: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) createTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at INTEGER NOT NULL,
			finished_at INTEGER,
			status TEXT NOT NULL,
			added INTEGER DEFAULT 0,
			removed INTEGER DEFAULT 0,
			updated INTEGER DEFAULT 0,
			error TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("synclog: creating runs table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS run_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id INTEGER NOT NULL,
			fingerprint TEXT NOT NULL,
			action TEXT NOT NULL,
			detail TEXT,
			FOREIGN KEY (run_id) REFERENCES runs(id)
		)
	`)
	if err != nil {
		return fmt.Errorf("synclog: creating run_items table: %w", err)
	}
	return nil
}

// Status values a run can end in.
const (
	StatusRunning    = "running"
	StatusCommitted  = "committed"
	StatusRolledBack = "rolled_back"
	StatusFailed     = "failed"
)

// Run is one sync execution.
type Run struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string
	Added      int
	Removed    int
	Updated    int
	Error      string
}

// Item is one action taken within a run.
type Item struct {
	RunID       int64
	Fingerprint string
	Action      string
	Detail      string
}

// BeginRun inserts a new running row and returns its id.
func (s *Store) BeginRun(startedAt time.Time) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO runs (started_at, status) VALUES (?, ?)`,
		startedAt.Unix(), StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("synclog: beginning run: %w", err)
	}
	return res.LastInsertId()
}

// LogItem appends one per-item record to a run.
func (s *Store) LogItem(item Item) error {
	_, err := s.db.Exec(
		`INSERT INTO run_items (run_id, fingerprint, action, detail) VALUES (?, ?, ?, ?)`,
		item.RunID, item.Fingerprint, item.Action, item.Detail,
	)
	if err != nil {
		return fmt.Errorf("synclog: logging item: %w", err)
	}
	return nil
}

// FinishRun stamps a run's terminal status and counters.
func (s *Store) FinishRun(runID int64, finishedAt time.Time, status string, added, removed, updated int, syncErr error) error {
	errText := ""
	if syncErr != nil {
		errText = syncErr.Error()
	}
	_, err := s.db.Exec(
		`UPDATE runs SET finished_at = ?, status = ?, added = ?, removed = ?, updated = ?, error = ? WHERE id = ?`,
		finishedAt.Unix(), status, added, removed, updated, errText, runID,
	)
	if err != nil {
		return fmt.Errorf("synclog: finishing run %d: %w", runID, err)
	}
	return nil
}

// RecentRuns returns up to limit runs, most recent first.
func (s *Store) RecentRuns(limit int) ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT id, started_at, finished_at, status, added, removed, updated, error
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("synclog: querying runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var startedAt int64
		var finishedAt sql.NullInt64
		var errText sql.NullString
		if err := rows.Scan(&r.ID, &startedAt, &finishedAt, &r.Status, &r.Added, &r.Removed, &r.Updated, &errText); err != nil {
			return nil, fmt.Errorf("synclog: scanning run: %w", err)
		}
		r.StartedAt = time.Unix(startedAt, 0).UTC()
		if finishedAt.Valid {
			t := time.Unix(finishedAt.Int64, 0).UTC()
			r.FinishedAt = &t
		}
		r.Error = errText.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// ItemsForRun returns every item logged against runID.
func (s *Store) ItemsForRun(runID int64) ([]Item, error) {
	rows, err := s.db.Query(
		`SELECT run_id, fingerprint, action, detail FROM run_items WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("synclog: querying items: %w", err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		var detail sql.NullString
		if err := rows.Scan(&it.RunID, &it.Fingerprint, &it.Action, &detail); err != nil {
			return nil, fmt.Errorf("synclog: scanning item: %w", err)
		}
		it.Detail = detail.String
		out = append(out, it)
	}
	return out, rows.Err()
}
