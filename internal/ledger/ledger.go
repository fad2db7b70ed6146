// Package ledger records load runs in a local SQLite file so reruns can be
// audited and unchanged extracts skipped.
//
// One row per dataset per run. A run is recorded as "staged" once its rows
// are in the staging relation, and promoted to "merged" only after the merge
// transaction commits. A run that staged rows but never merged (partial
// extract, merge failure) therefore stays "staged" forever, and the next full
// rerun of the same dataset is the remediation path: merge idempotence makes
// re-applying the same rows harmless.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Run is one recorded dataset load.
type Run struct {
	ID       int64
	Dataset  string
	FileHash string
	Staged   int64
	Updated  int64
	Inserted int64
	Status   string // "staged" or "merged"
	Started  time.Time
	Finished time.Time
}

// Ledger is a handle on the run history database.
type Ledger struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  dataset TEXT NOT NULL,
  file_hash TEXT NOT NULL,
  staged INTEGER NOT NULL DEFAULT 0,
  updated INTEGER NOT NULL DEFAULT 0,
  inserted INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL,
  started_at TIMESTAMP NOT NULL,
  finished_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS runs_dataset_idx ON runs (dataset, id)`

// Open opens (creating if needed) the ledger database at path.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close releases the underlying database handle.
func (l *Ledger) Close() error { return l.db.Close() }

// MarkStaged records a new run for dataset with its staged row count and
// returns the run id for the later MarkMerged call.
func (l *Ledger) MarkStaged(ctx context.Context, dataset, fileHash string, staged int64) (int64, error) {
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (dataset, file_hash, staged, status, started_at) VALUES (?, ?, ?, 'staged', ?)`,
		dataset, fileHash, staged, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("ledger mark staged %s: %w", dataset, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("ledger run id %s: %w", dataset, err)
	}
	return id, nil
}

// MarkMerged promotes a staged run to merged with its affected-row counts.
func (l *Ledger) MarkMerged(ctx context.Context, runID, updated, inserted int64) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET updated = ?, inserted = ?, status = 'merged', finished_at = ? WHERE id = ? AND status = 'staged'`,
		updated, inserted, time.Now().UTC(), runID,
	)
	if err != nil {
		return fmt.Errorf("ledger mark merged run %d: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ledger mark merged run %d: %w", runID, err)
	}
	if n == 0 {
		return fmt.Errorf("ledger mark merged run %d: no staged run with that id", runID)
	}
	return nil
}

// LastMerged returns the most recent merged run for dataset, or (nil, nil)
// when the dataset has never merged. Staged-only runs are ignored: an
// unmerged stage must not suppress a rerun.
func (l *Ledger) LastMerged(ctx context.Context, dataset string) (*Run, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, dataset, file_hash, staged, updated, inserted, status, started_at, finished_at
		   FROM runs WHERE dataset = ? AND status = 'merged' ORDER BY id DESC LIMIT 1`,
		dataset,
	)
	var r Run
	var finished sql.NullTime
	err := row.Scan(&r.ID, &r.Dataset, &r.FileHash, &r.Staged, &r.Updated, &r.Inserted, &r.Status, &r.Started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger last merged %s: %w", dataset, err)
	}
	if finished.Valid {
		r.Finished = finished.Time
	}
	return &r, nil
}
