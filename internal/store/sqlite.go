// Package store keeps a history of completion runs in SQLite so reports
// outlive the process that produced them.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/agenthands/kgcomplete/internal/core"
	"github.com/agenthands/kgcomplete/internal/core/model"
)

// Store manages the SQLite connection and schema.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database at dbPath and migrates it.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	for _, pragma := range []string{"PRAGMA journal_mode=WAL;", "PRAGMA foreign_keys=ON;"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run %q: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		pair TEXT NOT NULL,
		ratio REAL NOT NULL,
		started_at TEXT NOT NULL,
		duration_ms INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_pair ON runs(pair, started_at);

	CREATE TABLE IF NOT EXISTS stage_counts (
		run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		stage TEXT NOT NULL,
		side TEXT NOT NULL,
		added INTEGER NOT NULL,
		PRIMARY KEY (run_id, stage, side)
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// StageRecord is the stored count of one stage.
type StageRecord struct {
	Stage  core.Stage         `json:"stage"`
	Counts map[model.Side]int `json:"counts"`
}

// RunRecord is one stored run.
type RunRecord struct {
	RunID      string        `json:"run_id"`
	Pair       string        `json:"pair"`
	Ratio      float64       `json:"ratio"`
	StartedAt  time.Time     `json:"started_at"`
	DurationMS int64         `json:"duration_ms"`
	Stages     []StageRecord `json:"stages"`
}

// SaveRun stores rep, replacing any earlier record with the same run id.
func (s *Store) SaveRun(ctx context.Context, rep *core.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// foreign_keys is per connection, so the cascade is not relied on.
	for _, q := range []string{`DELETE FROM stage_counts WHERE run_id = ?`, `DELETE FROM runs WHERE run_id = ?`} {
		if _, err := tx.ExecContext(ctx, q, rep.RunID); err != nil {
			return fmt.Errorf("failed to replace run %s: %w", rep.RunID, err)
		}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, pair, ratio, started_at, duration_ms) VALUES (?, ?, ?, ?, ?)`,
		rep.RunID, rep.Pair, rep.Ratio, rep.StartedAt.UTC().Format(time.RFC3339Nano), rep.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", rep.RunID, err)
	}
	for i, st := range rep.Stages {
		for _, side := range model.Sides {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO stage_counts (run_id, position, stage, side, added) VALUES (?, ?, ?, ?, ?)`,
				rep.RunID, i, string(st.Stage), string(side), st.Count(side))
			if err != nil {
				return fmt.Errorf("failed to insert stage %s of run %s: %w", st.Stage, rep.RunID, err)
			}
		}
	}
	return tx.Commit()
}

// GetRun returns the run with id, or nil if there is none.
func (s *Store) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	runs, err := s.query(ctx, `WHERE run_id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// ListRuns returns stored runs, oldest first. An empty pair lists all pairs.
func (s *Store) ListRuns(ctx context.Context, pair string) ([]RunRecord, error) {
	if pair == "" {
		return s.query(ctx, ``)
	}
	return s.query(ctx, `WHERE pair = ?`, pair)
}

func (s *Store) query(ctx context.Context, where string, args ...any) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, pair, ratio, started_at, duration_ms FROM runs `+where+` ORDER BY started_at, run_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var started string
		if err := rows.Scan(&r.RunID, &r.Pair, &r.Ratio, &started, &r.DurationMS); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("run %s: bad started_at %q: %w", r.RunID, started, err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range runs {
		if runs[i].Stages, err = s.stages(ctx, runs[i].RunID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *Store) stages(ctx context.Context, runID string) ([]StageRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stage, side, added FROM stage_counts WHERE run_id = ? ORDER BY position, side`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stages of run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []StageRecord
	for rows.Next() {
		var stage, side string
		var added int
		if err := rows.Scan(&stage, &side, &added); err != nil {
			return nil, fmt.Errorf("failed to scan stage: %w", err)
		}
		if len(out) == 0 || out[len(out)-1].Stage != core.Stage(stage) {
			out = append(out, StageRecord{Stage: core.Stage(stage), Counts: map[model.Side]int{}})
		}
		out[len(out)-1].Counts[model.Side(side)] = added
	}
	return out, rows.Err()
}
