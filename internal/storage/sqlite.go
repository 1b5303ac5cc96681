// Package storage persists finished runs and their downsampled
// statistics series so relaxation curves can be compared across
// parameter sets.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"reptlab/internal/rept"
)

// Run is one archived simulation run: its configuration and the final
// statistics record.
type Run struct {
	ID        string                `json:"id"`
	CreatedAt time.Time             `json:"created_at"`
	Config    rept.SimulationConfig `json:"config"`
	Stats     rept.Stats            `json:"stats"`
}

// RunStore is a SQLite-backed archive of runs and samples.
type RunStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

// NewRunStore creates a store for the database at path.
func NewRunStore(path string) *RunStore {
	return &RunStore{path: path}
}

// Init opens the database and creates the schema if needed.
func (s *RunStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id         TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL,
			config     TEXT NOT NULL,
			stats      TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS samples (
			run_id           TEXT NOT NULL,
			step             INTEGER NOT NULL,
			rms_end_to_end   REAL NOT NULL,
			autocorrelation  REAL NOT NULL,
			acceptance_ratio REAL NOT NULL,
			PRIMARY KEY (run_id, step),
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
		);
	`)
	return err
}

func (s *RunStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

// SaveRun archives a run together with its sample series. An empty
// run ID gets a fresh UUID; the assigned ID is returned.
func (s *RunStore) SaveRun(ctx context.Context, run Run, samples []rept.Sample) (string, error) {
	db, err := s.getDB()
	if err != nil {
		return "", err
	}

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	cfgJSON, err := json.Marshal(run.Config)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	statsJSON, err := json.Marshal(run.Stats)
	if err != nil {
		return "", fmt.Errorf("encode stats: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, config, stats)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			created_at = excluded.created_at,
			config = excluded.config,
			stats = excluded.stats
	`, run.ID, run.CreatedAt.Unix(), string(cfgJSON), string(statsJSON))
	if err != nil {
		return "", err
	}

	for _, sample := range samples {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO samples (run_id, step, rms_end_to_end, autocorrelation, acceptance_ratio)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(run_id, step) DO UPDATE SET
				rms_end_to_end = excluded.rms_end_to_end,
				autocorrelation = excluded.autocorrelation,
				acceptance_ratio = excluded.acceptance_ratio
		`, run.ID, sample.Step, sample.RMSEndToEnd, sample.Autocorrelation, sample.AcceptanceRatio)
		if err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return run.ID, nil
}

// GetRun fetches an archived run by ID.
func (s *RunStore) GetRun(ctx context.Context, id string) (Run, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return Run{}, false, err
	}

	var createdAt int64
	var cfgJSON, statsJSON string
	err = db.QueryRowContext(ctx, `SELECT created_at, config, stats FROM runs WHERE id = ?`, id).
		Scan(&createdAt, &cfgJSON, &statsJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, false, nil
		}
		return Run{}, false, err
	}

	run := Run{ID: id, CreatedAt: time.Unix(createdAt, 0)}
	if err := json.Unmarshal([]byte(cfgJSON), &run.Config); err != nil {
		return Run{}, false, fmt.Errorf("decode config for run %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(statsJSON), &run.Stats); err != nil {
		return Run{}, false, fmt.Errorf("decode stats for run %s: %w", id, err)
	}
	return run, true, nil
}

// ListRuns returns all archived runs, newest first.
func (s *RunStore) ListRuns(ctx context.Context) ([]Run, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT id, created_at, config, stats FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var createdAt int64
		var cfgJSON, statsJSON string
		if err := rows.Scan(&run.ID, &createdAt, &cfgJSON, &statsJSON); err != nil {
			return nil, err
		}
		run.CreatedAt = time.Unix(createdAt, 0)
		if err := json.Unmarshal([]byte(cfgJSON), &run.Config); err != nil {
			return nil, fmt.Errorf("decode config for run %s: %w", run.ID, err)
		}
		if err := json.Unmarshal([]byte(statsJSON), &run.Stats); err != nil {
			return nil, fmt.Errorf("decode stats for run %s: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Samples returns the archived statistics series of a run in step order.
func (s *RunStore) Samples(ctx context.Context, runID string) ([]rept.Sample, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT step, rms_end_to_end, autocorrelation, acceptance_ratio
		FROM samples WHERE run_id = ? ORDER BY step
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []rept.Sample
	for rows.Next() {
		var sample rept.Sample
		if err := rows.Scan(&sample.Step, &sample.RMSEndToEnd, &sample.Autocorrelation, &sample.AcceptanceRatio); err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// DeleteRun removes a run and its samples.
func (s *RunStore) DeleteRun(ctx context.Context, id string) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM samples WHERE run_id = ?`, id); err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	return err
}

// Close closes the underlying database.
func (s *RunStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
