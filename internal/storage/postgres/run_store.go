package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the terminal state of a pipeline run.
type RunStatus string

const (
	// RunRunning marks a run in progress.
	RunRunning RunStatus = "running"
	// RunSucceeded marks a run that walked the whole sitemap.
	RunSucceeded RunStatus = "succeeded"
	// RunFailed marks a run that stopped early.
	RunFailed RunStatus = "failed"
)

// RunStats summarizes a finished run.
type RunStats struct {
	Total     int
	Persisted int
	Dropped   map[string]int
}

// RunStore records one row per pipeline run.
type RunStore struct {
	pool  Pool
	table string
}

// NewRunStore builds a RunStore over an existing pool.
func NewRunStore(pool Pool, table string) (*RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "pipeline_runs"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &RunStore{pool: pool, table: table}, nil
}

// EnsureSchema creates the runs table when missing.
func (s *RunStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id UUID PRIMARY KEY,
	sitemap_url TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	status TEXT NOT NULL,
	total INT NOT NULL DEFAULT 0,
	persisted INT NOT NULL DEFAULT 0,
	dropped JSONB NOT NULL DEFAULT '{}'::jsonb,
	error_message TEXT
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s table: %w", s.table, err)
	}
	return nil
}

// StartRun inserts a running row for runID.
func (s *RunStore) StartRun(ctx context.Context, runID uuid.UUID, sitemapURL string, startedAt time.Time) error {
	query := fmt.Sprintf(`
INSERT INTO %s (id, sitemap_url, started_at, status)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO NOTHING`, s.table)
	if _, err := s.pool.Exec(ctx, query, runID, sitemapURL, startedAt, string(RunRunning)); err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	return nil
}

// FinishRun stores the terminal status and counters of runID.
func (s *RunStore) FinishRun(
	ctx context.Context,
	runID uuid.UUID,
	finishedAt time.Time,
	status RunStatus,
	stats RunStats,
	errMsg *string,
) error {
	dropped := stats.Dropped
	if dropped == nil {
		dropped = map[string]int{}
	}
	droppedJSON, err := json.Marshal(dropped)
	if err != nil {
		return fmt.Errorf("marshal dropped counts: %w", err)
	}
	query := fmt.Sprintf(`
UPDATE %s
SET finished_at = $1, status = $2, total = $3, persisted = $4, dropped = $5, error_message = $6
WHERE id = $7`, s.table)
	_, err = s.pool.Exec(ctx, query,
		finishedAt, string(status), stats.Total, stats.Persisted, droppedJSON, errMsg, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}
