package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/manthysbr/freeroute/internal/core/domain"
	"github.com/manthysbr/freeroute/internal/core/ports"
	_ "github.com/marcboeker/go-duckdb"
)

// Repository stores run history in a DuckDB file. An empty path keeps it in memory.
type Repository struct {
	db *sql.DB
}

func NewRepository(path string) (*Repository, error) {
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}

	r := &Repository{db: db}
	if err := r.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

// Ensure Repository implements RunRecorder
var _ ports.RunRecorder = (*Repository)(nil)

func (r *Repository) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id            VARCHAR PRIMARY KEY,
			input_path    VARCHAR NOT NULL,
			port          INTEGER NOT NULL,
			container_id  VARCHAR,
			session_id    VARCHAR,
			job_id        VARCHAR,
			job_state     VARCHAR,
			outcome       VARCHAR NOT NULL,
			error         VARCHAR,
			cleanup_error VARCHAR,
			output_bytes  INTEGER,
			started_at    TIMESTAMP NOT NULL,
			finished_at   TIMESTAMP NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("migrate runs: %w", err)
	}
	return nil
}

// RecordRun upserts a run by id.
func (r *Repository) RecordRun(ctx context.Context, run domain.RunRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (id, input_path, port, container_id, session_id, job_id, job_state,
		                  outcome, error, cleanup_error, output_bytes, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			container_id  = excluded.container_id,
			session_id    = excluded.session_id,
			job_id        = excluded.job_id,
			job_state     = excluded.job_state,
			outcome       = excluded.outcome,
			error         = excluded.error,
			cleanup_error = excluded.cleanup_error,
			output_bytes  = excluded.output_bytes,
			finished_at   = excluded.finished_at`,
		string(run.ID),
		run.InputPath,
		run.Port,
		run.ContainerID,
		string(run.SessionID),
		string(run.JobID),
		string(run.JobState),
		string(run.Outcome),
		run.Error,
		run.CleanupError,
		run.OutputBytes,
		run.StartedAt.UTC(),
		run.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, input_path, port, container_id, session_id, job_id, job_state,
		       outcome, error, cleanup_error, output_bytes, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	out := []domain.RunRecord{}
	for rows.Next() {
		var run domain.RunRecord
		var id, sessionID, jobID, jobState, outcome string
		err := rows.Scan(
			&id, &run.InputPath, &run.Port, &run.ContainerID, &sessionID, &jobID, &jobState,
			&outcome, &run.Error, &run.CleanupError, &run.OutputBytes, &run.StartedAt, &run.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.ID = domain.RunID(id)
		run.SessionID = domain.SessionID(sessionID)
		run.JobID = domain.JobID(jobID)
		run.JobState = domain.JobState(jobState)
		run.Outcome = domain.RunOutcome(outcome)
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r *Repository) Close() error {
	return r.db.Close()
}
