package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.CheckpointStore = (*CheckpointStore)(nil)
	_ driven.RunStatsStore   = (*RunStatsStore)(nil)
)

// CheckpointStore implements driven.CheckpointStore using PostgreSQL.
type CheckpointStore struct {
	db *DB
}

// Save stores or replaces the checkpoint of a job.
func (s *CheckpointStore) Save(ctx context.Context, cp domain.SyncCheckpoint) error {
	if cp.JobName == "" {
		return domain.ErrInvalidInput
	}

	query := `
		INSERT INTO sync_checkpoints (job_name, page_cursor, last_processed_date, run_started_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (job_name) DO UPDATE SET
			page_cursor = EXCLUDED.page_cursor,
			last_processed_date = EXCLUDED.last_processed_date,
			run_started_at = EXCLUDED.run_started_at,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		cp.JobName,
		cp.PageCursor,
		NullTime(cp.LastProcessedDate),
		NullTime(cp.RunStartedAt),
		s.db.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving checkpoint: %w", err)
	}
	return nil
}

// Get retrieves the checkpoint of a job.
func (s *CheckpointStore) Get(ctx context.Context, jobName string) (*domain.SyncCheckpoint, error) {
	query := `
		SELECT job_name, page_cursor, last_processed_date, run_started_at
		FROM sync_checkpoints
		WHERE job_name = $1
	`

	var cp domain.SyncCheckpoint
	var lastDate, startedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, jobName).Scan(&cp.JobName, &cp.PageCursor, &lastDate, &startedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning checkpoint: %w", err)
	}

	cp.LastProcessedDate = TimeValue(lastDate)
	cp.RunStartedAt = TimeValue(startedAt)
	return &cp, nil
}

// Delete removes the checkpoint of a job.
func (s *CheckpointStore) Delete(ctx context.Context, jobName string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sync_checkpoints WHERE job_name = $1", jobName); err != nil {
		return fmt.Errorf("deleting checkpoint: %w", err)
	}
	return nil
}

// RunStatsStore implements driven.RunStatsStore using PostgreSQL.
type RunStatsStore struct {
	db *DB
}

const runColumns = `run_id, job_name, mode, kind, status, abort_reason,
	total_seen, succeeded, failed, pages_processed, started_at, finished_at`

// Start appends a running run.
func (s *RunStatsStore) Start(ctx context.Context, r *domain.RunStats) error {
	if r == nil || r.RunID == "" {
		return domain.ErrInvalidInput
	}

	query := `
		INSERT INTO sync_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.RunID,
		r.JobName,
		string(r.Mode),
		string(r.Kind),
		string(r.Status),
		NullString(r.AbortReason),
		r.TotalSeen,
		r.Succeeded,
		r.Failed,
		r.PagesProcessed,
		r.StartedAt.UTC(),
		NullTime(r.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("recording run start: %w", err)
	}
	return nil
}

// Finish finalises a running run. A run is finalised once.
func (s *RunStatsStore) Finish(ctx context.Context, r *domain.RunStats) error {
	query := `
		UPDATE sync_runs SET
			status = $1, abort_reason = $2, total_seen = $3, succeeded = $4, failed = $5,
			pages_processed = $6, finished_at = $7
		WHERE run_id = $8 AND status = $9
	`
	res, err := s.db.ExecContext(ctx, query,
		string(r.Status),
		NullString(r.AbortReason),
		r.TotalSeen,
		r.Succeeded,
		r.Failed,
		r.PagesProcessed,
		NullTime(r.FinishedAt),
		r.RunID,
		string(domain.RunRunning),
	)
	if err != nil {
		return fmt.Errorf("recording run finish: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("recording run finish: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists bool
	err = s.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM sync_runs WHERE run_id = $1)", r.RunID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking run: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%w: run %s already finished", domain.ErrInvalidInput, r.RunID)
}

// LastCompleted returns the most recent completed run of a job.
func (s *RunStatsStore) LastCompleted(ctx context.Context, jobName string) (*domain.RunStats, error) {
	query := `
		SELECT ` + runColumns + ` FROM sync_runs
		WHERE job_name = $1 AND status = $2
		ORDER BY finished_at DESC
		LIMIT 1
	`

	r, err := scanRun(s.db.QueryRowContext(ctx, query, jobName, string(domain.RunCompleted)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return r, err
}

// List returns the most recent runs, newest first. A non-positive limit returns all.
func (s *RunStatsStore) List(ctx context.Context, limit int) ([]domain.RunStats, error) {
	// LIMIT NULL is LIMIT ALL.
	var lim sql.NullInt64
	if limit > 0 {
		lim = sql.NullInt64{Int64: int64(limit), Valid: true}
	}

	query := `
		SELECT ` + runColumns + ` FROM sync_runs
		ORDER BY started_at DESC, seq DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, lim)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunStats //nolint:prealloc // size unknown from query
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

func scanRun(row scanner) (*domain.RunStats, error) {
	var r domain.RunStats
	var abortReason sql.NullString
	var finishedAt sql.NullTime
	err := row.Scan(
		&r.RunID,
		&r.JobName,
		&r.Mode,
		&r.Kind,
		&r.Status,
		&abortReason,
		&r.TotalSeen,
		&r.Succeeded,
		&r.Failed,
		&r.PagesProcessed,
		&r.StartedAt,
		&finishedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning run: %w", err)
	}
	r.AbortReason = abortReason.String
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = TimeValue(finishedAt)
	return &r, nil
}
