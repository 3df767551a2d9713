package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driven"
)

// ==================== Checkpoint Store ====================

// checkpointStore implements driven.CheckpointStore.
type checkpointStore struct {
	store *Store
}

var _ driven.CheckpointStore = (*checkpointStore)(nil)

// Save stores or replaces the checkpoint of a job.
func (s *checkpointStore) Save(ctx context.Context, cp domain.SyncCheckpoint) error {
	if cp.JobName == "" {
		return domain.ErrInvalidInput
	}
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO sync_checkpoints (job_name, page_cursor, last_processed_date, run_started_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(job_name) DO UPDATE SET
			page_cursor = excluded.page_cursor,
			last_processed_date = excluded.last_processed_date,
			run_started_at = excluded.run_started_at,
			updated_at = excluded.updated_at
	`, cp.JobName, cp.PageCursor, formatTime(cp.LastProcessedDate), formatTime(cp.RunStartedAt),
		formatTime(s.store.now()))
	if err != nil {
		return fmt.Errorf("saving checkpoint: %w", err)
	}
	return nil
}

// Get retrieves the checkpoint of a job.
func (s *checkpointStore) Get(ctx context.Context, jobName string) (*domain.SyncCheckpoint, error) {
	var cp domain.SyncCheckpoint
	var lastDate, startedAt sql.NullString
	err := s.store.db.QueryRowContext(ctx, `
		SELECT job_name, page_cursor, last_processed_date, run_started_at
		FROM sync_checkpoints WHERE job_name = ?
	`, jobName).Scan(&cp.JobName, &cp.PageCursor, &lastDate, &startedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning checkpoint: %w", err)
	}
	cp.LastProcessedDate = parseTime(lastDate)
	cp.RunStartedAt = parseTime(startedAt)
	return &cp, nil
}

// Delete removes the checkpoint of a job.
func (s *checkpointStore) Delete(ctx context.Context, jobName string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM sync_checkpoints WHERE job_name = ?", jobName)
	if err != nil {
		return fmt.Errorf("deleting checkpoint: %w", err)
	}
	return nil
}

// ==================== Run Stats Store ====================

// runStatsStore implements driven.RunStatsStore.
type runStatsStore struct {
	store *Store
}

var _ driven.RunStatsStore = (*runStatsStore)(nil)

const runColumns = `run_id, job_name, mode, kind, status, abort_reason,
	total_seen, succeeded, failed, pages_processed, started_at, finished_at`

// Start appends a running run.
func (s *runStatsStore) Start(ctx context.Context, r *domain.RunStats) error {
	if r == nil || r.RunID == "" {
		return domain.ErrInvalidInput
	}
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO sync_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.RunID, r.JobName, r.Mode, r.Kind, r.Status, nullString(r.AbortReason),
		r.TotalSeen, r.Succeeded, r.Failed, r.PagesProcessed, formatTime(r.StartedAt), formatTime(r.FinishedAt))
	if err != nil {
		return fmt.Errorf("recording run start: %w", err)
	}
	return nil
}

// Finish finalises a running run. A run is finalised once.
func (s *runStatsStore) Finish(ctx context.Context, r *domain.RunStats) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE sync_runs SET
			status = ?, abort_reason = ?, total_seen = ?, succeeded = ?, failed = ?,
			pages_processed = ?, finished_at = ?
		WHERE run_id = ? AND status = ?
	`, r.Status, nullString(r.AbortReason), r.TotalSeen, r.Succeeded, r.Failed,
		r.PagesProcessed, formatTime(r.FinishedAt), r.RunID, domain.RunRunning)
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

	var exists int
	err = s.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sync_runs WHERE run_id = ?", r.RunID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking run: %w", err)
	}
	if exists == 0 {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%w: run %s already finished", domain.ErrInvalidInput, r.RunID)
}

// LastCompleted returns the most recent completed run of a job.
func (s *runStatsStore) LastCompleted(ctx context.Context, jobName string) (*domain.RunStats, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+runColumns+` FROM sync_runs
		WHERE job_name = ? AND status = ?
		ORDER BY finished_at DESC
		LIMIT 1
	`, jobName, domain.RunCompleted)

	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return r, err
}

// List returns the most recent runs, newest first. A non-positive limit returns all.
func (s *runStatsStore) List(ctx context.Context, limit int) ([]domain.RunStats, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+runColumns+` FROM sync_runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
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
	var abortReason, startedAt, finishedAt sql.NullString
	err := row.Scan(&r.RunID, &r.JobName, &r.Mode, &r.Kind, &r.Status, &abortReason,
		&r.TotalSeen, &r.Succeeded, &r.Failed, &r.PagesProcessed, &startedAt, &finishedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning run: %w", err)
	}
	r.AbortReason = abortReason.String
	r.StartedAt = parseTime(startedAt)
	r.FinishedAt = parseTime(finishedAt)
	return &r, nil
}
