package driven

import (
	"context"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
)

// RecordStore persists canonical records.
type RecordStore interface {
	// Upsert stores a record keyed by (kind, serial number), replacing every
	// mutable field of an existing record.
	Upsert(ctx context.Context, record *domain.CanonicalRecord) error

	// Get retrieves a record. Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, key domain.RecordKey) (*domain.CanonicalRecord, error)

	// Iterate calls fn for every stored record of a kind in serial order.
	// Iteration stops at the first error returned by fn.
	Iterate(ctx context.Context, kind domain.DocumentKind, fn func(*domain.CanonicalRecord) error) error

	// Count returns the number of stored records of a kind.
	Count(ctx context.Context, kind domain.DocumentKind) (int, error)
}

// CheckpointStore persists resumable sync state.
type CheckpointStore interface {
	// Save stores or replaces the checkpoint for its job.
	Save(ctx context.Context, cp domain.SyncCheckpoint) error

	// Get retrieves a checkpoint. Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, jobName string) (*domain.SyncCheckpoint, error)

	// Delete removes a checkpoint. Safe to call if absent.
	Delete(ctx context.Context, jobName string) error
}

// RunStatsStore keeps the audit trail of harvesting runs.
type RunStatsStore interface {
	// Start records a new running run.
	Start(ctx context.Context, stats *domain.RunStats) error

	// Finish writes the terminal counts and status of a run.
	Finish(ctx context.Context, stats *domain.RunStats) error

	// LastCompleted returns the most recent completed run for a job.
	// Returns domain.ErrNotFound if there is none.
	LastCompleted(ctx context.Context, jobName string) (*domain.RunStats, error)

	// List returns the most recent runs, newest first.
	List(ctx context.Context, limit int) ([]domain.RunStats, error)
}
