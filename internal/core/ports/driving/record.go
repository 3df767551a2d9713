package driving

import (
	"context"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
)

// RecordService reads stored records and the run history.
type RecordService interface {
	// Get returns one record. Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, kind domain.DocumentKind, serial string) (*domain.CanonicalRecord, error)

	// Count returns the number of stored records of a kind.
	Count(ctx context.Context, kind domain.DocumentKind) (int, error)

	// RecentRuns returns the latest runs, newest first. A non-positive limit returns all.
	RecentRuns(ctx context.Context, limit int) ([]domain.RunStats, error)
}
