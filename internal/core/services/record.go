package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driven"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driving"
)

// Ensure RecordService implements the interface.
var _ driving.RecordService = (*RecordService)(nil)

// RecordService serves stored records and run history to the CLI and MCP.
type RecordService struct {
	records driven.RecordStore
	runs    driven.RunStatsStore
}

// NewRecordService creates a new record service.
func NewRecordService(records driven.RecordStore, runs driven.RunStatsStore) *RecordService {
	return &RecordService{records: records, runs: runs}
}

// Get returns one record by kind and serial number.
func (s *RecordService) Get(ctx context.Context, kind domain.DocumentKind, serial string) (*domain.CanonicalRecord, error) {
	serial = strings.TrimSpace(serial)
	if !kind.Valid() || serial == "" {
		return nil, fmt.Errorf("%w: record %s:%q", domain.ErrInvalidInput, kind, serial)
	}
	return s.records.Get(ctx, domain.RecordKey{Kind: kind, SerialNumber: serial})
}

// Count returns the number of stored records of a kind.
func (s *RecordService) Count(ctx context.Context, kind domain.DocumentKind) (int, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("%w: document kind %q", domain.ErrInvalidInput, kind)
	}
	return s.records.Count(ctx, kind)
}

// RecentRuns returns the latest runs, newest first.
func (s *RecordService) RecentRuns(ctx context.Context, limit int) ([]domain.RunStats, error) {
	if s.runs == nil {
		return nil, nil
	}
	return s.runs.List(ctx, limit)
}
