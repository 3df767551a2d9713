package mcp

import (
	"context"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driving"
)

// mockSimilarityService is a mock implementation of driving.SimilarityService.
type mockSimilarityService struct {
	hits  []domain.HydratedHit
	err   error
	query driving.SimilarityQuery
}

func (m *mockSimilarityService) Search(_ context.Context, q driving.SimilarityQuery) ([]domain.HydratedHit, error) {
	m.query = q
	return m.hits, m.err
}

// mockRecordService is a mock implementation of driving.RecordService.
type mockRecordService struct {
	record *domain.CanonicalRecord
	count  int
	runs   []domain.RunStats
	err    error

	gotKind   domain.DocumentKind
	gotSerial string
}

func (m *mockRecordService) Get(_ context.Context, kind domain.DocumentKind, serial string) (*domain.CanonicalRecord, error) {
	m.gotKind = kind
	m.gotSerial = serial
	return m.record, m.err
}

func (m *mockRecordService) Count(_ context.Context, _ domain.DocumentKind) (int, error) {
	return m.count, m.err
}

func (m *mockRecordService) RecentRuns(_ context.Context, _ int) ([]domain.RunStats, error) {
	return m.runs, m.err
}

// mockIndexService is a mock implementation of driving.IndexService.
type mockIndexService struct {
	stats *domain.IndexStats
	err   error
}

func (m *mockIndexService) Rebuild(_ context.Context, _ domain.DocumentKind) (*domain.IndexStats, error) {
	return m.stats, m.err
}

func (m *mockIndexService) Stats(_ context.Context, _ domain.DocumentKind) (*domain.IndexStats, error) {
	return m.stats, m.err
}
