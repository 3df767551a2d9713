package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexharvest/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/lexharvest/internal/core/domain"
)

func TestRecordService_Get(t *testing.T) {
	ctx := context.Background()
	records := memory.NewRecordStore()
	require.NoError(t, records.Upsert(ctx, &domain.CanonicalRecord{
		Kind: domain.KindConstitutional, SerialNumber: "58400", Title: "위헌확인", CaseNumber: "2019헌마1",
	}))
	service := NewRecordService(records, memory.NewRunStatsStore())

	rec, err := service.Get(ctx, domain.KindConstitutional, " 58400 ")
	require.NoError(t, err)
	assert.Equal(t, "위헌확인", rec.Title)

	_, err = service.Get(ctx, domain.KindCase, "58400")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = service.Get(ctx, domain.KindCase, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = service.Get(ctx, domain.DocumentKind("statute"), "1")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRecordService_Count(t *testing.T) {
	ctx := context.Background()
	records := memory.NewRecordStore()
	for _, serial := range []string{"1", "2"} {
		require.NoError(t, records.Upsert(ctx, &domain.CanonicalRecord{
			Kind: domain.KindCase, SerialNumber: serial, Title: "t", CaseNumber: "c",
		}))
	}
	service := NewRecordService(records, nil)

	n, err := service.Count(ctx, domain.KindCase)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = service.Count(ctx, domain.KindInterpretation)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = service.Count(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRecordService_RecentRuns(t *testing.T) {
	ctx := context.Background()
	runs := memory.NewRunStatsStore()
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, runs.Start(ctx, &domain.RunStats{
			RunID: id, JobName: "full:prec", Status: domain.RunRunning,
			StartedAt: start.Add(time.Duration(i) * time.Hour),
		}))
	}

	got, err := NewRecordService(memory.NewRecordStore(), runs).RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "r3", got[0].RunID)

	got, err = NewRecordService(memory.NewRecordStore(), nil).RecentRuns(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, got)
}
