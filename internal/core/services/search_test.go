package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driving"
)

// newSearchFixture indexes records whose texts share decreasing overlap
// with "손해배상 청구".
func newSearchFixture(t *testing.T, settings SearchSettings) (*SimilarityService, *indexFixture) {
	t.Helper()
	ctx := context.Background()
	f := newIndexFixture(t, 64)

	records := []*domain.CanonicalRecord{
		{SerialNumber: "1", Title: "손해배상 청구", CourtName: "대법원", CategoryName: "민사",
			DecisionDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
		{SerialNumber: "2", Title: "손해배상 청구 사건", CourtName: "서울고등법원", CategoryName: "민사",
			DecisionDate: time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)},
		{SerialNumber: "3", Title: "손해배상", CourtName: "대법원", CategoryName: "민사",
			DecisionDate: time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC)},
		{SerialNumber: "4", Title: "양도소득세 부과처분 취소", CourtName: "대법원", CategoryName: "세무",
			DecisionDate: time.Date(2023, 9, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, rec := range records {
		rec.Kind = domain.KindCase
		rec.CaseNumber = "2020다" + rec.SerialNumber
		rec.SearchText = rec.Title
		require.NoError(t, f.records.Upsert(ctx, rec))
		require.NoError(t, f.manager.IndexRecord(ctx, rec))
	}

	return NewSimilarityService(f.manager, f.encoder, f.records, settings), f
}

func serials(hits []domain.HydratedHit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.SerialNumber
	}
	return out
}

func floatPtr(v float64) *float64 { return &v }

func TestSimilarityService_SearchText(t *testing.T) {
	svc, _ := newSearchFixture(t, DefaultSearchSettings())

	hits, err := svc.Search(context.Background(), driving.SimilarityQuery{
		Kind:     domain.KindCase,
		Text:     "손해배상 청구",
		MinScore: floatPtr(0),
	})
	require.NoError(t, err)
	require.NotEmpty(t, hits)

	assert.Equal(t, "1", hits[0].SerialNumber)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-5)
	require.NotNil(t, hits[0].Record)
	assert.Equal(t, "손해배상 청구", hits[0].Record.Title)
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}
}

func TestSimilarityService_SimilarToExcludesSelf(t *testing.T) {
	svc, _ := newSearchFixture(t, DefaultSearchSettings())

	hits, err := svc.Search(context.Background(), driving.SimilarityQuery{
		Kind:      domain.KindCase,
		SimilarTo: "1",
		MinScore:  floatPtr(0),
	})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.NotContains(t, serials(hits), "1")
	assert.Less(t, hits[0].Score, 1.0)
}

func TestSimilarityService_SimilarToReadsStoredVector(t *testing.T) {
	svc, f := newSearchFixture(t, DefaultSearchSettings())
	f.embedder.err = fmt.Errorf("ollama: connection refused")
	f.embedder.calls = 0

	hits, err := svc.Search(context.Background(), driving.SimilarityQuery{
		Kind:      domain.KindCase,
		SimilarTo: "1",
		MinScore:  floatPtr(0),
	})
	require.NoError(t, err, "the stored vector needs no embedding backend")
	require.NotEmpty(t, hits)
	assert.Equal(t, "2", hits[0].SerialNumber)
	assert.Zero(t, f.embedder.calls)
}

func TestSimilarityService_SimilarToUnindexedRecordEmbedsText(t *testing.T) {
	svc, f := newSearchFixture(t, DefaultSearchSettings())
	ctx := context.Background()

	rec := &domain.CanonicalRecord{
		Kind: domain.KindCase, SerialNumber: "5", Title: "손해배상 청구", CaseNumber: "2020다5",
		SearchText: "손해배상 청구", DecisionDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, f.records.Upsert(ctx, rec))
	f.embedder.calls = 0

	hits, err := svc.Search(ctx, driving.SimilarityQuery{
		Kind:      domain.KindCase,
		SimilarTo: "5",
		MinScore:  floatPtr(0),
	})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "1", hits[0].SerialNumber)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-5)
	assert.Equal(t, 1, f.embedder.calls)
}

func TestSimilarityService_SimilarToMissingRecord(t *testing.T) {
	svc, _ := newSearchFixture(t, DefaultSearchSettings())

	_, err := svc.Search(context.Background(), driving.SimilarityQuery{Kind: domain.KindCase, SimilarTo: "999"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSimilarityService_QueryValidation(t *testing.T) {
	svc, _ := newSearchFixture(t, DefaultSearchSettings())
	ctx := context.Background()

	tests := []struct {
		name  string
		query driving.SimilarityQuery
	}{
		{"neither", driving.SimilarityQuery{Kind: domain.KindCase}},
		{"both", driving.SimilarityQuery{Kind: domain.KindCase, Text: "손해배상", SimilarTo: "1"}},
		{"blank text", driving.SimilarityQuery{Kind: domain.KindCase, Text: "   "}},
		{"bad kind", driving.SimilarityQuery{Kind: "statute", Text: "손해배상"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Search(ctx, tt.query)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestSimilarityService_LimitsAreClamped(t *testing.T) {
	svc, _ := newSearchFixture(t, SearchSettings{DefaultLimit: 3, MaxLimit: 2, MinScore: 0})
	ctx := context.Background()

	hits, err := svc.Search(ctx, driving.SimilarityQuery{Kind: domain.KindCase, Text: "손해배상", TopK: 500})
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = svc.Search(ctx, driving.SimilarityQuery{Kind: domain.KindCase, Text: "손해배상", TopK: 1})
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	assert.Equal(t, 1.0, svc.minScore(floatPtr(7)))
	assert.Equal(t, -1.0, svc.minScore(floatPtr(-3)))
	assert.Equal(t, 0.0, svc.minScore(nil))
}

func TestSimilarityService_DefaultMinScoreDropsUnrelated(t *testing.T) {
	svc, _ := newSearchFixture(t, DefaultSearchSettings())

	hits, err := svc.Search(context.Background(), driving.SimilarityQuery{Kind: domain.KindCase, Text: "손해배상 청구"})
	require.NoError(t, err)
	for _, h := range hits {
		assert.GreaterOrEqual(t, h.Score, DefaultMinScore)
	}
}

func TestSimilarityService_Filter(t *testing.T) {
	svc, _ := newSearchFixture(t, DefaultSearchSettings())
	ctx := context.Background()

	hits, err := svc.Search(ctx, driving.SimilarityQuery{
		Kind:     domain.KindCase,
		Text:     "손해배상 청구",
		MinScore: floatPtr(-1),
		Filter:   domain.RecordFilter{CourtName: "대법원", From: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"3", "4"}, serials(hits))
	for _, h := range hits {
		assert.Equal(t, "대법원", h.Record.CourtName)
	}
}

func TestSimilarityService_HydrateKeepsMissingRecords(t *testing.T) {
	svc, _ := newSearchFixture(t, DefaultSearchSettings())

	hits, err := svc.Hydrate(context.Background(), []domain.SimilarityHit{
		{SerialNumber: "1", Kind: domain.KindCase, Score: 0.9},
		{SerialNumber: "gone", Kind: domain.KindCase, Score: 0.8},
	})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.NotNil(t, hits[0].Record)
	assert.Nil(t, hits[1].Record)

	filtered := FilterHits(hits, domain.RecordFilter{CategoryName: "민사"})
	assert.Equal(t, []string{"1"}, serials(filtered))
	assert.Len(t, FilterHits(hits, domain.RecordFilter{}), 2)
}

func TestSimilarityService_IndexUnavailable(t *testing.T) {
	enc := NewEncoder(nil, 0, 0)
	svc := NewSimilarityService(NewIndexManager(nil, nil, nil, enc), enc, nil, DefaultSearchSettings())

	_, err := svc.Search(context.Background(), driving.SimilarityQuery{Kind: domain.KindCase, Text: "손해배상"})
	assert.ErrorIs(t, err, domain.ErrVectorIndexUnavailable)
}

func ExampleFilterHits() {
	hits := []domain.HydratedHit{
		{SimilarityHit: domain.SimilarityHit{SerialNumber: "1"}, Record: &domain.CanonicalRecord{CourtName: "대법원"}},
		{SimilarityHit: domain.SimilarityHit{SerialNumber: "2"}, Record: &domain.CanonicalRecord{CourtName: "헌법재판소"}},
	}
	for _, h := range FilterHits(hits, domain.RecordFilter{CourtName: "대법원"}) {
		fmt.Println(h.SerialNumber)
	}
	// Output: 1
}
