package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
)

// setupTestStore creates a SQLite store in a temporary directory.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, store)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return store
}

func testRecord(serial string) *domain.CanonicalRecord {
	cited := time.Date(2015, 4, 9, 0, 0, 0, 0, time.UTC)
	return &domain.CanonicalRecord{
		Kind:               domain.KindCase,
		SerialNumber:       serial,
		Title:              "손해배상(기)",
		CaseNumber:         "2019다12345",
		DecisionDate:       time.Date(2020, 3, 26, 0, 0, 0, 0, time.UTC),
		DecisionType:       "판결",
		CourtName:          "대법원",
		CourtCode:          "400201",
		CourtProvenance:    domain.ProvenanceAsserted,
		CategoryName:       "민사",
		CategoryProvenance: domain.ProvenanceInferred,
		HoldingText:        "[1] 불법행위로 인한 손해배상청구권의 소멸시효",
		SummaryText:        "판결요지\n둘째 줄",
		FullText:           "【주문】 상고를 기각한다.",
		ReferenceArticles:  []domain.ReferenceArticle{{LawName: "민법", ArticleNumber: "제766조 제1항"}},
		ReferenceCases:     []domain.ReferenceCase{{CaseNumber: "2013다12345", CourtName: "대법원", DecisionDate: &cited}},
		SearchText:         "손해배상(기) 2019다12345 불법행위",
	}
}

func TestNewStore_CreatesDatabase(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	store, err := NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, filepath.Join(dir, DatabaseFile), store.Path())
	_, err = os.Stat(store.Path())
	assert.NoError(t, err)
}

func TestNewStore_MigrationsRunOnce(t *testing.T) {
	dir := t.TempDir()

	store1, err := NewStore(dir)
	require.NoError(t, err)
	var count1 int
	require.NoError(t, store1.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count1))
	require.NoError(t, store1.Close())

	store2, err := NewStore(dir)
	require.NoError(t, err)
	defer store2.Close()
	var count2, version int
	require.NoError(t, store2.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count2))
	require.NoError(t, store2.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))

	assert.Equal(t, 2, count1)
	assert.Equal(t, count1, count2)
	assert.Equal(t, 2, version)
}

// ==================== RecordStore Tests ====================

func TestRecordStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	records := store.RecordStore()

	rec := testRecord("228541")
	require.NoError(t, records.Upsert(ctx, rec))
	assert.False(t, rec.UpdatedAt.IsZero())

	got, err := records.Get(ctx, rec.Key())
	require.NoError(t, err)
	assert.Equal(t, rec.Title, got.Title)
	assert.True(t, rec.DecisionDate.Equal(got.DecisionDate))
	assert.Equal(t, domain.ProvenanceAsserted, got.CourtProvenance)
	assert.Equal(t, domain.ProvenanceInferred, got.CategoryProvenance)
	assert.Equal(t, "판결요지\n둘째 줄", got.SummaryText)
	assert.Equal(t, rec.ReferenceArticles, got.ReferenceArticles)
	require.Len(t, got.ReferenceCases, 1)
	assert.True(t, got.ReferenceCases[0].DecisionDate.Equal(*rec.ReferenceCases[0].DecisionDate))
	assert.Equal(t, rec.SearchText, got.SearchText)
	assert.True(t, rec.UpdatedAt.Equal(got.UpdatedAt))
}

func TestRecordStore_OptionalFieldsStayEmpty(t *testing.T) {
	ctx := context.Background()
	records := setupTestStore(t).RecordStore()

	rec := &domain.CanonicalRecord{
		Kind:            domain.KindInterpretation,
		SerialNumber:    "313107",
		Title:           "「건축법」 제2조 관련",
		CaseNumber:      "19-0123",
		CourtProvenance: domain.ProvenanceUnknown,
	}
	require.NoError(t, records.Upsert(ctx, rec))

	got, err := records.Get(ctx, rec.Key())
	require.NoError(t, err)
	assert.True(t, got.DecisionDate.IsZero())
	assert.Empty(t, got.CourtName)
	assert.Equal(t, domain.ProvenanceUnknown, got.CourtProvenance)
	assert.Nil(t, got.ReferenceArticles)
	assert.Nil(t, got.ReferenceCases)
}

func TestRecordStore_UpsertReplacesEveryField(t *testing.T) {
	ctx := context.Background()
	records := setupTestStore(t).RecordStore()

	require.NoError(t, records.Upsert(ctx, testRecord("1")))

	updated := testRecord("1")
	updated.Title = "손해배상(자)"
	updated.HoldingText = ""
	updated.ReferenceArticles = nil
	require.NoError(t, records.Upsert(ctx, updated))
	require.NoError(t, records.Upsert(ctx, updated))

	got, err := records.Get(ctx, updated.Key())
	require.NoError(t, err)
	assert.Equal(t, "손해배상(자)", got.Title)
	assert.Empty(t, got.HoldingText)
	assert.Nil(t, got.ReferenceArticles)

	count, err := records.Count(ctx, domain.KindCase)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRecordStore_KindsAreSeparate(t *testing.T) {
	ctx := context.Background()
	records := setupTestStore(t).RecordStore()

	require.NoError(t, records.Upsert(ctx, testRecord("1")))
	other := testRecord("1")
	other.Kind = domain.KindConstitutional
	other.Title = "헌법소원"
	require.NoError(t, records.Upsert(ctx, other))

	got, err := records.Get(ctx, domain.RecordKey{Kind: domain.KindCase, SerialNumber: "1"})
	require.NoError(t, err)
	assert.Equal(t, "손해배상(기)", got.Title)

	_, err = records.Get(ctx, domain.RecordKey{Kind: domain.KindInterpretation, SerialNumber: "1"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordStore_Validation(t *testing.T) {
	ctx := context.Background()
	records := setupTestStore(t).RecordStore()

	assert.ErrorIs(t, records.Upsert(ctx, nil), domain.ErrInvalidInput)
	assert.ErrorIs(t, records.Upsert(ctx, testRecord("")), domain.ErrInvalidInput)
}

func TestRecordStore_IteratePagesInSerialOrder(t *testing.T) {
	ctx := context.Background()
	records := setupTestStore(t).RecordStore()

	total := iterateBatch + 7
	for i := total; i >= 1; i-- {
		require.NoError(t, records.Upsert(ctx, testRecord(fmt.Sprint(i))))
	}

	var seen []string
	err := records.Iterate(ctx, domain.KindCase, func(r *domain.CanonicalRecord) error {
		seen = append(seen, r.SerialNumber)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, total)
	assert.Equal(t, "1", seen[0])
	assert.Equal(t, "10", seen[9])
	assert.Equal(t, fmt.Sprint(total), seen[total-1])

	stop := errors.New("stop")
	calls := 0
	err = records.Iterate(ctx, domain.KindCase, func(*domain.CanonicalRecord) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestRecordStore_IterateAllowsWritesFromCallback(t *testing.T) {
	ctx := context.Background()
	records := setupTestStore(t).RecordStore()
	for i := 1; i <= 3; i++ {
		require.NoError(t, records.Upsert(ctx, testRecord(fmt.Sprint(i))))
	}

	err := records.Iterate(ctx, domain.KindCase, func(r *domain.CanonicalRecord) error {
		r.Title = "갱신"
		return records.Upsert(ctx, r)
	})
	require.NoError(t, err)

	got, err := records.Get(ctx, domain.RecordKey{Kind: domain.KindCase, SerialNumber: "3"})
	require.NoError(t, err)
	assert.Equal(t, "갱신", got.Title)
}

// ==================== CheckpointStore Tests ====================

func TestCheckpointStore_SaveGetDelete(t *testing.T) {
	ctx := context.Background()
	checkpoints := setupTestStore(t).CheckpointStore()

	_, err := checkpoints.Get(ctx, "full:prec")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	started := time.Date(2025, 5, 1, 9, 30, 0, 123, time.UTC)
	cp := domain.SyncCheckpoint{
		JobName:           "full:prec",
		PageCursor:        "eyJ2IjoxfQ==",
		LastProcessedDate: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		RunStartedAt:      started,
	}
	require.NoError(t, checkpoints.Save(ctx, cp))
	cp.PageCursor = "next"
	require.NoError(t, checkpoints.Save(ctx, cp))

	got, err := checkpoints.Get(ctx, "full:prec")
	require.NoError(t, err)
	assert.Equal(t, "next", got.PageCursor)
	assert.True(t, started.Equal(got.RunStartedAt))
	assert.True(t, cp.LastProcessedDate.Equal(got.LastProcessedDate))

	require.NoError(t, checkpoints.Delete(ctx, "full:prec"))
	_, err = checkpoints.Get(ctx, "full:prec")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, checkpoints.Save(ctx, domain.SyncCheckpoint{}), domain.ErrInvalidInput)
}

// ==================== RunStatsStore Tests ====================

func TestRunStatsStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	runs := setupTestStore(t).RunStatsStore()
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	run := &domain.RunStats{
		RunID: "r1", JobName: "full:prec", Mode: domain.SyncModeFull, Kind: domain.KindCase,
		Status: domain.RunRunning, StartedAt: base,
	}
	require.NoError(t, runs.Start(ctx, run))
	assert.Error(t, runs.Start(ctx, run), "run IDs are unique")

	_, err := runs.LastCompleted(ctx, "full:prec")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	done := *run
	done.Status = domain.RunAborted
	done.AbortReason = "run aborted: daily request quota exceeded"
	done.TotalSeen, done.Succeeded, done.Failed, done.PagesProcessed = 120, 118, 2, 2
	done.FinishedAt = base.Add(time.Hour)
	require.NoError(t, runs.Finish(ctx, &done))
	assert.ErrorIs(t, runs.Finish(ctx, &done), domain.ErrInvalidInput)
	assert.ErrorIs(t, runs.Finish(ctx, &domain.RunStats{RunID: "missing"}), domain.ErrNotFound)

	list, err := runs.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	got := list[0]
	assert.Equal(t, domain.RunAborted, got.Status)
	assert.Equal(t, done.AbortReason, got.AbortReason)
	assert.Equal(t, 118, got.Succeeded)
	assert.Equal(t, 2, got.PagesProcessed)
	assert.Equal(t, time.Hour, got.Duration())

	_, err = runs.LastCompleted(ctx, "full:prec")
	assert.ErrorIs(t, err, domain.ErrNotFound, "aborted runs do not count")
}

func TestRunStatsStore_LastCompletedAndList(t *testing.T) {
	ctx := context.Background()
	runs := setupTestStore(t).RunStatsStore()
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		r := &domain.RunStats{
			RunID: fmt.Sprintf("r%d", i), JobName: "incremental:prec", Mode: domain.SyncModeIncremental,
			Kind: domain.KindCase, Status: domain.RunRunning, StartedAt: base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, runs.Start(ctx, r))
		r.Status = domain.RunCompleted
		r.FinishedAt = r.StartedAt.Add(time.Duration(i+1) * time.Millisecond)
		require.NoError(t, runs.Finish(ctx, r))
	}

	last, err := runs.LastCompleted(ctx, "incremental:prec")
	require.NoError(t, err)
	assert.Equal(t, "r2", last.RunID)
	assert.True(t, base.Add(2*time.Hour+3*time.Millisecond).Equal(last.FinishedAt))

	list, err := runs.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "r2", list[0].RunID)
	assert.Equal(t, "r1", list[1].RunID)

	all, err := runs.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

// ==================== EmbeddingEntryStore Tests ====================

func TestEntryStore_PutListDelete(t *testing.T) {
	ctx := context.Background()
	entries := setupTestStore(t).EmbeddingEntryStore()

	entry := func(serial string, pos, gen int64) domain.EmbeddingEntry {
		return domain.EmbeddingEntry{
			SerialNumber: serial, Kind: domain.KindCase, Position: pos, Generation: gen,
			ModelIdentifier: "nomic-embed-text", TextType: domain.TextTypeSearch, SourceTextPreview: "손해배상",
		}
	}
	require.NoError(t, entries.Put(ctx, entry("b", 1, 1), entry("a", 0, 1), entry("a", 0, 2)))
	require.NoError(t, entries.Put(ctx, entry("a", 2, 1)))
	require.NoError(t, entries.Put(ctx))

	list, err := entries.List(ctx, domain.KindCase, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].SerialNumber)
	assert.Equal(t, "a", list[1].SerialNumber)
	assert.Equal(t, int64(2), list[1].Position)
	assert.Equal(t, domain.TextTypeSearch, list[1].TextType)
	assert.Equal(t, "손해배상", list[1].SourceTextPreview)

	require.NoError(t, entries.DeleteGeneration(ctx, domain.KindCase, 1))
	list, err = entries.List(ctx, domain.KindCase, 1)
	require.NoError(t, err)
	assert.Empty(t, list)
	list, err = entries.List(ctx, domain.KindCase, 2)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestEntryStore_Generations(t *testing.T) {
	ctx := context.Background()
	entries := setupTestStore(t).EmbeddingEntryStore()

	gen, err := entries.CurrentGeneration(ctx, domain.KindCase)
	require.NoError(t, err)
	assert.Zero(t, gen)

	require.NoError(t, entries.SetCurrentGeneration(ctx, domain.KindCase, 1))
	require.NoError(t, entries.SetCurrentGeneration(ctx, domain.KindCase, 3))
	require.NoError(t, entries.SetCurrentGeneration(ctx, domain.KindConstitutional, 1))

	gen, err = entries.CurrentGeneration(ctx, domain.KindCase)
	require.NoError(t, err)
	assert.Equal(t, int64(3), gen)
}
