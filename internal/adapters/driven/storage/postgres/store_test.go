package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
)

// setupTestDB connects to the database named by LEXHARVEST_TEST_POSTGRES_DSN
// and empties every table. Tests are skipped when it is unset.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("LEXHARVEST_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LEXHARVEST_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	db, err := Connect(ctx, DefaultConfig(dsn))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.InitSchema(ctx))
	_, err = db.ExecContext(ctx, `TRUNCATE records, sync_checkpoints, sync_runs,
		index_generations, embedding_entries, scheduled_tasks, quota_counts, run_locks`)
	require.NoError(t, err)
	return db
}

func TestHelpers(t *testing.T) {
	assert.False(t, NullString("").Valid)
	assert.Equal(t, "x", NullString("x").String)

	assert.False(t, NullTime(time.Time{}).Valid)
	loc := time.FixedZone("KST", 9*3600)
	nt := NullTime(time.Date(2024, 3, 1, 9, 0, 0, 0, loc))
	require.True(t, nt.Valid)
	assert.Equal(t, time.UTC, nt.Time.Location())
	assert.True(t, TimeValue(nt).Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, TimeValue(NullTime(time.Time{})).IsZero())
}

func TestConnect_EmptyURL(t *testing.T) {
	_, err := Connect(context.Background(), DefaultConfig(""))
	assert.Error(t, err)
}

func TestRecordStore(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	store := db.RecordStore()

	rec := &domain.CanonicalRecord{
		Kind:              domain.KindCase,
		SerialNumber:      "228541",
		Title:             "손해배상(기)",
		CaseNumber:        "2019다12345",
		DecisionDate:      time.Date(2021, 4, 29, 0, 0, 0, 0, time.UTC),
		CourtName:         "대법원",
		CourtProvenance:   domain.ProvenanceAsserted,
		SummaryText:       "요지",
		ReferenceArticles: []domain.ReferenceArticle{{LawName: "민법", ArticleNumber: "제750조"}},
	}
	require.NoError(t, store.Upsert(ctx, rec))
	assert.False(t, rec.UpdatedAt.IsZero())

	got, err := store.Get(ctx, rec.Key())
	require.NoError(t, err)
	assert.Equal(t, rec.Title, got.Title)
	assert.Equal(t, "2021-04-29", got.DecisionDateString())
	assert.Equal(t, domain.ProvenanceAsserted, got.CourtProvenance)
	assert.Equal(t, rec.ReferenceArticles, got.ReferenceArticles)
	assert.Nil(t, got.ReferenceCases)

	rec.Title = "손해배상"
	require.NoError(t, store.Upsert(ctx, rec))
	n, err := store.Count(ctx, domain.KindCase)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	for _, serial := range []string{"9", "100000", "31"} {
		require.NoError(t, store.Upsert(ctx, &domain.CanonicalRecord{
			Kind: domain.KindCase, SerialNumber: serial, Title: "t", CaseNumber: "c",
		}))
	}
	var order []string
	require.NoError(t, store.Iterate(ctx, domain.KindCase, func(r *domain.CanonicalRecord) error {
		order = append(order, r.SerialNumber)
		return nil
	}))
	assert.Equal(t, []string{"9", "31", "100000", "228541"}, order)

	_, err = store.Get(ctx, domain.RecordKey{Kind: domain.KindConstitutional, SerialNumber: "228541"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunStatsStore(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	store := db.RunStatsStore()

	start := time.Now().UTC().Truncate(time.Millisecond)
	for i, id := range []string{"a", "b"} {
		require.NoError(t, store.Start(ctx, &domain.RunStats{
			RunID: id, JobName: "full:prec", Mode: domain.SyncModeFull, Kind: domain.KindCase,
			Status: domain.RunRunning, StartedAt: start.Add(time.Duration(i) * time.Second),
		}))
	}

	done := &domain.RunStats{RunID: "a", Status: domain.RunCompleted, Succeeded: 3, TotalSeen: 3,
		PagesProcessed: 1, FinishedAt: start.Add(time.Minute)}
	require.NoError(t, store.Finish(ctx, done))
	assert.ErrorIs(t, store.Finish(ctx, done), domain.ErrInvalidInput)
	assert.ErrorIs(t, store.Finish(ctx, &domain.RunStats{RunID: "zz"}), domain.ErrNotFound)

	last, err := store.LastCompleted(ctx, "full:prec")
	require.NoError(t, err)
	assert.Equal(t, "a", last.RunID)
	assert.Equal(t, 3, last.Succeeded)

	runs, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].RunID)

	runs, err = store.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestCheckpointAndEntryStores(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	cps := db.CheckpointStore()
	require.NoError(t, cps.Save(ctx, domain.SyncCheckpoint{JobName: "full:detc", PageCursor: "abc"}))
	cp, err := cps.Get(ctx, "full:detc")
	require.NoError(t, err)
	assert.Equal(t, "abc", cp.PageCursor)
	require.NoError(t, cps.Delete(ctx, "full:detc"))
	_, err = cps.Get(ctx, "full:detc")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	entries := db.EmbeddingEntryStore()
	gen, err := entries.CurrentGeneration(ctx, domain.KindCase)
	require.NoError(t, err)
	assert.Zero(t, gen)

	require.NoError(t, entries.Put(ctx,
		domain.EmbeddingEntry{Kind: domain.KindCase, Generation: 1, SerialNumber: "2", ModelIdentifier: "m", TextType: domain.TextTypeSearch, Position: 1},
		domain.EmbeddingEntry{Kind: domain.KindCase, Generation: 1, SerialNumber: "1", ModelIdentifier: "m", TextType: domain.TextTypeSearch, Position: 0},
	))
	require.NoError(t, entries.SetCurrentGeneration(ctx, domain.KindCase, 1))

	list, err := entries.List(ctx, domain.KindCase, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "1", list[0].SerialNumber)

	require.NoError(t, entries.DeleteGeneration(ctx, domain.KindCase, 1))
	list, err = entries.List(ctx, domain.KindCase, 1)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSchedulerStore(t *testing.T) {
	ctx := context.Background()
	store := setupTestDB(t).SchedulerStore()

	next := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{
		ID: "watch:prec", Kind: domain.KindCase, Interval: time.Hour, NextRun: next, Enabled: true,
	}))

	task, err := store.GetTask(ctx, "watch:prec")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, task.Interval)
	assert.True(t, task.NextRun.Equal(next))
	assert.True(t, task.LastRun.IsZero())

	require.NoError(t, store.DeleteTask(ctx, "watch:prec"))
	_, err = store.GetTask(ctx, "watch:prec")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCoordination_SharedBetweenHandles(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	other, err := Connect(ctx, DefaultConfig(os.Getenv("LEXHARVEST_TEST_POSTGRES_DSN")))
	require.NoError(t, err)
	defer other.Close()

	for i := int64(1); i <= 2; i++ {
		n, err := db.QuotaCounter().Increment(ctx, "2025-05-01")
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}
	n, err := other.QuotaCounter().Increment(ctx, "2025-05-01")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	n, err = db.QuotaCounter().Count(ctx, "2025-05-01")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	a, b := db.RunLock(), other.RunLock()
	ok, err := a.Acquire(ctx, "sync:prec", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = b.Acquire(ctx, "sync:prec", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Release(ctx, "sync:prec"))
	require.NoError(t, a.Release(ctx, "sync:prec"))
	ok, err = b.Acquire(ctx, "sync:prec", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}
