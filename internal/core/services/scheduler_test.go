package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexharvest/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/lexharvest/internal/core/domain"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driving"
)

// --- Mock implementations for scheduler testing ---

// schedulerMockOrchestrator records requests and returns canned results.
type schedulerMockOrchestrator struct {
	mu       sync.Mutex
	requests []driving.SyncRequest
	err      error
}

func (m *schedulerMockOrchestrator) Run(_ context.Context, req driving.SyncRequest) ([]domain.RunStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	stats := domain.RunStats{RunID: "run-" + req.Kinds[0].Target(), Kind: req.Kinds[0]}
	return []domain.RunStats{stats}, m.err
}

func (m *schedulerMockOrchestrator) Status(kind domain.DocumentKind) driving.SyncStatus {
	return driving.SyncStatus{Kind: kind, Phase: domain.PhaseIdle}
}

func (m *schedulerMockOrchestrator) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func newTestScheduler(orch *schedulerMockOrchestrator) (*Scheduler, *memory.SchedulerStore, *time.Time) {
	store := memory.NewSchedulerStore()
	s := NewScheduler(store, orch, time.Hour)
	clock := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }
	return s, store, &clock
}

func TestScheduler_WatchRegistersTasks(t *testing.T) {
	ctx := context.Background()
	s, store, clock := newTestScheduler(&schedulerMockOrchestrator{})

	require.NoError(t, s.Watch(ctx, 6*time.Hour, domain.KindCase, domain.KindInterpretation))

	tasks, err := store.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "watch:expc", tasks[0].ID)
	assert.Equal(t, "watch:prec", tasks[1].ID)
	assert.True(t, tasks[1].Due(*clock), "new tasks run on the first tick")

	assert.ErrorIs(t, s.Watch(ctx, 0, domain.KindCase), domain.ErrInvalidInput)
}

func TestScheduler_WatchKeepsTimetable(t *testing.T) {
	ctx := context.Background()
	s, store, clock := newTestScheduler(&schedulerMockOrchestrator{})

	next := clock.Add(3 * time.Hour)
	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{
		ID: "watch:prec", Kind: domain.KindCase, Interval: 6 * time.Hour, NextRun: next,
	}))

	require.NoError(t, s.Watch(ctx, 6*time.Hour, domain.KindCase))
	task, err := store.GetTask(ctx, "watch:prec")
	require.NoError(t, err)
	assert.Equal(t, next, task.NextRun)
	assert.True(t, task.Enabled)

	require.NoError(t, s.Watch(ctx, time.Hour, domain.KindCase))
	task, err = store.GetTask(ctx, "watch:prec")
	require.NoError(t, err)
	assert.Equal(t, clock.Add(time.Hour), task.NextRun, "a new interval resets the next run")
}

func TestScheduler_RunDueTasks(t *testing.T) {
	ctx := context.Background()
	orch := &schedulerMockOrchestrator{}
	s, store, clock := newTestScheduler(orch)

	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{
		ID: "watch:prec", Kind: domain.KindCase, Interval: time.Hour, NextRun: *clock, Enabled: true,
	}))
	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{
		ID: "watch:detc", Kind: domain.KindConstitutional, Interval: time.Hour, NextRun: clock.Add(time.Minute), Enabled: true,
	}))
	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{
		ID: "watch:expc", Kind: domain.KindInterpretation, Interval: time.Hour, NextRun: *clock, Enabled: false,
	}))

	s.runDueTasks(ctx)

	require.Equal(t, 1, orch.calls())
	req := orch.requests[0]
	assert.Equal(t, domain.SyncModeIncremental, req.Mode)
	assert.Equal(t, []domain.DocumentKind{domain.KindCase}, req.Kinds)
	assert.True(t, req.Resume)

	task, err := store.GetTask(ctx, "watch:prec")
	require.NoError(t, err)
	assert.Equal(t, *clock, task.LastRun)
	assert.Equal(t, *clock, task.LastSuccess)
	assert.Equal(t, clock.Add(time.Hour), task.NextRun)
	assert.Equal(t, "run-prec", task.LastRunID)
	assert.Empty(t, task.LastError)
}

func TestScheduler_RecordsFailures(t *testing.T) {
	ctx := context.Background()
	orch := &schedulerMockOrchestrator{err: errors.New("run aborted: daily request quota exceeded")}
	s, store, clock := newTestScheduler(orch)
	require.NoError(t, s.Watch(ctx, time.Hour, domain.KindCase))

	s.runDueTasks(ctx)

	task, err := store.GetTask(ctx, "watch:prec")
	require.NoError(t, err)
	assert.Contains(t, task.LastError, "quota")
	assert.True(t, task.LastSuccess.IsZero())
	assert.Equal(t, clock.Add(time.Hour), task.NextRun, "a failed run still waits a full interval")
}

func TestScheduler_StartStop(t *testing.T) {
	ctx := context.Background()
	orch := &schedulerMockOrchestrator{}
	s := NewScheduler(memory.NewSchedulerStore(), orch, 5*time.Millisecond)
	ran := make(chan domain.ScheduledTask, 4)
	s.onRun = func(task domain.ScheduledTask) { ran <- task }
	require.NoError(t, s.Watch(ctx, time.Hour, domain.KindCase))

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(ctx) }()

	select {
	case task := <-ran:
		assert.Equal(t, "watch:prec", task.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled task did not run")
	}

	require.NoError(t, s.Stop())
	require.NoError(t, <-errCh)
	assert.Equal(t, 1, orch.calls(), "the next run is an hour away")

	// Stopping twice is fine.
	require.NoError(t, s.Stop())
}

func TestScheduler_StartEndsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(memory.NewSchedulerStore(), &schedulerMockOrchestrator{}, time.Millisecond)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
