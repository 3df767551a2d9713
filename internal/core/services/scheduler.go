package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driven"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driving"
	"github.com/custodia-labs/lexharvest/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// DefaultTick is how often the scheduler looks for due tasks.
const DefaultTick = time.Minute

// Scheduler runs incremental syncs of each watched kind on an interval.
// Task state is persisted so a restart keeps the timetable.
type Scheduler struct {
	store    driven.SchedulerStore
	syncOrch driving.SyncOrchestrator
	tick     time.Duration
	now      func() time.Time

	// onRun is called after each task run. Used by tests.
	onRun func(task domain.ScheduledTask)

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	done    chan struct{}
}

// NewScheduler creates a scheduler. A non-positive tick uses DefaultTick.
func NewScheduler(store driven.SchedulerStore, syncOrch driving.SyncOrchestrator, tick time.Duration) *Scheduler {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Scheduler{
		store:    store,
		syncOrch: syncOrch,
		tick:     tick,
		now:      time.Now,
	}
}

// Watch registers or updates the task of each kind. Existing tasks keep
// their NextRun unless the interval changed.
func (s *Scheduler) Watch(ctx context.Context, interval time.Duration, kinds ...domain.DocumentKind) error {
	if interval <= 0 {
		return fmt.Errorf("%w: watch interval must be positive", domain.ErrInvalidInput)
	}
	for _, kind := range kinds {
		if err := s.ensureTask(ctx, kind, interval); err != nil {
			return err
		}
	}
	return nil
}

// ensureTask creates or updates the task of a kind.
func (s *Scheduler) ensureTask(ctx context.Context, kind domain.DocumentKind, interval time.Duration) error {
	id := domain.WatchTaskID(kind)
	task, err := s.store.GetTask(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		// A new task runs on the first tick.
		task = &domain.ScheduledTask{ID: id, Kind: kind, Interval: interval, NextRun: s.now()}
	case err != nil:
		return fmt.Errorf("get task %s: %w", id, err)
	case task.Interval != interval:
		task.Interval = interval
		task.NextRun = s.now().Add(interval)
	}
	task.Enabled = true
	return s.store.SaveTask(ctx, task)
}

// Start runs the scheduler loop. It blocks until Stop is called or ctx ends.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	stopCh, done := s.stopCh, s.done
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(done)
	}()
	return s.run(ctx, stopCh)
}

// Stop shuts the loop down and waits for an in-flight run to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	done := s.done
	s.mu.Unlock()

	<-done
	return nil
}

func (s *Scheduler) run(ctx context.Context, stopCh <-chan struct{}) error {
	// Check for due tasks immediately on startup
	s.runDueTasks(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			s.runDueTasks(ctx)
		}
	}
}

// runDueTasks runs every due task in ID order, one at a time.
func (s *Scheduler) runDueTasks(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Error("scheduler: list tasks: %v", err)
		return
	}

	for i := range tasks {
		if ctx.Err() != nil {
			return
		}
		if tasks[i].Due(s.now()) {
			s.runTask(ctx, &tasks[i])
		}
	}
}

// runTask runs one incremental sync and records the outcome on the task.
func (s *Scheduler) runTask(ctx context.Context, task *domain.ScheduledTask) {
	logger.Section(fmt.Sprintf("Scheduled sync: %s", task.Kind))
	started := s.now()

	results, err := s.syncOrch.Run(ctx, driving.SyncRequest{
		Mode:   domain.SyncModeIncremental,
		Kinds:  []domain.DocumentKind{task.Kind},
		Resume: true,
	})
	ended := s.now()

	task.LastRun = started
	task.NextRun = ended.Add(task.Interval)
	if len(results) > 0 {
		task.LastRunID = results[len(results)-1].RunID
	}
	if err != nil {
		task.LastError = err.Error()
		logger.Warn("scheduler: %s: %v", task.ID, err)
	} else {
		task.LastError = ""
		task.LastSuccess = ended
	}

	// Persist even when the run was cancelled.
	if saveErr := s.store.SaveTask(context.WithoutCancel(ctx), task); saveErr != nil {
		logger.Error("scheduler: save task %s: %v", task.ID, saveErr)
	}
	if s.onRun != nil {
		s.onRun(*task)
	}
}
