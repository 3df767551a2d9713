package driven

import (
	"context"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
)

// SchedulerStore persists scheduled task state so a restarted watcher keeps
// its timetable.
type SchedulerStore interface {
	// GetTask retrieves a scheduled task by ID.
	// Returns domain.ErrNotFound if the task does not exist.
	GetTask(ctx context.Context, taskID string) (*domain.ScheduledTask, error)

	// ListTasks returns all scheduled tasks ordered by ID.
	ListTasks(ctx context.Context) ([]domain.ScheduledTask, error)

	// SaveTask creates or updates a task.
	SaveTask(ctx context.Context, task *domain.ScheduledTask) error

	// DeleteTask removes a task from storage.
	DeleteTask(ctx context.Context, taskID string) error
}
