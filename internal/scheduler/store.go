package scheduler

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a scheduled task does not exist.
var ErrNotFound = errors.New("scheduled task not found")

// Store abstracts scheduled-task persistence.
type Store interface {
	// CreateTask inserts a task. Names are unique.
	CreateTask(ctx context.Context, task *ScheduledTask) error

	// GetTask retrieves a task by id.
	GetTask(ctx context.Context, id string) (*ScheduledTask, error)

	// ListTasks returns all tasks ordered by name.
	ListTasks(ctx context.Context) ([]*ScheduledTask, error)

	// UpdateTask persists a fully populated task row.
	UpdateTask(ctx context.Context, task *ScheduledTask) error

	// DeleteTask removes a task.
	DeleteTask(ctx context.Context, id string) error

	// RecordRun bumps run_count and sets last_run_at.
	RecordRun(ctx context.Context, id string, at time.Time) error
}
