// Package todo persists tasks, projects, and one-shot reminders. Reminders
// fire through the scheduler engine.
package todo

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a task, project, or reminder does not exist.
var ErrNotFound = errors.New("todo item not found")

// Store abstracts todo persistence.
type Store interface {
	CreateTask(ctx context.Context, task *Task) error
	GetTask(ctx context.Context, id string) (*Task, error)
	UpdateTask(ctx context.Context, id string, req *UpdateTaskRequest) (*Task, error)
	DeleteTask(ctx context.Context, id string) error
	// ListTasks returns tasks, open ones first. projectID filters when
	// non-empty; includeDone controls completed tasks.
	ListTasks(ctx context.Context, projectID string, includeDone bool) ([]*Task, error)

	CreateProject(ctx context.Context, project *Project) error
	DeleteProject(ctx context.Context, id string) error
	ListProjects(ctx context.Context) ([]*Project, error)

	CreateReminder(ctx context.Context, reminder *Reminder) error
	DeleteReminder(ctx context.Context, id string) error
	ListReminders(ctx context.Context, includeFired bool) ([]*Reminder, error)
	// DueReminders returns unfired reminders with remind_at <= now.
	DueReminders(ctx context.Context, now time.Time) ([]*Reminder, error)
	MarkReminderFired(ctx context.Context, id string) error
}
