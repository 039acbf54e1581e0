package todo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/radbot/radbot/internal/common/logger"
)

// Service provides validation over the todo store.
type Service struct {
	store  Store
	logger *logger.Logger
}

// NewService creates a new todo service.
func NewService(store Store, log *logger.Logger) *Service {
	return &Service{store: store, logger: log}
}

// AddTask validates and creates a task.
func (s *Service) AddTask(ctx context.Context, req *CreateTaskRequest) (*Task, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || len(req.Title) > 500 {
		return nil, fmt.Errorf("validation: title must be 1-500 characters")
	}
	task := &Task{
		ProjectID: req.ProjectID,
		Title:     req.Title,
		Notes:     req.Notes,
		DueAt:     req.DueAt,
	}
	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// UpdateTask applies a partial update to a task.
func (s *Service) UpdateTask(ctx context.Context, id string, req *UpdateTaskRequest) (*Task, error) {
	if req.Title != nil {
		trimmed := strings.TrimSpace(*req.Title)
		if trimmed == "" || len(trimmed) > 500 {
			return nil, fmt.Errorf("validation: title must be 1-500 characters")
		}
		req.Title = &trimmed
	}
	return s.store.UpdateTask(ctx, id, req)
}

// DeleteTask removes a task.
func (s *Service) DeleteTask(ctx context.Context, id string) error {
	return s.store.DeleteTask(ctx, id)
}

// ListTasks returns tasks, open ones first.
func (s *Service) ListTasks(ctx context.Context, projectID string, includeDone bool) ([]*Task, error) {
	return s.store.ListTasks(ctx, projectID, includeDone)
}

// AddProject validates and creates a project.
func (s *Service) AddProject(ctx context.Context, req *CreateProjectRequest) (*Project, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || len(req.Name) > 200 {
		return nil, fmt.Errorf("validation: name must be 1-200 characters")
	}
	project := &Project{Name: req.Name}
	if err := s.store.CreateProject(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// DeleteProject removes a project; its tasks move to the inbox.
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	return s.store.DeleteProject(ctx, id)
}

// ListProjects returns all projects.
func (s *Service) ListProjects(ctx context.Context) ([]*Project, error) {
	return s.store.ListProjects(ctx)
}

// AddReminder validates and creates a reminder.
func (s *Service) AddReminder(ctx context.Context, req *CreateReminderRequest) (*Reminder, error) {
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" || len(req.Message) > 1000 {
		return nil, fmt.Errorf("validation: message must be 1-1000 characters")
	}
	if req.RemindAt.IsZero() {
		return nil, fmt.Errorf("validation: remind_at is required")
	}
	if req.RemindAt.Before(time.Now().UTC()) {
		return nil, fmt.Errorf("validation: remind_at must be in the future")
	}
	reminder := &Reminder{
		Message:   req.Message,
		RemindAt:  req.RemindAt.UTC(),
		SessionID: req.SessionID,
	}
	if err := s.store.CreateReminder(ctx, reminder); err != nil {
		return nil, err
	}
	return reminder, nil
}

// DeleteReminder removes a reminder.
func (s *Service) DeleteReminder(ctx context.Context, id string) error {
	return s.store.DeleteReminder(ctx, id)
}

// ListReminders returns reminders ordered by due time.
func (s *Service) ListReminders(ctx context.Context, includeFired bool) ([]*Reminder, error) {
	return s.store.ListReminders(ctx, includeFired)
}

// Store exposes the underlying store for the scheduler engine.
func (s *Service) Store() Store {
	return s.store
}
