package scheduler

import (
	"context"
	"fmt"
	"strings"

	"github.com/radbot/radbot/internal/common/logger"
)

// Service validates scheduled-task writes and keeps the engine's cron
// table in sync with the store.
type Service struct {
	store  Store
	engine *Engine
	logger *logger.Logger
}

// NewService creates a scheduler service.
func NewService(store Store, engine *Engine, log *logger.Logger) *Service {
	return &Service{store: store, engine: engine, logger: log}
}

// Create validates and stores a task, then reschedules.
func (s *Service) Create(ctx context.Context, req *CreateTaskRequest) (*ScheduledTask, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || len(req.Name) > 200 {
		return nil, fmt.Errorf("validation: name must be 1-200 characters")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("validation: prompt is required")
	}
	if err := ValidateSchedule(req.CronExpression, req.Timezone); err != nil {
		return nil, fmt.Errorf("validation: %w", err)
	}
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}

	task := &ScheduledTask{
		Name:           req.Name,
		CronExpression: req.CronExpression,
		Timezone:       req.Timezone,
		Prompt:         req.Prompt,
		SessionID:      req.SessionID,
		Enabled:        true,
	}
	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	return task, s.reschedule(ctx)
}

// Update applies a partial update, then reschedules.
func (s *Service) Update(ctx context.Context, id string, req *UpdateTaskRequest) (*ScheduledTask, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		if trimmed == "" || len(trimmed) > 200 {
			return nil, fmt.Errorf("validation: name must be 1-200 characters")
		}
		task.Name = trimmed
	}
	if req.CronExpression != nil {
		task.CronExpression = *req.CronExpression
	}
	if req.Timezone != nil {
		task.Timezone = *req.Timezone
	}
	if err := ValidateSchedule(task.CronExpression, task.Timezone); err != nil {
		return nil, fmt.Errorf("validation: %w", err)
	}
	if req.Prompt != nil {
		if strings.TrimSpace(*req.Prompt) == "" {
			return nil, fmt.Errorf("validation: prompt is required")
		}
		task.Prompt = *req.Prompt
	}
	if req.SessionID != nil {
		task.SessionID = *req.SessionID
	}
	if req.Enabled != nil {
		task.Enabled = *req.Enabled
	}

	if err := s.store.UpdateTask(ctx, task); err != nil {
		return nil, err
	}
	return task, s.reschedule(ctx)
}

// Delete removes a task, then reschedules.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return err
	}
	return s.reschedule(ctx)
}

// Get returns one task.
func (s *Service) Get(ctx context.Context, id string) (*ScheduledTask, error) {
	return s.store.GetTask(ctx, id)
}

// List returns all tasks.
func (s *Service) List(ctx context.Context) ([]*ScheduledTask, error) {
	return s.store.ListTasks(ctx)
}

func (s *Service) reschedule(ctx context.Context) error {
	if s.engine == nil {
		return nil
	}
	return s.engine.Rebuild(ctx)
}
