// Package scheduler fires stored prompts into the agent runtime on cron
// schedules, and delivers due reminders.
package scheduler

import "time"

// ScheduledTask is one recurring prompt. CronExpression uses the standard
// five fields (minute hour dom month dow) evaluated in Timezone.
type ScheduledTask struct {
	ID             string     `json:"id" db:"id"`
	Name           string     `json:"name" db:"name"`
	CronExpression string     `json:"cron_expression" db:"cron_expression"`
	Timezone       string     `json:"timezone" db:"timezone"`
	Prompt         string     `json:"prompt" db:"prompt"`
	SessionID      string     `json:"session_id" db:"session_id"`
	Enabled        bool       `json:"enabled" db:"enabled"`
	LastRunAt      *time.Time `json:"last_run_at,omitempty" db:"last_run_at"`
	RunCount       int64      `json:"run_count" db:"run_count"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// CreateTaskRequest is the request body for creating a scheduled task.
type CreateTaskRequest struct {
	Name           string `json:"name"`
	CronExpression string `json:"cron_expression"`
	Timezone       string `json:"timezone"`
	Prompt         string `json:"prompt"`
	SessionID      string `json:"session_id"`
}

// UpdateTaskRequest is the request body for updating a scheduled task.
type UpdateTaskRequest struct {
	Name           *string `json:"name,omitempty"`
	CronExpression *string `json:"cron_expression,omitempty"`
	Timezone       *string `json:"timezone,omitempty"`
	Prompt         *string `json:"prompt,omitempty"`
	SessionID      *string `json:"session_id,omitempty"`
	Enabled        *bool   `json:"enabled,omitempty"`
}
