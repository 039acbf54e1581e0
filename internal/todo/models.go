package todo

import "time"

// Project groups tasks.
type Project struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Task is one todo item, optionally belonging to a project.
type Task struct {
	ID          string     `json:"id" db:"id"`
	ProjectID   string     `json:"project_id,omitempty" db:"project_id"`
	Title       string     `json:"title" db:"title"`
	Notes       string     `json:"notes,omitempty" db:"notes"`
	Done        bool       `json:"done" db:"done"`
	DueAt       *time.Time `json:"due_at,omitempty" db:"due_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// Reminder is a one-shot prompt fired into a session at remind_at.
type Reminder struct {
	ID        string    `json:"id" db:"id"`
	Message   string    `json:"message" db:"message"`
	RemindAt  time.Time `json:"remind_at" db:"remind_at"`
	SessionID string    `json:"session_id" db:"session_id"`
	Fired     bool      `json:"fired" db:"fired"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CreateTaskRequest is the request body for creating a task.
type CreateTaskRequest struct {
	Title     string     `json:"title"`
	Notes     string     `json:"notes,omitempty"`
	ProjectID string     `json:"project_id,omitempty"`
	DueAt     *time.Time `json:"due_at,omitempty"`
}

// UpdateTaskRequest is the request body for updating a task.
type UpdateTaskRequest struct {
	Title *string    `json:"title,omitempty"`
	Notes *string    `json:"notes,omitempty"`
	Done  *bool      `json:"done,omitempty"`
	DueAt *time.Time `json:"due_at,omitempty"`
}

// CreateProjectRequest is the request body for creating a project.
type CreateProjectRequest struct {
	Name string `json:"name"`
}

// CreateReminderRequest is the request body for creating a reminder.
type CreateReminderRequest struct {
	Message   string    `json:"message"`
	RemindAt  time.Time `json:"remind_at"`
	SessionID string    `json:"session_id,omitempty"`
}
