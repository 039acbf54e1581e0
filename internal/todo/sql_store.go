package todo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/radbot/radbot/internal/db"
)

type sqlStore struct {
	pool *db.Pool
}

var _ Store = (*sqlStore)(nil)

// NewStore creates the SQL-backed todo store and initializes its schema.
func NewStore(pool *db.Pool) (Store, error) {
	s := &sqlStore{pool: pool}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("todo schema init: %w", err)
	}
	return s, nil
}

func (s *sqlStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL UNIQUE,
		created_at TIMESTAMP NOT NULL
	);
	CREATE TABLE IF NOT EXISTS tasks (
		id           TEXT PRIMARY KEY,
		project_id   TEXT NOT NULL DEFAULT '',
		title        TEXT NOT NULL,
		notes        TEXT NOT NULL DEFAULT '',
		done         INTEGER NOT NULL DEFAULT 0,
		due_at       TIMESTAMP,
		created_at   TIMESTAMP NOT NULL,
		completed_at TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id, done);
	CREATE TABLE IF NOT EXISTS reminders (
		id         TEXT PRIMARY KEY,
		message    TEXT NOT NULL,
		remind_at  TIMESTAMP NOT NULL,
		session_id TEXT NOT NULL,
		fired      INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders(fired, remind_at);
	`
	_, err := s.pool.Writer().Exec(schema)
	return err
}

func (s *sqlStore) CreateTask(ctx context.Context, task *Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	w := s.pool.Writer()
	query := w.Rebind(`
		INSERT INTO tasks (id, project_id, title, notes, done, due_at, created_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)`)
	if _, err := w.ExecContext(ctx, query,
		task.ID, task.ProjectID, task.Title, task.Notes, task.DueAt, task.CreatedAt,
	); err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (s *sqlStore) GetTask(ctx context.Context, id string) (*Task, error) {
	r := s.pool.Reader()
	var task Task
	query := r.Rebind(`
		SELECT id, project_id, title, notes, done, due_at, created_at, completed_at
		FROM tasks WHERE id = ?`)
	if err := r.GetContext(ctx, &task, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &task, nil
}

func (s *sqlStore) UpdateTask(ctx context.Context, id string, req *UpdateTaskRequest) (*Task, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Notes != nil {
		task.Notes = *req.Notes
	}
	if req.DueAt != nil {
		task.DueAt = req.DueAt
	}
	if req.Done != nil && *req.Done != task.Done {
		task.Done = *req.Done
		if task.Done {
			now := time.Now().UTC()
			task.CompletedAt = &now
		} else {
			task.CompletedAt = nil
		}
	}

	w := s.pool.Writer()
	query := w.Rebind(`
		UPDATE tasks SET title = ?, notes = ?, done = ?, due_at = ?, completed_at = ?
		WHERE id = ?`)
	if _, err := w.ExecContext(ctx, query,
		task.Title, task.Notes, task.Done, task.DueAt, task.CompletedAt, id,
	); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return task, nil
}

func (s *sqlStore) DeleteTask(ctx context.Context, id string) error {
	w := s.pool.Writer()
	result, err := w.ExecContext(ctx, w.Rebind(`DELETE FROM tasks WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *sqlStore) ListTasks(ctx context.Context, projectID string, includeDone bool) ([]*Task, error) {
	r := s.pool.Reader()

	query := `
		SELECT id, project_id, title, notes, done, due_at, created_at, completed_at
		FROM tasks WHERE 1=1`
	var args []any
	if projectID != "" {
		query += ` AND project_id = ?`
		args = append(args, projectID)
	}
	if !includeDone {
		query += ` AND done = 0`
	}
	query += ` ORDER BY done, COALESCE(due_at, created_at), id`

	var tasks []*Task
	if err := r.SelectContext(ctx, &tasks, r.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (s *sqlStore) CreateProject(ctx context.Context, project *Project) error {
	if project.ID == "" {
		project.ID = uuid.New().String()
	}
	if project.CreatedAt.IsZero() {
		project.CreatedAt = time.Now().UTC()
	}
	w := s.pool.Writer()
	query := w.Rebind(`INSERT INTO projects (id, name, created_at) VALUES (?, ?, ?)`)
	if _, err := w.ExecContext(ctx, query, project.ID, project.Name, project.CreatedAt); err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (s *sqlStore) DeleteProject(ctx context.Context, id string) error {
	w := s.pool.Writer()
	tx, err := w.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete project: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Tasks fall back to the inbox rather than disappearing.
	if _, err := tx.ExecContext(ctx,
		tx.Rebind(`UPDATE tasks SET project_id = '' WHERE project_id = ?`), id); err != nil {
		return fmt.Errorf("detach project tasks: %w", err)
	}

	result, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM projects WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return tx.Commit()
}

func (s *sqlStore) ListProjects(ctx context.Context) ([]*Project, error) {
	var projects []*Project
	err := s.pool.Reader().SelectContext(ctx, &projects,
		`SELECT id, name, created_at FROM projects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

func (s *sqlStore) CreateReminder(ctx context.Context, reminder *Reminder) error {
	if reminder.ID == "" {
		reminder.ID = uuid.New().String()
	}
	if reminder.CreatedAt.IsZero() {
		reminder.CreatedAt = time.Now().UTC()
	}
	w := s.pool.Writer()
	query := w.Rebind(`
		INSERT INTO reminders (id, message, remind_at, session_id, fired, created_at)
		VALUES (?, ?, ?, ?, 0, ?)`)
	if _, err := w.ExecContext(ctx, query,
		reminder.ID, reminder.Message, reminder.RemindAt, reminder.SessionID, reminder.CreatedAt,
	); err != nil {
		return fmt.Errorf("create reminder: %w", err)
	}
	return nil
}

func (s *sqlStore) DeleteReminder(ctx context.Context, id string) error {
	w := s.pool.Writer()
	result, err := w.ExecContext(ctx, w.Rebind(`DELETE FROM reminders WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *sqlStore) ListReminders(ctx context.Context, includeFired bool) ([]*Reminder, error) {
	query := `SELECT id, message, remind_at, session_id, fired, created_at FROM reminders`
	if !includeFired {
		query += ` WHERE fired = 0`
	}
	query += ` ORDER BY remind_at, id`

	var reminders []*Reminder
	if err := s.pool.Reader().SelectContext(ctx, &reminders, query); err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return reminders, nil
}

func (s *sqlStore) DueReminders(ctx context.Context, now time.Time) ([]*Reminder, error) {
	r := s.pool.Reader()
	var reminders []*Reminder
	query := r.Rebind(`
		SELECT id, message, remind_at, session_id, fired, created_at
		FROM reminders WHERE fired = 0 AND remind_at <= ?
		ORDER BY remind_at, id`)
	if err := r.SelectContext(ctx, &reminders, query, now); err != nil {
		return nil, fmt.Errorf("load due reminders: %w", err)
	}
	return reminders, nil
}

func (s *sqlStore) MarkReminderFired(ctx context.Context, id string) error {
	w := s.pool.Writer()
	if _, err := w.ExecContext(ctx,
		w.Rebind(`UPDATE reminders SET fired = 1 WHERE id = ?`), id); err != nil {
		return fmt.Errorf("mark reminder fired: %w", err)
	}
	return nil
}
