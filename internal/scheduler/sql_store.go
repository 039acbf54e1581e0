package scheduler

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

// NewStore creates the SQL-backed scheduled-task store and initializes its
// schema.
func NewStore(pool *db.Pool) (Store, error) {
	s := &sqlStore{pool: pool}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("scheduler schema init: %w", err)
	}
	return s, nil
}

func (s *sqlStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scheduled_tasks (
		id              TEXT PRIMARY KEY,
		name            TEXT NOT NULL UNIQUE,
		cron_expression TEXT NOT NULL,
		timezone        TEXT NOT NULL DEFAULT 'UTC',
		prompt          TEXT NOT NULL,
		session_id      TEXT NOT NULL,
		enabled         INTEGER NOT NULL DEFAULT 1,
		last_run_at     TIMESTAMP,
		run_count       INTEGER NOT NULL DEFAULT 0,
		created_at      TIMESTAMP NOT NULL
	);
	`
	_, err := s.pool.Writer().Exec(schema)
	return err
}

func (s *sqlStore) CreateTask(ctx context.Context, task *ScheduledTask) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	w := s.pool.Writer()
	query := w.Rebind(`
		INSERT INTO scheduled_tasks
			(id, name, cron_expression, timezone, prompt, session_id, enabled, run_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`)
	if _, err := w.ExecContext(ctx, query,
		task.ID, task.Name, task.CronExpression, task.Timezone, task.Prompt,
		task.SessionID, task.Enabled, task.CreatedAt,
	); err != nil {
		return fmt.Errorf("create scheduled task: %w", err)
	}
	return nil
}

func (s *sqlStore) GetTask(ctx context.Context, id string) (*ScheduledTask, error) {
	r := s.pool.Reader()
	var task ScheduledTask
	query := r.Rebind(`SELECT * FROM scheduled_tasks WHERE id = ?`)
	if err := r.GetContext(ctx, &task, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get scheduled task: %w", err)
	}
	return &task, nil
}

func (s *sqlStore) ListTasks(ctx context.Context) ([]*ScheduledTask, error) {
	var tasks []*ScheduledTask
	err := s.pool.Reader().SelectContext(ctx, &tasks,
		`SELECT * FROM scheduled_tasks ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list scheduled tasks: %w", err)
	}
	return tasks, nil
}

func (s *sqlStore) UpdateTask(ctx context.Context, task *ScheduledTask) error {
	w := s.pool.Writer()
	query := w.Rebind(`
		UPDATE scheduled_tasks
		SET name = ?, cron_expression = ?, timezone = ?, prompt = ?,
			session_id = ?, enabled = ?
		WHERE id = ?`)
	result, err := w.ExecContext(ctx, query,
		task.Name, task.CronExpression, task.Timezone, task.Prompt,
		task.SessionID, task.Enabled, task.ID,
	)
	if err != nil {
		return fmt.Errorf("update scheduled task: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, task.ID)
	}
	return nil
}

func (s *sqlStore) DeleteTask(ctx context.Context, id string) error {
	w := s.pool.Writer()
	result, err := w.ExecContext(ctx,
		w.Rebind(`DELETE FROM scheduled_tasks WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete scheduled task: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *sqlStore) RecordRun(ctx context.Context, id string, at time.Time) error {
	w := s.pool.Writer()
	if _, err := w.ExecContext(ctx, w.Rebind(`
		UPDATE scheduled_tasks SET last_run_at = ?, run_count = run_count + 1
		WHERE id = ?`), at, id); err != nil {
		return fmt.Errorf("record task run: %w", err)
	}
	return nil
}
