package scheduler

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radbot/radbot/internal/common/logger"
	"github.com/radbot/radbot/internal/db"
)

func setupService(t *testing.T) (*Service, Store) {
	t.Helper()

	conn, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = conn.Close() })

	store, err := NewStore(db.NewPool(conn, conn))
	require.NoError(t, err)
	return NewService(store, nil, logger.Default()), store
}

func TestCreateTaskDefaultsAndValidation(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	task, err := svc.Create(ctx, &CreateTaskRequest{
		Name: "morning briefing", CronExpression: "0 7 * * *", Prompt: "brief me",
	})
	require.NoError(t, err)
	assert.Equal(t, "UTC", task.Timezone)
	assert.True(t, task.Enabled)
	assert.NotEmpty(t, task.ID)

	_, err = svc.Create(ctx, &CreateTaskRequest{
		Name: "bad", CronExpression: "every tuesday", Prompt: "x",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation")

	_, err = svc.Create(ctx, &CreateTaskRequest{
		Name: "no prompt", CronExpression: "0 7 * * *",
	})
	require.Error(t, err)
}

func TestDuplicateTaskNameRejected(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	req := CreateTaskRequest{Name: "tick", CronExpression: "* * * * *", Prompt: "tick"}
	_, err := svc.Create(ctx, &req)
	require.NoError(t, err)
	_, err = svc.Create(ctx, &req)
	assert.Error(t, err)
}

func TestUpdateRevalidatesSchedule(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	task, err := svc.Create(ctx, &CreateTaskRequest{
		Name: "tick", CronExpression: "* * * * *", Prompt: "tick",
	})
	require.NoError(t, err)

	bad := "61 * * * *"
	_, err = svc.Update(ctx, task.ID, &UpdateTaskRequest{CronExpression: &bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation")

	tz := "America/New_York"
	updated, err := svc.Update(ctx, task.ID, &UpdateTaskRequest{Timezone: &tz})
	require.NoError(t, err)
	assert.Equal(t, tz, updated.Timezone)

	disabled := false
	updated, err = svc.Update(ctx, task.ID, &UpdateTaskRequest{Enabled: &disabled})
	require.NoError(t, err)
	assert.False(t, updated.Enabled)
}

func TestUpdateMissingTask(t *testing.T) {
	svc, _ := setupService(t)

	enabled := true
	_, err := svc.Update(context.Background(), "nope", &UpdateTaskRequest{Enabled: &enabled})
	assert.ErrorIs(t, err, ErrNotFound)
}
