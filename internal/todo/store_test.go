package todo

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radbot/radbot/internal/db"
)

func setupTestStore(t *testing.T) Store {
	t.Helper()

	conn, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = conn.Close() })

	store, err := NewStore(db.NewPool(conn, conn))
	require.NoError(t, err)
	return store
}

func TestTaskLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	task := &Task{Title: "water the plants"}
	require.NoError(t, store.CreateTask(ctx, task))
	require.NotEmpty(t, task.ID)

	done := true
	updated, err := store.UpdateTask(ctx, task.ID, &UpdateTaskRequest{Done: &done})
	require.NoError(t, err)
	assert.True(t, updated.Done)
	require.NotNil(t, updated.CompletedAt)

	// Reopening clears completed_at.
	open := false
	updated, err = store.UpdateTask(ctx, task.ID, &UpdateTaskRequest{Done: &open})
	require.NoError(t, err)
	assert.False(t, updated.Done)
	assert.Nil(t, updated.CompletedAt)

	require.NoError(t, store.DeleteTask(ctx, task.ID))
	_, err = store.GetTask(ctx, task.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListTasksFiltersDoneAndProject(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	project := &Project{Name: "garden"}
	require.NoError(t, store.CreateProject(ctx, project))

	open := &Task{Title: "weed the beds", ProjectID: project.ID}
	closed := &Task{Title: "buy seeds", ProjectID: project.ID}
	inbox := &Task{Title: "call plumber"}
	require.NoError(t, store.CreateTask(ctx, open))
	require.NoError(t, store.CreateTask(ctx, closed))
	require.NoError(t, store.CreateTask(ctx, inbox))

	done := true
	_, err := store.UpdateTask(ctx, closed.ID, &UpdateTaskRequest{Done: &done})
	require.NoError(t, err)

	tasks, err := store.ListTasks(ctx, project.ID, false)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, open.ID, tasks[0].ID)

	tasks, err = store.ListTasks(ctx, project.ID, true)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	tasks, err = store.ListTasks(ctx, "", false)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}

func TestDeleteProjectMovesTasksToInbox(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	project := &Project{Name: "trip"}
	require.NoError(t, store.CreateProject(ctx, project))
	task := &Task{Title: "book flights", ProjectID: project.ID}
	require.NoError(t, store.CreateTask(ctx, task))

	require.NoError(t, store.DeleteProject(ctx, project.ID))

	got, err := store.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ProjectID)
}

func TestDueReminders(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	past := &Reminder{Message: "stand up", RemindAt: now.Add(-time.Minute), SessionID: "s1"}
	future := &Reminder{Message: "sleep", RemindAt: now.Add(time.Hour), SessionID: "s1"}
	require.NoError(t, store.CreateReminder(ctx, past))
	require.NoError(t, store.CreateReminder(ctx, future))

	due, err := store.DueReminders(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, past.ID, due[0].ID)

	require.NoError(t, store.MarkReminderFired(ctx, past.ID))
	due, err = store.DueReminders(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, due)

	// Fired reminders drop out of the default listing.
	reminders, err := store.ListReminders(ctx, false)
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, future.ID, reminders[0].ID)
}
