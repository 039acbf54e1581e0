package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radbot/radbot/internal/agent"
	"github.com/radbot/radbot/internal/common/logger"
	"github.com/radbot/radbot/internal/configstore"
	"github.com/radbot/radbot/internal/db"
	"github.com/radbot/radbot/internal/todo"
)

type captureSubmitter struct {
	mu   sync.Mutex
	envs []agent.TriggerEnvelope
	err  error
}

func (s *captureSubmitter) Submit(ctx context.Context, env agent.TriggerEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.envs = append(s.envs, env)
	return nil
}

func (s *captureSubmitter) submitted() []agent.TriggerEnvelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]agent.TriggerEnvelope(nil), s.envs...)
}

func schedulerSnapshot() func() *configstore.Snapshot {
	snap := configstore.NewSnapshot(map[string]map[string]any{
		"scheduler": {
			"default_session":     "scheduler-default",
			"max_concurrent_jobs": float64(2),
		},
	})
	return func() *configstore.Snapshot { return snap }
}

func setupEngine(t *testing.T, submit Submitter) (*Engine, Store, todo.Store) {
	t.Helper()

	conn, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = conn.Close() })
	pool := db.NewPool(conn, conn)

	store, err := NewStore(pool)
	require.NoError(t, err)
	todoStore, err := todo.NewStore(pool)
	require.NoError(t, err)

	engine := NewEngine(store, todoStore, submit, schedulerSnapshot(), logger.Default())
	t.Cleanup(engine.Stop)
	return engine, store, todoStore
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule("*/5 * * * *", "UTC"))
	assert.NoError(t, ValidateSchedule("0 9 * * 1-5", "Europe/Berlin"))
	assert.Error(t, ValidateSchedule("0 9 * * 1-5 2026", "UTC"))
	assert.Error(t, ValidateSchedule("not a cron", ""))
	assert.Error(t, ValidateSchedule("* * * * *", "Mars/Olympus"))
}

func TestWeekdayScheduleOccurrences(t *testing.T) {
	sched, err := specParser.Parse("0 9 * * 1-5")
	require.NoError(t, err)

	// Friday 2026-08-21 10:00 UTC; the next fires skip the weekend.
	from := time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC)
	first := sched.Next(from)
	assert.Equal(t, time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC), first)
	assert.Equal(t, time.Monday, first.Weekday())

	second := sched.Next(first)
	assert.Equal(t, time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC), second)
}

func TestTimezoneSpecShiftsFireTime(t *testing.T) {
	task := &ScheduledTask{CronExpression: "0 9 * * *", Timezone: "Europe/Berlin"}
	sched, err := specParser.Parse(cronSpec(task))
	require.NoError(t, err)

	from := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	next := sched.Next(from)
	// 09:00 Berlin summer time is 07:00 UTC.
	assert.Equal(t, time.Date(2026, 8, 24, 7, 0, 0, 0, time.UTC), next.UTC())
}

func TestFireRecordsRunAndSubmits(t *testing.T) {
	submit := &captureSubmitter{}
	engine, store, _ := setupEngine(t, submit)

	task := &ScheduledTask{
		Name: "tick", CronExpression: "* * * * *", Timezone: "UTC",
		Prompt: "tick", SessionID: "", Enabled: true,
	}
	require.NoError(t, store.CreateTask(context.Background(), task))

	firedAt := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return firedAt }
	engine.fire(task)

	envs := submit.submitted()
	require.Len(t, envs, 1)
	assert.Equal(t, "tick", envs[0].Prompt)
	assert.Equal(t, agent.OriginScheduler, envs[0].Origin)
	assert.Equal(t, "scheduler-default", envs[0].SessionID)

	stored, err := store.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stored.RunCount)
	require.NotNil(t, stored.LastRunAt)
	assert.WithinDuration(t, firedAt, *stored.LastRunAt, time.Second)
}

func TestRebuildSkipsDisabledTasks(t *testing.T) {
	submit := &captureSubmitter{}
	engine, store, _ := setupEngine(t, submit)
	ctx := context.Background()

	enabled := &ScheduledTask{Name: "a", CronExpression: "* * * * *", Prompt: "a", Enabled: true}
	disabled := &ScheduledTask{Name: "b", CronExpression: "* * * * *", Prompt: "b", Enabled: false}
	require.NoError(t, store.CreateTask(ctx, enabled))
	require.NoError(t, store.CreateTask(ctx, disabled))

	require.NoError(t, engine.Rebuild(ctx))

	engine.mu.Lock()
	entries := len(engine.cron.Entries())
	engine.mu.Unlock()
	// One task entry plus the reminder sweep.
	assert.Equal(t, 2, entries)
}

func TestSweepRemindersFiresAndMarks(t *testing.T) {
	submit := &captureSubmitter{}
	engine, _, todoStore := setupEngine(t, submit)
	ctx := context.Background()

	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return now }

	due := &todo.Reminder{Message: "stretch", RemindAt: now.Add(-time.Minute), SessionID: "s1"}
	notYet := &todo.Reminder{Message: "sleep", RemindAt: now.Add(time.Hour), SessionID: "s1"}
	require.NoError(t, todoStore.CreateReminder(ctx, due))
	require.NoError(t, todoStore.CreateReminder(ctx, notYet))

	engine.sweepReminders()

	envs := submit.submitted()
	require.Len(t, envs, 1)
	assert.Equal(t, "s1", envs[0].SessionID)
	assert.Contains(t, envs[0].Prompt, "stretch")

	remaining, err := todoStore.DueReminders(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestSweepRemindersRetriesRejectedSubmit(t *testing.T) {
	submit := &captureSubmitter{err: context.DeadlineExceeded}
	engine, _, todoStore := setupEngine(t, submit)
	ctx := context.Background()

	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return now }
	require.NoError(t, todoStore.CreateReminder(ctx,
		&todo.Reminder{Message: "x", RemindAt: now.Add(-time.Minute), SessionID: "s1"}))

	engine.sweepReminders()

	// Still due: a rejected submit must not consume the reminder.
	due, err := todoStore.DueReminders(ctx, now)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}
