package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/radbot/radbot/internal/agent"
	"github.com/radbot/radbot/internal/common/logger"
	"github.com/radbot/radbot/internal/configstore"
	"github.com/radbot/radbot/internal/todo"
)

// reminderSweepSpec checks for due reminders once a minute.
const reminderSweepSpec = "* * * * *"

// specParser accepts the standard five fields plus the CRON_TZ= prefix.
var specParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Submitter hands triggers to the orchestration pipeline. Implemented by
// orchestrator.Dispatcher.
type Submitter interface {
	Submit(ctx context.Context, env agent.TriggerEnvelope) error
}

// ValidateSchedule checks a cron expression and timezone pair.
func ValidateSchedule(expression, timezone string) error {
	if timezone != "" {
		if _, err := time.LoadLocation(timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", timezone, err)
		}
	}
	if _, err := specParser.Parse(expression); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expression, err)
	}
	return nil
}

// Engine owns the in-process cron table. It is rebuilt from the store on
// start and after every task write, so restarts recover cleanly.
type Engine struct {
	store     Store
	reminders todo.Store
	submit    Submitter
	snapshot  func() *configstore.Snapshot
	logger    *logger.Logger
	sem       *semaphore.Weighted
	now       func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// NewEngine creates a stopped engine.
func NewEngine(store Store, reminders todo.Store, submit Submitter, snapshot func() *configstore.Snapshot, log *logger.Logger) *Engine {
	maxJobs := snapshot().Int("scheduler", "max_concurrent_jobs", 4)
	if maxJobs <= 0 {
		maxJobs = 1
	}
	return &Engine{
		store:     store,
		reminders: reminders,
		submit:    submit,
		snapshot:  snapshot,
		logger:    log,
		sem:       semaphore.NewWeighted(int64(maxJobs)),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start loads the task table and begins firing.
func (e *Engine) Start(ctx context.Context) error {
	return e.Rebuild(ctx)
}

// Stop halts firing. Running jobs finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cron != nil {
		e.cron.Stop()
		e.cron = nil
	}
}

// Rebuild replaces the cron table with the current store contents. Called
// on start and after every task write.
func (e *Engine) Rebuild(ctx context.Context) error {
	tasks, err := e.store.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("load scheduled tasks: %w", err)
	}

	c := cron.New(cron.WithParser(specParser))
	for _, task := range tasks {
		if !task.Enabled {
			continue
		}
		task := task
		if _, err := c.AddFunc(cronSpec(task), func() { e.fire(task) }); err != nil {
			e.logger.Error("skipping unschedulable task",
				zap.String("task", task.Name), zap.Error(err))
		}
	}
	if e.reminders != nil {
		if _, err := c.AddFunc(reminderSweepSpec, e.sweepReminders); err != nil {
			return fmt.Errorf("schedule reminder sweep: %w", err)
		}
	}

	e.mu.Lock()
	old := e.cron
	e.cron = c
	e.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	c.Start()

	e.logger.Info("scheduler rebuilt", zap.Int("tasks", len(tasks)))
	return nil
}

func cronSpec(task *ScheduledTask) string {
	if task.Timezone == "" || task.Timezone == "UTC" {
		return task.CronExpression
	}
	return "CRON_TZ=" + task.Timezone + " " + task.CronExpression
}

func (e *Engine) fire(task *ScheduledTask) {
	ctx := context.Background()
	if !e.sem.TryAcquire(1) {
		e.logger.Warn("skipping fire, scheduler at capacity",
			zap.String("task", task.Name))
		return
	}
	defer e.sem.Release(1)

	firedAt := e.now()
	if err := e.store.RecordRun(ctx, task.ID, firedAt); err != nil {
		e.logger.Error("failed to record run",
			zap.String("task", task.Name), zap.Error(err))
	}

	sessionID := task.SessionID
	if sessionID == "" {
		sessionID = e.snapshot().String("scheduler", "default_session", "scheduler-default")
	}
	err := e.submit.Submit(ctx, agent.TriggerEnvelope{
		SessionID: sessionID,
		Prompt:    task.Prompt,
		Origin:    agent.OriginScheduler,
	})
	if err != nil {
		e.logger.Error("scheduled trigger rejected",
			zap.String("task", task.Name), zap.Error(err))
		return
	}
	e.logger.Info("scheduled task fired",
		zap.String("task", task.Name),
		zap.String("session_id", sessionID))
}

// sweepReminders fires every due reminder into its session. A reminder is
// marked fired only after a successful submit, so a rejected trigger is
// retried on the next sweep.
func (e *Engine) sweepReminders() {
	ctx := context.Background()
	due, err := e.reminders.DueReminders(ctx, e.now())
	if err != nil {
		e.logger.Error("failed to load due reminders", zap.Error(err))
		return
	}
	for _, reminder := range due {
		sessionID := reminder.SessionID
		if sessionID == "" {
			sessionID = e.snapshot().String("scheduler", "default_session", "scheduler-default")
		}
		err := e.submit.Submit(ctx, agent.TriggerEnvelope{
			SessionID: sessionID,
			Prompt:    "Reminder due now: " + reminder.Message,
			Origin:    agent.OriginScheduler,
		})
		if err != nil {
			e.logger.Warn("reminder trigger rejected",
				zap.String("reminder_id", reminder.ID), zap.Error(err))
			continue
		}
		if err := e.reminders.MarkReminderFired(ctx, reminder.ID); err != nil {
			e.logger.Error("failed to mark reminder fired",
				zap.String("reminder_id", reminder.ID), zap.Error(err))
		}
	}
}
