// Package orchestrator connects trigger sources to the agent runtime. It
// serializes triggers per session, persists messages before broadcasting
// them, and records pending results for asynchronous origins.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radbot/radbot/internal/agent"
	"github.com/radbot/radbot/internal/common/logger"
	"github.com/radbot/radbot/internal/events/bus"
	"github.com/radbot/radbot/internal/llm"
	"github.com/radbot/radbot/internal/session"
)

const defaultQueueDepth = 16

// historyLimit bounds how much prior conversation a trigger sees.
const historyLimit = 30

// ErrQueueFull is returned when a session's trigger queue is saturated.
var ErrQueueFull = errors.New("session trigger queue full")

// Runner executes one trigger. Implemented by agent.Runtime.
type Runner interface {
	Run(ctx context.Context, env agent.TriggerEnvelope, history []llm.Message, emit agent.EmitFunc) *agent.RunResult
}

// Submitter is the dispatch surface trigger sources depend on.
type Submitter interface {
	Submit(ctx context.Context, env agent.TriggerEnvelope) error
}

// SessionSubject returns the bus subject carrying a session's events.
func SessionSubject(sessionID string) string {
	return "session." + sessionID
}

// Bus event types published on session subjects.
const (
	EventChatMessage = "chat_message"
	EventAgentEvent  = "agent_event"
)

type queuedTrigger struct {
	env       agent.TriggerEnvelope
	pendingID string
}

// Dispatcher owns the per-session trigger queues.
type Dispatcher struct {
	runner     Runner
	sessions   *session.Service
	bus        bus.EventBus
	logger     *logger.Logger
	queueDepth int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	queues map[string]chan queuedTrigger
}

// NewDispatcher creates a dispatcher. Call Close to stop its workers.
func NewDispatcher(runner Runner, sessions *session.Service, eventBus bus.EventBus, log *logger.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		runner:     runner,
		sessions:   sessions,
		bus:        eventBus,
		logger:     log,
		queueDepth: defaultQueueDepth,
		ctx:        ctx,
		cancel:     cancel,
		queues:     make(map[string]chan queuedTrigger),
	}
}

// Submit enqueues a trigger for its session. Triggers on the same session
// run one at a time in submission order; ErrQueueFull signals overload.
func (d *Dispatcher) Submit(ctx context.Context, env agent.TriggerEnvelope) error {
	if env.SessionID == "" {
		return fmt.Errorf("trigger without session id")
	}
	if _, err := d.sessions.GetOrCreate(ctx, env.SessionID, ""); err != nil {
		return fmt.Errorf("resolve session: %w", err)
	}

	item := queuedTrigger{env: env}
	if env.Origin == agent.OriginScheduler || env.Origin == agent.OriginWebhook {
		pending := &session.PendingResult{
			ID:        uuid.New().String(),
			Origin:    session.Origin(env.Origin),
			SessionID: env.SessionID,
			Prompt:    env.Prompt,
		}
		if err := d.sessions.Store().CreatePendingResult(ctx, pending); err != nil {
			return fmt.Errorf("record pending result: %w", err)
		}
		item.pendingID = pending.ID
	}

	select {
	case d.queue(env.SessionID) <- item:
		return nil
	default:
		if item.pendingID != "" {
			// The trigger never ran, so its pending row would otherwise sit
			// with a NULL response forever.
			if err := d.sessions.Store().DeletePendingResult(ctx, item.pendingID); err != nil {
				d.logger.Error("discard pending result", zap.Error(err))
			}
		}
		d.logger.Warn("trigger queue full",
			zap.String("session_id", env.SessionID),
			zap.String("origin", env.Origin))
		return ErrQueueFull
	}
}

// Close stops all workers. In-flight triggers are canceled.
func (d *Dispatcher) Close() {
	d.cancel()
	d.wg.Wait()
}

func (d *Dispatcher) queue(sessionID string) chan queuedTrigger {
	d.mu.Lock()
	defer d.mu.Unlock()
	q, ok := d.queues[sessionID]
	if !ok {
		q = make(chan queuedTrigger, d.queueDepth)
		d.queues[sessionID] = q
		d.wg.Add(1)
		go d.worker(q)
	}
	return q
}

func (d *Dispatcher) worker(q chan queuedTrigger) {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case item := <-q:
			d.process(item)
		}
	}
}

func (d *Dispatcher) process(item queuedTrigger) {
	env := item.env
	ctx := d.ctx

	// History is captured before the prompt is written so the runtime does
	// not see the prompt twice.
	history, err := d.loadHistory(ctx, env.SessionID)
	if err != nil {
		d.logger.Error("failed to load history",
			zap.String("session_id", env.SessionID), zap.Error(err))
	}

	meta := map[string]any{}
	if env.Origin != "" {
		meta["origin"] = env.Origin
	}
	d.persistAndBroadcast(ctx, &session.ChatMessage{
		SessionID: env.SessionID,
		Role:      session.RoleUser,
		Content:   env.Prompt,
		Metadata:  meta,
	})

	emit := func(e agent.Event) {
		event := bus.NewEvent(EventAgentEvent, "orchestrator", map[string]any{
			"event": e.Type,
			"agent": e.Agent,
			"data":  e.Data,
		})
		if err := d.bus.Publish(ctx, SessionSubject(env.SessionID), event); err != nil {
			d.logger.Warn("event publish failed", zap.Error(err))
		}
	}

	result := d.runner.Run(ctx, env, history, emit)

	finalText := result.FinalText
	if result.Aborted {
		notice := fmt.Sprintf("Request aborted: %s.", result.AbortReason)
		d.persistAndBroadcast(ctx, &session.ChatMessage{
			SessionID: env.SessionID,
			Role:      session.RoleSystem,
			Content:   notice,
			Metadata:  map[string]any{"reason": result.AbortReason},
		})
		if finalText == "" {
			finalText = notice
		}
	} else if finalText != "" {
		d.persistAndBroadcast(ctx, &session.ChatMessage{
			SessionID: env.SessionID,
			Role:      session.RoleAssistant,
			AgentName: result.AgentName,
			Content:   finalText,
		})
	}

	if item.pendingID != "" {
		if err := d.sessions.Store().CompletePendingResult(ctx, item.pendingID, finalText); err != nil {
			d.logger.Error("failed to complete pending result",
				zap.String("pending_id", item.pendingID), zap.Error(err))
		}
	}
}

// persistAndBroadcast durably writes a message, then fans it out. Broadcast
// never precedes the write.
func (d *Dispatcher) persistAndBroadcast(ctx context.Context, msg *session.ChatMessage) {
	if err := d.sessions.Append(ctx, msg); err != nil {
		d.logger.Error("failed to persist message",
			zap.String("session_id", msg.SessionID), zap.Error(err))
		return
	}
	event := bus.NewEvent(EventChatMessage, "orchestrator", map[string]any{
		"message": msg,
	})
	if err := d.bus.Publish(ctx, SessionSubject(msg.SessionID), event); err != nil {
		d.logger.Warn("message broadcast failed", zap.Error(err))
	}
}

func (d *Dispatcher) loadHistory(ctx context.Context, sessionID string) ([]llm.Message, error) {
	msgs, err := d.sessions.History(ctx, sessionID, historyLimit)
	if err != nil {
		return nil, err
	}
	history := make([]llm.Message, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case session.RoleUser:
			history = append(history, llm.Message{Role: llm.RoleUser, Content: msg.Content})
		case session.RoleAssistant:
			history = append(history, llm.Message{Role: llm.RoleAssistant, Content: msg.Content})
		}
	}
	return history, nil
}
