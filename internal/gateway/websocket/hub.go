package websocket

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/radbot/radbot/internal/common/logger"
	"github.com/radbot/radbot/internal/events/bus"
	"github.com/radbot/radbot/internal/orchestrator"
)

// broadcaster fans session events out to the session's connections. One
// exists per session while at least one client is connected.
type broadcaster struct {
	clients      map[*Client]bool
	subscription bus.Subscription
}

// Hub tracks the per-session broadcasters. Broadcasters are created lazily
// on the first join and torn down when the last client leaves.
type Hub struct {
	bus    bus.EventBus
	logger *logger.Logger

	mu       sync.Mutex
	sessions map[string]*broadcaster
}

// NewHub creates an empty hub.
func NewHub(eventBus bus.EventBus, log *logger.Logger) *Hub {
	return &Hub{
		bus:      eventBus,
		logger:   log.WithFields(zap.String("component", "ws_hub")),
		sessions: make(map[string]*broadcaster),
	}
}

// Join registers a client under its session, subscribing the session's bus
// subject on first use.
func (h *Hub) Join(c *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, ok := h.sessions[c.sessionID]
	if !ok {
		subject := orchestrator.SessionSubject(c.sessionID)
		sessionID := c.sessionID
		sub, err := h.bus.Subscribe(subject, func(ctx context.Context, event *bus.Event) error {
			h.fanOut(sessionID, event)
			return nil
		})
		if err != nil {
			return err
		}
		b = &broadcaster{clients: make(map[*Client]bool), subscription: sub}
		h.sessions[c.sessionID] = b
		h.logger.Debug("session broadcaster created", zap.String("session_id", c.sessionID))
	}
	b.clients[c] = true
	return nil
}

// Leave removes a client. The last departure drops the bus subscription.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, ok := h.sessions[c.sessionID]
	if !ok || !b.clients[c] {
		return
	}
	delete(b.clients, c)
	c.closeSend()
	if len(b.clients) == 0 {
		_ = b.subscription.Unsubscribe()
		delete(h.sessions, c.sessionID)
		h.logger.Debug("session broadcaster removed", zap.String("session_id", c.sessionID))
	}
}

// ClientCount returns the number of connections for a session.
func (h *Hub) ClientCount(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if b, ok := h.sessions[sessionID]; ok {
		return len(b.clients)
	}
	return 0
}

// Close drops every broadcaster and closes all client send buffers.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sessionID, b := range h.sessions {
		_ = b.subscription.Unsubscribe()
		for c := range b.clients {
			c.closeSend()
		}
		delete(h.sessions, sessionID)
	}
}

// fanOut delivers one bus event to every connection of a session. Slow
// consumers are dropped by enqueue, never waited on.
func (h *Hub) fanOut(sessionID string, event *bus.Event) {
	frame := encode(event.Type, event.Data)

	h.mu.Lock()
	b, ok := h.sessions[sessionID]
	if !ok {
		h.mu.Unlock()
		return
	}
	clients := make([]*Client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.enqueue(frame)
	}
}
