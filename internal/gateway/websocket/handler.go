package websocket

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radbot/radbot/internal/agent"
	"github.com/radbot/radbot/internal/common/logger"
	"github.com/radbot/radbot/internal/orchestrator"
	"github.com/radbot/radbot/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The browser UI is served from arbitrary local origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler serves WS /ws/{session_id}.
type Handler struct {
	hub       *Hub
	sessions  *session.Service
	submitter orchestrator.Submitter
	logger    *logger.Logger
}

// NewHandler creates the WebSocket handler.
func NewHandler(hub *Hub, sessions *session.Service, submitter orchestrator.Submitter, log *logger.Logger) *Handler {
	return &Handler{hub: hub, sessions: sessions, submitter: submitter, logger: log}
}

// RegisterRoutes registers the WebSocket endpoint.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/ws/:session_id", h.serve)
}

func (h *Handler) serve(c *gin.Context) {
	sessionID := c.Param("session_id")
	if _, err := h.sessions.Get(c.Request.Context(), sessionID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session lookup failed"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(sessionID, conn, h.hub, h.logger)
	if err := h.hub.Join(client); err != nil {
		h.logger.Error("failed to join session broadcaster", zap.Error(err))
		_ = conn.Close()
		return
	}

	go client.writePump()
	h.replayPending(context.Background(), client)
	go client.readPump(context.Background(), h.handle)
}

// replayPending pushes results produced while no client was connected,
// oldest first, and marks them delivered.
func (h *Handler) replayPending(ctx context.Context, c *Client) {
	results, err := h.sessions.Store().UndeliveredResults(ctx, c.sessionID)
	if err != nil {
		h.logger.Error("failed to load pending results",
			zap.String("session_id", c.sessionID), zap.Error(err))
		return
	}
	if len(results) == 0 {
		return
	}

	ids := make([]string, 0, len(results))
	for _, result := range results {
		c.sendJSON(TypePendingResult, result)
		ids = append(ids, result.ID)
	}
	if err := h.sessions.Store().MarkDelivered(ctx, ids); err != nil {
		h.logger.Error("failed to mark results delivered",
			zap.String("session_id", c.sessionID), zap.Error(err))
	}
}

func (h *Handler) handle(ctx context.Context, c *Client, msg *Inbound) {
	switch msg.Type {
	case TypeHeartbeat:
		c.sendJSON(TypeHeartbeat, nil)

	case TypeSyncRequest:
		since := time.UnixMilli(msg.Timestamp).UTC()
		messages, err := h.sessions.Since(ctx, c.sessionID, since)
		if err != nil {
			c.sendJSON(TypeError, "sync failed")
			return
		}
		c.sendJSON(TypeSyncResponse, gin.H{"messages": messages})

	case TypeHistoryRequest:
		messages, err := h.sessions.History(ctx, c.sessionID, msg.Limit)
		if err != nil {
			c.sendJSON(TypeError, "history failed")
			return
		}
		c.sendJSON(TypeHistoryResponse, gin.H{"messages": messages})

	case "":
		if msg.Message == "" {
			c.sendJSON(TypeError, "empty message")
			return
		}
		err := h.submitter.Submit(ctx, agent.TriggerEnvelope{
			SessionID: c.sessionID,
			Prompt:    msg.Message,
			Origin:    agent.OriginChat,
		})
		if errors.Is(err, orchestrator.ErrQueueFull) {
			c.sendJSON(TypeError, "session is busy, try again shortly")
		} else if err != nil {
			c.sendJSON(TypeError, "failed to submit message")
		}

	default:
		c.sendJSON(TypeError, "unknown message type")
	}
}
