package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gws "github.com/gorilla/websocket"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radbot/radbot/internal/agent"
	"github.com/radbot/radbot/internal/common/logger"
	"github.com/radbot/radbot/internal/db"
	"github.com/radbot/radbot/internal/events/bus"
	"github.com/radbot/radbot/internal/orchestrator"
	"github.com/radbot/radbot/internal/session"
)

type recordingSubmitter struct {
	mu   sync.Mutex
	envs []agent.TriggerEnvelope
}

func (r *recordingSubmitter) Submit(ctx context.Context, env agent.TriggerEnvelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envs = append(r.envs, env)
	return nil
}

func (r *recordingSubmitter) submitted() []agent.TriggerEnvelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]agent.TriggerEnvelope(nil), r.envs...)
}

type testGateway struct {
	server    *httptest.Server
	sessions  *session.Service
	bus       bus.EventBus
	submitter *recordingSubmitter
}

func setupGateway(t *testing.T) *testGateway {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = conn.Close() })

	store, err := session.NewStore(db.NewPool(conn, conn))
	require.NoError(t, err)
	sessions := session.NewService(store, logger.Default())

	eventBus := bus.NewMemoryEventBus(logger.Default())
	t.Cleanup(eventBus.Close)

	hub := NewHub(eventBus, logger.Default())
	t.Cleanup(hub.Close)

	submitter := &recordingSubmitter{}
	router := gin.New()
	NewHandler(hub, sessions, submitter, logger.Default()).RegisterRoutes(router)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testGateway{server: server, sessions: sessions, bus: eventBus, submitter: submitter}
}

func (g *testGateway) dial(t *testing.T, sessionID string) *gws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(g.server.URL, "http") + "/ws/" + sessionID
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *gws.Conn) Outbound {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame Outbound
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &frame))
	return frame
}

func TestConnectUnknownSession(t *testing.T) {
	g := setupGateway(t)

	url := "ws" + strings.TrimPrefix(g.server.URL, "http") + "/ws/missing"
	_, resp, err := gws.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHeartbeatEcho(t *testing.T) {
	g := setupGateway(t)
	sess, err := g.sessions.Create(context.Background(), "test")
	require.NoError(t, err)

	conn := g.dial(t, sess.ID)
	require.NoError(t, conn.WriteJSON(Inbound{Type: TypeHeartbeat}))

	frame := readFrame(t, conn)
	assert.Equal(t, TypeHeartbeat, frame.Type)
}

func TestChatMessageSubmitsTrigger(t *testing.T) {
	g := setupGateway(t)
	sess, err := g.sessions.Create(context.Background(), "test")
	require.NoError(t, err)

	conn := g.dial(t, sess.ID)
	require.NoError(t, conn.WriteJSON(Inbound{Message: "turn on the lights"}))

	require.Eventually(t, func() bool {
		return len(g.submitter.submitted()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	env := g.submitter.submitted()[0]
	assert.Equal(t, sess.ID, env.SessionID)
	assert.Equal(t, "turn on the lights", env.Prompt)
	assert.Equal(t, agent.OriginChat, env.Origin)
}

func TestHistoryRequest(t *testing.T) {
	g := setupGateway(t)
	ctx := context.Background()
	sess, err := g.sessions.Create(ctx, "test")
	require.NoError(t, err)

	for _, content := range []string{"one", "two", "three"} {
		require.NoError(t, g.sessions.Append(ctx, &session.ChatMessage{
			SessionID: sess.ID, Role: session.RoleUser, Content: content,
		}))
	}

	conn := g.dial(t, sess.ID)
	require.NoError(t, conn.WriteJSON(Inbound{Type: TypeHistoryRequest, Limit: 2}))

	frame := readFrame(t, conn)
	require.Equal(t, TypeHistoryResponse, frame.Type)

	data, err := json.Marshal(frame.Data)
	require.NoError(t, err)
	var payload struct {
		Messages []session.ChatMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(data, &payload))
	require.Len(t, payload.Messages, 2)
	assert.Equal(t, "two", payload.Messages[0].Content)
	assert.Equal(t, "three", payload.Messages[1].Content)
}

func TestSyncRequestReturnsMessagesAfterTimestamp(t *testing.T) {
	g := setupGateway(t)
	ctx := context.Background()
	sess, err := g.sessions.Create(ctx, "test")
	require.NoError(t, err)

	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	for i, content := range []string{"old", "new"} {
		require.NoError(t, g.sessions.Append(ctx, &session.ChatMessage{
			SessionID: sess.ID, Role: session.RoleUser, Content: content,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	conn := g.dial(t, sess.ID)
	require.NoError(t, conn.WriteJSON(Inbound{
		Type: TypeSyncRequest, Timestamp: base.UnixMilli(),
	}))

	frame := readFrame(t, conn)
	require.Equal(t, TypeSyncResponse, frame.Type)

	data, err := json.Marshal(frame.Data)
	require.NoError(t, err)
	var payload struct {
		Messages []session.ChatMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(data, &payload))
	require.Len(t, payload.Messages, 1)
	assert.Equal(t, "new", payload.Messages[0].Content)
}

func TestBroadcastReachesAllClients(t *testing.T) {
	g := setupGateway(t)
	ctx := context.Background()
	sess, err := g.sessions.Create(ctx, "test")
	require.NoError(t, err)

	first := g.dial(t, sess.ID)
	second := g.dial(t, sess.ID)

	event := bus.NewEvent(orchestrator.EventChatMessage, "orchestrator", map[string]any{
		"message": map[string]any{"content": "broadcast me"},
	})
	require.NoError(t, g.bus.Publish(ctx, orchestrator.SessionSubject(sess.ID), event))

	for _, conn := range []*gws.Conn{first, second} {
		frame := readFrame(t, conn)
		assert.Equal(t, orchestrator.EventChatMessage, frame.Type)
	}
}

func TestPendingResultsReplayedOnConnect(t *testing.T) {
	g := setupGateway(t)
	ctx := context.Background()
	sess, err := g.sessions.Create(ctx, "test")
	require.NoError(t, err)

	pending := &session.PendingResult{
		ID: "pr-1", Origin: session.OriginScheduler,
		SessionID: sess.ID, Prompt: "tick",
	}
	require.NoError(t, g.sessions.Store().CreatePendingResult(ctx, pending))
	require.NoError(t, g.sessions.Store().CompletePendingResult(ctx, "pr-1", "tock"))

	conn := g.dial(t, sess.ID)
	frame := readFrame(t, conn)
	require.Equal(t, TypePendingResult, frame.Type)

	data, err := json.Marshal(frame.Data)
	require.NoError(t, err)
	var result session.PendingResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, "tick", result.Prompt)
	require.NotNil(t, result.Response)
	assert.Equal(t, "tock", *result.Response)

	// Delivered results are not replayed again.
	require.Eventually(t, func() bool {
		remaining, err := g.sessions.Store().UndeliveredResults(ctx, sess.ID)
		return err == nil && len(remaining) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
