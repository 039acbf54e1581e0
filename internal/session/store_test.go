package session

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

func TestSessionLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	sess, err := store.CreateSession(ctx, "morning briefing")
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)

	got, err := store.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "morning briefing", got.Name)
	assert.Nil(t, got.LastMessageAt)

	renamed, err := store.RenameSession(ctx, sess.ID, "briefing")
	require.NoError(t, err)
	assert.Equal(t, "briefing", renamed.Name)

	require.NoError(t, store.DeleteSession(ctx, sess.ID))
	_, err = store.GetSession(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionNotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.RenameSession(ctx, "missing", "x")
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.DeleteSession(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendMessageUpdatesSessionActivity(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	sess, err := store.CreateSession(ctx, "chat")
	require.NoError(t, err)

	msg := &ChatMessage{
		SessionID: sess.ID,
		Role:      RoleUser,
		Content:   "turn on the living room lights",
	}
	require.NoError(t, store.AppendMessage(ctx, msg))
	require.NotEmpty(t, msg.ID)
	require.False(t, msg.Timestamp.IsZero())

	got, err := store.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastMessageAt)
	assert.Equal(t, "turn on the living room lights", got.Preview)
}

func TestAppendMessageUnknownSession(t *testing.T) {
	store := setupTestStore(t)
	err := store.AppendMessage(context.Background(), &ChatMessage{
		SessionID: "missing", Role: RoleUser, Content: "hi",
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMessageOrderingOnTimestampThenID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	sess, err := store.CreateSession(ctx, "chat")
	require.NoError(t, err)

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	// Two messages share a timestamp; id breaks the tie.
	for _, m := range []*ChatMessage{
		{ID: "b", SessionID: sess.ID, Role: RoleAssistant, Content: "second", Timestamp: ts},
		{ID: "a", SessionID: sess.ID, Role: RoleUser, Content: "first", Timestamp: ts},
		{ID: "c", SessionID: sess.ID, Role: RoleUser, Content: "third", Timestamp: ts.Add(time.Second)},
	} {
		require.NoError(t, store.AppendMessage(ctx, m))
	}

	msgs, err := store.Messages(ctx, sess.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})
}

func TestMessagesLimitReturnsNewestAscending(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	sess, err := store.CreateSession(ctx, "chat")
	require.NoError(t, err)

	base := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.AppendMessage(ctx, &ChatMessage{
			SessionID: sess.ID,
			Role:      RoleUser,
			Content:   string(rune('a' + i)),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	msgs, err := store.Messages(ctx, sess.ID, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "d", msgs[0].Content)
	assert.Equal(t, "e", msgs[1].Content)
}

func TestMessagesSinceIsStrictlyAfter(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	sess, err := store.CreateSession(ctx, "chat")
	require.NoError(t, err)

	base := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.AppendMessage(ctx, &ChatMessage{
			SessionID: sess.ID,
			Role:      RoleUser,
			Content:   string(rune('a' + i)),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	msgs, err := store.MessagesSince(ctx, sess.ID, base)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "b", msgs[0].Content)
	assert.Equal(t, "c", msgs[1].Content)
}

func TestMessageMetadataRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	sess, err := store.CreateSession(ctx, "chat")
	require.NoError(t, err)

	require.NoError(t, store.AppendMessage(ctx, &ChatMessage{
		SessionID: sess.ID,
		Role:      RoleAssistant,
		AgentName: "research",
		Content:   "done",
		Metadata:  map[string]any{"origin": "webhook"},
	}))

	msgs, err := store.Messages(ctx, sess.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "research", msgs[0].AgentName)
	assert.Equal(t, "webhook", msgs[0].Metadata["origin"])
}

func TestPendingResultLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	result := &PendingResult{
		Origin:    OriginScheduler,
		SessionID: "scheduler-default",
		Prompt:    "tick",
	}
	require.NoError(t, store.CreatePendingResult(ctx, result))
	require.NotEmpty(t, result.ID)

	// Incomplete results are not replayable yet.
	undelivered, err := store.UndeliveredResults(ctx, "scheduler-default")
	require.NoError(t, err)
	assert.Empty(t, undelivered)

	require.NoError(t, store.CompletePendingResult(ctx, result.ID, "tock"))

	undelivered, err = store.UndeliveredResults(ctx, "scheduler-default")
	require.NoError(t, err)
	require.Len(t, undelivered, 1)
	require.NotNil(t, undelivered[0].Response)
	assert.Equal(t, "tock", *undelivered[0].Response)

	require.NoError(t, store.MarkDelivered(ctx, []string{result.ID}))
	undelivered, err = store.UndeliveredResults(ctx, "scheduler-default")
	require.NoError(t, err)
	assert.Empty(t, undelivered)
}

func TestDeleteSessionRemovesMessagesAndResults(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	sess, err := store.CreateSession(ctx, "chat")
	require.NoError(t, err)
	require.NoError(t, store.AppendMessage(ctx, &ChatMessage{
		SessionID: sess.ID, Role: RoleUser, Content: "hi",
	}))
	require.NoError(t, store.CreatePendingResult(ctx, &PendingResult{
		Origin: OriginWebhook, SessionID: sess.ID, Prompt: "p",
	}))

	require.NoError(t, store.DeleteSession(ctx, sess.ID))

	msgs, err := store.Messages(ctx, sess.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	results, err := store.UndeliveredResults(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, results)
}
