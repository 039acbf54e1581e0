package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radbot/radbot/internal/agent"
	"github.com/radbot/radbot/internal/common/logger"
	"github.com/radbot/radbot/internal/configstore"
	"github.com/radbot/radbot/internal/db"
	"github.com/radbot/radbot/internal/orchestrator"
)

type fakeSubmitter struct {
	envs []agent.TriggerEnvelope
	err  error
}

func (f *fakeSubmitter) Submit(ctx context.Context, env agent.TriggerEnvelope) error {
	if f.err != nil {
		return f.err
	}
	f.envs = append(f.envs, env)
	return nil
}

func webhookSnapshot(maxBody int) func() *configstore.Snapshot {
	snap := configstore.NewSnapshot(map[string]map[string]any{
		"webhook": {
			"max_body_bytes":  float64(maxBody),
			"default_session": "webhook-default",
		},
	})
	return func() *configstore.Snapshot { return snap }
}

func setupReceiver(t *testing.T, submitter orchestrator.Submitter, maxBody int) (*gin.Engine, Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = conn.Close() })

	store, err := NewStore(db.NewPool(conn, conn))
	require.NoError(t, err)

	router := gin.New()
	receiver := NewReceiver(store, submitter, webhookSnapshot(maxBody), logger.Default())
	receiver.RegisterRoutes(router)
	return router, store
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func post(router *gin.Engine, path string, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestTriggerSignedWebhook(t *testing.T) {
	submitter := &fakeSubmitter{}
	router, store := setupReceiver(t, submitter, 64*1024)
	ctx := context.Background()

	def := &Definition{
		Name: "github push", PathSuffix: "gh-push",
		PromptTemplate: "Summarize push by {{payload.sender.login}}",
		Secret:         "s3cret", Enabled: true,
	}
	require.NoError(t, store.Create(ctx, def))

	body := []byte(`{"sender": {"login": "octocat"}}`)
	rec := post(router, "/webhooks/trigger/gh-push", body, sign("s3cret", body))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"status":"accepted"}`, rec.Body.String())

	require.Len(t, submitter.envs, 1)
	assert.Equal(t, "Summarize push by octocat", submitter.envs[0].Prompt)
	assert.Equal(t, agent.OriginWebhook, submitter.envs[0].Origin)
	assert.Equal(t, "webhook-default", submitter.envs[0].SessionID)

	stored, err := store.Get(ctx, def.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stored.TriggerCount)
	assert.NotNil(t, stored.LastTriggeredAt)
}

func TestTriggerRejectsBadSignature(t *testing.T) {
	submitter := &fakeSubmitter{}
	router, store := setupReceiver(t, submitter, 64*1024)
	ctx := context.Background()

	def := &Definition{
		Name: "secure", PathSuffix: "secure",
		PromptTemplate: "x", Secret: "s3cret", Enabled: true,
	}
	require.NoError(t, store.Create(ctx, def))

	body := []byte(`{}`)
	for _, signature := range []string{sign("wrong-secret", body), "sha256=zzzz", ""} {
		rec := post(router, "/webhooks/trigger/secure", body, signature)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	assert.Empty(t, submitter.envs)
	stored, err := store.Get(ctx, def.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, stored.TriggerCount)
}

func TestTriggerUnsignedWebhookWithoutSecret(t *testing.T) {
	submitter := &fakeSubmitter{}
	router, store := setupReceiver(t, submitter, 64*1024)

	def := &Definition{
		Name: "open", PathSuffix: "open",
		PromptTemplate: "ping", Enabled: true, SessionID: "ops",
	}
	require.NoError(t, store.Create(context.Background(), def))

	rec := post(router, "/webhooks/trigger/open", []byte(`{}`), "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, submitter.envs, 1)
	assert.Equal(t, "ops", submitter.envs[0].SessionID)
}

func TestTriggerPayloadTooLarge(t *testing.T) {
	submitter := &fakeSubmitter{}
	router, store := setupReceiver(t, submitter, 128)

	def := &Definition{Name: "small", PathSuffix: "small", PromptTemplate: "x", Enabled: true}
	require.NoError(t, store.Create(context.Background(), def))

	body := []byte(`{"pad":"` + strings.Repeat("x", 256) + `"}`)
	rec := post(router, "/webhooks/trigger/small", body, "")

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, submitter.envs)
}

func TestTriggerUnknownOrDisabledSuffix(t *testing.T) {
	submitter := &fakeSubmitter{}
	router, store := setupReceiver(t, submitter, 64*1024)

	def := &Definition{Name: "off", PathSuffix: "off", PromptTemplate: "x", Enabled: false}
	require.NoError(t, store.Create(context.Background(), def))

	assert.Equal(t, http.StatusNotFound, post(router, "/webhooks/trigger/nope", []byte(`{}`), "").Code)
	assert.Equal(t, http.StatusNotFound, post(router, "/webhooks/trigger/off", []byte(`{}`), "").Code)
}

func TestTriggerQueueFullDoesNotCount(t *testing.T) {
	submitter := &fakeSubmitter{err: orchestrator.ErrQueueFull}
	router, store := setupReceiver(t, submitter, 64*1024)
	ctx := context.Background()

	def := &Definition{Name: "busy", PathSuffix: "busy", PromptTemplate: "x", Enabled: true}
	require.NoError(t, store.Create(ctx, def))

	rec := post(router, "/webhooks/trigger/busy", []byte(`{}`), "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	stored, err := store.Get(ctx, def.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, stored.TriggerCount)
}

func TestTriggerMalformedBodyLeavesPlaceholders(t *testing.T) {
	submitter := &fakeSubmitter{}
	router, store := setupReceiver(t, submitter, 64*1024)

	def := &Definition{
		Name: "raw", PathSuffix: "raw",
		PromptTemplate: "got {{payload.field}}", Enabled: true,
	}
	require.NoError(t, store.Create(context.Background(), def))

	rec := post(router, "/webhooks/trigger/raw", []byte("not json"), "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, submitter.envs, 1)
	assert.Equal(t, "got {{payload.field}}", submitter.envs[0].Prompt)
}
