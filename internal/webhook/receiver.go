package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/radbot/radbot/internal/agent"
	"github.com/radbot/radbot/internal/common/logger"
	"github.com/radbot/radbot/internal/configstore"
	"github.com/radbot/radbot/internal/orchestrator"
)

// SignatureHeader carries the HMAC of the raw body as sha256=<hex>.
const SignatureHeader = "X-Webhook-Signature"

const defaultMaxBodyBytes = 64 * 1024

// Receiver serves POST /webhooks/trigger/{path_suffix}.
type Receiver struct {
	store     Store
	submitter orchestrator.Submitter
	snapshot  func() *configstore.Snapshot
	logger    *logger.Logger
	now       func() time.Time
}

// NewReceiver creates a webhook receiver.
func NewReceiver(store Store, submitter orchestrator.Submitter, snapshot func() *configstore.Snapshot, log *logger.Logger) *Receiver {
	return &Receiver{
		store:     store,
		submitter: submitter,
		snapshot:  snapshot,
		logger:    log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RegisterRoutes registers the trigger endpoint.
func (r *Receiver) RegisterRoutes(router *gin.Engine) {
	router.POST("/webhooks/trigger/:suffix", r.trigger)
}

func (r *Receiver) trigger(c *gin.Context) {
	ctx := c.Request.Context()
	suffix := c.Param("suffix")

	def, err := r.store.GetBySuffix(ctx, suffix)
	if err != nil || !def.Enabled {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown webhook"})
		return
	}

	maxBytes := int64(r.snapshot().Int("webhook", "max_body_bytes", defaultMaxBodyBytes))
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	if int64(len(body)) > maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
		return
	}

	if def.Secret != "" && !validSignature(def.Secret, body, c.GetHeader(SignatureHeader)) {
		r.logger.Warn("webhook signature mismatch", zap.String("webhook", def.Name))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "signature mismatch"})
		return
	}

	// An undecodable body renders with no payload: placeholders stay
	// literal rather than failing the trigger.
	var payload any
	_ = json.Unmarshal(body, &payload)
	prompt := Render(def.PromptTemplate, payload)

	sessionID := def.SessionID
	if sessionID == "" {
		sessionID = r.snapshot().String("webhook", "default_session", "webhook-default")
	}

	err = r.submitter.Submit(ctx, agent.TriggerEnvelope{
		SessionID: sessionID,
		Prompt:    prompt,
		Origin:    agent.OriginWebhook,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, orchestrator.ErrQueueFull) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": "dispatch failed"})
		return
	}

	if err := r.store.RecordTrigger(ctx, def.ID, r.now()); err != nil {
		r.logger.Error("failed to record webhook trigger",
			zap.String("webhook", def.Name), zap.Error(err))
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func validSignature(secret string, body []byte, header string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}
