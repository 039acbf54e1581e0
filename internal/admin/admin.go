// Package admin guards the operator surface: config sections, credentials,
// and integration health live behind a bearer token.
package admin

import (
	"context"
	"crypto/subtle"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/radbot/radbot/internal/common/logger"
	"github.com/radbot/radbot/internal/configstore"
	"github.com/radbot/radbot/internal/credentials"
)

// Check probes one integration's connectivity.
type Check func(ctx context.Context) error

const checkTimeout = 5 * time.Second

// Handler mounts the admin API.
type Handler struct {
	token       string
	credentials *credentials.Handler
	config      *configstore.Handler
	checks      map[string]Check
	logger      *logger.Logger
}

// NewHandler creates the admin handler. checks maps integration names
// (ollama, qdrant, nats, provider) to their probes.
func NewHandler(token string, creds *credentials.Handler, config *configstore.Handler, checks map[string]Check, log *logger.Logger) *Handler {
	return &Handler{
		token:       token,
		credentials: creds,
		config:      config,
		checks:      checks,
		logger:      log,
	}
}

// RegisterRoutes mounts everything under /admin/api/ behind the token.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/admin/api", h.requireToken)

	h.credentials.RegisterRoutes(api)
	h.config.RegisterRoutes(api)

	api.GET("/integrations/", h.listIntegrations)
	api.POST("/integrations/:name/test", h.testIntegration)
}

func (h *Handler) requireToken(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}

func (h *Handler) listIntegrations(c *gin.Context) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	statuses := make([]gin.H, 0, len(names))
	for _, name := range names {
		status := gin.H{"name": name, "connected": true}
		if err := h.checks[name](ctx); err != nil {
			status["connected"] = false
			status["error"] = err.Error()
		}
		statuses = append(statuses, status)
	}
	c.JSON(http.StatusOK, gin.H{"integrations": statuses})
}

func (h *Handler) testIntegration(c *gin.Context) {
	name := c.Param("name")
	check, ok := h.checks[name]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown integration"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	if err := check(ctx); err != nil {
		c.JSON(http.StatusOK, gin.H{"name": name, "connected": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "connected": true})
}
