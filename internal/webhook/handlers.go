package webhook

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/radbot/radbot/internal/common/logger"
)

// Handler provides the REST surface for webhook definitions.
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates a webhook handler.
func NewHandler(svc *Service, log *logger.Logger) *Handler {
	return &Handler{service: svc, logger: log}
}

// RegisterRoutes registers webhook CRUD routes.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/webhooks")

	api.GET("/", h.list)
	api.POST("/", h.create)
	api.GET("/:id", h.get)
	api.PUT("/:id", h.update)
	api.DELETE("/:id", h.delete)
}

func (h *Handler) list(c *gin.Context) {
	defs, err := h.service.List(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list webhooks", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list webhooks"})
		return
	}
	// Secrets never leave the admin surface.
	for _, def := range defs {
		def.Secret = ""
	}
	c.JSON(http.StatusOK, defs)
}

func (h *Handler) create(c *gin.Context) {
	var req CreateDefinitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	def, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	def.Secret = ""
	c.JSON(http.StatusCreated, def)
}

func (h *Handler) get(c *gin.Context) {
	def, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	def.Secret = ""
	c.JSON(http.StatusOK, def)
}

func (h *Handler) update(c *gin.Context) {
	var req UpdateDefinitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	def, err := h.service.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	def.Secret = ""
	c.JSON(http.StatusOK, def)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case strings.HasPrefix(err.Error(), "validation:"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
