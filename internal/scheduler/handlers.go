package scheduler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/radbot/radbot/internal/common/logger"
)

// Handler provides the REST surface for scheduled tasks.
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates a scheduler handler.
func NewHandler(svc *Service, log *logger.Logger) *Handler {
	return &Handler{service: svc, logger: log}
}

// RegisterRoutes registers scheduler routes.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/scheduler")

	api.GET("/", h.list)
	api.POST("/", h.create)
	api.GET("/:id", h.get)
	api.PUT("/:id", h.update)
	api.DELETE("/:id", h.delete)
	api.POST("/:id/enable", h.setEnabled(true))
	api.POST("/:id/disable", h.setEnabled(false))
}

func (h *Handler) list(c *gin.Context) {
	tasks, err := h.service.List(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list scheduled tasks", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list scheduled tasks"})
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (h *Handler) create(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	task, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *Handler) get(c *gin.Context) {
	task, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *Handler) update(c *gin.Context) {
	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	task, err := h.service.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) setEnabled(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		task, err := h.service.Update(c.Request.Context(), c.Param("id"),
			&UpdateTaskRequest{Enabled: &enabled})
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, task)
	}
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
