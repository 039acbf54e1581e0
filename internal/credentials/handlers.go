package credentials

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/radbot/radbot/internal/common/logger"
)

// Handler provides the admin HTTP surface for credentials.
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates a new credentials handler.
func NewHandler(svc *Service, log *logger.Logger) *Handler {
	return &Handler{service: svc, logger: log}
}

// RegisterRoutes registers credential routes on the (authenticated) admin
// group.
func (h *Handler) RegisterRoutes(admin *gin.RouterGroup) {
	admin.GET("/credentials/", h.list)
	admin.POST("/credentials/", h.set)
	admin.GET("/credentials/:name", h.get)
	admin.DELETE("/credentials/:name", h.delete)
	admin.POST("/credentials/rotate-key", h.rotateKey)
}

func (h *Handler) set(c *gin.Context) {
	var req SetCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	cred, err := h.service.Set(c.Request.Context(), &req)
	if err != nil {
		h.logger.Error("failed to set credential", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, cred)
}

func (h *Handler) list(c *gin.Context) {
	creds, err := h.service.List(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list credentials", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list credentials"})
		return
	}
	c.JSON(http.StatusOK, creds)
}

func (h *Handler) get(c *gin.Context) {
	cred, err := h.service.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cred)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("name")); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) rotateKey(c *gin.Context) {
	var req RotateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if err := h.service.RotateKey(c.Request.Context(), req.NewKey); err != nil {
		h.logger.Error("failed to rotate credential key", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rotated"})
}
