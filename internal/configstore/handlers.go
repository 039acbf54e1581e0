package configstore

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/radbot/radbot/internal/common/logger"
)

const maxSectionBytes = 256 * 1024

// Handler provides the admin HTTP surface for config sections.
type Handler struct {
	resolver *Resolver
	logger   *logger.Logger
}

// NewHandler creates a new config handler.
func NewHandler(resolver *Resolver, log *logger.Logger) *Handler {
	return &Handler{resolver: resolver, logger: log}
}

// RegisterRoutes registers config routes on the (authenticated) admin group.
func (h *Handler) RegisterRoutes(admin *gin.RouterGroup) {
	admin.GET("/config/", h.listSections)
	admin.GET("/config/:section", h.getSection)
	admin.PUT("/config/:section", h.putSection)
	admin.DELETE("/config/:section", h.deleteSection)
}

func (h *Handler) listSections(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sections": h.resolver.Snapshot().Sections()})
}

func (h *Handler) getSection(c *gin.Context) {
	section := c.Param("section")
	doc := h.resolver.Section(section)
	if doc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown config section: " + section})
		return
	}
	c.JSON(http.StatusOK, gin.H{"section": section, "value": doc})
}

func (h *Handler) putSection(c *gin.Context) {
	section := c.Param("section")
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSectionBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	if err := h.resolver.Put(c.Request.Context(), section, body); err != nil {
		h.logger.Error("failed to write config section",
			zap.String("section", section), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"section": section, "value": h.resolver.Section(section)})
}

func (h *Handler) deleteSection(c *gin.Context) {
	section := c.Param("section")
	if err := h.resolver.Delete(c.Request.Context(), section); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
