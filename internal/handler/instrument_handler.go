package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourorg/market-data-sync/internal/service"
)

// InstrumentHandler handles instrument registry HTTP requests
type InstrumentHandler struct {
	instrumentService *service.InstrumentService
	logger            *zap.Logger
}

// NewInstrumentHandler creates a new instrument handler
func NewInstrumentHandler(instrumentService *service.InstrumentService, logger *zap.Logger) *InstrumentHandler {
	return &InstrumentHandler{
		instrumentService: instrumentService,
		logger:            logger,
	}
}

// List handles retrieving the known instrument registry
// GET /api/v1/instruments?active=true
func (h *InstrumentHandler) List(c *gin.Context) {
	activeOnly := c.DefaultQuery("active", "true") == "true"

	instruments, err := h.instrumentService.List(c.Request.Context(), activeOnly)
	if err != nil {
		h.logger.Error("Failed to list instruments", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list instruments"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"instruments": instruments, "count": len(instruments)})
}

// Sync handles refreshing the registry from the upstream listing
// POST /api/v1/instruments/sync
func (h *InstrumentHandler) Sync(c *gin.Context) {
	written, err := h.instrumentService.Sync(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to sync instruments", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sync instrument registry"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Instrument registry synced",
		"written": written,
	})
}
