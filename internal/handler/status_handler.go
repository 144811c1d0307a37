package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourorg/market-data-sync/internal/model"
	"github.com/yourorg/market-data-sync/internal/service"
)

// StatusHandler handles status ledger HTTP requests
type StatusHandler struct {
	statusService *service.StatusService
	logger        *zap.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(statusService *service.StatusService, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{
		statusService: statusService,
		logger:        logger,
	}
}

// GetStatus handles retrieving one instrument's download state
// GET /api/v1/status/:symbol
func (h *StatusHandler) GetStatus(c *gin.Context) {
	symbol := c.Param("symbol")

	record, err := h.statusService.Get(c.Request.Context(), symbol)
	if err != nil {
		h.logger.Error("Failed to get status record",
			zap.Error(err),
			zap.String("symbol", symbol))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get status"})
		return
	}

	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No status record for symbol"})
		return
	}

	c.JSON(http.StatusOK, record)
}

// ListStatus handles listing ledger records filtered by status
// GET /api/v1/status?status=failed,partial&limit=50
func (h *StatusHandler) ListStatus(c *gin.Context) {
	var statuses []model.DownloadStatus
	if statusStr := c.Query("status"); statusStr != "" {
		for _, s := range strings.Split(statusStr, ",") {
			statuses = append(statuses, model.DownloadStatus(strings.TrimSpace(s)))
		}
	}

	limit := 100
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = parsed
	}

	records, err := h.statusService.List(c.Request.Context(), statuses, limit)
	if err != nil {
		h.logger.Error("Failed to list status records", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list status records"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
}

// Summary handles retrieving ledger counts by status
// GET /api/v1/status/summary
func (h *StatusHandler) Summary(c *gin.Context) {
	summary, err := h.statusService.Summary(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to get status summary", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get status summary"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// Initialize handles seeding pending ledger records
// POST /api/v1/status/initialize
func (h *StatusHandler) Initialize(c *gin.Context) {
	var request struct {
		Symbols       []string `json:"symbols"`
		ResetExisting bool     `json:"reset_existing"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.statusService.Initialize(c.Request.Context(), request.Symbols, request.ResetExisting)
	if err != nil {
		h.logger.Error("Failed to initialize status ledger", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to initialize status ledger"})
		return
	}

	c.JSON(http.StatusOK, result)
}
