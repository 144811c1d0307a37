package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourorg/market-data-sync/internal/gateway"
	"github.com/yourorg/market-data-sync/internal/model"
)

// errorLog reads the append-only error log
type errorLog interface {
	Recent(ctx context.Context, limit int) ([]model.ErrorRecord, error)
	CountByKind(ctx context.Context) (map[model.ErrorKind]int, error)
}

// DiagnosticsHandler exposes the error log and gateway state
type DiagnosticsHandler struct {
	errors  errorLog
	gateway *gateway.Gateway
	logger  *zap.Logger
}

// NewDiagnosticsHandler creates a new diagnostics handler
func NewDiagnosticsHandler(errors errorLog, gw *gateway.Gateway, logger *zap.Logger) *DiagnosticsHandler {
	return &DiagnosticsHandler{
		errors:  errors,
		gateway: gw,
		logger:  logger,
	}
}

// RecentErrors handles listing recent classified errors
// GET /api/v1/errors?limit=50
func (h *DiagnosticsHandler) RecentErrors(c *gin.Context) {
	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = parsed
	}

	records, err := h.errors.Recent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to get recent errors", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get recent errors"})
		return
	}

	counts, err := h.errors.CountByKind(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to count errors", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count errors"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"errors": records,
		"counts": counts,
	})
}

// GatewayState handles reporting breaker states and remaining quota
// GET /api/v1/gateway
func (h *DiagnosticsHandler) GatewayState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"breakers":              h.gateway.BreakerStates(),
		"remaining_calls_today": h.gateway.RemainingCallsToday(),
	})
}
