package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourorg/market-data-sync/internal/model"
	"github.com/yourorg/market-data-sync/internal/service"
)

// quoteStore reads stored daily quotes
type quoteStore interface {
	GetQuotes(ctx context.Context, q model.QuoteQuery) ([]model.DailyQuote, error)
}

// QuoteHandler handles stored quote and gap HTTP requests
type QuoteHandler struct {
	quotes     quoteStore
	gapService *service.GapService
	logger     *zap.Logger
}

// NewQuoteHandler creates a new quote handler
func NewQuoteHandler(quotes quoteStore, gapService *service.GapService, logger *zap.Logger) *QuoteHandler {
	return &QuoteHandler{
		quotes:     quotes,
		gapService: gapService,
		logger:     logger,
	}
}

// GetQuotes handles retrieving stored quotes for one instrument
// GET /api/v1/quotes?symbol=600519.SH&start_date=2024-01-01&end_date=2024-12-31
func (h *QuoteHandler) GetQuotes(c *gin.Context) {
	var query model.QuoteQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quotes, err := h.quotes.GetQuotes(c.Request.Context(), query)
	if err != nil {
		h.logger.Error("Failed to get quotes",
			zap.Error(err),
			zap.String("symbol", query.Symbol))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get quotes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"quotes": quotes, "count": len(quotes)})
}

// MissingDays handles listing trading days with no stored data
// GET /api/v1/gaps/days?start_date=2024-01-01&end_date=2024-06-30
func (h *QuoteHandler) MissingDays(c *gin.Context) {
	start, end, ok := parseDateRange(c)
	if !ok {
		return
	}

	missing, err := h.gapService.MissingTradingDays(c.Request.Context(), start, end)
	if err != nil {
		h.logger.Error("Failed to compute missing days", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute missing days"})
		return
	}

	days := make([]string, 0, len(missing))
	for _, d := range missing {
		days = append(days, d.Format("2006-01-02"))
	}

	c.JSON(http.StatusOK, gin.H{"missing_days": days, "count": len(days)})
}

// Coverage handles per-instrument coverage reporting
// GET /api/v1/coverage?start_date=2024-01-01&end_date=2024-06-30
func (h *QuoteHandler) Coverage(c *gin.Context) {
	start, end, ok := parseDateRange(c)
	if !ok {
		return
	}

	coverage, err := h.gapService.Coverage(c.Request.Context(), start, end)
	if err != nil {
		h.logger.Error("Failed to compute coverage", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute coverage"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"coverage": coverage, "count": len(coverage)})
}

// parseDateRange reads required start_date and end_date query parameters.
// On a bad request it writes the error response and returns ok=false.
func parseDateRange(c *gin.Context) (start, end time.Time, ok bool) {
	startStr := c.Query("start_date")
	endStr := c.Query("end_date")
	if startStr == "" || endStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_date and end_date are required"})
		return
	}

	var err error
	start, err = time.Parse("2006-01-02", startStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start_date format. Use YYYY-MM-DD"})
		return
	}
	end, err = time.Parse("2006-01-02", endStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid end_date format. Use YYYY-MM-DD"})
		return
	}

	return start, end, true
}
