package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourorg/market-data-sync/internal/model"
	"github.com/yourorg/market-data-sync/internal/service"
)

// runLister reads run history
type runLister interface {
	RecentRuns(ctx context.Context, limit int) ([]model.ExecutionResult, error)
}

// DownloadHandler handles plan and execution HTTP requests
type DownloadHandler struct {
	planService     *service.PlanService
	downloadService *service.DownloadService
	runs            runLister
	logger          *zap.Logger
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(planService *service.PlanService, downloadService *service.DownloadService, runs runLister, logger *zap.Logger) *DownloadHandler {
	return &DownloadHandler{
		planService:     planService,
		downloadService: downloadService,
		runs:            runs,
		logger:          logger,
	}
}

// Analyze handles reporting the scope of missing data
// GET /api/v1/downloads/analysis
func (h *DownloadHandler) Analyze(c *gin.Context) {
	analysis, err := h.planService.Analyze(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to analyze gaps", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to analyze missing data"})
		return
	}

	c.JSON(http.StatusOK, analysis)
}

// BuildPlan handles building a download plan without running it
// POST /api/v1/downloads/plan
func (h *DownloadHandler) BuildPlan(c *gin.Context) {
	var request model.PlanRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan, err := h.planService.Build(c.Request.Context(), request)
	if err != nil {
		h.logger.Error("Failed to build plan",
			zap.Error(err),
			zap.String("mode", string(request.Mode)))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build download plan"})
		return
	}

	c.JSON(http.StatusOK, plan)
}

// Execute handles building and running a plan in one call
// POST /api/v1/downloads/execute
func (h *DownloadHandler) Execute(c *gin.Context) {
	var request model.ExecuteRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan, err := h.planService.Build(c.Request.Context(), request.PlanRequest)
	if err != nil {
		h.logger.Error("Failed to build plan",
			zap.Error(err),
			zap.String("mode", string(request.Mode)))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build download plan"})
		return
	}

	result, err := h.downloadService.Execute(c.Request.Context(), plan, request.DryRun)
	if err != nil {
		h.logger.Error("Failed to execute plan",
			zap.Error(err),
			zap.String("plan_id", plan.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to execute download plan"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// RecentRuns handles retrieving run history
// GET /api/v1/downloads/runs
func (h *DownloadHandler) RecentRuns(c *gin.Context) {
	limit := 20
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = parsed
	}

	runs, err := h.runs.RecentRuns(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to get run history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get run history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}
