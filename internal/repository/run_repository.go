package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/yourorg/market-data-sync/internal/model"
)

// RunRepository persists download run summaries
type RunRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sqlx.DB, logger *zap.Logger) *RunRepository {
	return &RunRepository{
		db:     db,
		logger: logger,
	}
}

// InsertRun records the summary of a finished execution. Per-task results are
// ephemeral and not stored.
func (r *RunRepository) InsertRun(ctx context.Context, result model.ExecutionResult) error {
	query := `
		INSERT INTO download_runs (
			run_id, plan_id, mode, dry_run, started_at, finished_at,
			total_tasks, completed_tasks, failed_tasks, skipped_tasks,
			records_written, calls_made, success_rate
		) VALUES (
			:run_id, :plan_id, :mode, :dry_run, :started_at, :finished_at,
			:total_tasks, :completed_tasks, :failed_tasks, :skipped_tasks,
			:records_written, :calls_made, :success_rate
		)
	`

	_, err := r.db.NamedExecContext(ctx, query, result)
	if err != nil {
		r.logger.Error("Failed to insert download run",
			zap.Error(err),
			zap.String("run_id", result.RunID))
		return err
	}

	return nil
}

// RecentRuns returns the most recent run summaries, newest first
func (r *RunRepository) RecentRuns(ctx context.Context, limit int) ([]model.ExecutionResult, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT run_id, plan_id, mode, dry_run, started_at, finished_at,
			total_tasks, completed_tasks, failed_tasks, skipped_tasks,
			records_written, calls_made, success_rate
		FROM download_runs
		ORDER BY started_at DESC
		LIMIT $1
	`

	var runs []model.ExecutionResult
	err := r.db.SelectContext(ctx, &runs, query, limit)
	if err != nil {
		r.logger.Error("Failed to fetch recent runs", zap.Error(err))
		return nil, err
	}

	return runs, nil
}
