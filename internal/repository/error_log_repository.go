package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/yourorg/market-data-sync/internal/model"
)

// ErrorLogRepository persists classified download errors
type ErrorLogRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewErrorLogRepository creates a new error log repository
func NewErrorLogRepository(db *sqlx.DB, logger *zap.Logger) *ErrorLogRepository {
	return &ErrorLogRepository{
		db:     db,
		logger: logger,
	}
}

// RecordError appends one classified error to the log
func (r *ErrorLogRepository) RecordError(ctx context.Context, rec model.ErrorRecord) error {
	query := `
		INSERT INTO error_log (operation, kind, message, attempt, created_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
	`

	_, err := r.db.ExecContext(ctx, query, rec.Operation, rec.Kind, rec.Message, rec.Attempt)
	if err != nil {
		r.logger.Error("Failed to record error",
			zap.Error(err),
			zap.String("operation", rec.Operation),
			zap.String("kind", string(rec.Kind)))
		return err
	}

	return nil
}

// Recent returns the most recent error records, newest first
func (r *ErrorLogRepository) Recent(ctx context.Context, limit int) ([]model.ErrorRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, operation, kind, message, attempt, created_at
		FROM error_log
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`

	var records []model.ErrorRecord
	err := r.db.SelectContext(ctx, &records, query, limit)
	if err != nil {
		r.logger.Error("Failed to fetch recent errors", zap.Error(err))
		return nil, err
	}

	return records, nil
}

// CountByKind returns error counts grouped by kind
func (r *ErrorLogRepository) CountByKind(ctx context.Context) (map[model.ErrorKind]int, error) {
	query := `
		SELECT kind, COUNT(*) AS count
		FROM error_log
		GROUP BY kind
	`

	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to count errors by kind", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.ErrorKind]int)
	for rows.Next() {
		var kind model.ErrorKind
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		counts[kind] = count
	}

	return counts, rows.Err()
}
