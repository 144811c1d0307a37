package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/yourorg/market-data-sync/internal/model"
)

// StatusRepository is the durable status ledger: one record per instrument
// tracking its download progress
type StatusRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewStatusRepository creates a new status ledger repository
func NewStatusRepository(db *sqlx.DB, logger *zap.Logger) *StatusRepository {
	return &StatusRepository{
		db:     db,
		logger: logger,
	}
}

// UpsertParams are the fields of a ledger upsert. Nil optional fields leave
// the stored value untouched; pass a pointer to the zero value to clear.
// AddRecords is added to the stored record count, after TotalRecords has been
// applied, so day-by-day downloads can accumulate without reading first.
type UpsertParams struct {
	Symbol           string
	Status           model.DownloadStatus
	LastDownloadDate *time.Time
	TotalRecords     *int
	AddRecords       int
	ErrorMessage     *string
	IncrementRetry   bool
}

// Get retrieves one instrument's status record, or nil when no record exists
func (r *StatusRepository) Get(ctx context.Context, symbol string) (*model.StatusRecord, error) {
	query := `
		SELECT symbol, status, last_download_date, total_records, error_message, retry_count, updated_at
		FROM download_status
		WHERE symbol = $1
	`

	var rec model.StatusRecord
	err := r.db.GetContext(ctx, &rec, query, symbol)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to get status record",
			zap.Error(err),
			zap.String("symbol", symbol))
		return nil, err
	}

	return &rec, nil
}

// Upsert writes one instrument's download state as a single statement, so a
// crash can never leave a half-written record and repeating the call with
// identical inputs leaves identical state. The retry counter is only bumped
// when IncrementRetry is set.
func (r *StatusRepository) Upsert(ctx context.Context, p UpsertParams) (*model.StatusRecord, error) {
	query := `
		INSERT INTO download_status (symbol, status, last_download_date, total_records, error_message, retry_count, updated_at)
		VALUES ($1, $2, $3, COALESCE($4, 0) + $7, $5, CASE WHEN $6 THEN 1 ELSE 0 END, CURRENT_TIMESTAMP)
		ON CONFLICT (symbol) DO UPDATE SET
			status = EXCLUDED.status,
			last_download_date = COALESCE($3, download_status.last_download_date),
			total_records = COALESCE($4, download_status.total_records) + $7,
			error_message = COALESCE($5, download_status.error_message),
			retry_count = download_status.retry_count + CASE WHEN $6 THEN 1 ELSE 0 END,
			updated_at = CURRENT_TIMESTAMP
		RETURNING symbol, status, last_download_date, total_records, error_message, retry_count, updated_at
	`

	var rec model.StatusRecord
	err := r.db.GetContext(ctx, &rec, query,
		p.Symbol,
		p.Status,
		p.LastDownloadDate,
		p.TotalRecords,
		p.ErrorMessage,
		p.IncrementRetry,
		p.AddRecords,
	)
	if err != nil {
		r.logger.Error("Failed to upsert status record",
			zap.Error(err),
			zap.String("symbol", p.Symbol),
			zap.String("status", string(p.Status)))
		return nil, err
	}

	return &rec, nil
}

// ListByStatus returns records matching any of the given statuses, most
// recently updated first.
func (r *StatusRepository) ListByStatus(ctx context.Context, statuses []model.DownloadStatus, limit int) ([]model.StatusRecord, error) {
	query := `
		SELECT symbol, status, last_download_date, total_records, error_message, retry_count, updated_at
		FROM download_status
		WHERE status IN (?)
		ORDER BY updated_at DESC
	`
	args := []interface{}{statuses}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	query, inArgs, err := sqlx.In(query, args...)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)

	var records []model.StatusRecord
	err = r.db.SelectContext(ctx, &records, query, inArgs...)
	if err != nil {
		r.logger.Error("Failed to list status records", zap.Error(err))
		return nil, err
	}

	return records, nil
}

// Initialize seeds pending records for symbols without one. With
// resetExisting, records that already exist are cleared back to pending.
// Returns (inserted, reset) counts.
func (r *StatusRepository) Initialize(ctx context.Context, symbols []string, resetExisting bool) (int, int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to begin transaction", zap.Error(err))
		return 0, 0, err
	}
	defer tx.Rollback()

	insertStmt, err := tx.PreparexContext(ctx, `
		INSERT INTO download_status (symbol, status, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (symbol) DO NOTHING
	`)
	if err != nil {
		return 0, 0, err
	}
	defer insertStmt.Close()

	var resetStmt *sqlx.Stmt
	if resetExisting {
		resetStmt, err = tx.PreparexContext(ctx, `
			UPDATE download_status
			SET status = $2, last_download_date = NULL, total_records = 0,
				error_message = NULL, retry_count = 0, updated_at = CURRENT_TIMESTAMP
			WHERE symbol = $1
		`)
		if err != nil {
			return 0, 0, err
		}
		defer resetStmt.Close()
	}

	inserted := 0
	reset := 0
	for _, symbol := range symbols {
		res, err := insertStmt.ExecContext(ctx, symbol, model.StatusPending)
		if err != nil {
			r.logger.Error("Failed to initialize status record",
				zap.Error(err),
				zap.String("symbol", symbol))
			return 0, 0, err
		}

		affected, _ := res.RowsAffected()
		if affected > 0 {
			inserted++
			continue
		}

		if resetExisting {
			if _, err := resetStmt.ExecContext(ctx, symbol, model.StatusPending); err != nil {
				r.logger.Error("Failed to reset status record",
					zap.Error(err),
					zap.String("symbol", symbol))
				return 0, 0, err
			}
			reset++
		}
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("Failed to commit transaction", zap.Error(err))
		return 0, 0, err
	}

	return inserted, reset, nil
}

// StatusSummary aggregates ledger counts by status with recent records
type StatusSummary struct {
	Counts map[model.DownloadStatus]int `json:"counts"`
	Recent []model.StatusRecord         `json:"recent"`
}

// Summary returns counts of ledger records by status plus the most recently
// updated records.
func (r *StatusRepository) Summary(ctx context.Context) (*StatusSummary, error) {
	countQuery := `
		SELECT status, COUNT(*) as count
		FROM download_status
		GROUP BY status
	`

	type statusCount struct {
		Status model.DownloadStatus `db:"status"`
		Count  int                  `db:"count"`
	}

	var counts []statusCount
	err := r.db.SelectContext(ctx, &counts, countQuery)
	if err != nil {
		r.logger.Error("Failed to get status counts", zap.Error(err))
		return nil, err
	}

	recentQuery := `
		SELECT symbol, status, last_download_date, total_records, error_message, retry_count, updated_at
		FROM download_status
		ORDER BY updated_at DESC
		LIMIT 10
	`

	var recent []model.StatusRecord
	err = r.db.SelectContext(ctx, &recent, recentQuery)
	if err != nil {
		r.logger.Error("Failed to get recent status records", zap.Error(err))
		return nil, err
	}

	summary := &StatusSummary{
		Counts: make(map[model.DownloadStatus]int, len(counts)),
		Recent: recent,
	}
	for _, c := range counts {
		summary.Counts[c.Status] = c.Count
	}

	return summary, nil
}
