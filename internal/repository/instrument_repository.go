package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/yourorg/market-data-sync/internal/model"
)

// InstrumentRepository handles the instrument registry table
type InstrumentRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewInstrumentRepository creates a new instrument repository
func NewInstrumentRepository(db *sqlx.DB, logger *zap.Logger) *InstrumentRepository {
	return &InstrumentRepository{
		db:     db,
		logger: logger,
	}
}

// ListActive returns all active instruments ordered by symbol
func (r *InstrumentRepository) ListActive(ctx context.Context) ([]model.Instrument, error) {
	query := `
		SELECT symbol, name, exchange, list_date, delist_date, is_active, created_at, updated_at
		FROM instruments
		WHERE is_active = TRUE
		ORDER BY symbol
	`

	var instruments []model.Instrument
	err := r.db.SelectContext(ctx, &instruments, query)
	if err != nil {
		r.logger.Error("Failed to list active instruments", zap.Error(err))
		return nil, err
	}

	return instruments, nil
}

// List returns all instruments ordered by symbol
func (r *InstrumentRepository) List(ctx context.Context) ([]model.Instrument, error) {
	query := `
		SELECT symbol, name, exchange, list_date, delist_date, is_active, created_at, updated_at
		FROM instruments
		ORDER BY symbol
	`

	var instruments []model.Instrument
	err := r.db.SelectContext(ctx, &instruments, query)
	if err != nil {
		r.logger.Error("Failed to list instruments", zap.Error(err))
		return nil, err
	}

	return instruments, nil
}

// Counts returns (total, active) instrument counts
func (r *InstrumentRepository) Counts(ctx context.Context) (int, int, error) {
	query := `
		SELECT COUNT(*) AS total,
			COUNT(*) FILTER (WHERE is_active) AS active
		FROM instruments
	`

	var res struct {
		Total  int `db:"total"`
		Active int `db:"active"`
	}
	err := r.db.GetContext(ctx, &res, query)
	if err != nil {
		r.logger.Error("Failed to count instruments", zap.Error(err))
		return 0, 0, err
	}

	return res.Total, res.Active, nil
}

// UpsertBatch writes a registry snapshot, updating listing details for known
// symbols. Returns the number of rows written.
func (r *InstrumentRepository) UpsertBatch(ctx context.Context, instruments []model.Instrument) (int, error) {
	if len(instruments) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to begin transaction", zap.Error(err))
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO instruments (symbol, name, exchange, list_date, delist_date, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP)
		ON CONFLICT (symbol) DO UPDATE SET
			name = EXCLUDED.name,
			exchange = EXCLUDED.exchange,
			list_date = EXCLUDED.list_date,
			delist_date = EXCLUDED.delist_date,
			is_active = EXCLUDED.is_active,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		r.logger.Error("Failed to prepare statement", zap.Error(err))
		return 0, err
	}
	defer stmt.Close()

	written := 0
	for _, inst := range instruments {
		res, err := stmt.ExecContext(
			ctx,
			inst.Symbol,
			inst.Name,
			inst.Exchange,
			inst.ListDate,
			inst.DelistDate,
			inst.IsActive,
		)
		if err != nil {
			r.logger.Error("Failed to upsert instrument",
				zap.Error(err),
				zap.String("symbol", inst.Symbol))
			return 0, err
		}
		if affected, _ := res.RowsAffected(); affected > 0 {
			written++
		}
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("Failed to commit transaction", zap.Error(err))
		return 0, err
	}

	return written, nil
}
