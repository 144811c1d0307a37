package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/yourorg/market-data-sync/internal/model"
)

// QuoteRepository handles the raw daily price table
type QuoteRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewQuoteRepository creates a new quote repository
func NewQuoteRepository(db *sqlx.DB, logger *zap.Logger) *QuoteRepository {
	return &QuoteRepository{
		db:     db,
		logger: logger,
	}
}

// BatchInsert writes a batch of quotes with insert-or-ignore semantics keyed
// by (symbol, trade_date), so re-downloading a day never duplicates rows.
// Returns the number of rows actually inserted.
func (r *QuoteRepository) BatchInsert(ctx context.Context, quotes []model.DailyQuote) (int, error) {
	if len(quotes) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to begin transaction", zap.Error(err))
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO daily_quotes (symbol, trade_date, open, high, low, close, prev_close, change, pct_change, volume, amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (symbol, trade_date) DO NOTHING
	`)
	if err != nil {
		r.logger.Error("Failed to prepare statement", zap.Error(err))
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, q := range quotes {
		res, err := stmt.ExecContext(
			ctx,
			q.Symbol,
			q.TradeDate,
			q.Open,
			q.High,
			q.Low,
			q.Close,
			q.PrevClose,
			q.Change,
			q.PctChange,
			q.Volume,
			q.Amount,
		)
		if err != nil {
			r.logger.Error("Failed to insert quote",
				zap.Error(err),
				zap.String("symbol", q.Symbol),
				zap.Time("trade_date", q.TradeDate))
			return 0, err
		}
		affected, _ := res.RowsAffected()
		inserted += int(affected)
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("Failed to commit transaction", zap.Error(err))
		return 0, err
	}

	return inserted, nil
}

// DatesWithData returns the distinct trade dates having at least one stored
// row in [start, end], ascending.
func (r *QuoteRepository) DatesWithData(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	query := `
		SELECT DISTINCT trade_date
		FROM daily_quotes
		WHERE trade_date >= $1 AND trade_date <= $2
		ORDER BY trade_date
	`

	var dates []time.Time
	err := r.db.SelectContext(ctx, &dates, query, start, end)
	if err != nil {
		r.logger.Error("Failed to get dates with data", zap.Error(err))
		return nil, err
	}

	return dates, nil
}

// SymbolsWithDataOn returns the symbols having a stored row for the given
// trade date.
func (r *QuoteRepository) SymbolsWithDataOn(ctx context.Context, date time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT symbol
		FROM daily_quotes
		WHERE trade_date = $1
	`

	var symbols []string
	err := r.db.SelectContext(ctx, &symbols, query, date)
	if err != nil {
		r.logger.Error("Failed to get symbols with data",
			zap.Error(err),
			zap.Time("trade_date", date))
		return nil, err
	}

	return symbols, nil
}

// GetQuotes retrieves stored quotes for one symbol, ascending by date
func (r *QuoteRepository) GetQuotes(ctx context.Context, q model.QuoteQuery) ([]model.DailyQuote, error) {
	query := `
		SELECT symbol, trade_date, open, high, low, close, prev_close, change, pct_change, volume, amount
		FROM daily_quotes
		WHERE symbol = $1
	`

	args := []interface{}{q.Symbol}
	argCount := 2

	if q.StartDate != nil {
		query += fmt.Sprintf(" AND trade_date >= $%d", argCount)
		args = append(args, *q.StartDate)
		argCount++
	}

	if q.EndDate != nil {
		query += fmt.Sprintf(" AND trade_date <= $%d", argCount)
		args = append(args, *q.EndDate)
		argCount++
	}

	query += " ORDER BY trade_date"

	if q.Limit != nil {
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, *q.Limit)
	}

	var quotes []model.DailyQuote
	err := r.db.SelectContext(ctx, &quotes, query, args...)
	if err != nil {
		r.logger.Error("Failed to get quotes",
			zap.Error(err),
			zap.String("symbol", q.Symbol))
		return nil, err
	}

	return quotes, nil
}

// CoverageRows returns, per active instrument, the stored-row count and
// first/last data date within [start, end]. Expected-day math is done by the
// gap detector, which owns the calendar.
func (r *QuoteRepository) CoverageRows(ctx context.Context, start, end time.Time) ([]model.InstrumentCoverage, error) {
	query := `
		SELECT
			i.symbol,
			i.name,
			i.list_date,
			COUNT(q.trade_date) AS actual_days,
			MIN(q.trade_date) AS first_data_date,
			MAX(q.trade_date) AS last_data_date
		FROM instruments i
		LEFT JOIN daily_quotes q ON i.symbol = q.symbol
			AND q.trade_date >= $1 AND q.trade_date <= $2
		WHERE i.is_active = TRUE
		GROUP BY i.symbol, i.name, i.list_date
		ORDER BY actual_days DESC
	`

	var rows []model.InstrumentCoverage
	err := r.db.SelectContext(ctx, &rows, query, start, end)
	if err != nil {
		r.logger.Error("Failed to get coverage rows", zap.Error(err))
		return nil, err
	}

	return rows, nil
}

// LatestDate returns the most recent stored trade date, or nil when the
// table is empty.
func (r *QuoteRepository) LatestDate(ctx context.Context) (*time.Time, error) {
	query := `SELECT MAX(trade_date) FROM daily_quotes`

	var latest *time.Time
	err := r.db.GetContext(ctx, &latest, query)
	if err != nil {
		r.logger.Error("Failed to get latest trade date", zap.Error(err))
		return nil, err
	}

	return latest, nil
}
