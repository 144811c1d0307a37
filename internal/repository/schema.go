package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schemaStatements creates the persistent tables. Raw quotes are keyed by
// (symbol, trade_date) so repeated downloads are conflict-tolerant; the
// status ledger is keyed by symbol so there is exactly one record per
// instrument; the error log and run history are append-only.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS instruments (
		symbol      TEXT PRIMARY KEY,
		name        TEXT NOT NULL DEFAULT '',
		exchange    TEXT NOT NULL DEFAULT '',
		list_date   DATE NOT NULL,
		delist_date DATE,
		is_active   BOOLEAN NOT NULL DEFAULT TRUE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at  TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS daily_quotes (
		symbol     TEXT NOT NULL,
		trade_date DATE NOT NULL,
		open       DOUBLE PRECISION NOT NULL,
		high       DOUBLE PRECISION NOT NULL,
		low        DOUBLE PRECISION NOT NULL,
		close      DOUBLE PRECISION NOT NULL,
		prev_close DOUBLE PRECISION NOT NULL DEFAULT 0,
		change     DOUBLE PRECISION NOT NULL DEFAULT 0,
		pct_change DOUBLE PRECISION NOT NULL DEFAULT 0,
		volume     DOUBLE PRECISION NOT NULL DEFAULT 0,
		amount     DOUBLE PRECISION NOT NULL DEFAULT 0,
		PRIMARY KEY (symbol, trade_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_daily_quotes_trade_date ON daily_quotes (trade_date)`,
	`CREATE TABLE IF NOT EXISTS download_status (
		symbol             TEXT PRIMARY KEY,
		status             TEXT NOT NULL DEFAULT 'pending',
		last_download_date DATE,
		total_records      INTEGER NOT NULL DEFAULT 0,
		error_message      TEXT,
		retry_count        INTEGER NOT NULL DEFAULT 0,
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_download_status_status ON download_status (status)`,
	`CREATE TABLE IF NOT EXISTS error_log (
		id         BIGSERIAL PRIMARY KEY,
		operation  TEXT NOT NULL,
		kind       TEXT NOT NULL,
		message    TEXT NOT NULL,
		attempt    INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS download_runs (
		run_id          TEXT PRIMARY KEY,
		plan_id         TEXT NOT NULL,
		mode            TEXT NOT NULL,
		dry_run         BOOLEAN NOT NULL,
		started_at      TIMESTAMPTZ NOT NULL,
		finished_at     TIMESTAMPTZ NOT NULL,
		total_tasks     INTEGER NOT NULL,
		completed_tasks INTEGER NOT NULL,
		failed_tasks    INTEGER NOT NULL,
		skipped_tasks   INTEGER NOT NULL,
		records_written INTEGER NOT NULL,
		calls_made      INTEGER NOT NULL,
		success_rate    DOUBLE PRECISION NOT NULL
	)`,
}

// EnsureSchema creates any missing tables and indexes. Statements are
// idempotent so this is safe to run on every startup.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
