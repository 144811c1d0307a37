package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/yourorg/market-data-sync/internal/model"
	"github.com/yourorg/market-data-sync/internal/repository"
)

// statusStore is the slice of the status repository the status service needs
type statusStore interface {
	Get(ctx context.Context, symbol string) (*model.StatusRecord, error)
	ListByStatus(ctx context.Context, statuses []model.DownloadStatus, limit int) ([]model.StatusRecord, error)
	Initialize(ctx context.Context, symbols []string, resetExisting bool) (int, int, error)
	Summary(ctx context.Context) (*repository.StatusSummary, error)
}

// StatusService exposes ledger queries and seeding
type StatusService struct {
	statuses    statusStore
	instruments instrumentReader
	logger      *zap.Logger
}

// NewStatusService creates a new status service
func NewStatusService(statuses statusStore, instruments instrumentReader, logger *zap.Logger) *StatusService {
	return &StatusService{
		statuses:    statuses,
		instruments: instruments,
		logger:      logger,
	}
}

// Get returns one instrument's status record, or nil when none exists
func (s *StatusService) Get(ctx context.Context, symbol string) (*model.StatusRecord, error) {
	return s.statuses.Get(ctx, symbol)
}

// List returns ledger records matching the given statuses, most recently
// updated first. An empty status set matches everything.
func (s *StatusService) List(ctx context.Context, statuses []model.DownloadStatus, limit int) ([]model.StatusRecord, error) {
	if len(statuses) == 0 {
		statuses = []model.DownloadStatus{
			model.StatusPending,
			model.StatusInProgress,
			model.StatusCompleted,
			model.StatusFailed,
			model.StatusPartial,
			model.StatusSkipped,
		}
	}
	return s.statuses.ListByStatus(ctx, statuses, limit)
}

// Summary returns ledger counts by status plus the most recent records
func (s *StatusService) Summary(ctx context.Context) (*repository.StatusSummary, error) {
	return s.statuses.Summary(ctx)
}

// InitializeResult reports what seeding the ledger changed
type InitializeResult struct {
	Inserted int `json:"inserted"`
	Reset    int `json:"reset"`
}

// Initialize seeds pending ledger records. With no explicit symbols, every
// active registry instrument is seeded. Existing records are left alone
// unless resetExisting is set.
func (s *StatusService) Initialize(ctx context.Context, symbols []string, resetExisting bool) (*InitializeResult, error) {
	if len(symbols) == 0 {
		active, err := s.instruments.ListActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list active instruments: %w", err)
		}
		symbols = make([]string, 0, len(active))
		for _, inst := range active {
			symbols = append(symbols, inst.Symbol)
		}
	}
	if len(symbols) == 0 {
		return &InitializeResult{}, nil
	}

	inserted, reset, err := s.statuses.Initialize(ctx, symbols, resetExisting)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Initialized status ledger",
		zap.Int("symbols", len(symbols)),
		zap.Int("inserted", inserted),
		zap.Int("reset", reset))

	return &InitializeResult{Inserted: inserted, Reset: reset}, nil
}
