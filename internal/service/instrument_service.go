package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/yourorg/market-data-sync/internal/model"
)

// registryFetcher pulls the instrument registry from the upstream
type registryFetcher interface {
	FetchInstruments(ctx context.Context) ([]model.Instrument, error)
}

// instrumentStore writes registry snapshots
type instrumentStore interface {
	List(ctx context.Context) ([]model.Instrument, error)
	ListActive(ctx context.Context) ([]model.Instrument, error)
	UpsertBatch(ctx context.Context, instruments []model.Instrument) (int, error)
}

// InstrumentService keeps the local instrument registry in sync with the
// upstream listing.
type InstrumentService struct {
	gateway registryFetcher
	store   instrumentStore
	logger  *zap.Logger
}

// NewInstrumentService creates a new instrument service
func NewInstrumentService(gateway registryFetcher, store instrumentStore, logger *zap.Logger) *InstrumentService {
	return &InstrumentService{
		gateway: gateway,
		store:   store,
		logger:  logger,
	}
}

// List returns every known instrument. activeOnly restricts to instruments
// still trading.
func (s *InstrumentService) List(ctx context.Context, activeOnly bool) ([]model.Instrument, error) {
	if activeOnly {
		return s.store.ListActive(ctx)
	}
	return s.store.List(ctx)
}

// Sync fetches the upstream registry and writes it through. Returns the
// number of rows written.
func (s *InstrumentService) Sync(ctx context.Context) (int, error) {
	instruments, err := s.gateway.FetchInstruments(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch instrument registry: %w", err)
	}

	written, err := s.store.UpsertBatch(ctx, instruments)
	if err != nil {
		return 0, fmt.Errorf("failed to store instrument registry: %w", err)
	}

	s.logger.Info("Synced instrument registry",
		zap.Int("fetched", len(instruments)),
		zap.Int("written", written))

	return written, nil
}
