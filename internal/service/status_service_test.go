package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourorg/market-data-sync/internal/model"
	"github.com/yourorg/market-data-sync/internal/repository"
)

type fakeStatusStore struct {
	records     map[string]*model.StatusRecord
	initialized []string
	reset       bool
}

func (f *fakeStatusStore) Get(ctx context.Context, symbol string) (*model.StatusRecord, error) {
	return f.records[symbol], nil
}

func (f *fakeStatusStore) ListByStatus(ctx context.Context, statuses []model.DownloadStatus, limit int) ([]model.StatusRecord, error) {
	var out []model.StatusRecord
	for _, rec := range f.records {
		for _, s := range statuses {
			if rec.Status == s {
				out = append(out, *rec)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStatusStore) Initialize(ctx context.Context, symbols []string, resetExisting bool) (int, int, error) {
	f.initialized = symbols
	f.reset = resetExisting
	inserted := 0
	for _, sym := range symbols {
		if _, ok := f.records[sym]; !ok {
			inserted++
		}
	}
	return inserted, 0, nil
}

func (f *fakeStatusStore) Summary(ctx context.Context) (*repository.StatusSummary, error) {
	counts := make(map[model.DownloadStatus]int)
	for _, rec := range f.records {
		counts[rec.Status]++
	}
	return &repository.StatusSummary{Counts: counts}, nil
}

func TestStatusInitializeDefaultsToActiveInstruments(t *testing.T) {
	store := &fakeStatusStore{records: map[string]*model.StatusRecord{}}
	instruments := &fakeInstrumentReader{active: []model.Instrument{
		{Symbol: "600519.SH", IsActive: true},
		{Symbol: "000001.SZ", IsActive: true},
	}}
	svc := NewStatusService(store, instruments, zap.NewNop())

	result, err := svc.Initialize(context.Background(), nil, false)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Inserted)
	assert.ElementsMatch(t, []string{"600519.SH", "000001.SZ"}, store.initialized)
	assert.False(t, store.reset)
}

func TestStatusInitializeExplicitSymbols(t *testing.T) {
	store := &fakeStatusStore{records: map[string]*model.StatusRecord{
		"600519.SH": {Symbol: "600519.SH", Status: model.StatusFailed},
	}}
	svc := NewStatusService(store, &fakeInstrumentReader{}, zap.NewNop())

	result, err := svc.Initialize(context.Background(), []string{"600519.SH"}, true)
	require.NoError(t, err)

	assert.Zero(t, result.Inserted)
	assert.True(t, store.reset)
}

func TestStatusListDefaultsToAllStatuses(t *testing.T) {
	store := &fakeStatusStore{records: map[string]*model.StatusRecord{
		"A": {Symbol: "A", Status: model.StatusCompleted},
		"B": {Symbol: "B", Status: model.StatusFailed},
	}}
	svc := NewStatusService(store, &fakeInstrumentReader{}, zap.NewNop())

	records, err := svc.List(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
