package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourorg/market-data-sync/internal/config"
	"github.com/yourorg/market-data-sync/internal/model"
	"github.com/yourorg/market-data-sync/internal/repository"
)

type fakeGateway struct {
	dayQuotes     map[string][]model.DailyQuote
	historyQuotes []model.DailyQuote
	dayErr        error
	historyErr    error
	dayCalls      int
	historyCalls  int
	historyStart  time.Time
	historyEnd    time.Time
}

func (f *fakeGateway) FetchDailyQuotes(ctx context.Context, d time.Time) ([]model.DailyQuote, error) {
	f.dayCalls++
	if f.dayErr != nil {
		return nil, f.dayErr
	}
	return f.dayQuotes[d.Format("2006-01-02")], nil
}

func (f *fakeGateway) FetchSymbolHistory(ctx context.Context, symbol string, start, end time.Time) ([]model.DailyQuote, error) {
	f.historyCalls++
	f.historyStart = start
	f.historyEnd = end
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.historyQuotes, nil
}

type fakeQuoteWriter struct {
	inserts [][]model.DailyQuote
	err     error
}

func (f *fakeQuoteWriter) BatchInsert(ctx context.Context, quotes []model.DailyQuote) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.inserts = append(f.inserts, quotes)
	return len(quotes), nil
}

type fakeLedger struct {
	upserts []repository.UpsertParams
}

func (f *fakeLedger) Upsert(ctx context.Context, p repository.UpsertParams) (*model.StatusRecord, error) {
	f.upserts = append(f.upserts, p)
	return &model.StatusRecord{Symbol: p.Symbol, Status: p.Status}, nil
}

type fakeRunStore struct {
	runs []model.ExecutionResult
}

func (f *fakeRunStore) InsertRun(ctx context.Context, r model.ExecutionResult) error {
	f.runs = append(f.runs, r)
	return nil
}

type fakePublisher struct {
	events []model.ExecutionResult
}

func (f *fakePublisher) PublishRunCompleted(ctx context.Context, r model.ExecutionResult) error {
	f.events = append(f.events, r)
	return nil
}

func executorConfig() config.DownloadConfig {
	cfg := testDownloadConfig()
	cfg.TaskInterval = 0
	return cfg
}

func dayPlan(dates ...string) *model.DownloadPlan {
	plan := &model.DownloadPlan{ID: "plan-1", Mode: model.ModeMissingDays}
	for i, d := range dates {
		plan.Tasks = append(plan.Tasks, model.DownloadTask{
			ID:        i + 1,
			Kind:      model.TaskByDay,
			TradeDate: date(d),
			Priority:  model.PriorityNormal,
			Status:    model.TaskPending,
		})
	}
	plan.Stats.TotalTasks = len(plan.Tasks)
	return plan
}

func TestExecuteDryRunWritesNothing(t *testing.T) {
	gw := &fakeGateway{}
	quotes := &fakeQuoteWriter{}
	ledger := &fakeLedger{}
	runs := &fakeRunStore{}
	svc := NewDownloadService(gw, quotes, ledger, runs, nil, executorConfig(), zap.NewNop())

	plan := dayPlan("2024-06-12", "2024-06-13", "2024-06-14")
	result, err := svc.Execute(context.Background(), plan, true)
	require.NoError(t, err)

	assert.Zero(t, gw.dayCalls)
	assert.Empty(t, quotes.inserts)
	assert.Empty(t, ledger.upserts)

	assert.Equal(t, 3, result.CompletedTasks)
	assert.Zero(t, result.RecordsWritten)
	assert.True(t, result.DryRun)
	for _, task := range plan.Tasks {
		assert.Equal(t, model.TaskSimulated, task.Status)
	}
	for _, tr := range result.TaskResults {
		assert.Equal(t, model.TaskSimulated, tr.Status)
	}

	// The run summary itself is still recorded.
	require.Len(t, runs.runs, 1)
	assert.True(t, runs.runs[0].DryRun)
}

func TestExecuteDayTasks(t *testing.T) {
	gw := &fakeGateway{dayQuotes: map[string][]model.DailyQuote{
		"2024-06-14": {
			{Symbol: "600519.SH", TradeDate: date("2024-06-14"), Open: 1700, High: 1720, Low: 1690, Close: 1710},
			{Symbol: "000001.SZ", TradeDate: date("2024-06-14"), Open: 10, High: 10.5, Low: 9.9, Close: 10.2},
		},
	}}
	quotes := &fakeQuoteWriter{}
	ledger := &fakeLedger{}
	runs := &fakeRunStore{}
	publisher := &fakePublisher{}
	svc := NewDownloadService(gw, quotes, ledger, runs, publisher, executorConfig(), zap.NewNop())

	plan := dayPlan("2024-06-14")
	result, err := svc.Execute(context.Background(), plan, false)
	require.NoError(t, err)

	assert.Equal(t, 1, gw.dayCalls)
	require.Len(t, quotes.inserts, 1)
	assert.Equal(t, 2, result.RecordsWritten)
	assert.Equal(t, 1, result.CompletedTasks)
	assert.Equal(t, float64(100), result.SuccessRate)

	// One completed ledger upsert per instrument in the response, each
	// adding its row to the stored record count.
	require.Len(t, ledger.upserts, 2)
	for _, up := range ledger.upserts {
		assert.Equal(t, model.StatusCompleted, up.Status)
		require.NotNil(t, up.LastDownloadDate)
		assert.Equal(t, "2024-06-14", up.LastDownloadDate.Format("2006-01-02"))
		assert.Equal(t, 1, up.AddRecords)
		assert.Nil(t, up.TotalRecords)
		require.NotNil(t, up.ErrorMessage)
		assert.Empty(t, *up.ErrorMessage)
	}

	require.Len(t, publisher.events, 1)
	assert.Equal(t, result.RunID, publisher.events[0].RunID)
}

func TestExecuteIsolatesTaskFailures(t *testing.T) {
	gw := &fakeGateway{
		dayErr: errors.New("daily_quotes failed after 4 attempt(s): connection refused"),
	}
	quotes := &fakeQuoteWriter{}
	runs := &fakeRunStore{}
	svc := NewDownloadService(gw, quotes, &fakeLedger{}, runs, nil, executorConfig(), zap.NewNop())

	plan := dayPlan("2024-06-13", "2024-06-14")
	result, err := svc.Execute(context.Background(), plan, false)
	require.NoError(t, err)

	// Both tasks were attempted despite the first failing.
	assert.Equal(t, 2, gw.dayCalls)
	assert.Equal(t, 2, result.FailedTasks)
	assert.Zero(t, result.CompletedTasks)
	assert.Zero(t, result.SuccessRate)
	for _, tr := range result.TaskResults {
		assert.Equal(t, model.TaskFailed, tr.Status)
		assert.NotEmpty(t, tr.ErrorMessage)
	}
}

func TestExecuteStopsSchedulingOnCancel(t *testing.T) {
	gw := &fakeGateway{}
	svc := NewDownloadService(gw, &fakeQuoteWriter{}, &fakeLedger{}, &fakeRunStore{}, nil, executorConfig(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	plan := dayPlan("2024-06-12", "2024-06-13", "2024-06-14")
	result, err := svc.Execute(ctx, plan, false)
	require.NoError(t, err)

	assert.Zero(t, gw.dayCalls)
	assert.Equal(t, 3, result.SkippedTasks)
	for _, task := range plan.Tasks {
		assert.Equal(t, model.TaskSkipped, task.Status)
	}
}

func TestExecuteInstrumentTaskSuccess(t *testing.T) {
	gw := &fakeGateway{historyQuotes: []model.DailyQuote{
		{Symbol: "600519.SH", TradeDate: date("2024-06-13")},
		{Symbol: "600519.SH", TradeDate: date("2024-06-14")},
	}}
	ledger := &fakeLedger{}
	svc := NewDownloadService(gw, &fakeQuoteWriter{}, ledger, &fakeRunStore{}, nil, executorConfig(), zap.NewNop())

	plan := &model.DownloadPlan{ID: "plan-2", Mode: model.ModeLowCoverageInstruments, Tasks: []model.DownloadTask{
		{ID: 1, Kind: model.TaskByInstrument, Symbol: "600519.SH", Status: model.TaskPending},
	}}
	result, err := svc.Execute(context.Background(), plan, false)
	require.NoError(t, err)

	assert.Equal(t, 1, result.CompletedTasks)
	assert.Equal(t, 2, result.RecordsWritten)

	// in_progress first, then completed with totals and the latest date.
	require.Len(t, ledger.upserts, 2)
	assert.Equal(t, model.StatusInProgress, ledger.upserts[0].Status)
	final := ledger.upserts[1]
	assert.Equal(t, model.StatusCompleted, final.Status)
	require.NotNil(t, final.TotalRecords)
	assert.Equal(t, 2, *final.TotalRecords)
	require.NotNil(t, final.LastDownloadDate)
	assert.Equal(t, "2024-06-14", final.LastDownloadDate.Format("2006-01-02"))
	assert.Zero(t, final.AddRecords)

	// Without a task start bound the configured default applies.
	assert.Equal(t, "2024-01-01", gw.historyStart.Format("2006-01-02"))
}

func TestExecuteInstrumentTaskHonorsStartBound(t *testing.T) {
	gw := &fakeGateway{historyQuotes: []model.DailyQuote{
		{Symbol: "301000.SZ", TradeDate: date("2024-06-14")},
	}}
	svc := NewDownloadService(gw, &fakeQuoteWriter{}, &fakeLedger{}, &fakeRunStore{}, nil, executorConfig(), zap.NewNop())

	// A recent listing: the fetch starts at its listing date, not at the
	// configured default years earlier.
	listed := date("2024-03-15")
	plan := &model.DownloadPlan{ID: "plan-4", Mode: model.ModeLowCoverageInstruments, Tasks: []model.DownloadTask{
		{ID: 1, Kind: model.TaskByInstrument, Symbol: "301000.SZ", StartDate: &listed, Status: model.TaskPending},
	}}
	result, err := svc.Execute(context.Background(), plan, false)
	require.NoError(t, err)

	assert.Equal(t, 1, result.CompletedTasks)
	assert.Equal(t, 1, gw.historyCalls)
	assert.Equal(t, "2024-03-15", gw.historyStart.Format("2006-01-02"))
}

func TestExecuteInstrumentTaskFailureMarksLedger(t *testing.T) {
	gw := &fakeGateway{historyErr: errors.New("upstream API error: rate limit exceeded")}
	ledger := &fakeLedger{}
	svc := NewDownloadService(gw, &fakeQuoteWriter{}, ledger, &fakeRunStore{}, nil, executorConfig(), zap.NewNop())

	plan := &model.DownloadPlan{ID: "plan-3", Mode: model.ModeLowCoverageInstruments, Tasks: []model.DownloadTask{
		{ID: 1, Kind: model.TaskByInstrument, Symbol: "600519.SH", Status: model.TaskPending},
	}}
	result, err := svc.Execute(context.Background(), plan, false)
	require.NoError(t, err)

	assert.Equal(t, 1, result.FailedTasks)

	require.Len(t, ledger.upserts, 2)
	failed := ledger.upserts[1]
	assert.Equal(t, model.StatusFailed, failed.Status)
	assert.True(t, failed.IncrementRetry)
	require.NotNil(t, failed.ErrorMessage)
	assert.Contains(t, *failed.ErrorMessage, "rate limit")
}
