package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourorg/market-data-sync/internal/calendar"
	"github.com/yourorg/market-data-sync/internal/model"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

type fakeQuoteReader struct {
	dates    []time.Time
	symbols  map[string][]string
	coverage []model.InstrumentCoverage
	latest   *time.Time
}

func (f *fakeQuoteReader) DatesWithData(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	return f.dates, nil
}

func (f *fakeQuoteReader) SymbolsWithDataOn(ctx context.Context, d time.Time) ([]string, error) {
	return f.symbols[d.Format("2006-01-02")], nil
}

func (f *fakeQuoteReader) CoverageRows(ctx context.Context, start, end time.Time) ([]model.InstrumentCoverage, error) {
	return f.coverage, nil
}

func (f *fakeQuoteReader) LatestDate(ctx context.Context) (*time.Time, error) {
	return f.latest, nil
}

type fakeInstrumentReader struct {
	active []model.Instrument
}

func (f *fakeInstrumentReader) ListActive(ctx context.Context) ([]model.Instrument, error) {
	return f.active, nil
}

func TestMissingTradingDays(t *testing.T) {
	cal := calendar.New([]string{"2024-05-01"})
	quotes := &fakeQuoteReader{dates: []time.Time{date("2024-04-29"), date("2024-05-02")}}
	svc := NewGapService(quotes, &fakeInstrumentReader{}, cal, zap.NewNop())

	missing, err := svc.MissingTradingDays(context.Background(), date("2024-04-29"), date("2024-05-03"))
	require.NoError(t, err)

	var got []string
	for _, d := range missing {
		got = append(got, d.Format("2006-01-02"))
	}
	// Apr 30 and May 3 have no data; May 1 is a holiday, so it is not missing.
	assert.Equal(t, []string{"2024-04-30", "2024-05-03"}, got)
}

func TestMissingTradingDaysInvertedRange(t *testing.T) {
	svc := NewGapService(&fakeQuoteReader{}, &fakeInstrumentReader{}, calendar.New(nil), zap.NewNop())

	missing, err := svc.MissingTradingDays(context.Background(), date("2024-06-10"), date("2024-06-01"))
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestMissingInstrumentsForDay(t *testing.T) {
	day := date("2024-05-06")
	delisted := date("2024-01-15")
	instruments := &fakeInstrumentReader{active: []model.Instrument{
		{Symbol: "600519.SH", ListDate: date("2001-08-27"), IsActive: true},
		{Symbol: "000001.SZ", ListDate: date("1991-04-03"), IsActive: true},
		{Symbol: "NEW001.SH", ListDate: date("2024-06-01"), IsActive: true}, // not yet listed
		{Symbol: "GONE01.SZ", ListDate: date("2000-01-01"), DelistDate: &delisted, IsActive: true},
	}}
	quotes := &fakeQuoteReader{symbols: map[string][]string{
		"2024-05-06": {"000001.SZ"},
	}}
	svc := NewGapService(quotes, instruments, calendar.New(nil), zap.NewNop())

	missing, err := svc.MissingInstrumentsForDay(context.Background(), day)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, "600519.SH", missing[0].Symbol)
}

func TestCoverageCountsFromListingDate(t *testing.T) {
	quotes := &fakeQuoteReader{coverage: []model.InstrumentCoverage{
		{Symbol: "NEW001.SH", ListDate: date("2024-03-01"), ActualDays: 10},
	}}
	cal := calendar.New(nil)
	svc := NewGapService(quotes, &fakeInstrumentReader{}, cal, zap.NewNop())

	rows, err := svc.Coverage(context.Background(), date("2024-01-01"), date("2024-03-31"))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// Expected days start at the listing date, not the range start.
	wantExpected := cal.CountTradingDays(date("2024-03-01"), date("2024-03-31"))
	assert.Equal(t, wantExpected, rows[0].ExpectedDays)
	assert.InDelta(t, float64(10)/float64(wantExpected)*100, rows[0].CoverageRate, 0.001)
}

func TestCoverageZeroExpectedDays(t *testing.T) {
	// Listed after the query range: no trading days are expected yet,
	// so the instrument counts as fully uncovered, not fully covered.
	quotes := &fakeQuoteReader{coverage: []model.InstrumentCoverage{
		{Symbol: "NEW002.SH", ListDate: date("2024-07-01"), ActualDays: 0},
	}}
	svc := NewGapService(quotes, &fakeInstrumentReader{}, calendar.New(nil), zap.NewNop())

	rows, err := svc.Coverage(context.Background(), date("2024-01-01"), date("2024-03-31"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 0, rows[0].ExpectedDays)
	assert.Equal(t, float64(0), rows[0].CoverageRate)
}

func TestLowCoverageSortsAndCaps(t *testing.T) {
	quotes := &fakeQuoteReader{coverage: []model.InstrumentCoverage{
		{Symbol: "A", ListDate: date("2020-01-01"), ActualDays: 90},
		{Symbol: "B", ListDate: date("2020-01-01"), ActualDays: 10},
		{Symbol: "C", ListDate: date("2020-01-01"), ActualDays: 50},
	}}
	cal := calendar.New(nil)
	svc := NewGapService(quotes, &fakeInstrumentReader{}, cal, zap.NewNop())

	low, err := svc.LowCoverage(context.Background(), date("2024-01-01"), date("2024-06-28"), 80, 2)
	require.NoError(t, err)
	require.Len(t, low, 2)
	assert.Equal(t, "B", low[0].Symbol)
	assert.Equal(t, "C", low[1].Symbol)
}
