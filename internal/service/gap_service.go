package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/market-data-sync/internal/calendar"
	"github.com/yourorg/market-data-sync/internal/model"
)

// quoteReader is the slice of the quote store the gap detector needs
type quoteReader interface {
	DatesWithData(ctx context.Context, start, end time.Time) ([]time.Time, error)
	SymbolsWithDataOn(ctx context.Context, date time.Time) ([]string, error)
	CoverageRows(ctx context.Context, start, end time.Time) ([]model.InstrumentCoverage, error)
	LatestDate(ctx context.Context) (*time.Time, error)
}

// instrumentReader lists the active instrument registry
type instrumentReader interface {
	ListActive(ctx context.Context) ([]model.Instrument, error)
}

// GapService diffs what the trading calendar expects against what the store
// actually holds.
type GapService struct {
	quotes      quoteReader
	instruments instrumentReader
	calendar    *calendar.Calendar
	logger      *zap.Logger
}

// NewGapService creates a new gap service
func NewGapService(quotes quoteReader, instruments instrumentReader, cal *calendar.Calendar, logger *zap.Logger) *GapService {
	return &GapService{
		quotes:      quotes,
		instruments: instruments,
		calendar:    cal,
		logger:      logger,
	}
}

// MissingTradingDays returns, ascending, every trading day in [start, end]
// with no stored rows at all. An inverted range yields an empty result.
func (s *GapService) MissingTradingDays(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	expected := s.calendar.TradingDays(start, end)
	if len(expected) == 0 {
		return nil, nil
	}

	stored, err := s.quotes.DatesWithData(ctx, start, end)
	if err != nil {
		return nil, err
	}

	have := make(map[string]struct{}, len(stored))
	for _, d := range stored {
		have[calendar.Normalize(d).Format("2006-01-02")] = struct{}{}
	}

	var missing []time.Time
	for _, d := range expected {
		if _, ok := have[d.Format("2006-01-02")]; !ok {
			missing = append(missing, d)
		}
	}

	s.logger.Debug("Computed missing trading days",
		zap.Int("expected", len(expected)),
		zap.Int("stored", len(stored)),
		zap.Int("missing", len(missing)))

	return missing, nil
}

// MissingInstrumentsForDay returns active instruments that were listed on or
// before the given day, not yet delisted, and have no stored row for it.
func (s *GapService) MissingInstrumentsForDay(ctx context.Context, date time.Time) ([]model.Instrument, error) {
	date = calendar.Normalize(date)

	active, err := s.instruments.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	stored, err := s.quotes.SymbolsWithDataOn(ctx, date)
	if err != nil {
		return nil, err
	}

	have := make(map[string]struct{}, len(stored))
	for _, sym := range stored {
		have[sym] = struct{}{}
	}

	var missing []model.Instrument
	for _, inst := range active {
		if !inst.ListedOn(date) || inst.DelistedBy(date) {
			continue
		}
		if _, ok := have[inst.Symbol]; !ok {
			missing = append(missing, inst)
		}
	}

	return missing, nil
}

// Coverage reports, per active instrument, how many trading days in
// [start, end] have stored data. Expected days are counted from the later of
// start and the instrument's listing date, never from before listing.
func (s *GapService) Coverage(ctx context.Context, start, end time.Time) ([]model.InstrumentCoverage, error) {
	start = calendar.Normalize(start)
	end = calendar.Normalize(end)

	rows, err := s.quotes.CoverageRows(ctx, start, end)
	if err != nil {
		return nil, err
	}

	for i := range rows {
		from := start
		if rows[i].ListDate.After(from) {
			from = calendar.Normalize(rows[i].ListDate)
		}
		expected := s.calendar.CountTradingDays(from, end)
		rows[i].ExpectedDays = expected
		if expected > 0 {
			rows[i].CoverageRate = float64(rows[i].ActualDays) / float64(expected) * 100
		} else {
			rows[i].CoverageRate = 0
		}
	}

	return rows, nil
}

// LowCoverage returns instruments whose coverage rate is below the threshold,
// worst first, capped at limit.
func (s *GapService) LowCoverage(ctx context.Context, start, end time.Time, threshold float64, limit int) ([]model.InstrumentCoverage, error) {
	rows, err := s.Coverage(ctx, start, end)
	if err != nil {
		return nil, err
	}

	var low []model.InstrumentCoverage
	for _, row := range rows {
		if row.CoverageRate < threshold {
			low = append(low, row)
		}
	}

	sort.SliceStable(low, func(i, j int) bool {
		return low[i].CoverageRate < low[j].CoverageRate
	})

	if limit > 0 && len(low) > limit {
		low = low[:limit]
	}

	return low, nil
}

// LatestStoredDate exposes the most recent trade date with any stored data
func (s *GapService) LatestStoredDate(ctx context.Context) (*time.Time, error) {
	return s.quotes.LatestDate(ctx)
}
