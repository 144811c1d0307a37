// Package gateway disciplines access to the rate-limited upstream API: a
// shared call-budget limiter, a per-operation circuit breaker, and
// classification-aware retry with backoff. Failed attempts are recorded to
// an append-only error sink for diagnostics.
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/yourorg/market-data-sync/internal/model"
)

// Operation names for the guarded upstream calls. Each gets its own breaker
// so a failing endpoint does not trip the others.
const (
	OpDailyQuotes   = "daily_quotes"
	OpSymbolHistory = "symbol_history"
	OpInstruments   = "instruments"
)

// Fetcher is the upstream market-data client the gateway guards
type Fetcher interface {
	FetchDailyQuotes(ctx context.Context, date time.Time) ([]model.DailyQuote, error)
	FetchSymbolHistory(ctx context.Context, symbol string, start, end time.Time) ([]model.DailyQuote, error)
	FetchInstruments(ctx context.Context) ([]model.Instrument, error)
}

// ErrorSink records failed attempts append-only
type ErrorSink interface {
	RecordError(ctx context.Context, rec model.ErrorRecord) error
}

// Gateway wraps the upstream client with rate limiting, retry, and circuit
// breaking. All upstream traffic goes through it.
type Gateway struct {
	client   Fetcher
	limiter  *RateLimiter
	policy   RetryPolicy
	breakers map[string]*CircuitBreaker
	sink     ErrorSink
	logger   *zap.Logger
}

// Options configures a Gateway
type Options struct {
	Limiter          *RateLimiter
	Policy           RetryPolicy
	FailureThreshold int
	BreakerTimeout   time.Duration
	Sink             ErrorSink
}

// New creates a Gateway guarding the given client
func New(client Fetcher, opts Options, logger *zap.Logger) *Gateway {
	breakers := make(map[string]*CircuitBreaker)
	for _, op := range []string{OpDailyQuotes, OpSymbolHistory, OpInstruments} {
		breakers[op] = NewCircuitBreaker(op, opts.FailureThreshold, opts.BreakerTimeout, logger)
	}

	return &Gateway{
		client:   client,
		limiter:  opts.Limiter,
		policy:   opts.Policy,
		breakers: breakers,
		sink:     opts.Sink,
		logger:   logger,
	}
}

// FetchDailyQuotes fetches all instruments' rows for one trading day through
// the guarded path.
func (g *Gateway) FetchDailyQuotes(ctx context.Context, date time.Time) ([]model.DailyQuote, error) {
	var quotes []model.DailyQuote
	err := g.execute(ctx, OpDailyQuotes, func(ctx context.Context) error {
		var err error
		quotes, err = g.client.FetchDailyQuotes(ctx, date)
		return err
	})
	return quotes, err
}

// FetchSymbolHistory fetches one instrument's rows for a date range through
// the guarded path.
func (g *Gateway) FetchSymbolHistory(ctx context.Context, symbol string, start, end time.Time) ([]model.DailyQuote, error) {
	var quotes []model.DailyQuote
	err := g.execute(ctx, OpSymbolHistory, func(ctx context.Context) error {
		var err error
		quotes, err = g.client.FetchSymbolHistory(ctx, symbol, start, end)
		return err
	})
	return quotes, err
}

// FetchInstruments fetches the instrument registry listing through the
// guarded path.
func (g *Gateway) FetchInstruments(ctx context.Context) ([]model.Instrument, error) {
	var instruments []model.Instrument
	err := g.execute(ctx, OpInstruments, func(ctx context.Context) error {
		var err error
		instruments, err = g.client.FetchInstruments(ctx)
		return err
	})
	return instruments, err
}

// RemainingCallsToday exposes the limiter's daily budget for reporting.
func (g *Gateway) RemainingCallsToday() int {
	return g.limiter.RemainingToday()
}

// BreakerStates returns the current state of every per-operation breaker.
func (g *Gateway) BreakerStates() map[string]BreakerState {
	states := make(map[string]BreakerState, len(g.breakers))
	for op, b := range g.breakers {
		states[op] = b.State()
	}
	return states
}

// execute runs one guarded operation: fail fast on an open breaker, then
// retry retryable failures under the policy. Each attempt waits on the
// limiter first so retries also respect the call budget.
func (g *Gateway) execute(ctx context.Context, op string, fn func(context.Context) error) error {
	breaker := g.breakers[op]
	attempt := 0

	operation := func() error {
		attempt++

		if err := breaker.Allow(); err != nil {
			// Fail fast without touching the limiter or the upstream.
			return backoff.Permanent(err)
		}

		if err := g.limiter.Wait(ctx); err != nil {
			// Daily quota or cancellation: retrying will not help today.
			return backoff.Permanent(err)
		}

		err := fn(ctx)
		if err == nil {
			breaker.RecordSuccess()
			return nil
		}

		breaker.RecordFailure()

		kind := Classify(err)
		if !kind.Retryable() {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, delay time.Duration) {
		kind := Classify(err)
		g.logger.Warn("Upstream call failed, retrying after backoff",
			zap.String("operation", op),
			zap.String("kind", string(kind)),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err))
		g.recordError(ctx, op, kind, err, attempt)
	}

	bo := backoff.WithContext(&backOff{policy: g.policy}, ctx)
	err := backoff.RetryNotify(operation, bo, notify)
	if err != nil {
		kind := Classify(err)
		g.logger.Error("Upstream call failed",
			zap.String("operation", op),
			zap.String("kind", string(kind)),
			zap.Int("attempts", attempt),
			zap.Error(err))
		g.recordError(ctx, op, kind, err, attempt)
		return fmt.Errorf("%s failed after %d attempt(s): %w", op, attempt, err)
	}
	return nil
}

// recordError appends one failed attempt to the diagnostic sink. Sink
// failures are logged, never propagated: diagnostics must not fail the call.
func (g *Gateway) recordError(ctx context.Context, op string, kind model.ErrorKind, err error, attempt int) {
	if g.sink == nil {
		return
	}
	rec := model.ErrorRecord{
		Operation: op,
		Kind:      kind,
		Message:   err.Error(),
		Attempt:   attempt,
		CreatedAt: time.Now(),
	}
	if sinkErr := g.sink.RecordError(ctx, rec); sinkErr != nil {
		g.logger.Error("Failed to record error", zap.Error(sinkErr))
	}
}
