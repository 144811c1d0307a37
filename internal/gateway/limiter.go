package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrDailyQuotaExceeded is returned when the daily call cap is reached.
// Unlike the minute window and inter-call interval, the daily cap fails the
// call instead of blocking: waiting it out would stall the run for hours.
var ErrDailyQuotaExceeded = errors.New("daily call quota exceeded")

// RateLimiter enforces the upstream's call budget: a sliding one-minute
// window, a minimum interval between consecutive calls, and a hard daily
// counter that resets at local midnight.
type RateLimiter struct {
	mu sync.Mutex

	maxPerMinute int
	maxPerDay    int
	minInterval  time.Duration

	calls      []time.Time
	lastCall   time.Time
	dailyCount int
	day        time.Time

	logger *zap.Logger
	now    func() time.Time
}

// NewRateLimiter creates a RateLimiter with the given caps. A non-positive
// cap disables that check.
func NewRateLimiter(maxPerMinute, maxPerDay int, minInterval time.Duration, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		maxPerMinute: maxPerMinute,
		maxPerDay:    maxPerDay,
		minInterval:  minInterval,
		logger:       logger,
		now:          time.Now,
	}
}

// Wait blocks until a call is permitted and records it. It returns
// ErrDailyQuotaExceeded when the daily cap is reached, or the context error
// if the caller is cancelled while waiting.
func (l *RateLimiter) Wait(ctx context.Context) error {
	for {
		wait, err := l.reserve()
		if err != nil {
			return err
		}
		if wait <= 0 {
			return nil
		}

		l.logger.Debug("Rate limit reached, waiting", zap.Duration("wait", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserve either records a call (returning zero wait) or returns how long
// the caller must sleep before trying again.
func (l *RateLimiter) reserve() (time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.rollDay(now)

	if l.maxPerDay > 0 && l.dailyCount >= l.maxPerDay {
		return 0, ErrDailyQuotaExceeded
	}

	// Drop window entries older than one minute.
	cutoff := now.Add(-time.Minute)
	kept := l.calls[:0]
	for _, t := range l.calls {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.calls = kept

	var wait time.Duration
	if l.maxPerMinute > 0 && len(l.calls) >= l.maxPerMinute {
		wait = l.calls[0].Add(time.Minute).Sub(now)
	}
	if l.minInterval > 0 && !l.lastCall.IsZero() {
		if d := l.lastCall.Add(l.minInterval).Sub(now); d > wait {
			wait = d
		}
	}
	if wait > 0 {
		return wait, nil
	}

	l.calls = append(l.calls, now)
	l.lastCall = now
	l.dailyCount++
	return 0, nil
}

// rollDay resets the daily counter when the local date changes.
func (l *RateLimiter) rollDay(now time.Time) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if !day.Equal(l.day) {
		l.day = day
		l.dailyCount = 0
	}
}

// RemainingToday returns how many calls are left under the daily cap, or -1
// when the cap is disabled.
func (l *RateLimiter) RemainingToday() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.maxPerDay <= 0 {
		return -1
	}
	l.rollDay(l.now())
	remaining := l.maxPerDay - l.dailyCount
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}
