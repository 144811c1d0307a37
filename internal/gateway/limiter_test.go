package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRateLimiterMinuteWindow(t *testing.T) {
	now := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	l := NewRateLimiter(2, 0, 0, zap.NewNop())
	l.now = func() time.Time { return now }

	wait, err := l.reserve()
	require.NoError(t, err)
	assert.Zero(t, wait)

	now = now.Add(time.Second)
	wait, err = l.reserve()
	require.NoError(t, err)
	assert.Zero(t, wait)

	// Window is full; the third call must wait until the first slot expires.
	now = now.Add(time.Second)
	wait, err = l.reserve()
	require.NoError(t, err)
	assert.Equal(t, 58*time.Second, wait)

	now = now.Add(59 * time.Second)
	wait, err = l.reserve()
	require.NoError(t, err)
	assert.Zero(t, wait)
}

func TestRateLimiterMinInterval(t *testing.T) {
	now := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	l := NewRateLimiter(0, 0, 30*time.Second, zap.NewNop())
	l.now = func() time.Time { return now }

	wait, err := l.reserve()
	require.NoError(t, err)
	assert.Zero(t, wait)

	now = now.Add(10 * time.Second)
	wait, err = l.reserve()
	require.NoError(t, err)
	assert.Equal(t, 20*time.Second, wait)

	now = now.Add(20 * time.Second)
	wait, err = l.reserve()
	require.NoError(t, err)
	assert.Zero(t, wait)
}

func TestRateLimiterDailyQuota(t *testing.T) {
	now := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	l := NewRateLimiter(0, 2, 0, zap.NewNop())
	l.now = func() time.Time { return now }

	require.NoError(t, l.Wait(context.Background()))
	require.NoError(t, l.Wait(context.Background()))
	assert.Equal(t, 0, l.RemainingToday())

	err := l.Wait(context.Background())
	assert.ErrorIs(t, err, ErrDailyQuotaExceeded)

	// The counter resets at midnight.
	now = now.Add(24 * time.Hour)
	assert.Equal(t, 2, l.RemainingToday())
	require.NoError(t, l.Wait(context.Background()))
}

func TestRateLimiterWaitHonorsCancellation(t *testing.T) {
	l := NewRateLimiter(0, 0, time.Hour, zap.NewNop())

	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRateLimiterRemainingTodayDisabled(t *testing.T) {
	l := NewRateLimiter(2, 0, 0, zap.NewNop())
	assert.Equal(t, -1, l.RemainingToday())
}
