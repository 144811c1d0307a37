package gateway

import (
	"math"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Strategy selects how retry delays grow between attempts
type Strategy string

const (
	StrategyFixed        Strategy = "fixed"
	StrategyExponential  Strategy = "exponential"
	StrategyLinear       Strategy = "linear"
	StrategyRandomJitter Strategy = "random_jitter"
)

// RetryPolicy controls retry counts and delays for guarded operations
type RetryPolicy struct {
	MaxRetries int
	Strategy   Strategy
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Factor     float64
}

// Delay computes the backoff before the given attempt (attempts start at 1).
// Non-jitter strategies are multiplied by a uniform 0.8-1.2 factor to avoid
// synchronized retries; the result is clamped to MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	base := float64(p.BaseDelay)
	var delay float64

	switch p.Strategy {
	case StrategyFixed:
		delay = base
	case StrategyLinear:
		delay = base * float64(attempt)
	case StrategyRandomJitter:
		delay = base * (1 + (rand.Float64()*0.2 - 0.1))
	case StrategyExponential:
		fallthrough
	default:
		factor := p.Factor
		if factor <= 0 {
			factor = 2
		}
		delay = base * math.Pow(factor, float64(attempt-1))
	}

	if p.Strategy != StrategyRandomJitter {
		delay *= 0.8 + rand.Float64()*0.4
	}

	if max := float64(p.MaxDelay); p.MaxDelay > 0 && delay > max {
		delay = max
	}
	return time.Duration(delay)
}

// backOff adapts a RetryPolicy to the backoff.BackOff interface so guarded
// calls can run through backoff.RetryNotify.
type backOff struct {
	policy  RetryPolicy
	attempt int
}

var _ backoff.BackOff = (*backOff)(nil)

func (b *backOff) NextBackOff() time.Duration {
	b.attempt++
	if b.attempt > b.policy.MaxRetries {
		return backoff.Stop
	}
	return b.policy.Delay(b.attempt)
}

func (b *backOff) Reset() {
	b.attempt = 0
}
