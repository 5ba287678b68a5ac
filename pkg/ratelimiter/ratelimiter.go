// Package ratelimiter serializes calls to an upstream behind a minimum interval.
package ratelimiter

import (
	"context"
	"time"

	"go.uber.org/ratelimit"
)

type RateLimiter interface {
	Wait(ctx context.Context) error
}

// MinInterval lets one caller through, then makes the next one sleep until
// at least interval has elapsed since the previous release. No bursts.
type MinInterval struct {
	interval time.Duration
	limiter  ratelimit.Limiter
}

func NewMinInterval(interval time.Duration) *MinInterval {
	if interval <= 0 {
		return &MinInterval{limiter: ratelimit.NewUnlimited()}
	}
	return &MinInterval{
		interval: interval,
		limiter:  ratelimit.New(1, ratelimit.Per(interval), ratelimit.WithoutSlack),
	}
}

// Interval returns the configured gap between releases.
func (m *MinInterval) Interval() time.Duration {
	return m.interval
}

// Wait blocks until the caller may proceed. A cancelled context is checked
// before and after taking the slot; the slot itself is not returned.
func (m *MinInterval) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.limiter.Take()
	return ctx.Err()
}
