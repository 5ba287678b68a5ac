package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinIntervalSpacing(t *testing.T) {
	limiter := NewMinInterval(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Wait(ctx))
	}
	elapsed := time.Since(start)

	// first call passes immediately, the next two wait one interval each
	assert.GreaterOrEqual(t, elapsed, 90*time.Millisecond)
}

func TestMinIntervalFirstCallImmediate(t *testing.T) {
	limiter := NewMinInterval(time.Second)

	start := time.Now()
	require.NoError(t, limiter.Wait(context.Background()))
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestMinIntervalCancelled(t *testing.T) {
	limiter := NewMinInterval(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, limiter.Wait(ctx), context.Canceled)
}

func TestZeroIntervalIsUnlimited(t *testing.T) {
	limiter := NewMinInterval(0)
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, limiter.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, time.Duration(0), limiter.Interval())
}
