package notifier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_AllowsBurst(t *testing.T) {
	limiter := NewRateLimiter(1, 3)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Allow(ctx))
	}
}

func TestRateLimiter_BlocksPastBurst(t *testing.T) {
	limiter := NewRateLimiter(0.1, 1)

	require.NoError(t, limiter.Allow(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := limiter.Allow(ctx)
	assert.Error(t, err, "second request must wait for refill and time out")
}

func TestRateLimiter_RespectsCancellation(t *testing.T) {
	limiter := NewRateLimiter(0.1, 1)
	require.NoError(t, limiter.Allow(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, limiter.Allow(ctx))
}
