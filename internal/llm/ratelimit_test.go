package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestLimiter returns a limiter driven by a clock the test advances.
func newTestLimiter(rpm int) (*rateLimiter, *time.Time) {
	rl := newRateLimiter(rpm)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.lastRefill = now
	return rl, &now
}

func TestRateLimiter(t *testing.T) {
	t.Run("capacity then refill", func(t *testing.T) {
		rl, now := newTestLimiter(5)

		for i := 0; i < 5; i++ {
			assert.True(t, rl.tryAcquire(), "attempt %d", i+1)
		}
		assert.False(t, rl.tryAcquire())

		*now = now.Add(12 * time.Second)
		assert.True(t, rl.tryAcquire())
		assert.False(t, rl.tryAcquire())
	})

	t.Run("reserve reports delay", func(t *testing.T) {
		rl, _ := newTestLimiter(60)
		for i := 0; i < 60; i++ {
			require.True(t, rl.tryAcquire())
		}

		delay, ok := rl.reserve()
		assert.False(t, ok)
		assert.Equal(t, time.Second, delay)
	})

	t.Run("refill never exceeds capacity", func(t *testing.T) {
		rl, now := newTestLimiter(2)
		*now = now.Add(time.Hour)

		assert.True(t, rl.tryAcquire())
		assert.True(t, rl.tryAcquire())
		assert.False(t, rl.tryAcquire())
	})

	t.Run("context cancellation", func(t *testing.T) {
		rl, _ := newTestLimiter(1)
		require.NoError(t, rl.wait(context.Background()))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := rl.wait(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Contains(t, err.Error(), "rate limiter canceled")
	})

	t.Run("reset", func(t *testing.T) {
		rl, _ := newTestLimiter(3)
		for i := 0; i < 3; i++ {
			require.True(t, rl.tryAcquire())
		}
		assert.False(t, rl.tryAcquire())

		rl.reset()
		assert.True(t, rl.tryAcquire())
	})

	t.Run("default rate limit", func(t *testing.T) {
		rl, _ := newTestLimiter(0)
		for i := 0; i < 60; i++ {
			require.True(t, rl.tryAcquire())
		}
		assert.False(t, rl.tryAcquire())
	})
}
