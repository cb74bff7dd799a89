package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryAcquire_ExhaustsBurst(t *testing.T) {
	l, err := New(Config{TokensPerInterval: 1, Interval: PerHour, MaxTokens: 3})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.True(t, l.TryAcquire(), "token %d should be available", i)
	}
	assert.False(t, l.TryAcquire(), "burst exhausted, next try must fail")
}

func TestAcquire_RefillsOverTime(t *testing.T) {
	l, err := New(Config{TokensPerInterval: 50, Interval: PerSecond, MaxTokens: 1})
	require.NoError(t, err)

	require.True(t, l.TryAcquire())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	require.NoError(t, l.Acquire(ctx))
	assert.Less(t, time.Since(start), time.Second, "50/s bucket should refill well under a second")
}

func TestAcquire_ContextCancel(t *testing.T) {
	l, err := New(Config{TokensPerInterval: 1, Interval: PerDay, MaxTokens: 1})
	require.NoError(t, err)
	require.True(t, l.TryAcquire())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Acquire(ctx), "empty day bucket cannot refill within 20ms")
}

func TestNewDaily_BurstCap(t *testing.T) {
	// 5000/day -> 3/min, burst 15.
	l, err := NewDaily(5000)
	require.NoError(t, err)
	for i := 0; i < 15; i++ {
		require.True(t, l.TryAcquire(), "burst token %d", i)
	}
	assert.False(t, l.TryAcquire())

	// 100000/day -> 69/min, burst capped at 50.
	big, err := NewDaily(100000)
	require.NoError(t, err)
	granted := 0
	for big.TryAcquire() {
		granted++
	}
	assert.Equal(t, 50, granted)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{TokensPerInterval: 0, Interval: PerMinute})
	assert.Error(t, err)

	_, err = New(Config{TokensPerInterval: 10, Interval: Interval("fortnight")})
	assert.Error(t, err)
}
