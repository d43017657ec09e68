package router

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlidingWindowLimiter_AllowsUpToLimit(t *testing.T) {
	l := NewSlidingWindowLimiter(2, time.Minute)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx))
	require.NoError(t, l.Acquire(ctx))

	wait, ok := l.tryAcquire()
	assert.False(t, ok)
	assert.Greater(t, wait, time.Duration(0))
}

func TestSlidingWindowLimiter_ExpiresOldEntries(t *testing.T) {
	l := NewSlidingWindowLimiter(1, 50*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx))
	_, ok := l.tryAcquire()
	assert.False(t, ok)

	time.Sleep(60 * time.Millisecond)
	require.NoError(t, l.Acquire(ctx))
}

func TestSlidingWindowLimiter_RespectsContextCancellation(t *testing.T) {
	l := NewSlidingWindowLimiter(1, time.Hour)
	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx))

	cancelCtx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Acquire(cancelCtx)
	assert.Error(t, err)
}
