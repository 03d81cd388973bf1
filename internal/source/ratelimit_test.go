package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_FirstAcquireIsFree(t *testing.T) {
	l := NewLimiter(1 * time.Second)

	start := time.Now()
	require.NoError(t, l.Acquire(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiter_SecondAcquireWaitsInterval(t *testing.T) {
	interval := 150 * time.Millisecond
	l := NewLimiter(interval)

	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx))

	start := time.Now()
	require.NoError(t, l.Acquire(ctx))
	assert.GreaterOrEqual(t, time.Since(start), interval-10*time.Millisecond)
}

func TestLimiter_AcquireHonorsContext(t *testing.T) {
	l := NewLimiter(10 * time.Second)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Acquire(ctx))
}

func TestLimiter_ResetForgetsLastAcquire(t *testing.T) {
	l := NewLimiter(10 * time.Second)
	require.NoError(t, l.Acquire(context.Background()))

	l.Reset()

	start := time.Now()
	require.NoError(t, l.Acquire(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}
