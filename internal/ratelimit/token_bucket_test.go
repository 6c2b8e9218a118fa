package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowConsumesBurstCapacity(t *testing.T) {
	tb := NewTokenBucket(60, 3)

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow(), "burst capacity exhausted")
}

func TestTokensRefillOverTime(t *testing.T) {
	// 6000 qpm = 100 tokens/second, so a short sleep refills at least one.
	tb := NewTokenBucket(6000, 1)
	require.True(t, tb.Allow())
	require.False(t, tb.Allow())

	time.Sleep(50 * time.Millisecond)
	assert.True(t, tb.Allow())
}

func TestWaitHonorsContextCancellation(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	require.True(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := tb.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDefaultCapacity(t *testing.T) {
	tb := NewTokenBucket(10, 0)
	assert.True(t, tb.Allow(), "default capacity is at least one token")
}
