/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSlidingWindowLimiter_Allow(t *testing.T) {
	limiter, err := NewSlidingWindowLimiter(Rate{Count: 2, Duration: time.Hour}, 100)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allow, retryAfter, allowErr := limiter.Allow(ctx, "key")
		require.NoError(t, allowErr)
		require.True(t, allow)
		require.Zero(t, retryAfter)
	}
	allow, retryAfter, err := limiter.Allow(ctx, "key")
	require.NoError(t, err)
	require.False(t, allow)
	require.Greater(t, retryAfter, time.Duration(0))
	require.LessOrEqual(t, retryAfter, time.Hour)

	allow, _, err = limiter.Allow(ctx, "other-key")
	require.NoError(t, err)
	require.True(t, allow)
}

func TestLeakyBucketLimiter_Allow(t *testing.T) {
	limiter, err := NewLeakyBucketLimiter(Rate{Count: 1, Duration: time.Hour}, 1, 100)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 2; i++ { // Rate + burst.
		allow, retryAfter, allowErr := limiter.Allow(ctx, "key")
		require.NoError(t, allowErr)
		require.True(t, allow)
		require.Zero(t, retryAfter)
	}
	allow, retryAfter, err := limiter.Allow(ctx, "key")
	require.NoError(t, err)
	require.False(t, allow)
	require.Greater(t, retryAfter, time.Duration(0))

	_, err = NewLeakyBucketLimiter(Rate{Count: 1, Duration: time.Hour}, -1, 0)
	require.Error(t, err)
}
