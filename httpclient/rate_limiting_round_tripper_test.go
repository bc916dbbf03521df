/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimitingRoundTripper(t *testing.T) {
	srv := newSequenceServer(t, respondStatus(http.StatusOK, ""))

	t.Run("requests are paced", func(t *testing.T) {
		rt, err := NewRateLimitingRoundTripper(http.DefaultTransport, 10)
		require.NoError(t, err)

		startedAt := time.Now()
		for i := 0; i < 3; i++ {
			resp, err := doRequest(t, rt, http.MethodGet, srv.URL, nil)
			require.NoError(t, err)
			require.Equal(t, http.StatusOK, resp.StatusCode)
		}
		// The first request is sent immediately, the other two wait ~100ms each.
		require.GreaterOrEqual(t, time.Since(startedAt), 150*time.Millisecond)
	})

	t.Run("burst is sent at once", func(t *testing.T) {
		rt, err := NewRateLimitingRoundTripperWithOpts(http.DefaultTransport, 0.1, RateLimitingRoundTripperOpts{Burst: 3})
		require.NoError(t, err)

		startedAt := time.Now()
		for i := 0; i < 3; i++ {
			_, err := doRequest(t, rt, http.MethodGet, srv.URL, nil)
			require.NoError(t, err)
		}
		require.Less(t, time.Since(startedAt), 5*time.Second)
	})

	t.Run("wait timeout exceeded", func(t *testing.T) {
		rt, err := NewRateLimitingRoundTripperWithOpts(http.DefaultTransport, 0.1, RateLimitingRoundTripperOpts{
			WaitTimeout: 50 * time.Millisecond,
		})
		require.NoError(t, err)

		_, err = doRequest(t, rt, http.MethodGet, srv.URL, nil)
		require.NoError(t, err)

		_, err = doRequest(t, rt, http.MethodGet, srv.URL, nil) //nolint:bodyclose // resp is nil
		var waitErr *RateLimitingWaitError
		require.True(t, errors.As(err, &waitErr))
	})
}

func TestNewRateLimitingRoundTripperWithOpts_Errors(t *testing.T) {
	_, err := NewRateLimitingRoundTripper(http.DefaultTransport, 0)
	require.EqualError(t, err, "rate limit must be positive")

	_, err = NewRateLimitingRoundTripperWithOpts(http.DefaultTransport, 1, RateLimitingRoundTripperOpts{Burst: -1})
	require.EqualError(t, err, "burst must be positive")
}
