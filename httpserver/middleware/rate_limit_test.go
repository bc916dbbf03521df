/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/acronis/go-appkit-demo/internal/ratelimit"
	"github.com/acronis/go-appkit-demo/log/logtest"
	"github.com/acronis/go-appkit-demo/restapi"
	"github.com/acronis/go-appkit-demo/testutil"
)

type mockRateLimitNextHandler struct {
	called atomic.Int32
}

func (h *mockRateLimitNextHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	h.called.Inc()
	rw.WriteHeader(http.StatusOK)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, time.Duration, error) {
	return false, 0, errors.New("limiter is broken")
}

func newTestRequestProcessor(t *testing.T, rate ratelimit.Rate, queueParams ratelimit.QueueParams) *ratelimit.RequestProcessor {
	t.Helper()
	limiter, err := ratelimit.NewFixedWindowLimiter(rate, queueParams.MaxKeys)
	require.NoError(t, err)
	processor, err := ratelimit.NewRequestProcessor(limiter, queueParams)
	require.NoError(t, err)
	return processor
}

func TestRateLimitHandler_ServeHTTP(t *testing.T) {
	t.Run("4th request within the window is rejected", func(t *testing.T) {
		processor := newTestRequestProcessor(t, ratelimit.Rate{Count: 3, Duration: 10 * time.Second}, ratelimit.QueueParams{})
		next := &mockRateLimitNextHandler{}
		handler := RateLimit(processor, RateLimitOpts{})(next)

		for i := 0; i < 3; i++ {
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
			require.Equal(t, http.StatusOK, resp.Code)
		}

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(NewContextWithRequestID(req.Context(), "req-1"))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)

		problem := testutil.RequireProblemInRecorder(t, resp, http.StatusTooManyRequests)
		require.Equal(t, "req-1", problem.RequestID)
		require.Equal(t, "10", resp.Header().Get("Retry-After"))
		require.Equal(t, int32(3), next.called.Load())
	})

	t.Run("custom rejection status code", func(t *testing.T) {
		processor := newTestRequestProcessor(t, ratelimit.Rate{Count: 1, Duration: time.Minute}, ratelimit.QueueParams{})
		next := &mockRateLimitNextHandler{}
		handler := RateLimit(processor, RateLimitOpts{ResponseStatusCode: http.StatusServiceUnavailable})(next)

		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, resp.Code)

		resp = httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
		testutil.RequireProblemInRecorder(t, resp, http.StatusServiceUnavailable)
		require.Equal(t, "60", resp.Header().Get("Retry-After"))
	})

	t.Run("plain text rejection", func(t *testing.T) {
		processor := newTestRequestProcessor(t, ratelimit.Rate{Count: 1, Duration: time.Minute}, ratelimit.QueueParams{})
		next := &mockRateLimitNextHandler{}
		handler := RateLimit(processor, RateLimitOpts{Problems: restapi.ProblemResponder{PlainText: true}})(next)

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(NewContextWithRequestID(req.Context(), "req-2"))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		require.Equal(t, http.StatusTooManyRequests, resp.Code)
		require.Equal(t, "Too Many Requests\r\nRequest ID: req-2", resp.Body.String())
	})

	t.Run("queued request is admitted after the window elapses", func(t *testing.T) {
		processor := newTestRequestProcessor(t, ratelimit.Rate{Count: 1, Duration: 100 * time.Millisecond},
			ratelimit.QueueParams{Limit: 1, Timeout: 5 * time.Second})
		next := &mockRateLimitNextHandler{}
		handler := RateLimit(processor, RateLimitOpts{})(next)

		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, resp.Code)

		startTime := time.Now()
		resp = httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, resp.Code)
		require.GreaterOrEqual(t, time.Since(startTime), 50*time.Millisecond)
		require.Equal(t, int32(2), next.called.Load())
	})

	t.Run("partitioning by header", func(t *testing.T) {
		processor := newTestRequestProcessor(t, ratelimit.Rate{Count: 1, Duration: time.Minute},
			ratelimit.QueueParams{MaxKeys: 100})
		next := &mockRateLimitNextHandler{}
		handler := RateLimit(processor, RateLimitOpts{GetKey: RateLimitKeyByHeader("X-Client-ID")})(next)

		var wg sync.WaitGroup
		for _, clientID := range []string{"a", "b", "c"} {
			wg.Add(1)
			go func(clientID string) {
				defer wg.Done()
				req := httptest.NewRequest(http.MethodGet, "/", nil)
				req.Header.Set("X-Client-ID", clientID)
				handler.ServeHTTP(httptest.NewRecorder(), req)
			}(clientID)
		}
		wg.Wait()
		require.Equal(t, int32(3), next.called.Load())

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Client-ID", "a")
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		require.Equal(t, http.StatusTooManyRequests, resp.Code)
	})

	t.Run("bypass", func(t *testing.T) {
		processor := newTestRequestProcessor(t, ratelimit.Rate{Count: 1, Duration: time.Minute}, ratelimit.QueueParams{})
		next := &mockRateLimitNextHandler{}
		handler := RateLimit(processor, RateLimitOpts{GetKey: func(r *http.Request) (string, bool, error) {
			return "", true, nil
		}})(next)

		for i := 0; i < 5; i++ {
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
			require.Equal(t, http.StatusOK, resp.Code)
		}
		require.Equal(t, int32(5), next.called.Load())
	})

	t.Run("limiter error", func(t *testing.T) {
		processor, err := ratelimit.NewRequestProcessor(failingLimiter{}, ratelimit.QueueParams{})
		require.NoError(t, err)
		next := &mockRateLimitNextHandler{}
		handler := RateLimit(processor, RateLimitOpts{})(next)

		logger := logtest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(NewContextWithLogger(req.Context(), logger))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)

		testutil.RequireProblemInRecorder(t, resp, http.StatusInternalServerError)
		require.Equal(t, int32(0), next.called.Load())
		_, found := logger.FindEntry("rate limit: limiter is broken")
		require.True(t, found)
	})

	t.Run("rejection is logged", func(t *testing.T) {
		processor := newTestRequestProcessor(t, ratelimit.Rate{Count: 1, Duration: time.Minute}, ratelimit.QueueParams{})
		handler := RateLimit(processor, RateLimitOpts{})(&mockRateLimitNextHandler{})

		logger := logtest.NewRecorder()
		loggingParams := &LoggingParams{}
		newReq := func() *http.Request {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			ctx := NewContextWithLogger(req.Context(), logger)
			return req.WithContext(NewContextWithLoggingParams(ctx, loggingParams))
		}
		handler.ServeHTTP(httptest.NewRecorder(), newReq())
		handler.ServeHTTP(httptest.NewRecorder(), newReq())

		entry, found := logger.FindEntry("problem in response")
		require.True(t, found)
		field, found := entry.FindField(RateLimitLogFieldKey)
		require.True(t, found)
		require.Equal(t, RateLimitDefaultKey, string(field.Bytes))
	})
}

func TestRetryAfterSeconds(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "1"},
		{time.Millisecond, "1"},
		{time.Second, "1"},
		{1001 * time.Millisecond, "2"},
		{9*time.Second + 999*time.Millisecond, "10"},
		{10 * time.Second, "10"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, RetryAfterSeconds(tt.d), tt.d.String())
	}
}

func TestRateLimitKeyByRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	key, bypass, err := RateLimitKeyByRemoteAddr(req)
	require.NoError(t, err)
	require.False(t, bypass)
	require.Equal(t, "10.0.0.1", key)
}

func TestRateLimitGetKeyFromConfig(t *testing.T) {
	require.Nil(t, RateLimitGetKeyFromConfig(&ratelimit.Config{PartitionBy: ratelimit.PartitionByGlobal}))
	require.NotNil(t, RateLimitGetKeyFromConfig(&ratelimit.Config{PartitionBy: ratelimit.PartitionByRemoteAddr}))

	getKey := RateLimitGetKeyFromConfig(&ratelimit.Config{PartitionBy: ratelimit.PartitionByHeader, PartitionHeader: "X-Tenant"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	key, _, err := getKey(req)
	require.NoError(t, err)
	require.Equal(t, RateLimitDefaultKey, key)
	req.Header.Set("X-Tenant", "t1")
	key, _, err = getKey(req)
	require.NoError(t, err)
	require.Equal(t, "t1", key)
}
