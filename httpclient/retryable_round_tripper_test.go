/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/acronis/go-appkit-demo/retry"
)

type sequenceServer struct {
	*httptest.Server
	calls atomic.Int32

	mu       sync.Mutex
	bodies   []string
	attempts []string
}

// newSequenceServer starts a server that responds with the given handlers in turn,
// the last handler is used for all the remaining requests.
func newSequenceServer(t *testing.T, handlers ...http.HandlerFunc) *sequenceServer {
	t.Helper()
	s := &sequenceServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.bodies = append(s.bodies, string(body))
		s.attempts = append(s.attempts, r.Header.Get(RetryAttemptNumberHeader))
		s.mu.Unlock()
		n := int(s.calls.Inc())
		if n > len(handlers) {
			n = len(handlers)
		}
		handlers[n-1](rw, r)
	}))
	t.Cleanup(s.Close)
	return s
}

func respondStatus(code int, retryAfter string) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if retryAfter != "" {
			rw.Header().Set("Retry-After", retryAfter)
		}
		rw.WriteHeader(code)
	}
}

func doRequest(t *testing.T, rt http.RoundTripper, method, url string, body io.Reader) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	resp, err := rt.RoundTrip(req)
	if resp != nil {
		t.Cleanup(func() { _ = resp.Body.Close() })
	}
	return resp, err
}

func TestRetryableRoundTripper_RetryAfter(t *testing.T) {
	srv := newSequenceServer(t,
		respondStatus(http.StatusTooManyRequests, "1"),
		respondStatus(http.StatusOK, ""),
	)
	rt, err := NewRetryableRoundTripper(http.DefaultTransport)
	require.NoError(t, err)

	startedAt := time.Now()
	resp, err := doRequest(t, rt, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.GreaterOrEqual(t, time.Since(startedAt), time.Second)
	require.Equal(t, int32(2), srv.calls.Load())
	require.Equal(t, []string{"", "1"}, srv.attempts)
}

func TestRetryableRoundTripper_RetryAfterTooLong(t *testing.T) {
	srv := newSequenceServer(t, respondStatus(http.StatusTooManyRequests, "120"))
	rt, err := NewRetryableRoundTripperWithOpts(http.DefaultTransport, RetryableRoundTripperOpts{
		MaxRetryAfter: time.Second,
	})
	require.NoError(t, err)

	resp, err := doRequest(t, rt, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, "120", resp.Header.Get("Retry-After"))
	require.Equal(t, int32(1), srv.calls.Load())
}

func TestRetryableRoundTripper_MaxRetryAttempts(t *testing.T) {
	srv := newSequenceServer(t, respondStatus(http.StatusTooManyRequests, "0"))
	rt, err := NewRetryableRoundTripperWithOpts(http.DefaultTransport, RetryableRoundTripperOpts{
		MaxRetryAttempts: 2,
	})
	require.NoError(t, err)

	resp, err := doRequest(t, rt, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, int32(3), srv.calls.Load())
	require.Equal(t, []string{"", "1", "2"}, srv.attempts)
}

func TestRetryableRoundTripper_Backoff(t *testing.T) {
	newRT := func(t *testing.T) *RetryableRoundTripper {
		rt, err := NewRetryableRoundTripperWithOpts(http.DefaultTransport, RetryableRoundTripperOpts{
			BackoffPolicy: retry.ConstantBackoffPolicy{Interval: 10 * time.Millisecond},
		})
		require.NoError(t, err)
		return rt
	}

	t.Run("idempotent request is retried", func(t *testing.T) {
		srv := newSequenceServer(t,
			respondStatus(http.StatusServiceUnavailable, ""),
			respondStatus(http.StatusBadGateway, ""),
			respondStatus(http.StatusOK, ""),
		)
		resp, err := doRequest(t, newRT(t), http.MethodGet, srv.URL, nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, int32(3), srv.calls.Load())
	})

	t.Run("non-idempotent request is not retried", func(t *testing.T) {
		srv := newSequenceServer(t,
			respondStatus(http.StatusServiceUnavailable, ""),
			respondStatus(http.StatusOK, ""),
		)
		resp, err := doRequest(t, newRT(t), http.MethodPost, srv.URL, strings.NewReader("{}"))
		require.NoError(t, err)
		require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		require.Equal(t, int32(1), srv.calls.Load())
	})

	t.Run("client error is not retried", func(t *testing.T) {
		srv := newSequenceServer(t, respondStatus(http.StatusBadRequest, ""))
		resp, err := doRequest(t, newRT(t), http.MethodGet, srv.URL, nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Equal(t, int32(1), srv.calls.Load())
	})
}

func TestRetryableRoundTripper_RewindBody(t *testing.T) {
	const body = `{"firstName":"John","lastName":"Doe"}`

	tests := []struct {
		name string
		body func() io.Reader
	}{
		{name: "body with GetBody", body: func() io.Reader { return strings.NewReader(body) }},
		{name: "body without GetBody", body: func() io.Reader { return io.NopCloser(bytes.NewBufferString(body)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newSequenceServer(t,
				respondStatus(http.StatusTooManyRequests, "0"),
				respondStatus(http.StatusNoContent, ""),
			)
			rt, err := NewRetryableRoundTripper(http.DefaultTransport)
			require.NoError(t, err)

			resp, err := doRequest(t, rt, http.MethodPost, srv.URL, tt.body())
			require.NoError(t, err)
			require.Equal(t, http.StatusNoContent, resp.StatusCode)
			require.Equal(t, []string{body, body}, srv.bodies)
		})
	}
}

func TestRetryableRoundTripper_ContextCanceledWhileWaiting(t *testing.T) {
	srv := newSequenceServer(t, respondStatus(http.StatusTooManyRequests, "10"))
	rt, err := NewRetryableRoundTripper(http.DefaultTransport)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	startedAt := time.Now()
	resp, err := rt.RoundTrip(req) //nolint:bodyclose // resp is nil
	require.Nil(t, resp)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
	require.Less(t, time.Since(startedAt), 5*time.Second)
}

func TestNewRetryableRoundTripperWithOpts_Errors(t *testing.T) {
	_, err := NewRetryableRoundTripperWithOpts(http.DefaultTransport, RetryableRoundTripperOpts{MaxRetryAttempts: -2})
	require.EqualError(t, err, "incorrect max retry attempts")

	_, err = NewRetryableRoundTripperWithOpts(http.DefaultTransport, RetryableRoundTripperOpts{MaxRetryAfter: -time.Second})
	require.EqualError(t, err, "max retry after should not be negative")
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name   string
		value  string
		want   time.Duration
		wantOK bool
	}{
		{name: "empty", value: ""},
		{name: "seconds", value: "10", want: 10 * time.Second, wantOK: true},
		{name: "zero seconds", value: "0", want: 0, wantOK: true},
		{name: "negative seconds", value: "-1"},
		{name: "http date", value: now.Add(30 * time.Second).Format(http.TimeFormat), want: 30 * time.Second, wantOK: true},
		{name: "http date in the past", value: now.Add(-time.Minute).Format(http.TimeFormat), want: 0, wantOK: true},
		{name: "garbage", value: "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseRetryAfter(tt.value, now)
			require.Equal(t, tt.wantOK, ok)
			require.Equal(t, tt.want, got)
		})
	}
}
