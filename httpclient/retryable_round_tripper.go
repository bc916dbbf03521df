/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/acronis/go-appkit-demo/log"
	"github.com/acronis/go-appkit-demo/retry"
)

// Default parameter values for RetryableRoundTripper.
const (
	DefaultMaxRetryAttempts                  = 5
	DefaultMaxRetryAfter                     = time.Minute
	DefaultExponentialBackoffInitialInterval = time.Second
	DefaultExponentialBackoffMultiplier      = 2
)

// UnlimitedRetryAttempts should be used as RetryableRoundTripperOpts.MaxRetryAttempts value
// when we want to stop retries only by RetryableRoundTripperOpts.BackoffPolicy.
const UnlimitedRetryAttempts = -1

// RetryAttemptNumberHeader is an HTTP header name that will contain the serial number of the retry attempt.
const RetryAttemptNumberHeader = "X-Retry-Attempt"

// CheckRetryFunc is a function that is called right after RoundTrip() method
// and determines if the next retry attempt is needed.
type CheckRetryFunc func(ctx context.Context, resp *http.Response, roundTripErr error, doneRetryAttempts int) (bool, error)

// RetryableRoundTripperOpts represents an options for RetryableRoundTripper.
type RetryableRoundTripperOpts struct {
	Logger log.FieldLogger

	// MaxRetryAttempts determines how many maximum retry attempts can be done.
	// The total number of sending HTTP request may be MaxRetryAttempts + 1 (the first request is not a retry attempt).
	// By default, DefaultMaxRetryAttempts is used.
	MaxRetryAttempts int

	// CheckRetry determines if the next retry attempt is needed. By default, DefaultCheckRetry is used.
	CheckRetry CheckRetryFunc

	// IgnoreRetryAfter disables using of the Retry-After response header as the wait time before the next attempt.
	IgnoreRetryAfter bool

	// MaxRetryAfter is the longest Retry-After the round tripper agrees to wait for.
	// The response is returned as is if the server asks to wait longer. By default, DefaultMaxRetryAfter is used.
	MaxRetryAfter time.Duration

	// BackoffPolicy computes the wait time when the response has no Retry-After header.
	// By default, DefaultBackoffPolicy is used.
	BackoffPolicy retry.Policy
}

// RetryableRoundTripper wraps an object that implements http.RoundTripper interface
// and provides a retrying mechanism for HTTP requests.
// Throttled requests (429) are retried after the time the server asks in the Retry-After header.
type RetryableRoundTripper struct {
	Delegate http.RoundTripper
	Opts     RetryableRoundTripperOpts
}

// NewRetryableRoundTripper returns a new instance of RetryableRoundTripper.
func NewRetryableRoundTripper(delegate http.RoundTripper) (*RetryableRoundTripper, error) {
	return NewRetryableRoundTripperWithOpts(delegate, RetryableRoundTripperOpts{})
}

// NewRetryableRoundTripperWithOpts creates a new instance of RetryableRoundTripper with specified options.
func NewRetryableRoundTripperWithOpts(
	delegate http.RoundTripper, opts RetryableRoundTripperOpts,
) (*RetryableRoundTripper, error) {
	if opts.MaxRetryAttempts < 0 && opts.MaxRetryAttempts != UnlimitedRetryAttempts {
		return nil, fmt.Errorf("incorrect max retry attempts")
	}
	if opts.MaxRetryAfter < 0 {
		return nil, fmt.Errorf("max retry after should not be negative")
	}
	if opts.MaxRetryAttempts == 0 {
		opts.MaxRetryAttempts = DefaultMaxRetryAttempts
	}
	if opts.MaxRetryAfter == 0 {
		opts.MaxRetryAfter = DefaultMaxRetryAfter
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	if opts.CheckRetry == nil {
		opts.CheckRetry = DefaultCheckRetry
	}
	if opts.BackoffPolicy == nil {
		opts.BackoffPolicy = DefaultBackoffPolicy
	}
	return &RetryableRoundTripper{Delegate: delegate, Opts: opts}, nil
}

// RoundTrip performs request with retry logic.
func (rt *RetryableRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	req = req.Clone(ctx) // Per RoundTripper contract, the original request must not be modified.

	rewindReqBody := func(r *http.Request) error { return nil }
	if req.Body != nil && req.Body != http.NoBody {
		originalReqBody := req.Body
		defer func() {
			_ = originalReqBody.Close() // Per RoundTripper contract.
		}()
		var err error
		if rewindReqBody, err = makeRequestBodyRewindable(req); err != nil {
			return nil, &RetryableRoundTripperError{Inner: err}
		}
	}

	logger := rt.Opts.Logger.With(log.String("method", req.Method), log.String("url", req.URL.String()))
	bf := rt.Opts.BackoffPolicy.NewBackOff()

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if err := rewindReqBody(req); err != nil {
				return nil, &RetryableRoundTripperError{Inner: err}
			}
			req.Header.Set(RetryAttemptNumberHeader, strconv.Itoa(attempt))
		}

		resp, roundTripErr := rt.Delegate.RoundTrip(req)

		needRetry, checkErr := rt.Opts.CheckRetry(ctx, resp, roundTripErr, attempt)
		if checkErr != nil {
			logger.Error("failed to check if retry is needed", log.Error(checkErr))
			return resp, roundTripErr
		}
		if !needRetry {
			return resp, roundTripErr
		}
		if rt.Opts.MaxRetryAttempts > 0 && attempt >= rt.Opts.MaxRetryAttempts {
			logger.Warnf("max retry attempts exceeded (%d), %d request(s) done", rt.Opts.MaxRetryAttempts, attempt+1)
			return resp, roundTripErr
		}
		waitTime, ok := rt.nextWaitTime(resp, bf)
		if !ok {
			return resp, roundTripErr
		}

		fields := []log.Field{log.Int("attempt", attempt+1), log.Duration("wait_time", waitTime)}
		if resp != nil {
			fields = append(fields, log.Int("status", resp.StatusCode))
			drainResponseBody(resp, logger)
		} else {
			fields = append(fields, log.Error(roundTripErr))
		}
		logger.Info("request will be retried", fields...)

		timer := time.NewTimer(waitTime)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (rt *RetryableRoundTripper) nextWaitTime(resp *http.Response, bf backoff.BackOff) (time.Duration, bool) {
	if resp != nil && !rt.Opts.IgnoreRetryAfter {
		if retryAfter, ok := ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()); ok {
			return retryAfter, retryAfter <= rt.Opts.MaxRetryAfter
		}
	}
	waitTime := bf.NextBackOff()
	return waitTime, waitTime != backoff.Stop
}

// RetryableRoundTripperError is returned in RoundTrip method of RetryableRoundTripper
// when the original request cannot be potentially retried.
type RetryableRoundTripperError struct {
	Inner error
}

func (e *RetryableRoundTripperError) Error() string {
	return fmt.Sprintf("retryable round trip: %s", e.Inner.Error())
}

// Unwrap returns the next error in the error chain.
func (e *RetryableRoundTripperError) Unwrap() error {
	return e.Inner
}

// DefaultCheckRetry retries temporary network errors, throttled requests (429)
// and idempotent requests that failed with 502, 503 or 504.
func DefaultCheckRetry(
	_ context.Context, resp *http.Response, roundTripErr error, _ int,
) (needRetry bool, err error) {
	if roundTripErr != nil {
		return CheckErrorIsTemporary(roundTripErr), nil
	}
	if resp == nil {
		return false, fmt.Errorf("both response and round trip error are nil")
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return true, nil
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return resp.Request != nil && isIdempotentMethod(resp.Request.Method), nil
	}
	return false, nil
}

func isIdempotentMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// DefaultBackoffPolicy is a default backoff policy.
var DefaultBackoffPolicy = retry.ExponentialBackoffPolicy{
	InitialInterval: DefaultExponentialBackoffInitialInterval,
	Multiplier:      DefaultExponentialBackoffMultiplier,
}

// CheckErrorIsTemporary checks either error is temporary or not.
func CheckErrorIsTemporary(err error) bool {
	if errors.Is(err, io.EOF) {
		return true
	}
	var terr interface{ Temporary() bool }
	return errors.As(err, &terr) && terr.Temporary()
}

// ParseRetryAfter parses the value of the Retry-After header: either delay seconds or HTTP date.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	at, err := http.ParseTime(value)
	if err != nil {
		return 0, false
	}
	if d := at.Sub(now); d > 0 {
		return d, true
	}
	return 0, true
}
