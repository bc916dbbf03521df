/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package httpclient provides round trippers for talking to rate limited services:
// retries that honor Retry-After, request id propagation, client side pacing and logging.
package httpclient

import (
	"fmt"
	"net/http"
	"time"

	"github.com/acronis/go-appkit-demo/log"
	"github.com/acronis/go-appkit-demo/retry"
)

// Opts provides options for New and Must functions.
type Opts struct {
	// Delegate is the last RoundTripper in the chain. A clone of http.DefaultTransport is used by default.
	Delegate http.RoundTripper

	// Logger is used for logging requests and retries.
	Logger log.FieldLogger

	// LoggingMode controls which requests are logged. LoggingModeAll is used by default.
	LoggingMode LoggingMode

	// RateLimit is the maximum number of requests per second the client sends. Zero disables pacing.
	RateLimit float64

	// Burst is the maximum number of requests the client may send at once when RateLimit is set.
	Burst int

	// RateLimitWaitTimeout bounds the time a request waits for a permit of the client side rate limiter.
	RateLimitWaitTimeout time.Duration

	// MaxRetryAttempts is the maximum number of retries. Negative value disables retries.
	MaxRetryAttempts int

	// MaxRetryAfter is the longest Retry-After the client agrees to wait for.
	MaxRetryAfter time.Duration

	// BackoffPolicy is used between retries when the response has no Retry-After header.
	BackoffPolicy retry.Policy

	// Timeout is the overall timeout of a request including retries.
	Timeout time.Duration
}

// New creates an HTTP client that propagates request ids, paces requests, retries
// throttled and temporary failures and logs every attempt.
// Round trippers are chained in the following order: retry, request id, rate limiting, logging.
func New(opts Opts) (*http.Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewDisabledLogger()
	}

	var delegate http.RoundTripper = opts.Delegate
	if delegate == nil {
		delegate = http.DefaultTransport.(*http.Transport).Clone()
	}

	delegate = NewLoggingRoundTripperWithOpts(delegate, LoggingRoundTripperOpts{Logger: logger, Mode: opts.LoggingMode})

	if opts.RateLimit > 0 {
		rateLimiting, err := NewRateLimitingRoundTripperWithOpts(delegate, opts.RateLimit, RateLimitingRoundTripperOpts{
			Burst:       opts.Burst,
			WaitTimeout: opts.RateLimitWaitTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("create rate limiting round tripper: %w", err)
		}
		delegate = rateLimiting
	}

	delegate = NewRequestIDRoundTripper(delegate)

	if opts.MaxRetryAttempts >= 0 {
		retryable, err := NewRetryableRoundTripperWithOpts(delegate, RetryableRoundTripperOpts{
			Logger:           logger,
			MaxRetryAttempts: opts.MaxRetryAttempts,
			MaxRetryAfter:    opts.MaxRetryAfter,
			BackoffPolicy:    opts.BackoffPolicy,
		})
		if err != nil {
			return nil, fmt.Errorf("create retryable round tripper: %w", err)
		}
		delegate = retryable
	}

	return &http.Client{Transport: delegate, Timeout: opts.Timeout}, nil
}

// Must creates an HTTP client like New and panics if any error occurs.
func Must(opts Opts) *http.Client {
	client, err := New(opts)
	if err != nil {
		panic(err)
	}
	return client
}
