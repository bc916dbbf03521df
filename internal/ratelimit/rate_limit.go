/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/atomic"
)

// Rate describes the frequency of requests (Count requests per Duration).
type Rate struct {
	Count    int
	Duration time.Duration
}

func (r Rate) validate() error {
	if r.Count <= 0 {
		return fmt.Errorf("rate count should be positive, got %d", r.Count)
	}
	if r.Duration <= 0 {
		return fmt.Errorf("rate duration should be positive, got %s", r.Duration)
	}
	return nil
}

// Limiter interface defines the rate limiting contract.
// When the request is not allowed, retryAfter contains the estimated time after which it may be allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (allow bool, retryAfter time.Duration, err error)
}

// RejectedError is returned when the rate limit is exceeded and the request cannot be queued
// (the queue is full), or when the request was queued but the queue timeout has elapsed.
type RejectedError struct {
	Key        string
	RetryAfter time.Duration
	Queued     bool
}

func (e *RejectedError) Error() string {
	if e.Queued {
		return fmt.Sprintf("rate limit exceeded for %q, queue timeout elapsed, retry after %s", e.Key, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded for %q, retry after %s", e.Key, e.RetryAfter)
}

// Lease represents a permit consumed by a single request.
// Window-based limiters reclaim permits only on window rollover, so releasing a lease doesn't return the permit.
type Lease struct {
	Key        string
	AcquiredAt time.Time
	Queued     bool
	QueuedFor  time.Duration

	released atomic.Bool
}

// Release marks the lease as released. It's safe to call it multiple times,
// only the first call has an effect and returns true.
func (l *Lease) Release() bool {
	return l.released.CompareAndSwap(false, true)
}

// Released reports whether the lease has been released.
func (l *Lease) Released() bool {
	return l.released.Load()
}
