/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/atomic"
)

// DefaultQueueTimeout determines the default time a request may spend in the queue.
const DefaultQueueTimeout = time.Second * 5

// Params contains common data that relates to the rate limiting procedure.
type Params struct {
	Key                 string
	RequestQueued       bool
	EstimatedRetryAfter time.Duration
}

// RequestHandler abstracts the transport-specific operations of the rate limited request.
type RequestHandler interface {
	// GetContext returns the request context.
	GetContext() context.Context

	// GetKey extracts the rate limiting key from the request.
	// Returns key, bypass (whether to bypass rate limiting), and error.
	GetKey() (string, bool, error)

	// Execute processes the actual request.
	Execute() error

	// OnReject handles request rejection when rate limit is exceeded.
	OnReject(params Params) error

	// OnError handles errors that occur during rate limiting.
	OnError(params Params, err error) error
}

// QueueParams defines parameters of the per-partition queue.
// Zero Limit disables queueing, so requests over the limit are rejected immediately.
type QueueParams struct {
	MaxKeys int
	Limit   int
	Timeout time.Duration
}

// RequestProcessor handles the common rate limiting logic for any request type.
// Requests that exceed the limit are queued and admitted strictly in arrival order.
type RequestProcessor struct {
	limiter      Limiter
	getQueue     queueProvider
	queueLimit   int
	queueTimeout time.Duration
	arrivals     atomic.Uint64
	metrics      MetricsCollector
}

// RequestProcessorOpts represents options for the RequestProcessor.
type RequestProcessorOpts struct {
	// MetricsCollector may be nil, in this case metrics are disabled.
	MetricsCollector MetricsCollector
}

// NewRequestProcessor creates a new request processor.
func NewRequestProcessor(limiter Limiter, queueParams QueueParams) (*RequestProcessor, error) {
	return NewRequestProcessorWithOpts(limiter, queueParams, RequestProcessorOpts{})
}

// NewRequestProcessorWithOpts creates a new request processor with the provided options.
func NewRequestProcessorWithOpts(
	limiter Limiter, queueParams QueueParams, opts RequestProcessorOpts,
) (*RequestProcessor, error) {
	if queueParams.Limit < 0 {
		return nil, fmt.Errorf("queue limit should not be negative, got %d", queueParams.Limit)
	}
	if queueParams.MaxKeys < 0 {
		return nil, fmt.Errorf("max keys for queue should not be negative, got %d", queueParams.MaxKeys)
	}
	if queueParams.Timeout < 0 {
		return nil, fmt.Errorf("queue timeout should not be negative, got %s", queueParams.Timeout)
	}
	if queueParams.Timeout == 0 {
		queueParams.Timeout = DefaultQueueTimeout
	}
	metrics := opts.MetricsCollector
	if metrics == nil {
		metrics = disabledMetrics{}
	}
	return &RequestProcessor{
		limiter:      limiter,
		getQueue:     newQueueProvider(queueParams.MaxKeys),
		queueLimit:   queueParams.Limit,
		queueTimeout: queueParams.Timeout,
		metrics:      metrics,
	}, nil
}

// Acquire tries to obtain a permit for the partition identified by key.
//
// The permit is granted immediately if nobody is queued ahead for this partition and the limiter allows it.
// Otherwise, the request is appended to the partition queue (if it has free room) and waits
// until the permit is granted, the queue timeout elapses or ctx is done.
// *RejectedError is returned when the request cannot get a permit because of the rate limit.
func (p *RequestProcessor) Acquire(ctx context.Context, key string) (*Lease, error) {
	arrivedAt := time.Now()
	q := p.getQueue.lock(key)
	if q.waiters.Len() == 0 {
		allow, retryAfter, err := p.limiter.Allow(ctx, key)
		if err != nil {
			q.mu.Unlock()
			p.metrics.IncRequests(OutcomeError)
			return nil, fmt.Errorf("rate limit: %w", err)
		}
		if allow {
			q.mu.Unlock()
			p.metrics.IncRequests(OutcomeAdmitted)
			return p.newLease(key, arrivedAt, false), nil
		}
		q.retryAfter = retryAfter
	}
	if q.waiters.Len() >= p.queueLimit {
		retryAfter := q.retryAfter
		q.mu.Unlock()
		p.metrics.IncRequests(OutcomeRejected)
		return nil, &RejectedError{Key: key, RetryAfter: retryAfter}
	}
	w := q.enqueue(p.arrivals.Inc())
	if !q.draining {
		q.draining = true
		go p.drain(key, q, q.retryAfter)
	}
	q.mu.Unlock()
	p.metrics.AddQueued(1)

	return p.wait(ctx, key, q, w, arrivedAt)
}

func (p *RequestProcessor) wait(
	ctx context.Context, key string, q *partitionQueue, w *waiter, arrivedAt time.Time,
) (*Lease, error) {
	timer := time.NewTimer(p.queueTimeout)
	defer timer.Stop()

	select {
	case <-w.ready:
	case <-timer.C:
		if removed, retryAfter := q.leave(w); removed {
			p.metrics.AddQueued(-1)
			p.metrics.IncRequests(OutcomeQueueTimeout)
			return nil, &RejectedError{Key: key, RetryAfter: retryAfter, Queued: true}
		}
		<-w.ready // The permit was granted concurrently.
	case <-ctx.Done():
		if removed, _ := q.leave(w); removed {
			p.metrics.AddQueued(-1)
			p.metrics.IncRequests(OutcomeCanceled)
			return nil, ctx.Err()
		}
		<-w.ready
	}

	p.metrics.AddQueued(-1)
	if w.err != nil {
		p.metrics.IncRequests(OutcomeError)
		return nil, w.err
	}
	p.metrics.IncRequests(OutcomeAdmittedFromQueue)
	return p.newLease(key, arrivedAt, true), nil
}

// drain grants permits to the queued requests of the partition in arrival order.
// It exits as soon as the queue becomes empty.
func (p *RequestProcessor) drain(key string, q *partitionQueue, wait time.Duration) {
	timer := time.NewTimer(drainInterval(wait))
	defer timer.Stop()
	for {
		<-timer.C
		next, done := p.grantQueued(key, q)
		if done {
			return
		}
		timer.Reset(drainInterval(next))
	}
}

func (p *RequestProcessor) grantQueued(key string, q *partitionQueue) (retryAfter time.Duration, done bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.waiters.Len() > 0 {
		allow, retryAfter, err := p.limiter.Allow(context.Background(), key)
		if err == nil && !allow {
			q.retryAfter = retryAfter
			return retryAfter, false
		}
		w := q.dequeue()
		if err != nil {
			w.err = fmt.Errorf("rate limit: %w", err)
		}
		close(w.ready)
	}
	q.draining = false
	return 0, true
}

func (p *RequestProcessor) newLease(key string, arrivedAt time.Time, queued bool) *Lease {
	now := time.Now()
	lease := &Lease{Key: key, AcquiredAt: now, Queued: queued}
	if queued {
		lease.QueuedFor = now.Sub(arrivedAt)
	}
	return lease
}

// ProcessRequest contains the shared rate limiting logic.
func (p *RequestProcessor) ProcessRequest(rh RequestHandler) error {
	key, bypass, err := rh.GetKey()
	if err != nil {
		return rh.OnError(Params{Key: key}, fmt.Errorf("get key for rate limit: %w", err))
	}
	if bypass { // Rate limiting is bypassed for this request.
		return rh.Execute()
	}

	lease, err := p.Acquire(rh.GetContext(), key)
	if err != nil {
		var rejectedErr *RejectedError
		if errors.As(err, &rejectedErr) {
			return rh.OnReject(Params{
				Key:                 key,
				RequestQueued:       rejectedErr.Queued,
				EstimatedRetryAfter: rejectedErr.RetryAfter,
			})
		}
		return rh.OnError(Params{Key: key}, err)
	}
	defer lease.Release()

	return rh.Execute()
}
