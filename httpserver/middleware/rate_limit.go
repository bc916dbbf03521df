/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/acronis/go-appkit-demo/internal/ratelimit"
	"github.com/acronis/go-appkit-demo/log"
	"github.com/acronis/go-appkit-demo/restapi"
)

// RateLimitDefaultKey is a partition key used when all requests share the single partition.
const RateLimitDefaultKey = "Default"

// RateLimitLogFieldKey it is the name of the logged field that contains a key for the requests rate limiter.
const RateLimitLogFieldKey = "rate_limit_key"

// RateLimitParams contains data that relates to the rate limiting procedure
// and could be used for rejecting or handling an occurred error.
type RateLimitParams struct {
	ResponseStatusCode  int
	GetRetryAfter       RateLimitGetRetryAfterFunc
	Problems            restapi.ProblemResponder
	Key                 string
	RequestQueued       bool
	EstimatedRetryAfter time.Duration
}

// RateLimitGetRetryAfterFunc is a function that is called to get a value for Retry-After response HTTP header
// when the rate limit is exceeded.
type RateLimitGetRetryAfterFunc func(r *http.Request, estimatedTime time.Duration) time.Duration

// RateLimitOnRejectFunc is a function that is called for rejecting HTTP request when the rate limit is exceeded.
type RateLimitOnRejectFunc func(rw http.ResponseWriter, r *http.Request, params RateLimitParams, logger log.FieldLogger)

// RateLimitOnErrorFunc is a function that is called when an error occurs during the rate limiting.
type RateLimitOnErrorFunc func(
	rw http.ResponseWriter, r *http.Request, params RateLimitParams, err error, logger log.FieldLogger)

// RateLimitGetKeyFunc is a function that is called for getting key for rate limiting.
type RateLimitGetKeyFunc func(r *http.Request) (key string, bypass bool, err error)

// RateLimitOpts represents an options for the RateLimit middleware.
type RateLimitOpts struct {
	// GetKey returns the partition key. All requests share the "Default" partition if it's nil.
	GetKey RateLimitGetKeyFunc

	// ResponseStatusCode is used for rejected requests, 429 by default.
	ResponseStatusCode int

	GetRetryAfter RateLimitGetRetryAfterFunc
	Problems      restapi.ProblemResponder
	OnReject      RateLimitOnRejectFunc
	OnError       RateLimitOnErrorFunc
}

type rateLimitHandler struct {
	next      http.Handler
	processor *ratelimit.RequestProcessor
	opts      RateLimitOpts
}

// RateLimit is a middleware that limits the rate of HTTP requests using the passed processor.
// Rejected requests get the configured status code, Retry-After header (in seconds, rounded up)
// and problem details in the body.
func RateLimit(processor *ratelimit.RequestProcessor, opts RateLimitOpts) func(next http.Handler) http.Handler {
	if opts.ResponseStatusCode == 0 {
		opts.ResponseStatusCode = http.StatusTooManyRequests
	}
	if opts.GetRetryAfter == nil {
		opts.GetRetryAfter = GetRetryAfterEstimatedTime
	}
	if opts.OnReject == nil {
		opts.OnReject = DefaultRateLimitOnReject
	}
	if opts.OnError == nil {
		opts.OnError = DefaultRateLimitOnError
	}
	return func(next http.Handler) http.Handler {
		return &rateLimitHandler{next: next, processor: processor, opts: opts}
	}
}

func (h *rateLimitHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	// Error is always nil, as it is handled in the rateLimitRequestHandler methods.
	_ = h.processor.ProcessRequest(&rateLimitRequestHandler{rw: rw, r: r, parent: h})
}

// rateLimitRequestHandler implements ratelimit.RequestHandler for HTTP requests.
type rateLimitRequestHandler struct {
	rw     http.ResponseWriter
	r      *http.Request
	parent *rateLimitHandler
}

func (h *rateLimitRequestHandler) GetContext() context.Context {
	return h.r.Context()
}

func (h *rateLimitRequestHandler) GetKey() (key string, bypass bool, err error) {
	if h.parent.opts.GetKey != nil {
		return h.parent.opts.GetKey(h.r)
	}
	return RateLimitDefaultKey, false, nil
}

func (h *rateLimitRequestHandler) Execute() error {
	h.parent.next.ServeHTTP(h.rw, h.r)
	return nil
}

func (h *rateLimitRequestHandler) OnReject(params ratelimit.Params) error {
	extendLoggingFields(h.r.Context(), log.String(RateLimitLogFieldKey, params.Key))
	h.parent.opts.OnReject(h.rw, h.r, h.convertParams(params), GetLoggerFromContext(h.r.Context()))
	return nil
}

func (h *rateLimitRequestHandler) OnError(params ratelimit.Params, err error) error {
	h.parent.opts.OnError(h.rw, h.r, h.convertParams(params), err, GetLoggerFromContext(h.r.Context()))
	return nil
}

func (h *rateLimitRequestHandler) convertParams(params ratelimit.Params) RateLimitParams {
	return RateLimitParams{
		ResponseStatusCode:  h.parent.opts.ResponseStatusCode,
		GetRetryAfter:       h.parent.opts.GetRetryAfter,
		Problems:            h.parent.opts.Problems,
		Key:                 params.Key,
		RequestQueued:       params.RequestQueued,
		EstimatedRetryAfter: params.EstimatedRetryAfter,
	}
}

// GetRetryAfterEstimatedTime returns estimated time after that the client may retry the request.
func GetRetryAfterEstimatedTime(_ *http.Request, estimatedTime time.Duration) time.Duration {
	return estimatedTime
}

// RetryAfterSeconds converts the duration into the Retry-After header value (whole seconds, rounded up, at least 1).
func RetryAfterSeconds(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// DefaultRateLimitOnReject sends the problem response when the rate limit is exceeded,
// or when the request is queued and the queue timeout elapsed.
func DefaultRateLimitOnReject(rw http.ResponseWriter, r *http.Request, params RateLimitParams, logger log.FieldLogger) {
	if logger != nil {
		logger = logger.With(
			log.String(RateLimitLogFieldKey, params.Key),
			log.Bool("rate_limit_queued", params.RequestQueued),
			log.String(userAgentLogFieldKey, r.UserAgent()),
		)
	}
	retryAfter := params.GetRetryAfter(r, params.EstimatedRetryAfter)
	rw.Header().Set("Retry-After", RetryAfterSeconds(retryAfter))
	problem := restapi.NewProblem(params.ResponseStatusCode,
		fmt.Sprintf("Rate limit exceeded, retry after %s seconds.", RetryAfterSeconds(retryAfter)))
	params.Problems.Respond(rw, problem.WithRequestID(GetRequestIDFromContext(r.Context())), logger)
}

// DefaultRateLimitOnError sends the problem response when the error occurs during the rate limiting.
// Context cancellation means the client is gone, so nothing is written in this case.
func DefaultRateLimitOnError(
	rw http.ResponseWriter, r *http.Request, params RateLimitParams, err error, logger log.FieldLogger,
) {
	if r.Context().Err() != nil {
		if logger != nil {
			logger.Warn("request canceled while waiting in rate limiting queue",
				log.String(RateLimitLogFieldKey, params.Key), log.Error(err))
		}
		return
	}
	if logger != nil {
		logger.Error(err.Error(), log.String(RateLimitLogFieldKey, params.Key))
	}
	problem := restapi.NewProblem(http.StatusInternalServerError, "")
	params.Problems.Respond(rw, problem.WithRequestID(GetRequestIDFromContext(r.Context())), logger)
}

// RateLimitKeyByRemoteAddr partitions requests by the client IP address.
func RateLimitKeyByRemoteAddr(r *http.Request) (key string, bypass bool, err error) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr, false, nil
	}
	return host, false, nil
}

// RateLimitKeyByHeader partitions requests by the value of the header.
// Requests without the header share the "Default" partition.
func RateLimitKeyByHeader(name string) RateLimitGetKeyFunc {
	return func(r *http.Request) (key string, bypass bool, err error) {
		if v := r.Header.Get(name); v != "" {
			return v, false, nil
		}
		return RateLimitDefaultKey, false, nil
	}
}

// RateLimitGetKeyFromConfig returns the partition key function for the configured partitioning mode.
func RateLimitGetKeyFromConfig(cfg *ratelimit.Config) RateLimitGetKeyFunc {
	switch cfg.PartitionBy {
	case ratelimit.PartitionByRemoteAddr:
		return RateLimitKeyByRemoteAddr
	case ratelimit.PartitionByHeader:
		return RateLimitKeyByHeader(cfg.PartitionHeader)
	default:
		return nil
	}
}
