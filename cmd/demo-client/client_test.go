/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/acronis/go-appkit-demo/httpclient"
	"github.com/acronis/go-appkit-demo/httpserver"
	"github.com/acronis/go-appkit-demo/httpserver/middleware"
	"github.com/acronis/go-appkit-demo/internal/api"
	"github.com/acronis/go-appkit-demo/internal/outputcache"
	"github.com/acronis/go-appkit-demo/internal/people"
	"github.com/acronis/go-appkit-demo/internal/ratelimit"
	"github.com/acronis/go-appkit-demo/log"
	"github.com/acronis/go-appkit-demo/log/logtest"
	"github.com/acronis/go-appkit-demo/restapi"
	"github.com/acronis/go-appkit-demo/retry"
)

func newTestService(t *testing.T, rateLimitCfg *ratelimit.Config) *httptest.Server {
	t.Helper()

	cacheStore, err := outputcache.NewStore(outputcache.DefaultMaxEntries, outputcache.StoreOpts{})
	require.NoError(t, err)
	policies, err := outputcache.NewPolicySet(outputcache.DefaultPolicies()...)
	require.NoError(t, err)
	rateLimiter, err := rateLimitCfg.NewRequestProcessor(nil)
	require.NoError(t, err)

	router := httpserver.NewRouter(httpserver.RouterOpts{
		RootMiddlewares: []func(http.Handler) http.Handler{
			middleware.RequestID(),
			middleware.Logging(log.NewDisabledLogger()),
		},
		APIRoutes: api.Routes(api.RoutesOpts{
			People:          people.NewStore(),
			Cache:           cacheStore,
			PeopleCache:     policies.MustGet(outputcache.PeoplePolicy),
			EvictionTimeout: outputcache.DefaultEvictionTimeout,
			RateLimiter:     rateLimiter,
			RateLimitOpts: middleware.RateLimitOpts{
				GetKey:             middleware.RateLimitGetKeyFromConfig(rateLimitCfg),
				ResponseStatusCode: rateLimitCfg.RejectionStatusCode,
			},
		}),
		Problems: restapi.ProblemResponder{},
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_RunScenarios(t *testing.T) {
	rateLimitCfg := ratelimit.NewDefaultConfig()
	rateLimitCfg.PermitLimit = 3
	rateLimitCfg.Window = time.Second
	srv := newTestService(t, rateLimitCfg)

	logger := logtest.NewRecorder()
	httpClient, err := httpclient.New(httpclient.Opts{Logger: logger, MaxRetryAttempts: 10})
	require.NoError(t, err)
	client := NewClient(srv.URL+"/", httpClient, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, client.WaitReady(ctx, retry.NewConstantBackoffPolicy(10*time.Millisecond, 3)))

	var out bytes.Buffer
	err = client.RunScenarios(ctx, 5, people.Person{FirstName: "Grace", LastName: "Hopper"}, &out)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 7)
	for _, line := range lines[:5] {
		require.Contains(t, line, "0 people")
	}
	require.Equal(t, "POST /api/people: added Grace Hopper", lines[5])
	require.Equal(t, "GET /api/people after POST: 1 people, X-Cache: MISS", lines[6])

	// The burst exceeds the limit, so some requests were throttled and retried.
	_, found := logger.FindEntry("request will be retried")
	require.True(t, found)
}

func TestClient_AddPersonInvalid(t *testing.T) {
	srv := newTestService(t, ratelimit.NewDefaultConfig())
	client := NewClient(srv.URL, httpclient.Must(httpclient.Opts{}), log.NewDisabledLogger())

	err := client.AddPerson(context.Background(), people.Person{FirstName: "Grace"})
	var respErr *ResponseError
	require.True(t, errors.As(err, &respErr))
	require.Equal(t, http.StatusBadRequest, respErr.StatusCode)
	require.Equal(t, "First name and last name cannot be empty.", respErr.Problem.Detail)
	require.EqualError(t, err, "unexpected status code 400: First name and last name cannot be empty.")
}

func TestClient_WaitReady(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if calls.Inc() < 3 {
			rw.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		rw.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	logger := logtest.NewRecorder()
	client := NewClient(srv.URL, httpclient.Must(httpclient.Opts{MaxRetryAttempts: -1}), logger)

	policy := retry.NewConstantBackoffPolicy(10*time.Millisecond, 5)
	require.NoError(t, client.WaitReady(context.Background(), policy))
	require.Equal(t, int32(3), calls.Load())
	_, found := logger.FindEntry("service is not ready")
	require.True(t, found)

	calls.Store(0)
	err := client.WaitReady(context.Background(), retry.NewConstantBackoffPolicy(10*time.Millisecond, 1))
	var respErr *ResponseError
	require.True(t, errors.As(err, &respErr))
	require.Equal(t, http.StatusServiceUnavailable, respErr.StatusCode)
}

func TestParseFlags(t *testing.T) {
	newFlagSet := func() *flag.FlagSet {
		fs := flag.NewFlagSet("demo-client", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		return fs
	}

	f, err := parseFlags(newFlagSet(), nil)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080", f.baseURL)
	require.Equal(t, 10, f.burst)
	require.Equal(t, httpclient.DefaultMaxRetryAttempts, f.maxRetryAttempts)

	f, err = parseFlags(newFlagSet(), []string{"-url", "http://127.0.0.1:9090", "-burst", "3", "-rps", "2.5"})
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:9090", f.baseURL)
	require.Equal(t, 3, f.burst)
	require.Equal(t, 2.5, f.rps)

	_, err = parseFlags(newFlagSet(), []string{"-burst", "0"})
	require.EqualError(t, err, "burst must be positive, got 0")

	_, err = parseFlags(newFlagSet(), []string{"-unknown"})
	require.Error(t, err)
}
