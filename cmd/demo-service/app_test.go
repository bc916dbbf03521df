/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-appkit-demo/httpserver/middleware"
	"github.com/acronis/go-appkit-demo/internal/outputcache"
	"github.com/acronis/go-appkit-demo/internal/people"
	"github.com/acronis/go-appkit-demo/internal/ratelimit"
	"github.com/acronis/go-appkit-demo/log/logtest"
	"github.com/acronis/go-appkit-demo/testutil"
)

func TestLoadAppConfig(t *testing.T) {
	t.Run("example file", func(t *testing.T) {
		cfg, err := loadAppConfig("config.yml")
		require.NoError(t, err)
		require.Equal(t, ":8080", cfg.Server.Address)
		require.Equal(t, ratelimit.AlgFixedWindow, cfg.RateLimit.Alg)
		require.Equal(t, 3, cfg.RateLimit.PermitLimit)
		require.Equal(t, 10*time.Second, cfg.RateLimit.Window)
		require.Equal(t, http.StatusTooManyRequests, cfg.RateLimit.RejectionStatusCode)
		require.Equal(t, []outputcache.Policy{{
			Name: outputcache.PeoplePolicy, Tags: []string{outputcache.PeoplePolicy}, VaryByQuery: true,
		}}, cfg.OutputCache.Policies)
		require.False(t, cfg.Errors.PlainText)
		require.True(t, cfg.Errors.ExposeDetails)
		require.False(t, cfg.ProfServer.Enabled)
		require.Equal(t, "localhost:8081", cfg.ProfServer.Address)
	})

	t.Run("env vars override file", func(t *testing.T) {
		t.Setenv("DEMO_RATELIMIT_PERMITLIMIT", "7")
		t.Setenv("DEMO_ERRORS_PLAINTEXT", "true")
		cfg, err := loadAppConfig("config.yml")
		require.NoError(t, err)
		require.Equal(t, 7, cfg.RateLimit.PermitLimit)
		require.True(t, cfg.Errors.PlainText)
	})

	t.Run("defaults without file", func(t *testing.T) {
		cfg, err := loadAppConfig("")
		require.NoError(t, err)
		require.Equal(t, ":8080", cfg.Server.Address)
		require.Equal(t, ratelimit.PartitionByGlobal, cfg.RateLimit.PartitionBy)
		require.Equal(t, outputcache.DefaultPolicies(), cfg.OutputCache.Policies)
		require.True(t, cfg.Errors.ExposeDetails)
	})

	t.Run("json file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"rateLimit":{"permitLimit":5,"partitionBy":"remoteAddr"}}`), 0o600))
		cfg, err := loadAppConfig(path)
		require.NoError(t, err)
		require.Equal(t, 5, cfg.RateLimit.PermitLimit)
		require.Equal(t, ratelimit.PartitionByRemoteAddr, cfg.RateLimit.PartitionBy)
	})

	t.Run("invalid value", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yml")
		require.NoError(t, os.WriteFile(path, []byte("rateLimit:\n  alg: tokenBucket\n"), 0o600))
		_, err := loadAppConfig(path)
		require.ErrorContains(t, err, "rateLimit.alg")
	})
}

func TestNewApp_MissingPeoplePolicy(t *testing.T) {
	cfg := NewAppConfig()
	cfg.OutputCache.Policies = []outputcache.Policy{{Name: "Other"}}
	_, err := NewApp(cfg, logtest.NewRecorder())
	require.EqualError(t, err, `output cache policy "People" is not configured`)
}

func TestApp(t *testing.T) {
	cfg := NewAppConfig()
	cfg.Server.Address = testutil.GetLocalAddrWithFreeTCPPort()
	cfg.OutputCache.CleanupInterval = 50 * time.Millisecond

	app, err := NewApp(cfg, logtest.NewRecorder())
	require.NoError(t, err)

	fatalErr := make(chan error, 1)
	go app.Start(fatalErr)
	defer func() {
		require.NoError(t, app.Stop(true))
		testutil.RequireNoErrorInChannel(t, fatalErr)
	}()
	require.NoError(t, testutil.WaitListeningServer(cfg.Server.Address, 3*time.Second))

	baseURL := "http://" + cfg.Server.Address

	resp, err := http.Get(baseURL + "/api/people")
	require.NoError(t, err)
	testutil.RequireJSONInResponse(t, resp, &[]people.Person{}, &[]people.Person{})
	require.NoError(t, resp.Body.Close())
	require.Equal(t, middleware.CacheMiss, resp.Header.Get(middleware.HeaderCache))
	require.Equal(t, 1, app.Cache.Len())

	resp, err = http.Post(baseURL+"/api/people", "application/json",
		strings.NewReader(`{"firstName":"John","lastName":"Doe"}`))
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, 0, app.Cache.Len())
	require.Equal(t, []people.Person{{FirstName: "John", LastName: "Doe"}}, app.People.List())

	resp, err = http.Get(baseURL + "/api/people")
	require.NoError(t, err)
	testutil.RequireJSONInResponse(t, resp, &[]people.Person{{FirstName: "John", LastName: "Doe"}}, &[]people.Person{})
	require.NoError(t, resp.Body.Close())

	// The default limit is 3 requests per 10 seconds.
	resp, err = http.Get(baseURL + "/api/people")
	require.NoError(t, err)
	problem := testutil.RequireProblemInResponse(t, resp, http.StatusTooManyRequests)
	require.NoError(t, resp.Body.Close())
	require.NotEmpty(t, resp.Header.Get("Retry-After"))
	require.Equal(t, resp.Header.Get(middleware.HeaderRequestID), problem.RequestID)

	resp, err = http.Get(baseURL + "/healthz")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestApp_Metrics(t *testing.T) {
	app, err := NewApp(NewAppConfig(), logtest.NewRecorder())
	require.NoError(t, err)
	require.NotPanics(t, app.MustRegisterMetrics)
	app.UnregisterMetrics()
}

func TestApp_ProfServer(t *testing.T) {
	cfg := NewAppConfig()
	cfg.Server.Address = testutil.GetLocalAddrWithFreeTCPPort()
	cfg.ProfServer.Enabled = true
	cfg.ProfServer.Address = testutil.GetLocalAddrWithFreeTCPPort()

	app, err := NewApp(cfg, logtest.NewRecorder())
	require.NoError(t, err)

	fatalErr := make(chan error, 1)
	go app.Start(fatalErr)
	defer func() {
		require.NoError(t, app.Stop(true))
		testutil.RequireNoErrorInChannel(t, fatalErr)
	}()
	require.NoError(t, testutil.WaitListeningServer(cfg.ProfServer.Address, 3*time.Second))

	resp, err := http.Get("http://" + cfg.ProfServer.Address + "/debug/pprof/")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
