/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/acronis/go-appkit-demo/httpserver"
	"github.com/acronis/go-appkit-demo/httpserver/middleware"
	"github.com/acronis/go-appkit-demo/internal/api"
	"github.com/acronis/go-appkit-demo/internal/outputcache"
	"github.com/acronis/go-appkit-demo/internal/people"
	"github.com/acronis/go-appkit-demo/internal/ratelimit"
	"github.com/acronis/go-appkit-demo/log"
	"github.com/acronis/go-appkit-demo/profserver"
	"github.com/acronis/go-appkit-demo/service"
)

const metricsNamespace = "demo"

// App is the service unit that consists of the HTTP server, the output cache cleanup worker
// and the optional profiling server.
type App struct {
	*service.CompositeUnit

	Server *httpserver.HTTPServer
	People *people.Store
	Cache  *outputcache.Store

	rateLimitMetrics   *ratelimit.PrometheusMetrics
	outputCacheMetrics *outputcache.PrometheusMetrics
}

var _ service.Unit = (*App)(nil)
var _ service.MetricsRegisterer = (*App)(nil)

// NewApp creates all components of the service from the configuration.
func NewApp(cfg *AppConfig, logger log.FieldLogger) (*App, error) {
	outputCacheMetrics := outputcache.NewPrometheusMetrics(metricsNamespace)
	cacheStore, err := outputcache.NewStore(cfg.OutputCache.MaxEntries, outputcache.StoreOpts{
		CacheMetrics: outputCacheMetrics.Cache,
		Metrics:      outputCacheMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create output cache store: %w", err)
	}
	policies, err := outputcache.NewPolicySet(cfg.OutputCache.Policies...)
	if err != nil {
		return nil, fmt.Errorf("create output cache policies: %w", err)
	}
	peoplePolicy, ok := policies.Get(outputcache.PeoplePolicy)
	if !ok {
		return nil, fmt.Errorf("output cache policy %q is not configured", outputcache.PeoplePolicy)
	}

	rateLimitMetrics := ratelimit.NewPrometheusMetrics(metricsNamespace)
	rateLimiter, err := cfg.RateLimit.NewRequestProcessor(rateLimitMetrics)
	if err != nil {
		return nil, fmt.Errorf("create rate limiter: %w", err)
	}

	peopleStore := people.NewStore()
	problems := cfg.Errors.ProblemResponder()

	server := httpserver.New(cfg.Server, logger, httpserver.Opts{
		APIRoutes: api.Routes(api.RoutesOpts{
			People:          peopleStore,
			Cache:           cacheStore,
			PeopleCache:     peoplePolicy,
			EvictionTimeout: cfg.OutputCache.EvictionTimeout,
			RateLimiter:     rateLimiter,
			RateLimitOpts: middleware.RateLimitOpts{
				GetKey:             middleware.RateLimitGetKeyFromConfig(cfg.RateLimit),
				ResponseStatusCode: cfg.RateLimit.RejectionStatusCode,
			},
			Problems: problems,
		}),
		MetricsNamespace: metricsNamespace,
		Problems:         problems,
	})

	cleanupLogger := logger.With(log.String("worker", "output_cache_cleanup"))
	cleanupWorker := service.NewWorkerUnit(service.NewPeriodicWorker(
		service.WorkerFunc(func(ctx context.Context) error {
			if removed := cacheStore.RemoveExpired(); removed > 0 {
				cleanupLogger.Debug("expired cached responses removed", log.Int("removed", removed))
			}
			return nil
		}), cfg.OutputCache.CleanupInterval, cleanupLogger), time.Duration(cfg.Server.Timeouts.Shutdown))

	units := []service.Unit{server, cleanupWorker}
	if cfg.ProfServer.Enabled {
		units = append(units, profserver.New(cfg.ProfServer, logger))
	}

	return &App{
		CompositeUnit:      service.NewCompositeUnit(units...),
		Server:             server,
		People:             peopleStore,
		Cache:              cacheStore,
		rateLimitMetrics:   rateLimitMetrics,
		outputCacheMetrics: outputCacheMetrics,
	}, nil
}

// MustRegisterMetrics registers metrics of all components in Prometheus.
func (a *App) MustRegisterMetrics() {
	a.CompositeUnit.MustRegisterMetrics()
	a.rateLimitMetrics.MustRegister()
	a.outputCacheMetrics.MustRegister()
}

// UnregisterMetrics unregisters metrics of all components.
func (a *App) UnregisterMetrics() {
	a.CompositeUnit.UnregisterMetrics()
	a.rateLimitMetrics.Unregister()
	a.outputCacheMetrics.Unregister()
}
