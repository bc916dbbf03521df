/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/acronis/go-appkit-demo/httpserver"
	"github.com/acronis/go-appkit-demo/httpserver/middleware"
	"github.com/acronis/go-appkit-demo/internal/outputcache"
	"github.com/acronis/go-appkit-demo/internal/people"
	"github.com/acronis/go-appkit-demo/internal/ratelimit"
	"github.com/acronis/go-appkit-demo/restapi"
)

// Routes paths.
const (
	PeoplePath          = "/api/people"
	ErrorsNotFoundPath  = "/api/errors/notfound"
	ErrorsStatusPath    = "/api/errors/{" + URLParamCode + "}"
	ErrorsExceptionPath = "/api/errors/exception"
)

// RoutesOpts represents options for the API routes.
type RoutesOpts struct {
	People *people.Store

	Cache       *outputcache.Store
	PeopleCache *outputcache.Policy

	// EvictionTimeout limits the time the write waits for the cache eviction.
	EvictionTimeout time.Duration

	// RateLimiter limits all API routes. May be nil, in this case requests are not rate limited.
	RateLimiter   *ratelimit.RequestProcessor
	RateLimitOpts middleware.RateLimitOpts

	Problems restapi.ProblemResponder
}

// Routes returns a function that registers the API routes in the router.
func Routes(opts RoutesOpts) httpserver.APIRoutes { //nolint // hugeParam: opts is heavy, it's ok in this case.
	return func(router chi.Router) {
		if opts.RateLimiter != nil {
			rateLimitOpts := opts.RateLimitOpts
			rateLimitOpts.Problems = opts.Problems
			router.Use(middleware.RateLimit(opts.RateLimiter, rateLimitOpts))
		}

		adapter := Adapter{Problems: opts.Problems}

		peopleHandler := &PeopleHandler{People: opts.People, Cache: opts.Cache, EvictionTimeout: opts.EvictionTimeout}
		listPeople := adapter.Handle(peopleHandler.List)
		if opts.PeopleCache != nil {
			peopleHandler.Tags = opts.PeopleCache.Tags
			cached := middleware.OutputCache(opts.Cache, opts.PeopleCache, middleware.OutputCacheOpts{})
			router.With(cached).Get(PeoplePath, listPeople)
			router.With(cached).Head(PeoplePath, listPeople)
		} else {
			router.Get(PeoplePath, listPeople)
			router.Head(PeoplePath, listPeople)
		}
		router.Method(http.MethodPost, PeoplePath, adapter.Handle(peopleHandler.Create))

		var errorsHandler ErrorsHandler
		router.Get(ErrorsNotFoundPath, adapter.Handle(errorsHandler.NotFound))
		router.Get(ErrorsExceptionPath, adapter.Handle(errorsHandler.Exception))
		router.Get(ErrorsStatusPath, adapter.Handle(errorsHandler.StatusCode))
	}
}
