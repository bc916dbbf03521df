/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/acronis/go-appkit-demo/httpserver/middleware"
	"github.com/acronis/go-appkit-demo/restapi"
)

// APIRoutes configures the application routes. They are mounted at the root of the router,
// next to the system endpoints.
type APIRoutes = func(router chi.Router)

// RouterOpts represents options for creating chi.Router.
type RouterOpts struct {
	RootMiddlewares []func(http.Handler) http.Handler
	APIRoutes       APIRoutes
	HealthCheck     HealthCheck
	MetricsHandler  http.Handler
	Problems        restapi.ProblemResponder
}

// NewRouter creates a new chi.Router with system endpoints (/metrics and /healthz),
// application routes and problem responses for unknown routes and methods.
func NewRouter(opts RouterOpts) chi.Router {
	router := chi.NewRouter()
	configureRouter(router, opts)
	return router
}

// nolint // hugeParam: opts is heavy, it's ok in this case.
func configureRouter(router chi.Router, opts RouterOpts) {
	router.Use(opts.RootMiddlewares...)

	metricsHandler := opts.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	router.Method(http.MethodGet, "/metrics", metricsHandler)
	router.Method(http.MethodGet, "/healthz", NewHealthCheckHandler(opts.HealthCheck))

	if opts.APIRoutes != nil {
		router.Group(opts.APIRoutes)
	}

	router.NotFound(func(rw http.ResponseWriter, r *http.Request) {
		respondProblem(rw, r, opts.Problems, http.StatusNotFound)
	})
	router.MethodNotAllowed(func(rw http.ResponseWriter, r *http.Request) {
		respondProblem(rw, r, opts.Problems, http.StatusMethodNotAllowed)
	})
}

func respondProblem(rw http.ResponseWriter, r *http.Request, problems restapi.ProblemResponder, status int) {
	problem := restapi.NewProblem(status, "").WithRequestID(middleware.GetRequestIDFromContext(r.Context()))
	problems.Respond(rw, problem, middleware.GetLoggerFromContext(r.Context()))
}

// IsSystemEndpoint reports whether the request targets one of the system endpoints.
// System endpoints are neither rate limited nor involved in metrics collecting.
func IsSystemEndpoint(r *http.Request) bool {
	for _, endpoint := range systemEndpoints {
		if r.URL.Path == endpoint {
			return true
		}
	}
	return false
}

// GetChiRoutePattern extracts chi route pattern from request.
func GetChiRoutePattern(r *http.Request) string {
	// modified code from https://github.com/go-chi/chi/issues/270#issuecomment-479184559
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}

	routePath := r.URL.RawPath
	if routePath == "" {
		routePath = r.URL.Path
	}

	tctx := chi.NewRouteContext()
	if !rctx.Routes.Match(tctx, r.Method, routePath) {
		return ""
	}
	return tctx.RoutePattern()
}
