/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-appkit-demo/testutil"
)

func TestHealthCheckHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name       string
		fn         HealthCheck
		wantStatus int
		wantBody   interface{}
	}{
		{
			name:       "no components",
			wantStatus: http.StatusOK,
			wantBody:   &healthCheckResponseData{Components: map[string]bool{}},
		},
		{
			name: "all components are healthy",
			fn: func(ctx context.Context) (HealthCheckResult, error) {
				return HealthCheckResult{"people": HealthCheckStatusOK, "outputCache": HealthCheckStatusOK}, nil
			},
			wantStatus: http.StatusOK,
			wantBody:   &healthCheckResponseData{Components: map[string]bool{"people": true, "outputCache": true}},
		},
		{
			name: "unhealthy component",
			fn: func(ctx context.Context) (HealthCheckResult, error) {
				return HealthCheckResult{"people": HealthCheckStatusOK, "outputCache": HealthCheckStatusFail}, nil
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   &healthCheckResponseData{Components: map[string]bool{"people": true, "outputCache": false}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := httptest.NewRecorder()
			NewHealthCheckHandler(tt.fn).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			require.Equal(t, tt.wantStatus, resp.Code)
			testutil.RequireJSONInRecorder(t, resp, tt.wantBody, &healthCheckResponseData{})
		})
	}

	t.Run("error", func(t *testing.T) {
		resp := httptest.NewRecorder()
		NewHealthCheckHandler(func(ctx context.Context) (HealthCheckResult, error) {
			return nil, errors.New("internal error")
		}).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.Equal(t, http.StatusInternalServerError, resp.Code)
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		resp := httptest.NewRecorder()
		NewHealthCheckHandler(nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil).WithContext(ctx))
		require.Equal(t, StatusClientClosedRequest, resp.Code)
	})
}
