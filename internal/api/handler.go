/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/acronis/go-appkit-demo/httpserver/middleware"
	"github.com/acronis/go-appkit-demo/internal/outputcache"
	"github.com/acronis/go-appkit-demo/restapi"
)

// HandlerFunc handles the request and returns an error instead of writing it.
// Nothing should be written to rw when an error is returned.
type HandlerFunc func(rw http.ResponseWriter, r *http.Request) error

// Adapter converts HandlerFunc into http.HandlerFunc.
type Adapter struct {
	Problems restapi.ProblemResponder
}

// Handle returns http.HandlerFunc that responds with a problem if fn fails.
func (a Adapter) Handle(fn HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if err := fn(rw, r); err != nil {
			a.RespondError(rw, r, err)
		}
	}
}

// RespondError writes the problem corresponding to err.
func (a Adapter) RespondError(rw http.ResponseWriter, r *http.Request, err error) {
	problem := ProblemFromError(err).WithRequestID(middleware.GetRequestIDFromContext(r.Context()))
	a.Problems.Respond(rw, problem, middleware.GetLoggerFromContext(r.Context()))
}

// ProblemFromError translates the error returned by a handler into a problem.
func ProblemFromError(err error) *restapi.Problem {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return restapi.NewProblem(statusErr.Code, statusErr.Detail)
	}

	var malformedErr *restapi.MalformedRequestError
	if errors.As(err, &malformedErr) {
		return restapi.NewProblem(malformedErr.HTTPStatusCode, malformedErr.Message)
	}

	var evictionErr *outputcache.EvictionError
	if errors.As(err, &evictionErr) {
		return restapi.NewProblem(http.StatusInternalServerError,
			fmt.Sprintf("Cached responses tagged %q could not be evicted: %v.", evictionErr.Tag, evictionErr.Err))
	}

	var faultErr *FaultError
	if errors.As(err, &faultErr) {
		return faultProblem(faultErr.Err)
	}
	return faultProblem(err)
}

// faultProblem describes an unexpected failure, the problem is titled after the type of the error.
func faultProblem(err error) *restapi.Problem {
	problem := restapi.NewProblem(http.StatusInternalServerError, err.Error())
	problem.Title = fmt.Sprintf("%T", err)
	return problem
}
