/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// URLParamCode is the name of the URL parameter with the status code.
const URLParamCode = "code"

// ErrIncredible is the fault raised by the exception endpoint.
var ErrIncredible = errors.New("incredible error")

// ErrorsHandler demonstrates how handler failures are translated into responses.
type ErrorsHandler struct{}

// NotFound always fails with 404.
func (ErrorsHandler) NotFound(_ http.ResponseWriter, _ *http.Request) error {
	return NewStatusError(http.StatusNotFound, "")
}

// StatusCode responds with the status code from the URL.
// Codes >= 400 are sent as problems, others with an empty body.
func (ErrorsHandler) StatusCode(rw http.ResponseWriter, r *http.Request) error {
	codeParam := chi.URLParam(r, URLParamCode)
	code, err := strconv.Atoi(codeParam)
	if err != nil || code < 200 || code > 599 {
		return NewStatusError(http.StatusBadRequest,
			fmt.Sprintf("Status code must be an integer in the range 200-599, got %q.", codeParam))
	}
	if code >= http.StatusBadRequest {
		return NewStatusError(code, "")
	}
	rw.WriteHeader(code)
	return nil
}

// Exception fails with an unexpected error.
func (ErrorsHandler) Exception(_ http.ResponseWriter, _ *http.Request) error {
	return &FaultError{Err: ErrIncredible}
}
