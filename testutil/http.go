/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"

	"github.com/stretchr/testify/require"
)

const (
	contentTypeAppJSON        = "application/json"
	contentTypeAppProblemJSON = "application/problem+json"
)

// ProblemRespData is a problem details body of the response.
type ProblemRespData struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail"`
	RequestID string `json:"requestId"`
}

// RequireProblemInRecorder asserts that passing httptest.ResponseRecorder contains problem details
// with the wanted status and returns them.
func RequireProblemInRecorder(t require.TestingT, resp *httptest.ResponseRecorder, wantHTTPCode int) ProblemRespData {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	return requireProblemInResponse(t, resp.Code, resp.Header(), resp.Body, wantHTTPCode)
}

// RequireProblemInResponse asserts that passing http.Response contains problem details
// with the wanted status and returns them.
func RequireProblemInResponse(t require.TestingT, resp *http.Response, wantHTTPCode int) ProblemRespData {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	return requireProblemInResponse(t, resp.StatusCode, resp.Header, resp.Body, wantHTTPCode)
}

func requireProblemInResponse(
	t require.TestingT, gotHTTPCode int, header http.Header, body io.Reader, wantHTTPCode int,
) ProblemRespData {
	require.Equal(t, wantHTTPCode, gotHTTPCode)
	requireContentType(t, header, contentTypeAppProblemJSON)
	var problem ProblemRespData
	require.NoError(t, json.NewDecoder(body).Decode(&problem))
	require.Equal(t, wantHTTPCode, problem.Status)
	require.NotEmpty(t, problem.Title)
	require.NotEmpty(t, problem.Type)
	return problem
}

// RequireEmptyBodyInRecorder asserts that passing httptest.ResponseRecorder contains empty body.
func RequireEmptyBodyInRecorder(t require.TestingT, resp *httptest.ResponseRecorder) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	require.Empty(t, resp.Body.Bytes())
}

// RequireJSONInRecorder asserts that passing httptest.ResponseRecorder contains JSON body
// that is equal to the wanted value. dest should be a pointer to the value of the same type as want.
func RequireJSONInRecorder(t require.TestingT, resp *httptest.ResponseRecorder, want, dest interface{}) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	requireJSONInResponse(t, resp.Header(), resp.Body, want, dest)
}

// RequireJSONInResponse asserts that passing http.Response contains JSON body
// that is equal to the wanted value.
func RequireJSONInResponse(t require.TestingT, resp *http.Response, want, dest interface{}) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	requireJSONInResponse(t, resp.Header, resp.Body, want, dest)
}

func requireJSONInResponse(t require.TestingT, header http.Header, body io.Reader, want, dest interface{}) {
	requireContentType(t, header, contentTypeAppJSON)
	require.NoError(t, json.NewDecoder(body).Decode(dest))
	require.Equal(t, want, dest)
}

func requireContentType(t require.TestingT, header http.Header, want string) {
	contentType, _, err := mime.ParseMediaType(header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, want, contentType)
}
