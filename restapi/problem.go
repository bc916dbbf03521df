/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package restapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/acronis/go-appkit-demo/log"
)

// ContentTypeAppProblemJSON represents MIME media type for problem details (RFC 9457).
const ContentTypeAppProblemJSON = "application/problem+json"

// ContentTypeTextPlain is used for the plain text representation of problems.
const ContentTypeTextPlain = "text/plain; charset=utf-8"

// Problem is a machine-readable description of an error in HTTP response.
type Problem struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// problemTypes maps status codes to the sections of the RFCs that define them.
var problemTypes = map[int]string{
	http.StatusBadRequest:            "https://tools.ietf.org/html/rfc9110#section-15.5.1",
	http.StatusUnauthorized:          "https://tools.ietf.org/html/rfc9110#section-15.5.2",
	http.StatusForbidden:             "https://tools.ietf.org/html/rfc9110#section-15.5.4",
	http.StatusNotFound:              "https://tools.ietf.org/html/rfc9110#section-15.5.5",
	http.StatusMethodNotAllowed:      "https://tools.ietf.org/html/rfc9110#section-15.5.6",
	http.StatusNotAcceptable:         "https://tools.ietf.org/html/rfc9110#section-15.5.7",
	http.StatusRequestTimeout:        "https://tools.ietf.org/html/rfc9110#section-15.5.9",
	http.StatusConflict:              "https://tools.ietf.org/html/rfc9110#section-15.5.10",
	http.StatusGone:                  "https://tools.ietf.org/html/rfc9110#section-15.5.11",
	http.StatusRequestEntityTooLarge: "https://tools.ietf.org/html/rfc9110#section-15.5.14",
	http.StatusUnsupportedMediaType:  "https://tools.ietf.org/html/rfc9110#section-15.5.16",
	http.StatusUnprocessableEntity:   "https://tools.ietf.org/html/rfc9110#section-15.5.21",
	http.StatusTooManyRequests:       "https://tools.ietf.org/html/rfc6585#section-4",
	http.StatusInternalServerError:   "https://tools.ietf.org/html/rfc9110#section-15.6.1",
	http.StatusNotImplemented:        "https://tools.ietf.org/html/rfc9110#section-15.6.2",
	http.StatusBadGateway:            "https://tools.ietf.org/html/rfc9110#section-15.6.3",
	http.StatusServiceUnavailable:    "https://tools.ietf.org/html/rfc9110#section-15.6.4",
	http.StatusGatewayTimeout:        "https://tools.ietf.org/html/rfc9110#section-15.6.5",
}

// NewProblem creates a new Problem for the status code with its standard type and title.
func NewProblem(status int, detail string) *Problem {
	problemType, ok := problemTypes[status]
	if !ok {
		problemType = "about:blank"
	}
	title := http.StatusText(status)
	if title == "" {
		title = "Status " + strconv.Itoa(status)
	}
	return &Problem{Type: problemType, Title: title, Status: status, Detail: detail}
}

// WithRequestID sets the request id and returns the problem.
func (p *Problem) WithRequestID(requestID string) *Problem {
	p.RequestID = requestID
	return p
}

func (p *Problem) Error() string {
	if p.Detail == "" {
		return fmt.Sprintf("%d %s", p.Status, p.Title)
	}
	return fmt.Sprintf("%d %s: %s", p.Status, p.Title, p.Detail)
}

// PlainText returns the plain text representation of the problem.
// It starts with the reason phrase of the status, the title is not used since it may be a type name.
func (p *Problem) PlainText() string {
	reason := http.StatusText(p.Status)
	if reason == "" {
		reason = "An error occurred"
	}
	return reason + "\r\nRequest ID: " + p.RequestID
}

// ProblemResponder writes problems into HTTP responses.
type ProblemResponder struct {
	// PlainText makes the responder write "<reason phrase>\r\nRequest ID: <id>" instead of problem JSON.
	PlainText bool

	// HideDetails removes the detail member from the problem.
	HideDetails bool
}

// Respond sets HTTP status code in response and writes the problem in body.
// Also, it logs info about the problem.
func (pr ProblemResponder) Respond(rw http.ResponseWriter, problem *Problem, logger log.FieldLogger) {
	logAndCollectMetricsForProblem(problem, logger)

	if pr.HideDetails {
		p := *problem
		p.Detail = ""
		problem = &p
	}

	if pr.PlainText {
		rw.Header().Set("Content-Type", ContentTypeTextPlain)
		rw.WriteHeader(problem.Status)
		if _, err := rw.Write([]byte(problem.PlainText())); err != nil && logger != nil {
			logger.Error("error while writing response body", log.Error(err))
		}
		return
	}

	rw.Header().Set("Content-Type", ContentTypeAppProblemJSON)
	RespondCodeAndJSON(rw, problem.Status, problem, logger)
}

// RespondProblem writes the problem in the response body in JSON format.
func RespondProblem(rw http.ResponseWriter, problem *Problem, logger log.FieldLogger) {
	ProblemResponder{}.Respond(rw, problem, logger)
}

// RespondMalformedRequestError creates Problem from passed MalformedRequestError and writes it.
func (pr ProblemResponder) RespondMalformedRequestError(
	rw http.ResponseWriter, reqErr *MalformedRequestError, requestID string, logger log.FieldLogger,
) {
	pr.Respond(rw, NewProblem(reqErr.HTTPStatusCode, reqErr.Message).WithRequestID(requestID), logger)
}

func logAndCollectMetricsForProblem(problem *Problem, logger log.FieldLogger) {
	if logger != nil {
		fields := []log.Field{log.Int("status", problem.Status), log.String("title", problem.Title)}
		if problem.Detail != "" {
			fields = append(fields, log.String("detail", problem.Detail))
		}
		if problem.Status >= http.StatusInternalServerError {
			logger.Error("problem in response", fields...)
		} else {
			logger.Warn("problem in response", fields...)
		}
	}
	if metricsResponseProblems != nil {
		metricsResponseProblems.With(prometheus.Labels{
			metricsLabelResponseProblemStatus: strconv.Itoa(problem.Status),
		}).Inc()
	}
}
