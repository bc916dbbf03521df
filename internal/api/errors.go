/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package api

import "fmt"

// StatusError makes the handler respond with the status code.
type StatusError struct {
	Code   int
	Detail string
}

// NewStatusError creates a new StatusError.
func NewStatusError(code int, detail string) *StatusError {
	return &StatusError{Code: code, Detail: detail}
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("status %d", e.Code)
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Detail)
}

// FaultError is an unexpected failure of the handler.
type FaultError struct {
	Err error
}

func (e *FaultError) Error() string {
	return "handler fault: " + e.Err.Error()
}

func (e *FaultError) Unwrap() error {
	return e.Err
}
