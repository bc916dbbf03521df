/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/acronis/go-appkit-demo/httpserver/middleware"
	"github.com/acronis/go-appkit-demo/internal/outputcache"
	"github.com/acronis/go-appkit-demo/internal/people"
	"github.com/acronis/go-appkit-demo/log"
	"github.com/acronis/go-appkit-demo/restapi"
)

// PeopleHandler serves the list of people.
type PeopleHandler struct {
	People *people.Store
	Cache  *outputcache.Store

	// Tags are evicted from the cache after the list is changed.
	Tags []string

	// EvictionTimeout limits the time the write waits for the eviction. Zero means no limit.
	EvictionTimeout time.Duration
}

// List responds with all people.
func (h *PeopleHandler) List(rw http.ResponseWriter, r *http.Request) error {
	restapi.RespondJSON(rw, h.People.List(), middleware.GetLoggerFromContext(r.Context()))
	return nil
}

// Create appends a person to the list and evicts cached lists.
// 204 is sent only after the eviction is completed.
func (h *PeopleHandler) Create(rw http.ResponseWriter, r *http.Request) error {
	var person people.Person
	if err := restapi.DecodeRequestJSON(r, &person, true); err != nil {
		return err
	}
	if err := h.People.Add(person); err != nil {
		if errors.Is(err, people.ErrInvalidPerson) {
			return NewStatusError(http.StatusBadRequest, "First name and last name cannot be empty.")
		}
		return &FaultError{Err: err}
	}

	ctx := r.Context()
	if h.EvictionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.EvictionTimeout)
		defer cancel()
	}
	logger := middleware.GetLoggerFromContext(r.Context())
	for _, tag := range h.Tags {
		evicted, err := h.Cache.EvictByTag(ctx, tag)
		if err != nil {
			return err
		}
		if logger != nil {
			logger.Debug("cached responses evicted", log.String("tag", tag), log.Int("evicted", evicted))
		}
	}

	rw.WriteHeader(http.StatusNoContent)
	return nil
}
