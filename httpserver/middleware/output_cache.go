/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/acronis/go-appkit-demo/internal/outputcache"
	"github.com/acronis/go-appkit-demo/log"
)

// HeaderCache is a response header that tells whether the response was served from the output cache.
const HeaderCache = "X-Cache"

// Values of the X-Cache header.
const (
	CacheHit  = "HIT"
	CacheMiss = "MISS"
)

// perRequestHeaders are response headers that describe the request being served, not the cached content.
// They are never stored in the output cache, so a hit carries values of its own request.
var perRequestHeaders = []string{HeaderRequestID, HeaderCache, "Age", "Date"}

// OutputCacheLogFieldKey is the name of the logged field that contains the output cache result.
const OutputCacheLogFieldKey = "output_cache"

// OutputCacheOpts represents an options for the OutputCache middleware.
type OutputCacheOpts struct {
	// CacheableStatusCodes lists statuses of the responses that are stored. Only 200 by default.
	CacheableStatusCodes []int
}

type outputCacheHandler struct {
	next      http.Handler
	store     *outputcache.Store
	policy    *outputcache.Policy
	cacheable map[int]struct{}
	now       func() time.Time
}

// OutputCache is a middleware that serves GET and HEAD requests from the output cache store.
// On a miss the response of the next handler is buffered and stored with the policy tags
// after the handler completed, so a partially written response is never visible.
func OutputCache(store *outputcache.Store, policy *outputcache.Policy, opts OutputCacheOpts) func(next http.Handler) http.Handler {
	statuses := opts.CacheableStatusCodes
	if len(statuses) == 0 {
		statuses = []int{http.StatusOK}
	}
	cacheable := make(map[int]struct{}, len(statuses))
	for _, status := range statuses {
		cacheable[status] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return &outputCacheHandler{next: next, store: store, policy: policy, cacheable: cacheable, now: time.Now}
	}
}

func (h *outputCacheHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		h.next.ServeHTTP(rw, r)
		return
	}

	key := h.policy.Key(r)
	if entry, ok := h.store.Lookup(key); ok {
		extendLoggingFields(r.Context(), log.String(OutputCacheLogFieldKey, CacheHit))
		h.serveEntry(rw, r, entry)
		return
	}
	extendLoggingFields(r.Context(), log.String(OutputCacheLogFieldKey, CacheMiss))

	// Taken before the response is produced, so an eviction by any of the policy tags
	// that happens in the meantime prevents storing the possibly stale response.
	token := h.store.Begin(h.policy.Tags)

	rw.Header().Set(HeaderCache, CacheMiss)
	var body bytes.Buffer
	wrw := chimw.NewWrapResponseWriter(rw, r.ProtoMajor)
	wrw.Tee(&body)

	h.next.ServeHTTP(wrw, r)

	status := responseStatus(wrw)
	if _, ok := h.cacheable[status]; !ok {
		return
	}
	now := h.now()
	header := rw.Header().Clone()
	for _, name := range perRequestHeaders {
		header.Del(name)
	}
	h.store.Commit(token, key, &outputcache.Entry{
		StatusCode: status,
		Header:     header,
		Body:       body.Bytes(),
		StoredAt:   now,
		ExpiresAt:  h.policy.ExpiresAt(now),
	})
}

func (h *outputCacheHandler) serveEntry(rw http.ResponseWriter, r *http.Request, entry *outputcache.Entry) {
	for name, values := range entry.Header {
		rw.Header()[name] = values
	}
	rw.Header().Set(HeaderCache, CacheHit)
	rw.Header().Set("Age", strconv.Itoa(int(entry.Age(h.now()).Seconds())))
	if r.Method != http.MethodHead {
		rw.Header().Set("Content-Length", strconv.Itoa(len(entry.Body)))
	}
	rw.WriteHeader(entry.StatusCode)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := rw.Write(entry.Body); err != nil {
		if logger := GetLoggerFromContext(r.Context()); logger != nil {
			logger.Error("error while writing cached response body", log.Error(err))
		}
	}
}
