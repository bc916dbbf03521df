/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-appkit-demo/internal/outputcache"
)

type mockOutputCacheNextHandler struct {
	called int
	status int
}

func (h *mockOutputCacheNextHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	h.called++
	rw.Header().Set("Content-Type", "application/json")
	if h.status != 0 {
		rw.WriteHeader(h.status)
	}
	_, _ = fmt.Fprintf(rw, `{"call":%d}`, h.called)
}

func newTestOutputCacheStore(t *testing.T) *outputcache.Store {
	t.Helper()
	store, err := outputcache.NewStore(100, outputcache.StoreOpts{})
	require.NoError(t, err)
	return store
}

func TestOutputCacheHandler_ServeHTTP(t *testing.T) {
	policy := &outputcache.Policy{Name: "People", Tags: []string{"People"}, VaryByQuery: true}

	t.Run("miss then hit", func(t *testing.T) {
		store := newTestOutputCacheStore(t)
		next := &mockOutputCacheNextHandler{}
		handler := OutputCache(store, policy, OutputCacheOpts{})(next)

		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/people", nil))
		require.Equal(t, http.StatusOK, resp.Code)
		require.Equal(t, CacheMiss, resp.Header().Get(HeaderCache))
		require.Equal(t, `{"call":1}`, resp.Body.String())

		resp = httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/people", nil))
		require.Equal(t, http.StatusOK, resp.Code)
		require.Equal(t, CacheHit, resp.Header().Get(HeaderCache))
		require.Equal(t, "application/json", resp.Header().Get("Content-Type"))
		require.Equal(t, "0", resp.Header().Get("Age"))
		require.Equal(t, `{"call":1}`, resp.Body.String())
		require.Equal(t, 1, next.called)
		require.Equal(t, []string{"People"}, store.Tags())
	})

	t.Run("eviction by tag makes the next read a miss", func(t *testing.T) {
		store := newTestOutputCacheStore(t)
		next := &mockOutputCacheNextHandler{}
		handler := OutputCache(store, policy, OutputCacheOpts{})(next)

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/people", nil))
		n, err := store.EvictByTag(context.Background(), "People")
		require.NoError(t, err)
		require.Equal(t, 1, n)

		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/people", nil))
		require.Equal(t, CacheMiss, resp.Header().Get(HeaderCache))
		require.Equal(t, `{"call":2}`, resp.Body.String())
	})

	t.Run("query is a part of the key", func(t *testing.T) {
		store := newTestOutputCacheStore(t)
		next := &mockOutputCacheNextHandler{}
		handler := OutputCache(store, policy, OutputCacheOpts{})(next)

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/people?b=2&a=1", nil))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/people?a=1&b=2", nil))
		require.Equal(t, CacheHit, resp.Header().Get(HeaderCache))

		resp = httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/people?a=2", nil))
		require.Equal(t, CacheMiss, resp.Header().Get(HeaderCache))
		require.Equal(t, 2, next.called)
	})

	t.Run("non-200 responses are not stored", func(t *testing.T) {
		store := newTestOutputCacheStore(t)
		next := &mockOutputCacheNextHandler{status: http.StatusInternalServerError}
		handler := OutputCache(store, policy, OutputCacheOpts{})(next)

		for i := 0; i < 2; i++ {
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/people", nil))
			require.Equal(t, http.StatusInternalServerError, resp.Code)
			require.Equal(t, CacheMiss, resp.Header().Get(HeaderCache))
		}
		require.Equal(t, 2, next.called)
		require.Equal(t, 0, store.Len())
	})

	t.Run("non-GET requests bypass the cache", func(t *testing.T) {
		store := newTestOutputCacheStore(t)
		next := &mockOutputCacheNextHandler{}
		handler := OutputCache(store, policy, OutputCacheOpts{})(next)

		for i := 0; i < 2; i++ {
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/people", nil))
			require.Empty(t, resp.Header().Get(HeaderCache))
		}
		require.Equal(t, 2, next.called)
		require.Equal(t, 0, store.Len())
	})

	t.Run("expired entry is not served", func(t *testing.T) {
		store := newTestOutputCacheStore(t)
		next := &mockOutputCacheNextHandler{}
		ttlPolicy := &outputcache.Policy{Name: "Short", Tags: []string{"Short"}, TTL: 50 * time.Millisecond}
		handler := OutputCache(store, ttlPolicy, OutputCacheOpts{})(next)

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/people", nil))
		time.Sleep(100 * time.Millisecond)

		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/people", nil))
		require.Equal(t, CacheMiss, resp.Header().Get(HeaderCache))
		require.Equal(t, 2, next.called)
	})

	t.Run("response produced before eviction by its tag is not stored", func(t *testing.T) {
		store := newTestOutputCacheStore(t)
		started := make(chan struct{})
		release := make(chan struct{})
		var calls int
		next := http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			calls++
			if calls == 1 {
				close(started)
				<-release
			}
			_, _ = fmt.Fprintf(rw, `{"call":%d}`, calls)
		})
		handler := OutputCache(store, policy, OutputCacheOpts{})(next)

		done := make(chan struct{})
		go func() {
			defer close(done)
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/people", nil))
		}()
		<-started

		// A write happens while the read is still producing its response.
		_, err := store.EvictByTag(context.Background(), "People")
		require.NoError(t, err)
		close(release)
		<-done

		require.Equal(t, 0, store.Len())
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/people", nil))
		require.Equal(t, CacheMiss, resp.Header().Get(HeaderCache))
		require.Equal(t, `{"call":2}`, resp.Body.String())
		require.Equal(t, 1, store.Len())
	})

	t.Run("hit carries its own request ID", func(t *testing.T) {
		store := newTestOutputCacheStore(t)
		next := &mockOutputCacheNextHandler{}
		var generated int
		handler := RequestIDWithOpts(RequestIDOpts{GenerateID: func() string {
			generated++
			return fmt.Sprintf("req-%d", generated)
		}})(OutputCache(store, policy, OutputCacheOpts{})(next))

		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/people", nil))
		require.Equal(t, CacheMiss, resp.Header().Get(HeaderCache))
		require.Equal(t, "req-1", resp.Header().Get(HeaderRequestID))

		resp = httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/people", nil))
		require.Equal(t, CacheHit, resp.Header().Get(HeaderCache))
		require.Equal(t, []string{"req-2"}, resp.Header().Values(HeaderRequestID))
		require.Equal(t, 1, next.called)

		entry, ok := store.Lookup(policy.Key(httptest.NewRequest(http.MethodGet, "/api/people", nil)))
		require.True(t, ok)
		require.Empty(t, entry.Header.Get(HeaderRequestID))
		require.Empty(t, entry.Header.Get(HeaderCache))
	})
}
