/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package lrucache

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type evictedEntry struct {
	key    string
	value  int
	reason EvictReason
}

func TestLRUCache(t *testing.T) {
	t.Run("invalid params", func(t *testing.T) {
		_, err := New[string, int](0, nil)
		require.EqualError(t, err, "maxEntries must be greater than 0")
		_, err = NewWithOpts[string, int](1, nil, Options[string, int]{DefaultTTL: -time.Second})
		require.Error(t, err)
	})

	t.Run("add, get, overwrite and remove", func(t *testing.T) {
		cache, err := New[string, int](10, nil)
		require.NoError(t, err)

		_, found := cache.Get("a")
		require.False(t, found)

		cache.Add("a", 1)
		cache.Add("b", 2)
		val, found := cache.Get("a")
		require.True(t, found)
		require.Equal(t, 1, val)

		cache.Add("a", 10)
		val, found = cache.Get("a")
		require.True(t, found)
		require.Equal(t, 10, val)
		require.Equal(t, 2, cache.Len())

		require.True(t, cache.Remove("a"))
		require.False(t, cache.Remove("a"))
		require.Equal(t, 1, cache.Len())

		cache.Purge()
		require.Equal(t, 0, cache.Len())
	})

	t.Run("least recently used entry is evicted", func(t *testing.T) {
		var evicted []evictedEntry
		metrics := NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
		cache, err := NewWithOpts[string, int](2, metrics, Options[string, int]{
			OnEvicted: func(key string, value int, reason EvictReason) {
				evicted = append(evicted, evictedEntry{key, value, reason})
			},
		})
		require.NoError(t, err)

		cache.Add("a", 1)
		cache.Add("b", 2)
		_, _ = cache.Get("a") // "b" becomes the least recently used
		cache.Add("c", 3)

		_, found := cache.Get("b")
		require.False(t, found)
		require.Equal(t, []evictedEntry{{"b", 2, EvictReasonCapacity}}, evicted)

		require.Equal(t, 2, int(testutil.ToFloat64(metrics.EntriesAmount)))
		require.Equal(t, 1, int(testutil.ToFloat64(metrics.EvictionsTotal)))
		require.Equal(t, 1, int(testutil.ToFloat64(metrics.HitsTotal)))
		require.Equal(t, 1, int(testutil.ToFloat64(metrics.MissesTotal)))
	})

	t.Run("expired entry is evicted on access", func(t *testing.T) {
		var evicted []evictedEntry
		cache, err := NewWithOpts[string, int](10, nil, Options[string, int]{
			OnEvicted: func(key string, value int, reason EvictReason) {
				evicted = append(evicted, evictedEntry{key, value, reason})
			},
		})
		require.NoError(t, err)

		cache.AddWithTTL("a", 1, time.Millisecond*10)
		cache.Add("b", 2)
		time.Sleep(time.Millisecond * 20)

		_, found := cache.Get("a")
		require.False(t, found)
		_, found = cache.Get("b")
		require.True(t, found)
		require.Equal(t, []evictedEntry{{"a", 1, EvictReasonExpired}}, evicted)
	})

	t.Run("get or add", func(t *testing.T) {
		cache, err := New[string, int](10, nil)
		require.NoError(t, err)

		val, exists := cache.GetOrAdd("a", func() int { return 1 })
		require.False(t, exists)
		require.Equal(t, 1, val)

		val, exists = cache.GetOrAdd("a", func() int { return 2 })
		require.True(t, exists)
		require.Equal(t, 1, val)
	})

	t.Run("periodic cleanup", func(t *testing.T) {
		cache, err := NewWithOpts[string, int](10, nil, Options[string, int]{DefaultTTL: time.Millisecond * 10})
		require.NoError(t, err)
		cache.Add("a", 1)
		cache.AddWithTTL("b", 2, 0)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go cache.RunPeriodicCleanup(ctx, time.Millisecond*5)

		require.Eventually(t, func() bool { return cache.Len() == 1 }, time.Second, time.Millisecond*5)
		_, found := cache.Get("b")
		require.True(t, found)
	})
}
