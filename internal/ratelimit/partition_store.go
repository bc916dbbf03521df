/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/acronis/go-appkit-demo/lrucache"
)

// partitionState is a per-partition state that may be still in use when it's evicted from the LRU cache.
type partitionState interface {
	// retire marks the state as no longer reachable by its partition key and reports true,
	// or reports false and leaves the state untouched if it's still in use at the moment now.
	retire(now time.Time) bool
}

// partitionStore keeps per-partition states in the LRU cache with limited capacity.
// A state evicted while still in use (non-empty queue, live window) is kept aside
// and returned for its key again, so eviction never resets the partition.
// Such states are bounded by the number of partitions that are in use at the same time.
type partitionStore[V partitionState] struct {
	mu       sync.Mutex
	lru      *lrucache.LRUCache[string, V]
	pinned   map[string]V
	newState func() V
	now      func() time.Time
}

func newPartitionStore[V partitionState](maxKeys int, newState func() V) (*partitionStore[V], error) {
	s := &partitionStore[V]{pinned: make(map[string]V), newState: newState, now: time.Now}
	lru, err := lrucache.NewWithOpts[string, V](maxKeys, nil, lrucache.Options[string, V]{
		OnEvicted: s.onEvicted,
	})
	if err != nil {
		return nil, fmt.Errorf("new LRU in-memory store for keys: %w", err)
	}
	s.lru = lru
	return s, nil
}

// get returns the state for the key. A retired state is never returned.
func (s *partitionStore[V]) get(key string) V {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pinned) != 0 {
		now := s.now()
		for k, v := range s.pinned {
			if k != key && v.retire(now) {
				delete(s.pinned, k)
			}
		}
		if v, ok := s.pinned[key]; ok {
			delete(s.pinned, key)
			s.lru.Add(key, v)
			return v
		}
	}
	v, _ := s.lru.GetOrAdd(key, s.newState)
	return v
}

// pinnedLen returns the number of states evicted from the LRU cache while in use.
func (s *partitionStore[V]) pinnedLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pinned)
}

// onEvicted is called by the LRU cache, s.mu is always held at this point.
func (s *partitionStore[V]) onEvicted(key string, value V, _ lrucache.EvictReason) {
	if !value.retire(s.now()) {
		s.pinned[key] = value
	}
}
