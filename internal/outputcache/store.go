/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package outputcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/acronis/go-appkit-demo/lrucache"
)

// StoreOpts represents options for the Store.
type StoreOpts struct {
	// CacheMetrics collects metrics of the underlying LRU cache. May be nil.
	CacheMetrics lrucache.MetricsCollector

	// Metrics collects tag eviction metrics. May be nil.
	Metrics MetricsCollector
}

// Store keeps cached responses and the index of their tags.
// A single mutex guards both, so the index is always consistent with the entries.
type Store struct {
	mu      sync.Mutex
	entries *lrucache.LRUCache[string, *Entry]
	tags    *TagIndex
	gens    map[string]uint64 // tag -> number of evictions by this tag
	metrics MetricsCollector
	now     func() time.Time
}

// NewStore creates a new Store that holds up to maxEntries responses.
func NewStore(maxEntries int, opts StoreOpts) (*Store, error) {
	s := &Store{tags: NewTagIndex(), gens: make(map[string]uint64), metrics: opts.Metrics, now: time.Now}
	if s.metrics == nil {
		s.metrics = disabledMetrics{}
	}
	entries, err := lrucache.NewWithOpts[string, *Entry](maxEntries, opts.CacheMetrics, lrucache.Options[string, *Entry]{
		OnEvicted: func(key string, _ *Entry, _ lrucache.EvictReason) {
			s.tags.RemoveKey(key) // Called under s.mu since every cache call is made with it held.
		},
	})
	if err != nil {
		return nil, fmt.Errorf("new LRU cache: %w", err)
	}
	s.entries = entries
	return s, nil
}

// Lookup returns a copy of the entry stored by the key.
// Expired entries are never returned.
func (s *Store) Lookup(key string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries.Get(key)
	if !ok {
		return nil, false
	}
	return entry.clone(), true
}

// WriteToken remembers the state of tags at the moment a response started to be produced.
// It's obtained by Store.Begin and consumed by Store.Commit.
type WriteToken struct {
	tags []string
	gens []uint64
}

// Begin returns a token that should be taken before producing the response that will be cached with tags.
func (s *Store) Begin(tags []string) WriteToken {
	token := WriteToken{tags: append([]string(nil), tags...), gens: make([]uint64, len(tags))}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, tag := range token.tags {
		token.gens[i] = s.gens[tag]
	}
	return token
}

// Commit saves the entry under the key with the token's tags, but only if none of the tags
// was evicted since the token was taken. Otherwise, the entry may be stale and it's dropped.
// Commit reports whether the entry was stored.
func (s *Store) Commit(token WriteToken, key string, entry *Entry) bool {
	return s.store(key, token.tags, entry, token.gens)
}

// Store saves the entry under the key replacing the previous one and its tags.
// Entry's ExpiresAt defines the TTL, an entry that is already expired is not stored.
func (s *Store) Store(key string, tags []string, entry *Entry) {
	s.store(key, tags, entry, nil)
}

func (s *Store) store(key string, tags []string, entry *Entry, gens []uint64) bool {
	now := s.now()
	var ttl time.Duration
	if !entry.ExpiresAt.IsZero() {
		if ttl = entry.ExpiresAt.Sub(now); ttl <= 0 {
			return false
		}
	}

	stored := entry.clone()
	stored.Key = key
	stored.Tags = append([]string(nil), tags...)
	if stored.StoredAt.IsZero() {
		stored.StoredAt = now
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, gen := range gens {
		if s.gens[tags[i]] != gen {
			return false
		}
	}
	s.entries.AddWithTTL(key, stored, ttl)
	s.tags.Set(key, stored.Tags)
	return true
}

// Remove removes the entry stored by the key.
func (s *Store) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tags.RemoveKey(key)
	return s.entries.Remove(key)
}

// EvictByTag removes all entries associated with the tag and returns their number.
// Unknown tag is not an error.
// The call waits for the eviction to complete. If ctx is done earlier, *EvictionError is returned,
// but the eviction is still carried out.
func (s *Store) EvictByTag(ctx context.Context, tag string) (int, error) {
	done := make(chan int, 1)
	go func() {
		done <- s.evictByTag(tag)
	}()
	select {
	case n := <-done:
		return n, nil
	case <-ctx.Done():
		return 0, &EvictionError{Tag: tag, Err: ctx.Err()}
	}
}

func (s *Store) evictByTag(tag string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gens[tag]++
	keys := s.tags.Keys(tag)
	for _, key := range keys {
		s.entries.Remove(key)
		s.tags.RemoveKey(key)
	}
	s.metrics.AddTagEvictions(tag, len(keys))
	return len(keys)
}

// Len returns the number of stored entries (including not yet cleaned up expired ones).
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Len()
}

// Tags returns all tags that have at least one entry.
func (s *Store) Tags() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tags.Tags()
}

// RemoveExpired removes all expired entries and returns their number.
func (s *Store) RemoveExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.RemoveExpired()
}
