/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package outputcache provides an in-memory store of rendered HTTP responses.
//
// Entries are kept in a bounded LRU cache and may expire by TTL. Every entry carries a set of tags,
// and all entries with a given tag can be evicted at once (e.g. after a write that makes them stale).
// Policies describe which tags and TTL are applied to the responses of a route and how cache keys are built.
package outputcache
