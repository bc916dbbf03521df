/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package lrucache provides in-memory cache with LRU eviction policy, expiration mechanism, and Prometheus metrics.
// It backs both the per-partition rate limiting state and the output cache entries of the service.
package lrucache
