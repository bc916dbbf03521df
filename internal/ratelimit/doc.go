/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package ratelimit admits or rejects requests under a per-partition quota.
//
// The default algorithm is a fixed window: every partition has a permit counter
// that is reset lazily by the first request after the window end.
// Sliding window and leaky bucket (GCRA) algorithms are available as well.
//
// RequestProcessor puts excess requests into a bounded per-partition queue that is
// processed strictly oldest-first. A queued request waits until a permit is granted to it,
// until the queue timeout elapses (then it's rejected), or until its context is canceled.
// Rejections carry an estimated time after which the client may retry.
//
// All state is kept in memory and is lost on restart.
package ratelimit
