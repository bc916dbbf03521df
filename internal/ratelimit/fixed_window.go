/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type fixedWindow struct {
	mu          sync.Mutex
	start       time.Time
	permitsUsed int
	duration    time.Duration
	retired     bool
}

// retire implements partitionState. A window with used permits stays in use until it ends.
func (w *fixedWindow) retire(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.permitsUsed > 0 && now.Before(w.start.Add(w.duration)) {
		return false
	}
	w.retired = true
	return true
}

// FixedWindowLimiter implements fixed window rate limiting algorithm.
// Each partition has a counter of used permits that is reset when the window ends.
// The reset is evaluated lazily by the first call after the window end, no background timers are used.
type FixedWindowLimiter struct {
	maxRate   Rate
	getWindow func(key string) *fixedWindow
	now       func() time.Time
}

// NewFixedWindowLimiter creates a new fixed window rate limiter.
// If maxKeys is 0, all keys share the single window. Otherwise, windows are kept in LRU cache with maxKeys capacity.
func NewFixedWindowLimiter(maxRate Rate, maxKeys int) (*FixedWindowLimiter, error) {
	if err := maxRate.validate(); err != nil {
		return nil, err
	}
	if maxKeys < 0 {
		return nil, fmt.Errorf("max keys should not be negative, got %d", maxKeys)
	}

	if maxKeys == 0 {
		win := &fixedWindow{duration: maxRate.Duration}
		return &FixedWindowLimiter{
			maxRate:   maxRate,
			getWindow: func(_ string) *fixedWindow { return win },
			now:       time.Now,
		}, nil
	}

	l := &FixedWindowLimiter{maxRate: maxRate, now: time.Now}
	store, err := newPartitionStore(maxKeys, func() *fixedWindow {
		return &fixedWindow{duration: maxRate.Duration}
	})
	if err != nil {
		return nil, err
	}
	store.now = func() time.Time { return l.now() }
	l.getWindow = store.get
	return l, nil
}

// Allow checks if the request should be allowed based on the rate limit.
// If not, retryAfter is the time remaining until the current window ends.
func (l *FixedWindowLimiter) Allow(_ context.Context, key string) (allow bool, retryAfter time.Duration, err error) {
	win := l.getWindow(key)
	win.mu.Lock()
	for win.retired {
		win.mu.Unlock()
		win = l.getWindow(key)
		win.mu.Lock()
	}
	defer win.mu.Unlock()

	now := l.now()
	if win.start.IsZero() || !now.Before(win.start.Add(l.maxRate.Duration)) {
		win.start = now
		win.permitsUsed = 0
	}
	if win.permitsUsed < l.maxRate.Count {
		win.permitsUsed++
		return true, 0, nil
	}
	return false, win.start.Add(l.maxRate.Duration).Sub(now), nil
}
