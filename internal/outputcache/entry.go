/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package outputcache

import (
	"net/http"
	"time"
)

// Entry is a cached response.
type Entry struct {
	Key        string
	Tags       []string
	StatusCode int
	Header     http.Header
	Body       []byte
	StoredAt   time.Time
	ExpiresAt  time.Time // Zero value means the entry never expires.
}

// Age returns the time elapsed since the entry was stored.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

func (e *Entry) clone() *Entry {
	c := *e
	c.Tags = append([]string(nil), e.Tags...)
	c.Header = e.Header.Clone()
	c.Body = append([]byte(nil), e.Body...)
	return &c
}
