/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package outputcache

import "fmt"

// EvictionError is returned when eviction by tag could not be confirmed in time.
// The eviction itself is not rolled back and completes in the background.
type EvictionError struct {
	Tag string
	Err error
}

func (e *EvictionError) Error() string {
	return fmt.Sprintf("evict cache entries by tag %q: %v", e.Tag, e.Err)
}

func (e *EvictionError) Unwrap() error {
	return e.Err
}
