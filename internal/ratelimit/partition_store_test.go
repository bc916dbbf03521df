/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testPartitionState struct {
	inUse   bool
	retired bool
}

func (s *testPartitionState) retire(time.Time) bool {
	if s.inUse {
		return false
	}
	s.retired = true
	return true
}

func TestPartitionStore(t *testing.T) {
	store, err := newPartitionStore(1, func() *testPartitionState { return &testPartitionState{} })
	require.NoError(t, err)

	busy := store.get("busy")
	busy.inUse = true

	idle := store.get("idle") // Evicts "busy" that is still in use.
	require.Equal(t, 1, store.pinnedLen())
	require.False(t, busy.retired)
	require.Same(t, busy, store.get("busy"))
	require.Zero(t, store.pinnedLen())

	// "idle" was evicted when "busy" returned to the LRU cache.
	require.True(t, idle.retired)
	require.NotSame(t, idle, store.get("idle"))

	// Pinned states are released once they're no longer in use.
	require.Equal(t, 1, store.pinnedLen())
	busy.inUse = false
	store.get("other")
	require.Zero(t, store.pinnedLen())
	require.True(t, busy.retired)
}
