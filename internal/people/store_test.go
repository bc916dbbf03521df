/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package people

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	s := NewStore(Person{"Ada", "Lovelace"})
	require.Equal(t, []Person{{"Ada", "Lovelace"}}, s.List())

	require.NoError(t, s.Add(Person{"Alan", "Turing"}))
	require.Equal(t, []Person{{"Ada", "Lovelace"}, {"Alan", "Turing"}}, s.List())

	require.ErrorIs(t, s.Add(Person{FirstName: "Grace"}), ErrInvalidPerson)
	require.ErrorIs(t, s.Add(Person{FirstName: " ", LastName: "Hopper"}), ErrInvalidPerson)
	require.Equal(t, 2, s.Len())

	list := s.List()
	list[0].FirstName = "Changed"
	require.Equal(t, "Ada", s.List()[0].FirstName)
}

func TestStore_ConcurrentAdd(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			require.NoError(t, s.Add(Person{fmt.Sprintf("First%d", n), "Last"}))
			_ = s.List()
		}(i)
	}
	wg.Wait()
	require.Equal(t, 20, s.Len())
}
