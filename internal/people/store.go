/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package people keeps the in-memory list of people served by the demo API.
package people

import (
	"errors"
	"strings"
	"sync"
)

// ErrInvalidPerson is returned when a person has an empty name.
var ErrInvalidPerson = errors.New("first name and last name cannot be empty")

// Person is a single record of the list.
type Person struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Validate checks that both names are present.
func (p Person) Validate() error {
	if strings.TrimSpace(p.FirstName) == "" || strings.TrimSpace(p.LastName) == "" {
		return ErrInvalidPerson
	}
	return nil
}

// Store is a concurrency-safe list of people. Data is lost on restart.
type Store struct {
	mu     sync.RWMutex
	people []Person
}

// NewStore creates a new Store with the initial list of people.
func NewStore(initial ...Person) *Store {
	return &Store{people: append([]Person(nil), initial...)}
}

// List returns a copy of all people in insertion order.
func (s *Store) List() []Person {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(make([]Person, 0, len(s.people)), s.people...)
}

// Add appends a person to the list.
func (s *Store) Add(p Person) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.people = append(s.people, p)
	return nil
}

// Len returns the number of people.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.people)
}
