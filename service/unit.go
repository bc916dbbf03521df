/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"strings"
	"sync"
)

// Unit is a component of the service with its own lifecycle (HTTP server, background worker, etc.).
type Unit interface {
	// Start runs the unit. It may block for the unit's lifetime.
	// A fatal error is sent to the channel, nothing is written there on success.
	Start(fatalErr chan<- error)

	// Stop halts the unit. It may be called even if Start has failed or was never called.
	Stop(gracefully bool) error
}

// MetricsRegisterer is an interface for objects that can register its own metrics.
type MetricsRegisterer interface {
	MustRegisterMetrics()
	UnregisterMetrics()
}

// CompositeUnit runs several units as one.
type CompositeUnit struct {
	Units []Unit
}

// NewCompositeUnit creates a new composite unit.
func NewCompositeUnit(units ...Unit) *CompositeUnit {
	return &CompositeUnit{units}
}

// Start starts all units concurrently and blocks until all Start calls return.
// If any unit fails, the rest are stopped non-gracefully and CompositeUnitError is sent to the channel.
func (cu *CompositeUnit) Start(fatalErr chan<- error) {
	errs := make(chan error, len(cu.Units))
	var wg sync.WaitGroup
	wg.Add(len(cu.Units))
	for _, u := range cu.Units {
		go func(u Unit) {
			defer wg.Done()
			unitErr := make(chan error, 1)
			u.Start(unitErr)
			select {
			case err := <-unitErr:
				errs <- err
				_ = cu.Stop(false) // Errors of stopping are not interesting when one of the units has already failed.
			default:
			}
		}(u)
	}
	wg.Wait()
	close(errs)

	var unitErrs []error
	for err := range errs {
		unitErrs = append(unitErrs, err)
	}
	if len(unitErrs) != 0 {
		fatalErr <- &CompositeUnitError{unitErrs}
	}
}

// Stop stops all units concurrently and collects their errors into CompositeUnitError.
func (cu *CompositeUnit) Stop(gracefully bool) error {
	errs := make(chan error, len(cu.Units))
	var wg sync.WaitGroup
	wg.Add(len(cu.Units))
	for _, u := range cu.Units {
		go func(u Unit) {
			defer wg.Done()
			if err := u.Stop(gracefully); err != nil {
				errs <- err
			}
		}(u)
	}
	wg.Wait()
	close(errs)

	var unitErrs []error
	for err := range errs {
		unitErrs = append(unitErrs, err)
	}
	if len(unitErrs) != 0 {
		return &CompositeUnitError{unitErrs}
	}
	return nil
}

// MustRegisterMetrics registers metrics of all units that have them.
func (cu *CompositeUnit) MustRegisterMetrics() {
	for _, u := range cu.Units {
		if mr, ok := u.(MetricsRegisterer); ok {
			mr.MustRegisterMetrics()
		}
	}
}

// UnregisterMetrics unregisters metrics of all units that have them.
func (cu *CompositeUnit) UnregisterMetrics() {
	for _, u := range cu.Units {
		if mr, ok := u.(MetricsRegisterer); ok {
			mr.UnregisterMetrics()
		}
	}
}

// CompositeUnitError is returned by CompositeUnit when one or more units fail.
type CompositeUnitError struct {
	UnitErrors []error
}

func (cue *CompositeUnitError) Error() string {
	msgs := make([]string, 0, len(cue.UnitErrors))
	for _, err := range cue.UnitErrors {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}
