/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package service runs the units of the application until a shutdown signal is received.
package service

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/acronis/go-appkit-demo/log"
)

// Service starts the unit, registers its metrics and stops it gracefully by OS signal or context cancellation.
type Service struct {
	Unit            Unit
	Signals         chan os.Signal
	ShutdownSignals []os.Signal
	Logger          log.FieldLogger
}

// New creates a new Service which stops the unit on SIGINT or SIGTERM.
func New(logger log.FieldLogger, unit Unit) *Service {
	return &Service{
		Unit:            unit,
		Signals:         make(chan os.Signal, 1),
		ShutdownSignals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		Logger:          logger,
	}
}

// Start wraps StartContext using the background context.
func (s *Service) Start() error {
	return s.StartContext(context.Background())
}

// StartContext starts the unit in a separate goroutine and blocks
// until a fatal error occurs, ctx is done or a shutdown signal is received.
func (s *Service) StartContext(ctx context.Context) error {
	if mr, ok := s.Unit.(MetricsRegisterer); ok {
		mr.MustRegisterMetrics()
		defer mr.UnregisterMetrics()
	}

	fatalErr := make(chan error, 1)
	go s.Unit.Start(fatalErr)

	signal.Notify(s.Signals, s.ShutdownSignals...)
	defer signal.Stop(s.Signals)

	select {
	case err := <-fatalErr:
		s.Logger.Error("service fatal error", log.Error(err))
		return fmt.Errorf("fatal error: %w", err)
	case <-ctx.Done():
		s.Logger.Info("context is canceled, service will be stopped")
	case sig := <-s.Signals:
		s.Logger.Info("service got signal", log.String("signal", sig.String()))
	}

	if err := s.Unit.Stop(true); err != nil {
		return fmt.Errorf("stop service gracefully: %w", err)
	}
	return nil
}
