/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-appkit-demo/log/logtest"
)

func TestService_Start(t *testing.T) {
	unit := newMockUnit()
	svc := New(logtest.NewRecorder(), unit)
	done := make(chan error, 1)
	go func() {
		done <- svc.Start()
	}()
	require.Eventually(t, func() bool { return unit.running.Load() == 1 }, time.Second*3, time.Millisecond*10)
	require.Equal(t, 1, unit.mustRegisterMetricsCall)

	svc.Signals <- os.Interrupt

	require.NoError(t, <-done)
	require.Eventually(t, func() bool { return unit.running.Load() == 0 }, time.Second*3, time.Millisecond*10)
	require.Equal(t, 1, unit.unregisterMetricsCall)
	require.Equal(t, 1, unit.stopGracefullyCalled)
}

func TestService_StartContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	unit := newMockUnit()
	svc := New(logtest.NewRecorder(), unit)
	done := make(chan error, 1)
	go func() {
		done <- svc.StartContext(ctx)
	}()
	require.Eventually(t, func() bool { return unit.running.Load() == 1 }, time.Second*3, time.Millisecond*10)

	cancel()

	require.NoError(t, <-done)
	require.Equal(t, 1, unit.stopGracefullyCalled)
}

func TestService_FatalError(t *testing.T) {
	unit := newMockUnit()
	unit.startErr = errors.New("address already in use")
	logger := logtest.NewRecorder()

	err := New(logger, unit).Start()
	require.ErrorIs(t, err, unit.startErr)
	_, found := logger.FindEntry("service fatal error")
	require.True(t, found)
}
