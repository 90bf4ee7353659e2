// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

//go:build !windows

package daemon

import (
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/ImaSet/laptop-smart-power-manager/pkg/logger"
)

// setupDebugSignalHandlers sets up debug signal handlers (SIGUSR1, SIGUSR2)
// SIGUSR1: Dump current monitoring state
// SIGUSR2: Dump goroutine stack traces
//
// Usage:
//
//	kill -USR1 <pid>  # Dump monitoring state
//	kill -USR2 <pid>  # Dump goroutine stack traces
//
// The returned function releases the handlers again.
func (d *Daemon) setupDebugSignalHandlers() func() {
	debugSigChan := make(chan os.Signal, 2) // Buffer for 2 signals
	signal.Notify(debugSigChan, syscall.SIGUSR1, syscall.SIGUSR2)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for sig := range debugSigChan {
			switch sig {
			case syscall.SIGUSR1:
				d.dumpState()
			case syscall.SIGUSR2:
				dumpGoroutineStackTraces()
			}
		}
	}()

	return func() {
		signal.Stop(debugSigChan)
		close(debugSigChan)
		<-done
	}
}

// dumpState logs a snapshot of the monitoring state.
func (d *Daemon) dumpState() {
	logger.Info().Msg("=== MONITORING STATE DUMP (SIGUSR1) ===")

	logger.Info().
		Str("state", d.controller.State().String()).
		Bool("connection_lost", d.controller.ConnectionLost()).
		Bool("running", d.controller.IsRunning()).
		Msg("Controller state")

	logger.Info().
		Bool("alerting_enabled", d.alerter.IsEnabled()).
		Bool("metrics_server", d.server != nil).
		Msg("Daemon wiring")

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	logger.Info().
		Uint64("alloc_mb", m.Alloc/1024/1024).
		Uint64("total_alloc_mb", m.TotalAlloc/1024/1024).
		Uint32("num_gc", m.NumGC).
		Int("num_goroutines", runtime.NumGoroutine()).
		Msg("Runtime statistics")

	logger.Info().Msg("=== END STATE DUMP ===")
}

// dumpGoroutineStackTraces dumps all goroutine stack traces to logs
func dumpGoroutineStackTraces() {
	logger.Info().Msg("=== GOROUTINE STACK TRACES (SIGUSR2) ===")
	logger.Info().Int("num_goroutines", runtime.NumGoroutine()).Msg("Current goroutine count")

	buf := make([]byte, 1024*1024) // 1MB buffer
	stackLen := runtime.Stack(buf, true)
	logger.Info().Str("stack_traces", string(buf[:stackLen])).Msg("Full stack trace")

	logger.Info().Msg("=== END STACK TRACES ===")
}
