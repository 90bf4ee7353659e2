// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

//go:build windows

package daemon

import (
	"github.com/ImaSet/laptop-smart-power-manager/pkg/logger"
)

// setupDebugSignalHandlers is a no-op on Windows as SIGUSR1/SIGUSR2 don't
// exist there. Debug information is available through the log file and the
// metrics endpoint instead.
func (d *Daemon) setupDebugSignalHandlers() func() {
	logger.Debug().Msg("Debug signal handlers not available on Windows")
	return func() {}
}
