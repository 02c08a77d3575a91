// Package device restarts the streamer when it cannot continue, either
// because the pipeline hit a fatal error or because a client asked for it.
package device

import (
	"os"

	"github.com/bryanchriswhite/CamStreamer/internal/logger"
)

// Restarter brings the device back to a clean state. On success Restart
// does not return.
type Restarter interface {
	Restart(reason string)
}

// RestartFunc adapts a function to Restarter
type RestartFunc func(reason string)

// Restart calls f(reason)
func (f RestartFunc) Restart(reason string) {
	f(reason)
}

// Process restarts by replacing the running process image with a fresh
// copy of itself. Where that is not possible it exits non-zero and relies
// on the supervisor (systemd, docker) to start it again.
type Process struct{}

// Restart re-executes the binary with the original arguments
func (Process) Restart(reason string) {
	log := logger.WithComponent("device")
	log.Warn().Str("reason", reason).Msg("Restarting")

	if err := reexec(); err != nil {
		log.Error().Err(err).Msg("Re-exec failed, exiting")
	}
	os.Exit(1)
}
