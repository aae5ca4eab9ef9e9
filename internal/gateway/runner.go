package gateway

import (
	"context"
	"os/exec"
	"time"
)

// CommandRunner runs an external command and returns its standard output.
// When the command fails, the output produced so far is returned together
// with the error so that callers can salvage partial results.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec. The process is killed when ctx is
// done.
type ExecRunner struct {
	// WaitDelay bounds how long Run waits for I/O after the process was
	// killed. Zero uses one second.
	WaitDelay time.Duration
}

// Run implements CommandRunner.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // binary and arguments are controlled by configuration
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = time.Second
	}
	return cmd.Output()
}
