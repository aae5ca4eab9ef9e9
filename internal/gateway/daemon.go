package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"time"
)

// Defaults for the local IPFS daemon.
const (
	// DefaultAPIAddr is the kubo RPC API listen address.
	DefaultAPIAddr = "127.0.0.1:5001"

	// DefaultStartupWait bounds how long Start waits for the RPC API.
	DefaultStartupWait = 15 * time.Second

	defaultPollInterval = 500 * time.Millisecond
)

// Process is a started daemon process.
type Process interface {
	Stop() error
}

// StartFunc launches the daemon binary in the background.
type StartFunc func(binary string) (Process, error)

// Daemon checks, starts and stops the local IPFS daemon.
// A Daemon only stops a process it started itself.
type Daemon struct {
	apiAddr      string
	binary       string
	startupWait  time.Duration
	pollInterval time.Duration
	httpClient   *http.Client
	start        StartFunc
	logger       *slog.Logger

	mu      sync.Mutex
	process Process
}

// DaemonOption configures a Daemon.
type DaemonOption func(*Daemon)

// WithAPIAddr sets the RPC API address ("host:port").
func WithAPIAddr(addr string) DaemonOption {
	return func(d *Daemon) {
		if addr != "" {
			d.apiAddr = addr
		}
	}
}

// WithDaemonBinary sets the path of the kubo binary used by Start.
func WithDaemonBinary(path string) DaemonOption {
	return func(d *Daemon) {
		if path != "" {
			d.binary = path
		}
	}
}

// WithStartupWait sets the maximum time Start waits for the RPC API.
func WithStartupWait(wait time.Duration) DaemonOption {
	return func(d *Daemon) {
		if wait > 0 {
			d.startupWait = wait
		}
	}
}

// WithPollInterval sets how often Start checks whether the daemon is up.
func WithPollInterval(interval time.Duration) DaemonOption {
	return func(d *Daemon) {
		if interval > 0 {
			d.pollInterval = interval
		}
	}
}

// WithStartFunc replaces how the daemon process is launched.
func WithStartFunc(fn StartFunc) DaemonOption {
	return func(d *Daemon) {
		if fn != nil {
			d.start = fn
		}
	}
}

// WithDaemonHTTPClient sets the client used to reach the RPC API.
func WithDaemonHTTPClient(c *http.Client) DaemonOption {
	return func(d *Daemon) {
		if c != nil {
			d.httpClient = c
		}
	}
}

// WithDaemonLogger sets the logger.
func WithDaemonLogger(logger *slog.Logger) DaemonOption {
	return func(d *Daemon) {
		d.logger = logger
	}
}

// NewDaemon creates a Daemon. Nothing is started until Start is called.
func NewDaemon(opts ...DaemonOption) *Daemon {
	d := &Daemon{
		apiAddr:      DefaultAPIAddr,
		binary:       DefaultBinary,
		startupWait:  DefaultStartupWait,
		pollInterval: defaultPollInterval,
		httpClient:   &http.Client{Timeout: 5 * time.Second},
		start:        startExec,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Status queries the RPC API. kubo only accepts POST on /api/v0/*.
func (d *Daemon) Status(ctx context.Context) DaemonStatus {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+d.apiAddr+"/api/v0/id", nil)
	if err != nil {
		return DaemonStatusDown
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return DaemonStatusDown
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse

	if resp.StatusCode != http.StatusOK {
		return DaemonStatusUnhealthy
	}
	return DaemonStatusRunning
}

// IsRunning reports whether the daemon answers on its RPC API.
func (d *Daemon) IsRunning(ctx context.Context) bool {
	return d.Status(ctx) == DaemonStatusRunning
}

// Start launches the daemon and waits until its RPC API answers. It returns
// ErrDaemonStartTimeout if that takes longer than the startup wait.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.logger.Info("starting IPFS daemon", "binary", d.binary, "api", d.apiAddr)

	process, err := d.start(d.binary)
	if err != nil {
		return fmt.Errorf("failed to start IPFS daemon: %w", err)
	}
	d.process = process

	waitCtx, cancel := context.WithTimeout(ctx, d.startupWait)
	defer cancel()

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		if d.IsRunning(waitCtx) {
			d.logger.Info("IPFS daemon is ready")
			return nil
		}
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w after %s", ErrDaemonStartTimeout, d.startupWait)
		case <-ticker.C:
		}
	}
}

// EnsureRunning starts the daemon unless it is already running.
func (d *Daemon) EnsureRunning(ctx context.Context) error {
	if d.IsRunning(ctx) {
		d.logger.Info("IPFS daemon is already running")
		return nil
	}
	d.logger.Info("IPFS daemon is not running")
	return d.Start(ctx)
}

// Stop terminates the daemon process started by this Daemon, if any.
// It is safe to call multiple times.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.process == nil {
		return nil
	}
	err := d.process.Stop()
	d.process = nil
	return err
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan error
}

func startExec(binary string) (Process, error) {
	cmd := exec.Command(binary, "daemon") //nolint:gosec // binary is controlled by configuration
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	p := &execProcess{cmd: cmd, done: make(chan error, 1)}
	go func() {
		p.done <- cmd.Wait()
	}()
	return p, nil
}

func (p *execProcess) Stop() error {
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to stop IPFS daemon: %w", err)
	}
	<-p.done
	return nil
}
