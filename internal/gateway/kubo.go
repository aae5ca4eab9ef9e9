package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
)

// Default per-call limits.
const (
	// DefaultFetchTimeout bounds one website fetch.
	DefaultFetchTimeout = 10 * time.Second

	// DefaultCallTimeout bounds one daemon lookup.
	DefaultCallTimeout = 15 * time.Second

	// DefaultMaxBodySize bounds how much of a website response is read.
	DefaultMaxBodySize = 2 * 1024 * 1024

	// DefaultBinary is the kubo command line client.
	DefaultBinary = "ipfs"

	// DefaultUserAgent is sent with website fetches.
	DefaultUserAgent = "ipfsprobe/1.0 (+https://github.com/nao1215/ipfsprobe)"
)

// Kubo implements Gateway and NameResolver on top of net/http and the kubo
// command line client talking to a local daemon.
type Kubo struct {
	httpClient   *http.Client
	runner       CommandRunner
	binary       string
	fetchTimeout time.Duration
	callTimeout  time.Duration
	maxBodySize  int64
	userAgent    string
	logger       *slog.Logger
}

// KuboOption configures a Kubo gateway.
type KuboOption func(*Kubo)

// WithHTTPClient sets the client used for website fetches.
func WithHTTPClient(c *http.Client) KuboOption {
	return func(k *Kubo) {
		k.httpClient = c
	}
}

// WithCommandRunner sets how daemon commands are executed.
func WithCommandRunner(r CommandRunner) KuboOption {
	return func(k *Kubo) {
		k.runner = r
	}
}

// WithBinary sets the path of the kubo command line client.
func WithBinary(path string) KuboOption {
	return func(k *Kubo) {
		if path != "" {
			k.binary = path
		}
	}
}

// WithFetchTimeout sets the per-call website fetch timeout.
func WithFetchTimeout(d time.Duration) KuboOption {
	return func(k *Kubo) {
		if d > 0 {
			k.fetchTimeout = d
		}
	}
}

// WithCallTimeout sets the per-call daemon lookup timeout.
func WithCallTimeout(d time.Duration) KuboOption {
	return func(k *Kubo) {
		if d > 0 {
			k.callTimeout = d
		}
	}
}

// WithMaxBodySize limits how many bytes of a website response are read.
func WithMaxBodySize(n int64) KuboOption {
	return func(k *Kubo) {
		if n > 0 {
			k.maxBodySize = n
		}
	}
}

// WithUserAgent sets the User-Agent header of website fetches.
func WithUserAgent(ua string) KuboOption {
	return func(k *Kubo) {
		if ua != "" {
			k.userAgent = ua
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) KuboOption {
	return func(k *Kubo) {
		k.logger = logger
	}
}

// NewKubo creates a Kubo gateway.
func NewKubo(opts ...KuboOption) *Kubo {
	k := &Kubo{
		httpClient:   &http.Client{},
		runner:       ExecRunner{},
		binary:       DefaultBinary,
		fetchTimeout: DefaultFetchTimeout,
		callTimeout:  DefaultCallTimeout,
		maxBodySize:  DefaultMaxBodySize,
		userAgent:    DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.logger == nil {
		k.logger = slog.Default()
	}
	return k
}

// Fetch implements Gateway.
func (k *Kubo) Fetch(ctx context.Context, url string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, k.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", k.userAgent)

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, k.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// FindProviders implements Gateway. If the lookup hits the call timeout
// after printing some providers, those providers are returned without an
// error: a truncated list is still a useful answer.
func (k *Kubo) FindProviders(ctx context.Context, c string) ([]string, error) {
	callCtx, cancel := context.WithTimeout(ctx, k.callTimeout)
	defer cancel()

	out, err := k.runner.Run(callCtx, k.binary, "routing", "findprovs", c)
	if err != nil {
		if timedOut(ctx, callCtx) {
			if partial := ParseProviderLines(string(out)); len(partial) > 0 {
				k.logger.Debug("provider lookup timed out, using partial output",
					"cid", c,
					"providers", len(partial),
				)
				return partial, nil
			}
			return nil, fmt.Errorf("%w: findprovs %s timed out after %s", ErrLookupFailed, c, k.callTimeout)
		}
		return nil, fmt.Errorf("%w: findprovs %s: %s", ErrLookupFailed, c, describe(err))
	}

	return ParseProviderLines(string(out)), nil
}

// FindPeerAddress implements Gateway.
func (k *Kubo) FindPeerAddress(ctx context.Context, peerID string) ([]string, error) {
	callCtx, cancel := context.WithTimeout(ctx, k.callTimeout)
	defer cancel()

	out, err := k.runner.Run(callCtx, k.binary, "routing", "findpeer", peerID)
	if err != nil {
		if timedOut(ctx, callCtx) {
			return nil, fmt.Errorf("%w: findpeer %s timed out after %s", ErrLookupFailed, peerID, k.callTimeout)
		}
		return nil, fmt.Errorf("%w: findpeer %s: %s", ErrLookupFailed, peerID, describe(err))
	}

	return nonBlankLines(string(out)), nil
}

// ResolveName implements NameResolver. name is an IPNS name without the
// /ipns/ prefix, such as "en.wikipedia-on-ipfs.org/wiki/Go".
func (k *Kubo) ResolveName(ctx context.Context, name string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, k.callTimeout)
	defer cancel()

	out, err := k.runner.Run(callCtx, k.binary, "resolve", "-r", "/ipns/"+strings.TrimPrefix(name, "/ipns/"))
	if err != nil {
		return "", fmt.Errorf("%w: resolve %s: %s", ErrLookupFailed, name, describe(err))
	}

	resolved := strings.TrimPrefix(strings.TrimSpace(string(out)), "/ipfs/")
	// A path below the root CID is not a CID on its own.
	root, _, _ := strings.Cut(resolved, "/")
	if _, err := cid.Decode(root); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidCID, resolved)
	}
	return resolved, nil
}

// timedOut reports whether callCtx expired on its own deadline while the
// parent context is still live.
func timedOut(parent, callCtx context.Context) bool {
	return errors.Is(callCtx.Err(), context.DeadlineExceeded) && parent.Err() == nil
}

// describe renders a command error, including stderr when available.
func describe(err error) string {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if stderr := strings.TrimSpace(string(exitErr.Stderr)); stderr != "" {
			return fmt.Sprintf("%v: %s", err, stderr)
		}
	}
	return err.Error()
}

func nonBlankLines(output string) []string {
	lines := make([]string, 0)
	for _, line := range strings.Split(output, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
