package measure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/nao1215/ipfsprobe/internal/dataset"
	"github.com/nao1215/ipfsprobe/internal/metrics"
	"github.com/nao1215/ipfsprobe/internal/pipeline"
)

// DefaultMaxReplays bounds how often one dataset is replayed after daemon
// crashes within one iteration.
const DefaultMaxReplays = 3

// JobRunner performs one measurement. *Runner implements it.
type JobRunner interface {
	Run(ctx context.Context, job Job) (*pipeline.Run, error)
}

// DaemonController checks and starts the IPFS daemon. *gateway.Daemon
// implements it.
type DaemonController interface {
	IsRunning(ctx context.Context) bool
	Start(ctx context.Context) error
}

// Dataset is one dataset measured by the Monitor.
type Dataset struct {
	Name string
	File string

	// SampleSize fixes the sample size. When zero, SamplePercentage of the
	// dataset's rows is sampled instead.
	SampleSize int

	// SamplePercentage overrides the monitor's sample percentage.
	SamplePercentage float64
}

// Stats counts what a Monitor did.
type Stats struct {
	Iterations int
	Runs       int
	Failures   int
	Replays    int
}

// Monitor repeats measurements over a list of datasets.
type Monitor struct {
	runner           JobRunner
	daemon           DaemonController
	datasets         []Dataset
	label            string
	baseSeed         int64
	interval         time.Duration
	maxIterations    int
	maxReplays       int
	samplePercentage float64
	countRows        func(path string) (int, error)
	metrics          *metrics.Metrics
	clock            clock.Clock
	logger           *slog.Logger
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithDaemon checks the daemon after every run and restarts it when it is
// down. Without a controller, crashes are not detected.
func WithDaemon(d DaemonController) MonitorOption {
	return func(m *Monitor) {
		m.daemon = d
	}
}

// WithLabel sets the label of every run.
func WithLabel(label string) MonitorOption {
	return func(m *Monitor) {
		m.label = label
	}
}

// WithBaseSeed sets the seed of the first iteration. Iteration i uses
// base + i.
func WithBaseSeed(seed int64) MonitorOption {
	return func(m *Monitor) {
		m.baseSeed = seed
	}
}

// WithInterval sets the time between iteration starts.
func WithInterval(d time.Duration) MonitorOption {
	return func(m *Monitor) {
		m.interval = d
	}
}

// WithMaxIterations stops the monitor after n iterations. Zero runs until
// the context is cancelled.
func WithMaxIterations(n int) MonitorOption {
	return func(m *Monitor) {
		m.maxIterations = n
	}
}

// WithMaxReplays bounds the replays of one dataset per iteration.
func WithMaxReplays(n int) MonitorOption {
	return func(m *Monitor) {
		m.maxReplays = n
	}
}

// WithSamplePercentage sets the sampled share for datasets without a
// sample size of their own.
func WithSamplePercentage(p float64) MonitorOption {
	return func(m *Monitor) {
		m.samplePercentage = p
	}
}

// WithRowCounter replaces the function that counts the usable rows of a
// dataset file.
func WithRowCounter(fn func(path string) (int, error)) MonitorOption {
	return func(m *Monitor) {
		m.countRows = fn
	}
}

// WithMonitorMetrics records replays in mt.
func WithMonitorMetrics(mt *metrics.Metrics) MonitorOption {
	return func(m *Monitor) {
		m.metrics = mt
	}
}

// WithMonitorClock sets the clock that paces iterations.
func WithMonitorClock(c clock.Clock) MonitorOption {
	return func(m *Monitor) {
		m.clock = c
	}
}

// WithMonitorLogger sets the logger.
func WithMonitorLogger(logger *slog.Logger) MonitorOption {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// NewMonitor creates a Monitor measuring datasets with runner.
func NewMonitor(runner JobRunner, datasets []Dataset, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		runner:     runner,
		datasets:   datasets,
		interval:   time.Hour,
		maxReplays: DefaultMaxReplays,
		clock:      clock.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.countRows == nil {
		quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
		m.countRows = func(path string) (int, error) {
			rows, err := dataset.ReadFile(path, dataset.WithLogger(quiet))
			return len(rows), err
		}
	}
	return m
}

// Run measures every dataset once per iteration until ctx is cancelled or
// the iteration limit is reached. Sample sizes are fixed before the first
// iteration. Cancellation is a normal way to stop and is not reported as an
// error.
func (m *Monitor) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	jobs, err := m.jobs()
	if err != nil {
		return stats, err
	}

	if m.daemon != nil && !m.daemon.IsRunning(ctx) {
		m.logger.Warn("IPFS daemon is not running, starting it")
		if err := m.daemon.Start(ctx); err != nil {
			return stats, fmt.Errorf("failed to start IPFS daemon: %w", err)
		}
	}

	for iteration := 0; m.maxIterations == 0 || iteration < m.maxIterations; iteration++ {
		if ctx.Err() != nil {
			break
		}

		start := m.clock.Now()
		seed := m.baseSeed + int64(iteration)
		m.logger.Info("starting iteration", "iteration", iteration+1, "seed", seed)

		for _, job := range jobs {
			if ctx.Err() != nil {
				break
			}
			job.Seed = seed
			m.measure(ctx, job, &stats)
		}
		stats.Iterations++

		elapsed := m.clock.Since(start)
		m.logger.Info("iteration finished", "iteration", iteration+1, "elapsed", elapsed)

		if m.maxIterations != 0 && iteration+1 >= m.maxIterations {
			break
		}
		remaining := m.interval - elapsed
		if remaining <= 0 {
			m.logger.Info("next iteration starts immediately")
			continue
		}
		m.logger.Info("waiting for next iteration",
			"next_start", m.clock.Now().Add(remaining).Format(time.TimeOnly),
			"next_seed", seed+1,
		)
		if !m.wait(ctx, remaining) {
			break
		}
	}

	m.logger.Info("monitor stopped", "iterations", stats.Iterations, "runs", stats.Runs)
	return stats, nil
}

// measure runs job and, while the daemon is found dead afterwards,
// restarts it and replays the job with the same seed.
func (m *Monitor) measure(ctx context.Context, job Job, stats *Stats) {
	m.runOnce(ctx, job, stats)
	if m.daemon == nil {
		return
	}

	for replays := 0; ctx.Err() == nil && !m.daemon.IsRunning(ctx); replays++ {
		if replays >= m.maxReplays {
			m.logger.Error("IPFS daemon keeps crashing, giving up on dataset",
				"dataset", job.Dataset,
				"replays", replays,
			)
			return
		}
		m.logger.Warn("IPFS daemon has crashed, restarting it", "dataset", job.Dataset)
		if err := m.daemon.Start(ctx); err != nil {
			m.logger.Error("failed to restart IPFS daemon", "error", err)
		}
		m.logger.Warn("re-running measurement after daemon crash", "dataset", job.Dataset, "seed", job.Seed)
		stats.Replays++
		m.metrics.ObserveRun(StatusReplayed)
		m.runOnce(ctx, job, stats)
	}
}

func (m *Monitor) runOnce(ctx context.Context, job Job, stats *Stats) {
	stats.Runs++
	if _, err := m.runner.Run(ctx, job); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		stats.Failures++
		m.logger.Error("measurement failed", "dataset", job.Dataset, "error", err)
	}
}

func (m *Monitor) wait(ctx context.Context, d time.Duration) bool {
	timer := m.clock.Timer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (m *Monitor) jobs() ([]Job, error) {
	jobs := make([]Job, 0, len(m.datasets))
	for _, ds := range m.datasets {
		name := ds.Name
		if name == "" {
			name = dataset.Name(ds.File)
		}

		size := ds.SampleSize
		if size == 0 {
			pct := ds.SamplePercentage
			if pct == 0 {
				pct = m.samplePercentage
			}
			if pct > 0 {
				rows, err := m.countRows(ds.File)
				if err != nil {
					return nil, fmt.Errorf("failed to count rows of %s: %w", ds.File, err)
				}
				size = dataset.SizeFromPercentage(rows, pct)
			}
		}

		m.logger.Info("dataset scheduled", "dataset", name, "file", ds.File, "sample_size", size)
		jobs = append(jobs, Job{Dataset: name, File: ds.File, Label: m.label, SampleSize: size})
	}
	return jobs, nil
}
