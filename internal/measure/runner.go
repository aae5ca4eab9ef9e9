package measure

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/nao1215/ipfsprobe/internal/dataset"
	"github.com/nao1215/ipfsprobe/internal/gateway"
	"github.com/nao1215/ipfsprobe/internal/log"
	"github.com/nao1215/ipfsprobe/internal/metrics"
	"github.com/nao1215/ipfsprobe/internal/model"
	"github.com/nao1215/ipfsprobe/internal/pipeline"
	"github.com/nao1215/ipfsprobe/internal/prober"
	"github.com/nao1215/ipfsprobe/internal/retry"
)

// Run status labels reported to metrics.
const (
	StatusOK       = "ok"
	StatusFailed   = "failed"
	StatusReplayed = "replayed"
)

// Job describes one measurement.
type Job struct {
	// Dataset names the dataset in output paths and the database.
	Dataset string

	// File is the dataset CSV.
	File string

	// Label names the measurement series.
	Label string

	// SampleSize is the number of rows to probe. Zero means every row.
	SampleSize int

	// Seed seeds sampling and retry jitter.
	Seed int64
}

// Runner performs single measurements. It is safe for sequential reuse;
// every Run builds fresh probers and a fresh tally.
type Runner struct {
	gateway         gateway.Gateway
	exporter        pipeline.Exporter
	store           pipeline.Store
	metrics         *metrics.Metrics
	logger          *slog.Logger
	clock           clock.Clock
	itemConcurrency int
	peerConcurrency int
	maxJitter       time.Duration
	proberOpts      []prober.Option
	readOpts        []dataset.ReadOption
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithExporter writes the result files of every run with e.
func WithExporter(e pipeline.Exporter) RunnerOption {
	return func(r *Runner) {
		r.exporter = e
	}
}

// WithStore saves every finished run in s.
func WithStore(s pipeline.Store) RunnerOption {
	return func(r *Runner) {
		r.store = s
	}
}

// WithMetrics records items, peers and run outcomes in m.
func WithMetrics(m *metrics.Metrics) RunnerOption {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithClock sets the clock used to stamp runs.
func WithClock(c clock.Clock) RunnerOption {
	return func(r *Runner) {
		r.clock = c
	}
}

// WithConcurrency sets the stage-1 and stage-2 pool sizes. Non-positive
// values keep the defaults.
func WithConcurrency(items, peers int) RunnerOption {
	return func(r *Runner) {
		if items > 0 {
			r.itemConcurrency = items
		}
		if peers > 0 {
			r.peerConcurrency = peers
		}
	}
}

// WithMaxJitter sets the upper bound of the sleep before daemon lookups.
func WithMaxJitter(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.maxJitter = d
	}
}

// WithProberOptions passes opts to both probers.
func WithProberOptions(opts ...prober.Option) RunnerOption {
	return func(r *Runner) {
		r.proberOpts = append(r.proberOpts, opts...)
	}
}

// WithReadOptions passes opts to the dataset reader.
func WithReadOptions(opts ...dataset.ReadOption) RunnerOption {
	return func(r *Runner) {
		r.readOpts = append(r.readOpts, opts...)
	}
}

// NewRunner creates a Runner that probes through gw.
func NewRunner(gw gateway.Gateway, opts ...RunnerOption) *Runner {
	r := &Runner{
		gateway:         gw,
		clock:           clock.New(),
		itemConcurrency: pipeline.DefaultItemConcurrency,
		peerConcurrency: pipeline.DefaultPeerConcurrency,
		maxJitter:       retry.DefaultMaxJitter,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Run performs job. It returns the run state even when a step failed, so
// callers can report what was measured before the failure.
func (r *Runner) Run(ctx context.Context, job Job) (*pipeline.Run, error) {
	m := model.NewMeasurement(job.Dataset, job.Label, job.Seed, job.SampleSize)
	m.StartedAt = r.clock.Now()
	run := pipeline.NewRun(m)

	ctx = log.WithAttrs(ctx, "dataset", job.Dataset, "label", job.Label, "seed", job.Seed)

	p := r.build(job)
	r.logger.InfoContext(ctx, "starting measurement",
		"file", job.File,
		"sample_size", job.SampleSize,
		"steps", p.StepNames(),
	)

	if err := p.Execute(ctx, run); err != nil {
		r.metrics.ObserveRun(StatusFailed)
		return run, fmt.Errorf("measurement of %s failed: %w", job.Dataset, err)
	}
	r.metrics.ObserveRun(StatusOK)

	s := m.Summarize()
	r.logger.InfoContext(ctx, "measurement finished",
		"items", s.Items,
		"items_with_providers", s.ItemsWithProviders,
		"website_reachable", s.WebsiteReachable,
		"providers", s.DistinctProviders,
		"reachable_providers", s.ReachableProviders,
		"elapsed", m.Duration(),
	)
	return run, nil
}

func (r *Runner) build(job Job) *pipeline.Pipeline {
	policy := retry.NewPolicy(job.Seed, retry.WithMaxJitter(r.maxJitter))
	proberOpts := append([]prober.Option{prober.WithLogger(r.logger)}, r.proberOpts...)
	stageOpts := []pipeline.StageOption{
		pipeline.WithStageMetrics(r.metrics),
		pipeline.WithStageLogger(r.logger),
		pipeline.WithStageClock(r.clock.Now),
	}

	p := pipeline.New(pipeline.WithLogger(r.logger))
	p.AddSteps(
		pipeline.NewLoadStep(job.File, r.logger, r.readOpts...),
		pipeline.NewSampleStep(r.logger),
		pipeline.NewItemProbeStep(prober.NewItemProber(r.gateway, policy, proberOpts...),
			append(stageOpts, pipeline.WithStageConcurrency(r.itemConcurrency))...),
		pipeline.NewPeerProbeStep(prober.NewPeerProber(r.gateway, policy, proberOpts...),
			append(stageOpts, pipeline.WithStageConcurrency(r.peerConcurrency))...),
	)
	if r.exporter != nil {
		p.AddStep(pipeline.NewExportStep(r.exporter, r.logger))
	}
	if r.store != nil {
		p.AddStep(pipeline.NewPersistStep(r.store, r.logger))
	}
	return p
}
