package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/ipfsprobe/internal/dataset"
	"github.com/nao1215/ipfsprobe/internal/metrics"
	"github.com/nao1215/ipfsprobe/internal/model"
	"github.com/nao1215/ipfsprobe/internal/prober"
	"github.com/nao1215/ipfsprobe/internal/tally"
)

// Default pool sizes of the two probing stages.
const (
	DefaultItemConcurrency = 32
	DefaultPeerConcurrency = 16
)

// ErrNoSample is returned by the probe steps when SampleStep has not run.
var ErrNoSample = errors.New("no sampled inputs")

// LoadStep reads the dataset file into Run.Rows.
type LoadStep struct {
	path     string
	readOpts []dataset.ReadOption
	logger   *slog.Logger
}

// NewLoadStep creates a step reading path. The read options are passed to
// dataset.ReadFile.
func NewLoadStep(path string, logger *slog.Logger, readOpts ...dataset.ReadOption) *LoadStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoadStep{path: path, readOpts: readOpts, logger: logger}
}

// Name returns the step name.
func (s *LoadStep) Name() string {
	return "load"
}

// Do executes the load step.
func (s *LoadStep) Do(_ context.Context, run *Run) error {
	rows, err := dataset.ReadFile(s.path, append([]dataset.ReadOption{dataset.WithLogger(s.logger)}, s.readOpts...)...)
	if err != nil {
		return err
	}
	run.Rows = rows
	run.Measurement.TotalRows = len(rows)
	s.logger.Debug("dataset loaded", "path", s.path, "rows", len(rows))
	return nil
}

// SampleStep draws the measurement's inputs from Run.Rows. The sample is
// determined by the measurement's seed and sample size alone, so a replayed
// run probes the same items.
type SampleStep struct {
	logger *slog.Logger
}

// NewSampleStep creates a sampling step.
func NewSampleStep(logger *slog.Logger) *SampleStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &SampleStep{logger: logger}
}

// Name returns the step name.
func (s *SampleStep) Name() string {
	return "sample"
}

// Do executes the sample step.
func (s *SampleStep) Do(_ context.Context, run *Run) error {
	m := run.Measurement
	inputs, err := dataset.Sample(run.Rows, m.SampleSize, dataset.NewRand(m.Seed))
	if err != nil {
		return fmt.Errorf("failed to sample %s: %w", m.Dataset, err)
	}
	m.Inputs = inputs
	s.logger.Info("sample drawn",
		"dataset", m.Dataset,
		"rows", len(run.Rows),
		"sample", len(inputs),
		"seed", m.Seed,
	)
	return nil
}

// StageOption configures the probe steps.
type StageOption func(*stage)

type stage struct {
	concurrency int
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
}

// WithStageConcurrency sets the pool size of a probe step.
func WithStageConcurrency(n int) StageOption {
	return func(s *stage) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithStageMetrics records every result in m.
func WithStageMetrics(m *metrics.Metrics) StageOption {
	return func(s *stage) {
		s.metrics = m
	}
}

// WithStageLogger sets the logger of a probe step and its pool.
func WithStageLogger(logger *slog.Logger) StageOption {
	return func(s *stage) {
		s.logger = logger
	}
}

// WithStageClock sets the time source used to stamp the end of a run.
func WithStageClock(now func() time.Time) StageOption {
	return func(s *stage) {
		s.now = now
	}
}

func newStage(concurrency int, opts []StageOption) stage {
	s := stage{concurrency: concurrency, now: time.Now}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// ItemProbeStep runs stage 1 over the sampled inputs. Results are appended
// to Measurement.Items in completion order, and every provider of a
// successful lookup is counted in Run.Tally.
type ItemProbeStep struct {
	prober *prober.ItemProber
	stage
}

// NewItemProbeStep creates the stage-1 step.
func NewItemProbeStep(p *prober.ItemProber, opts ...StageOption) *ItemProbeStep {
	return &ItemProbeStep{prober: p, stage: newStage(DefaultItemConcurrency, opts)}
}

// Name returns the step name.
func (s *ItemProbeStep) Name() string {
	return "probe_items"
}

// Do executes stage 1.
func (s *ItemProbeStep) Do(ctx context.Context, run *Run) error {
	m := run.Measurement
	if m.Inputs == nil {
		return ErrNoSample
	}
	if run.Tally == nil {
		run.Tally = tally.New()
	}

	m.Items = make([]model.ItemResult, 0, len(m.Inputs))
	return Stream(ctx, m.Inputs,
		func(ctx context.Context, input model.SampleInput) model.ItemResult {
			return s.prober.Probe(ctx, input, run.Tally)
		},
		func(r model.ItemResult) {
			m.Items = append(m.Items, r)
			s.metrics.ObserveItem(r.WebsiteReachable, r.HadProviders)
		},
		WithConcurrency(s.concurrency),
		WithPoolLogger(s.logger),
		WithPoolName("items"),
	)
}

// PeerProbeStep runs stage 2 over every provider in Run.Tally. It must run
// after ItemProbeStep has finished, since it takes its work from a snapshot
// of the tally. The run's finish time is set when stage 2 drains.
type PeerProbeStep struct {
	prober *prober.PeerProber
	stage
}

// NewPeerProbeStep creates the stage-2 step.
func NewPeerProbeStep(p *prober.PeerProber, opts ...StageOption) *PeerProbeStep {
	return &PeerProbeStep{prober: p, stage: newStage(DefaultPeerConcurrency, opts)}
}

// Name returns the step name.
func (s *PeerProbeStep) Name() string {
	return "probe_peers"
}

// Do executes stage 2.
func (s *PeerProbeStep) Do(ctx context.Context, run *Run) error {
	m := run.Measurement
	if run.Tally == nil {
		return ErrNoSample
	}

	entries := run.Tally.Snapshot()
	m.Peers = make([]model.PeerResult, 0, len(entries))
	err := Stream(ctx, entries,
		func(ctx context.Context, e tally.Entry) model.PeerResult {
			return s.prober.Probe(ctx, e.ProviderID, e.Count)
		},
		func(r model.PeerResult) {
			m.Peers = append(m.Peers, r)
			s.metrics.ObservePeer(r.Reachable)
		},
		WithConcurrency(s.concurrency),
		WithPoolLogger(s.logger),
		WithPoolName("peers"),
	)
	m.FinishedAt = s.now()
	return err
}

// Exporter writes a finished measurement to files.
type Exporter interface {
	Export(ctx context.Context, m *model.Measurement) ([]string, error)
}

// ExportStep writes the measurement with an Exporter and records the
// written files in Run.Files.
type ExportStep struct {
	exporter Exporter
	logger   *slog.Logger
}

// NewExportStep creates an export step.
func NewExportStep(exporter Exporter, logger *slog.Logger) *ExportStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportStep{exporter: exporter, logger: logger}
}

// Name returns the step name.
func (s *ExportStep) Name() string {
	return "export"
}

// Do executes the export step.
func (s *ExportStep) Do(ctx context.Context, run *Run) error {
	files, err := s.exporter.Export(ctx, run.Measurement)
	run.Files = append(run.Files, files...)
	if err != nil {
		return fmt.Errorf("failed to export results: %w", err)
	}
	for _, f := range files {
		s.logger.Info("results written", "path", f)
	}
	return nil
}

// Store persists a finished measurement.
type Store interface {
	SaveMeasurement(ctx context.Context, m *model.Measurement) (int64, error)
}

// PersistStep saves the measurement in a Store.
type PersistStep struct {
	store  Store
	logger *slog.Logger
}

// NewPersistStep creates a persist step.
func NewPersistStep(store Store, logger *slog.Logger) *PersistStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &PersistStep{store: store, logger: logger}
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// Do executes the persist step.
func (s *PersistStep) Do(ctx context.Context, run *Run) error {
	id, err := s.store.SaveMeasurement(ctx, run.Measurement)
	if err != nil {
		return fmt.Errorf("failed to save measurement: %w", err)
	}
	s.logger.Debug("measurement saved", "id", id)
	return nil
}
