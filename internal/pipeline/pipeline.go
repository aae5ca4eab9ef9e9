package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/ipfsprobe/internal/model"
	"github.com/nao1215/ipfsprobe/internal/tally"
)

// Run is the state a measurement's steps share.
type Run struct {
	// Measurement receives the sample and the results.
	Measurement *model.Measurement

	// Rows holds every usable row of the dataset before sampling.
	Rows []model.SampleInput

	// Tally counts provider appearances during stage 1.
	Tally *tally.Tally

	// Files lists the files written by export steps.
	Files []string

	// Steps lists the steps that ran, in order.
	Steps []string
}

// NewRun creates a Run for m with an empty tally.
func NewRun(m *model.Measurement) *Run {
	return &Run{
		Measurement: m,
		Tally:       tally.New(),
	}
}

// Step is one stage of a measurement.
type Step interface {
	// Do executes the step. Failures that only affect individual items are
	// recorded in the results; a returned error aborts the run.
	Do(ctx context.Context, run *Run) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline executes steps in order.
type Pipeline struct {
	steps           []Step
	logger          *slog.Logger
	continueOnError bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError makes the pipeline run the remaining steps after a
// step failed. Execute then returns the first error after the last step.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates an empty Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends several steps.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in order. Cancellation is checked between steps;
// steps handle cancellation while they run.
func (p *Pipeline) Execute(ctx context.Context, run *Run) error {
	m := run.Measurement
	var firstErr error

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", err,
			)
			return err
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"dataset", m.Dataset,
			"label", m.Label,
		)

		if err := step.Do(ctx, run); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"dataset", m.Dataset,
				"error", err,
			)
			if !p.continueOnError {
				return err
			}
			if firstErr == nil {
				firstErr = err
			}
		} else {
			p.logger.Debug("step completed",
				"step", step.Name(),
				"dataset", m.Dataset,
			)
		}

		run.Steps = append(run.Steps, step.Name())
	}

	return firstErr
}

// StepCount returns the number of steps.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the step names in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
