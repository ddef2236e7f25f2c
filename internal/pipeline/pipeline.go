package pipeline

import (
	"context"
	"log/slog"

	applog "github.com/nao1215/calibreport/internal/log"
)

// Step is one stage of the pipeline.
type Step interface {
	// Do executes the step against run.
	Do(ctx context.Context, run *Run) error

	// Name returns the step's name for logging.
	Name() string
}

// Pipeline executes its steps in order.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
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

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs every step against run, stopping at the first failure.
// Cancellation is checked before each step. The error is also stored in
// run.Err.
func (p *Pipeline) Execute(ctx context.Context, run *Run) error {
	ctx = applog.ContextWithAttrs(ctx, slog.String("input", run.Input), slog.String("name", run.Name))

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.WarnContext(ctx, "pipeline cancelled",
				"step", step.Name(),
				"reason", err,
			)
			run.Err = err
			return err
		}

		p.logger.DebugContext(ctx, "executing step", "step", step.Name())

		if err := step.Do(ctx, run); err != nil {
			p.logger.ErrorContext(ctx, "step failed",
				"step", step.Name(),
				"error", err,
			)
			run.Err = err
			return err
		}

		run.PerformedSteps = append(run.PerformedSteps, step.Name())
	}

	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
