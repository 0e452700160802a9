package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Step is one stage of a scan. Steps run in sequence on the same Job.
type Step interface {
	// Do executes the step. A returned error is recorded on the job.
	Do(ctx context.Context, job *Job) error

	// Name identifies the step in logs, timings and errors.
	Name() string
}

// Pipeline runs its steps in order on one job at a time. A Pipeline is not
// safe for concurrent use; the batch processor builds one per target.
type Pipeline struct {
	steps           []Step
	logger          *slog.Logger
	continueOnError bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger for step events.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError keeps running later steps after a failure, so that
// a failed store step does not hide a finished report.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates an empty Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AddStep appends a step.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends steps in order.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs the steps on job and records how long each one took.
// Cancellation is checked before each step. Without continue-on-error the
// first failure stops the run and is returned; with it, failures are kept
// on the job (the last one in job.Err) and Execute returns nil.
func (p *Pipeline) Execute(ctx context.Context, job *Job) error {
	for _, step := range p.steps {
		name := step.Name()
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled", "step", name, "target", job.Target, "reason", err)
			job.Err = err
			return err
		}

		job.PerformedSteps = append(job.PerformedSteps, name)
		start := time.Now()
		err := step.Do(ctx, job)
		elapsed := time.Since(start)
		job.Timings = append(job.Timings, StepTiming{Step: name, Elapsed: elapsed, Failed: err != nil})

		if err == nil {
			p.logger.Debug("step completed", "step", name, "target", job.Target, "elapsed", elapsed)
			continue
		}

		err = fmt.Errorf("%s: %w", name, err)
		job.Err = err
		if !p.continueOnError {
			p.logger.Error("step failed", "step", name, "target", job.Target, "error", err)
			return err
		}
		p.logger.Warn("step failed, continuing", "step", name, "target", job.Target, "error", err)
	}

	return nil
}

// StepCount returns the number of steps.
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
