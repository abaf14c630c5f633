// Package executor runs the steps of a workflow one after another against a
// single job, enforcing fail-fast semantics and recording a conclusion for
// every step.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vk/dispatchgrid/internal/config"
	"github.com/vk/dispatchgrid/internal/ctxlog"
	"github.com/vk/dispatchgrid/internal/job"
	"github.com/vk/dispatchgrid/internal/registry"
	"github.com/vk/dispatchgrid/internal/secrets"
)

// Conclusion is the final state of a step.
type Conclusion string

const (
	ConclusionSuccess   Conclusion = "success"
	ConclusionFailure   Conclusion = "failure"
	ConclusionSkipped   Conclusion = "skipped"
	ConclusionCancelled Conclusion = "cancelled"
)

// StepResult records how one step ended.
type StepResult struct {
	Name       string
	Runner     string
	Conclusion Conclusion
	Duration   time.Duration
	Err        error
}

// Result is the outcome of a job.
type Result struct {
	Workflow string
	RunID    string
	Steps    []StepResult
	Duration time.Duration
}

// Conclusion is success only when every step succeeded.
func (r *Result) Conclusion() Conclusion {
	for _, s := range r.Steps {
		if s.Conclusion == ConclusionCancelled {
			return ConclusionCancelled
		}
	}
	for _, s := range r.Steps {
		if s.Conclusion != ConclusionSuccess {
			return ConclusionFailure
		}
	}
	return ConclusionSuccess
}

// Options configures an Executor.
type Options struct {
	Secrets secrets.Store
	Masker  *secrets.Masker
	// Stdout and Stderr receive step output after masking. They default to
	// the process streams.
	Stdout io.Writer
	Stderr io.Writer
}

// Executor runs workflows against the registered runners.
type Executor struct {
	registry  *registry.Registry
	converter config.Converter
	secrets   secrets.Store
	masker    *secrets.Masker
	validate  *validator.Validate
	stdout    io.Writer
	stderr    io.Writer
}

// New creates an Executor.
func New(reg *registry.Registry, converter config.Converter, opts Options) *Executor {
	if opts.Secrets == nil {
		opts.Secrets = secrets.Env{}
	}
	if opts.Masker == nil {
		opts.Masker = secrets.NewMasker()
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	return &Executor{
		registry:  reg,
		converter: converter,
		secrets:   opts.Secrets,
		masker:    opts.Masker,
		validate:  validator.New(),
		stdout:    opts.Stdout,
		stderr:    opts.Stderr,
	}
}

// Execute runs every step of wf in order. After the first failure the
// remaining steps are skipped. Cleanups registered on j always run. The
// returned error wraps the failing step's error.
func (e *Executor) Execute(ctx context.Context, wf *config.Workflow, j *job.Job) (*Result, error) {
	logger := ctxlog.FromContext(ctx).With("workflow", wf.Name, "run_id", j.RunID)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Info("🚀 Starting job", "steps", len(wf.Steps), "event", j.Event)

	start := time.Now()
	res := &Result{Workflow: wf.Name, RunID: j.RunID}
	evalCtx := e.converter.EvalContext(e.secrets, e.masker)

	var jobErr error
	for _, step := range wf.Steps {
		sr := StepResult{Name: step.Name, Runner: step.RunnerType}
		stepLogger := logger.With("step", step.Name)

		switch {
		case ctx.Err() != nil:
			sr.Conclusion = ConclusionCancelled
			sr.Err = ctx.Err()
			if jobErr == nil {
				jobErr = fmt.Errorf("job cancelled before step '%s': %w", step.Name, ctx.Err())
			}
			stepLogger.Warn("🛑 Step cancelled")
		case jobErr != nil:
			sr.Conclusion = ConclusionSkipped
			stepLogger.Info("⏭️ Skipping step")
		default:
			stepStart := time.Now()
			err := e.runStep(ctxlog.WithLogger(ctx, stepLogger), evalCtx, j, step)
			sr.Duration = time.Since(stepStart)
			sr.Err = err

			switch {
			case err == nil:
				sr.Conclusion = ConclusionSuccess
				stepLogger.Info("✅ Step succeeded", "duration", sr.Duration.Round(time.Millisecond))
			case ctx.Err() != nil:
				sr.Conclusion = ConclusionCancelled
				jobErr = fmt.Errorf("job cancelled during step '%s': %w", step.Name, err)
				stepLogger.Warn("🛑 Step cancelled", "error", err)
			default:
				sr.Conclusion = ConclusionFailure
				jobErr = fmt.Errorf("step '%s' failed: %w", step.Name, err)
				stepLogger.Error("❌ Step failed", "error", err)
			}
		}
		res.Steps = append(res.Steps, sr)
	}

	// Cleanups run even when the job was cancelled.
	if err := j.RunCleanups(context.WithoutCancel(ctx)); err != nil {
		logger.Error("Job cleanup failed.", "error", err)
		jobErr = errors.Join(jobErr, err)
	}

	res.Duration = time.Since(start)
	if err := RenderSummary(e.stdout, res); err != nil {
		logger.Warn("Failed to write job summary.", "error", err)
	}

	if jobErr != nil {
		logger.Error("💥 Job finished", "conclusion", res.Conclusion(), "duration", res.Duration.Round(time.Millisecond))
		return res, jobErr
	}
	logger.Info("🏁 Job finished", "conclusion", res.Conclusion(), "duration", res.Duration.Round(time.Millisecond))
	return res, nil
}
