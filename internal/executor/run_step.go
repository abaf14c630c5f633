package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/dispatchgrid/internal/config"
	"github.com/vk/dispatchgrid/internal/ctxlog"
	"github.com/vk/dispatchgrid/internal/job"
)

// runStep resolves a step's environment and arguments, then calls its runner.
// Arguments are evaluated here rather than at load time so that secrets are
// only looked up for steps that actually run.
func (e *Executor) runStep(ctx context.Context, evalCtx *hcl.EvalContext, j *job.Job, s *config.Step) (err error) {
	logger := ctxlog.FromContext(ctx)
	logger.Info("▶️ Starting step", "runner", s.RunnerType)

	handler, ok := e.registry.Lookup(s.RunnerType)
	if !ok {
		return fmt.Errorf("unknown runner type '%s'", s.RunnerType)
	}

	env, err := e.converter.DecodeEnv(ctx, s.Env, evalCtx)
	if err != nil {
		return fmt.Errorf("failed to resolve env: %w", err)
	}

	input := handler.NewInput()
	if err := e.converter.DecodeBody(ctx, s.Arguments, evalCtx, input); err != nil {
		return fmt.Errorf("failed to decode arguments: %w", err)
	}
	if err := e.validate.Struct(input); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	logger.Debug("Step input decoded.", "input", e.masker.Mask(fmt.Sprintf("%+v", input)), "env_keys", len(env))

	stdout := e.masker.Writer(e.stdout)
	stderr := e.masker.Writer(e.stderr)
	defer func() {
		err = errors.Join(err, stdout.Flush(), stderr.Flush())
	}()

	stepCtx := ctx
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	step := &job.Step{
		Job:    j,
		Name:   s.Name,
		Env:    env,
		Stdout: stdout,
		Stderr: stderr,
	}

	err = call(stepCtx, handler.Call, step, input)
	if err != nil && ctx.Err() == nil && errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("step timed out after %s: %w", s.Timeout, err)
	}
	return err
}

// call invokes a runner and turns a panic into an error.
func call(ctx context.Context, fn func(context.Context, *job.Step, any) error, step *job.Step, input any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			ctxlog.FromContext(ctx).Debug("Runner panic stack.", "stack", string(debug.Stack()))
			err = fmt.Errorf("runner panicked: %v", r)
		}
	}()
	return fn(ctx, step, input)
}
