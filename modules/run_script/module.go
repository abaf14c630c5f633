// Package run_script implements the 'run_script' runner, which executes a
// script from the workspace with an interpreter published by an earlier step.
package run_script

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/dispatchgrid/internal/ctxlog"
	"github.com/vk/dispatchgrid/internal/job"
	"github.com/vk/dispatchgrid/internal/registry"
	"github.com/vk/dispatchgrid/internal/shell"
	"github.com/vk/dispatchgrid/modules/setup_runtime"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'arguments' HCL block.
type Input struct {
	Script string   `hcl:"script" validate:"required"`
	Args   []string `hcl:"args,optional"`
	// Interpreter names a job tool. Defaults to python.
	Interpreter      string `hcl:"interpreter,optional"`
	WorkingDirectory string `hcl:"working_directory,optional"`
}

// commandLine builds the quoted shell command for the script.
func commandLine(interpreter, script string, args []string) (string, error) {
	return shell.Join(append([]string{interpreter, script}, args...)...)
}

// OnRunScript is the handler for the 'run_script' runner.
func OnRunScript(ctx context.Context, step *job.Step, input *Input) error {
	logger := ctxlog.FromContext(ctx)

	tool := input.Interpreter
	if tool == "" {
		tool = setup_runtime.ToolPython
	}
	interpreter, ok := step.Job.Tool(tool)
	if !ok {
		return fmt.Errorf("interpreter '%s' is not set up in this job", tool)
	}

	dir := filepath.Join(step.Job.Workspace, input.WorkingDirectory)
	if _, err := os.Stat(filepath.Join(dir, input.Script)); err != nil {
		return fmt.Errorf("script '%s' not found in '%s': %w", input.Script, dir, err)
	}

	script, err := commandLine(interpreter, input.Script, input.Args)
	if err != nil {
		return err
	}

	logger.Info("🏃 Running script", "script", input.Script, "args", len(input.Args), "env_keys", len(step.Env))
	err = shell.Run(ctx, shell.Command{
		Script: script,
		Dir:    dir,
		Env:    step.Env,
		Stdout: step.Stdout,
		Stderr: step.Stderr,
	})

	var exit *shell.ExitError
	if errors.As(err, &exit) {
		return fmt.Errorf("script '%s' exited with code %d: %w", input.Script, exit.Code, err)
	}
	return err
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("run_script", &registry.RegisteredRunner{
		NewInput: func() any { return new(Input) },
		Fn:       OnRunScript,
	})
}
