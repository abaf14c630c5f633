// Package install implements the 'install' runner, which installs the
// packages a script depends on into the runtime set up earlier in the job.
package install

import (
	"context"
	"fmt"
	"strings"

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
	Packages      []string `hcl:"packages" validate:"required,min=1,dive,required"`
	RequirePinned bool     `hcl:"require_pinned,optional"`
	Manager       string   `hcl:"manager,optional" validate:"omitempty,oneof=pip"`
}

// OnRunInstall is the handler for the 'install' runner.
func OnRunInstall(ctx context.Context, step *job.Step, input *Input) error {
	logger := ctxlog.FromContext(ctx)

	pkgs, err := parseSpecs(input.Packages)
	if err != nil {
		return err
	}
	if input.RequirePinned {
		if unpinned := unpinnedNames(pkgs); len(unpinned) > 0 {
			return fmt.Errorf("packages must be pinned with '==version': %s", strings.Join(unpinned, ", "))
		}
	}

	python, ok := step.Job.Tool(setup_runtime.ToolPython)
	if !ok {
		return fmt.Errorf("no python runtime in this job; add a setup_runtime step before '%s'", step.Name)
	}

	args := []string{python, "-m", "pip", "install", "--disable-pip-version-check"}
	for _, p := range pkgs {
		args = append(args, p.Spec)
	}
	script, err := shell.Join(args...)
	if err != nil {
		return err
	}

	logger.Info("📦 Installing packages", "count", len(pkgs))
	err = shell.Run(ctx, shell.Command{
		Script: script,
		Dir:    step.Job.Workspace,
		Env:    step.Env,
		Stdout: step.Stdout,
		Stderr: step.Stderr,
	})
	if err != nil {
		return fmt.Errorf("pip install failed: %w", err)
	}

	for _, p := range pkgs {
		if p.Version == "" {
			continue
		}
		if err := verify(ctx, step, python, p); err != nil {
			return err
		}
	}
	fmt.Fprintf(step.Stdout, "Installed %d packages\n", len(pkgs))
	return nil
}

// verify checks that the installed version of p is the pinned one.
func verify(ctx context.Context, step *job.Step, python string, p Package) error {
	script, err := shell.Join(python, "-m", "pip", "show", p.Name)
	if err != nil {
		return err
	}
	out, err := shell.Output(ctx, shell.Command{Script: script, Dir: step.Job.Workspace, Env: step.Env, Stderr: step.Stderr})
	if err != nil {
		return fmt.Errorf("failed to inspect installed package '%s': %w", p.Name, err)
	}
	got := parsePipShow(out)["Version"]
	if got != p.Version {
		return fmt.Errorf("package '%s': installed version '%s' does not match pinned '%s'", p.Name, got, p.Version)
	}
	ctxlog.FromContext(ctx).Debug("Pinned package verified.", "package", p.Name, "version", got)
	return nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("install", &registry.RegisteredRunner{
		NewInput: func() any { return new(Input) },
		Fn:       OnRunInstall,
	})
}
