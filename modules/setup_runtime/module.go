// Package setup_runtime implements the 'setup_runtime' runner. It locates an
// interpreter of an exact version on the host and publishes it to the job.
package setup_runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/vk/dispatchgrid/internal/ctxlog"
	"github.com/vk/dispatchgrid/internal/job"
	"github.com/vk/dispatchgrid/internal/registry"
	"github.com/vk/dispatchgrid/internal/shell"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
)

// ToolPython is the job tool name under which the interpreter is published.
const ToolPython = "python"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'arguments' HCL block.
type Input struct {
	Language string `hcl:"language,optional" validate:"omitempty,oneof=python"`
	Version  string `hcl:"version" validate:"required"`
}

var versionRegex = regexp.MustCompile(`Python (\d+(?:\.\d+)*)`)

// candidates returns the executable names probed for version, most specific first.
func candidates(version string) []string {
	return []string{"python" + version, "python3", "python"}
}

// matchesVersion reports whether the `--version` output reports want. A
// minor version such as "3.10" matches any 3.10.x patch release.
func matchesVersion(output, want string) (string, bool) {
	m := versionRegex.FindStringSubmatch(output)
	if m == nil {
		return "", false
	}
	got := m[1]
	return got, got == want || strings.HasPrefix(got, want+".")
}

// OnRunSetupRuntime is the handler for the 'setup_runtime' runner.
func OnRunSetupRuntime(ctx context.Context, step *job.Step, input *Input) error {
	logger := ctxlog.FromContext(ctx)

	cwd := step.Job.Workspace
	env := expand.ListEnviron(shell.Environ(step.Env)...)

	var seen []string
	for _, name := range candidates(input.Version) {
		path, err := interp.LookPathDir(cwd, env, name)
		if err != nil {
			logger.Debug("Interpreter candidate not found.", "name", name)
			continue
		}

		script, err := shell.Join(path, "--version")
		if err != nil {
			return err
		}
		out, err := shell.Output(ctx, shell.Command{Script: script + " 2>&1", Dir: cwd})
		if err != nil {
			logger.Debug("Interpreter candidate failed.", "path", path, "error", err)
			continue
		}

		got, ok := matchesVersion(out, input.Version)
		if !ok {
			seen = append(seen, fmt.Sprintf("%s (%s)", path, strings.TrimSpace(out)))
			continue
		}

		step.Job.SetTool(ToolPython, path)
		fmt.Fprintf(step.Stdout, "Using Python %s at %s\n", got, path)
		logger.Info("🐍 Runtime ready", "version", got, "path", path)
		return nil
	}

	if len(seen) > 0 {
		return fmt.Errorf("no python %s interpreter found; available: %s", input.Version, strings.Join(seen, ", "))
	}
	return errors.New("no python interpreter found on PATH=" + os.Getenv("PATH"))
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("setup_runtime", &registry.RegisteredRunner{
		NewInput: func() any { return new(Input) },
		Fn:       OnRunSetupRuntime,
	})
}
