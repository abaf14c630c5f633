// Package checkout implements the 'checkout' runner, which places the source
// tree of the job into its workspace.
package checkout

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/vk/dispatchgrid/internal/ctxlog"
	"github.com/vk/dispatchgrid/internal/job"
	"github.com/vk/dispatchgrid/internal/registry"
	"github.com/vk/dispatchgrid/internal/shell"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'arguments' HCL block.
type Input struct {
	// Repository is a local directory or a git URL. Defaults to the current
	// directory.
	Repository string `hcl:"repository,optional"`
	Ref        string `hcl:"ref,optional"`
	// Path is the destination relative to the workspace.
	Path    string `hcl:"path,optional"`
	Version string `hcl:"version,optional"`
}

// OnRunCheckout is the handler for the 'checkout' runner.
func OnRunCheckout(ctx context.Context, step *job.Step, input *Input) error {
	logger := ctxlog.FromContext(ctx)

	dest, err := destination(step.Job.Workspace, input.Path)
	if err != nil {
		return err
	}

	repo := input.Repository
	if repo == "" {
		if repo, err = os.Getwd(); err != nil {
			return fmt.Errorf("failed to resolve current directory: %w", err)
		}
	}
	logger.Debug("Checkout resolved.", "repository", repo, "ref", input.Ref, "dest", dest, "version", input.Version)

	if isRemote(repo) {
		return clone(ctx, step, repo, input.Ref, dest)
	}

	src, err := filepath.Abs(repo)
	if err != nil {
		return fmt.Errorf("failed to resolve repository path: %w", err)
	}
	if input.Ref != "" {
		logger.Warn("Ref is ignored for local repositories.", "ref", input.Ref)
	}

	fs := afero.NewOsFs()
	n, err := copyTree(fs, src, fs, dest, skipper(src, dest))
	if err != nil {
		return fmt.Errorf("failed to copy '%s' to workspace: %w", src, err)
	}
	fmt.Fprintf(step.Stdout, "Checked out %d files from %s\n", n, src)
	return nil
}

// destination resolves path inside the workspace, refusing escapes.
func destination(workspace, path string) (string, error) {
	dest := filepath.Join(workspace, path)
	rel, err := filepath.Rel(workspace, dest)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("checkout path '%s' escapes the workspace", path)
	}
	return dest, nil
}

func isRemote(repo string) bool {
	for _, prefix := range []string{"https://", "http://", "ssh://", "git://", "git@"} {
		if strings.HasPrefix(repo, prefix) {
			return true
		}
	}
	return false
}

func clone(ctx context.Context, step *job.Step, repo, ref, dest string) error {
	args := []string{"git", "clone", "--depth", "1"}
	if ref != "" {
		args = append(args, "--branch", ref)
	}
	args = append(args, repo, dest)
	script, err := shell.Join(args...)
	if err != nil {
		return err
	}

	err = shell.Run(ctx, shell.Command{
		Script: script,
		Dir:    step.Job.Workspace,
		Env:    step.Env,
		Stdout: step.Stdout,
		Stderr: step.Stderr,
	})
	if err != nil {
		return fmt.Errorf("git clone of '%s' failed: %w", repo, err)
	}
	return nil
}

// skipper excludes VCS metadata and, when the workspace lives inside the
// source tree, the workspace itself.
func skipper(src, dest string) func(rel string) bool {
	nested := ""
	if rel, err := filepath.Rel(src, dest); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
		nested = rel
	}
	return func(rel string) bool {
		if filepath.Base(rel) == ".git" {
			return true
		}
		return nested != "" && (rel == nested || strings.HasPrefix(rel, nested+string(filepath.Separator)))
	}
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("checkout", &registry.RegisteredRunner{
		NewInput: func() any { return new(Input) },
		Fn:       OnRunCheckout,
	})
}
