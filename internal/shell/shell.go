// Package shell runs command lines for workflow steps through an embedded
// POSIX shell interpreter, so that steps behave the same on every runner
// regardless of the host's /bin/sh.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/vk/dispatchgrid/internal/ctxlog"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// ExitError reports a command line that finished with a non-zero status.
type ExitError struct {
	Code int
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Command describes a single command line to run.
type Command struct {
	Script string
	Dir    string
	// Env is layered on top of the current process environment.
	Env    map[string]string
	Stdout io.Writer
	Stderr io.Writer
}

// Run parses and executes the command line. A non-zero exit status is
// returned as *ExitError.
func Run(ctx context.Context, cmd Command) error {
	logger := ctxlog.FromContext(ctx)

	prog, err := syntax.NewParser().Parse(strings.NewReader(cmd.Script), "step")
	if err != nil {
		return fmt.Errorf("failed to parse command: %w", err)
	}

	stdout, stderr := cmd.Stdout, cmd.Stderr
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	opts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(Environ(cmd.Env)...)),
		interp.StdIO(nil, stdout, stderr),
	}
	if cmd.Dir != "" {
		opts = append(opts, interp.Dir(cmd.Dir))
	}

	runner, err := interp.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create interpreter: %w", err)
	}

	logger.Debug("Running command.", "dir", cmd.Dir, "env_keys", envKeys(cmd.Env))
	if err := runner.Run(ctx, prog); err != nil {
		var status interp.ExitStatus
		if errors.As(err, &status) {
			return &ExitError{Code: int(status)}
		}
		return fmt.Errorf("command failed: %w", err)
	}
	return nil
}

// Output runs the command and returns its standard output.
func Output(ctx context.Context, cmd Command) (string, error) {
	var out bytes.Buffer
	cmd.Stdout = &out
	err := Run(ctx, cmd)
	return out.String(), err
}

// Join quotes each argument for the shell and joins them with spaces.
func Join(args ...string) (string, error) {
	quoted := make([]string, 0, len(args))
	for _, a := range args {
		q, err := syntax.Quote(a, syntax.LangPOSIX)
		if err != nil {
			return "", fmt.Errorf("cannot quote argument %q: %w", a, err)
		}
		quoted = append(quoted, q)
	}
	return strings.Join(quoted, " "), nil
}

// Environ merges extra on top of the process environment, in KEY=VALUE form.
func Environ(extra map[string]string) []string {
	env := os.Environ()
	for _, k := range envKeys(extra) {
		env = append(env, k+"="+extra[k])
	}
	return env
}

// envKeys returns the sorted keys, never the values.
func envKeys(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
