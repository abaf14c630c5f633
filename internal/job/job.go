// Package job holds the state shared by the steps of a single job run: the
// workspace, the tools published by setup steps and the cleanup stack.
package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Job is the state of one dispatched workflow run.
type Job struct {
	RunID     string
	Workflow  string
	Event     string
	Workspace string

	mu       sync.Mutex
	tools    map[string]string
	cleanups []cleanup
}

type cleanup struct {
	name string
	fn   func(context.Context) error
}

// New creates the state for a run.
func New(runID, workflow, event, workspace string) *Job {
	return &Job{
		RunID:     runID,
		Workflow:  workflow,
		Event:     event,
		Workspace: workspace,
		tools:     make(map[string]string),
	}
}

// SetTool publishes the path of a tool (e.g. an interpreter) for later steps.
func (j *Job) SetTool(name, path string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.tools[name] = path
}

// Tool returns a tool published by an earlier step.
func (j *Job) Tool(name string) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	p, ok := j.tools[name]
	return p, ok
}

// Defer registers fn to run when the job finishes, whatever its outcome.
// Cleanups run in reverse registration order.
func (j *Job) Defer(name string, fn func(context.Context) error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cleanups = append(j.cleanups, cleanup{name: name, fn: fn})
}

// RunCleanups drains the cleanup stack. All cleanups run even if some fail;
// the failures are joined.
func (j *Job) RunCleanups(ctx context.Context) error {
	j.mu.Lock()
	stack := j.cleanups
	j.cleanups = nil
	j.mu.Unlock()

	var errs []error
	for i := len(stack) - 1; i >= 0; i-- {
		if err := stack[i].fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("cleanup '%s': %w", stack[i].name, err))
		}
	}
	return errors.Join(errs...)
}

// Step is what a runner receives for the step it executes.
type Step struct {
	Job  *Job
	Name string
	// Env holds the step's resolved environment block.
	Env    map[string]string
	Stdout io.Writer
	Stderr io.Writer
}

// Getenv returns a value from the step environment.
func (s *Step) Getenv(key string) string {
	return s.Env[key]
}

// RequireEnv returns the listed keys, failing if any is unset or empty.
func (s *Step) RequireEnv(keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	var missing []string
	for _, k := range keys {
		v := s.Env[k]
		if v == "" {
			missing = append(missing, k)
			continue
		}
		out[k] = v
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("step '%s' is missing environment values: %v", s.Name, missing)
	}
	return out, nil
}
