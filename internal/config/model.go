package config

import (
	"time"

	"github.com/hashicorp/hcl/v2"
)

// Trigger events a workflow can declare.
const (
	EventWorkflowDispatch = "workflow_dispatch"
	EventSchedule         = "schedule"
	EventPush             = "push"
)

// KnownEvents lists every event accepted in a workflow's `on` list.
var KnownEvents = []string{EventWorkflowDispatch, EventSchedule, EventPush}

// Model is the unified, format-agnostic representation of all loaded
// workflow files.
type Model struct {
	Workflows map[string]*Workflow
}

// Workflow is the format-agnostic representation of a `workflow` block.
type Workflow struct {
	Name        string
	Description string
	On          []string
	Concurrency *Concurrency
	Steps       []*Step
	// Source is the file the workflow was read from.
	Source string
}

// Triggers reports whether event starts this workflow.
func (w *Workflow) Triggers(event string) bool {
	for _, e := range w.On {
		if e == event {
			return true
		}
	}
	return false
}

// Step returns the step with the given name.
func (w *Workflow) Step(name string) (*Step, bool) {
	for _, s := range w.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// Concurrency is the format-agnostic representation of a `concurrency` block.
type Concurrency struct {
	Group string
	TTL   time.Duration
	// MinIO holds the unevaluated `minio` block; nil selects a local lock.
	MinIO hcl.Body
}

// Step is the format-agnostic representation of a `step` block.
type Step struct {
	RunnerType string
	Name       string
	// Arguments is decoded into the runner's input struct right before the
	// step runs, so that secrets are only resolved for steps that execute.
	Arguments hcl.Body
	// Env is a null expression when the step declares no environment;
	// DecodeEnv turns that into an empty map.
	Env     hcl.Expression
	Timeout time.Duration
}
