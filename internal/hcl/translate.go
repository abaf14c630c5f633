// This file contains the logic for translating HCL schema structs into the
// format-agnostic configuration model defined in the config package.

package hcl

import (
	"fmt"
	"slices"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/dispatchgrid/internal/config"
	"github.com/vk/dispatchgrid/internal/schema"
)

// translateWorkflow converts and validates a workflow block.
func translateWorkflow(s *schema.Workflow, source string) (*config.Workflow, error) {
	wf := &config.Workflow{
		Name:        s.Name,
		Description: s.Description,
		Source:      source,
	}

	if len(s.On) == 0 {
		return nil, fmt.Errorf("workflow '%s' in %s: 'on' must list at least one event", s.Name, source)
	}
	for _, event := range s.On {
		if !slices.Contains(config.KnownEvents, event) {
			return nil, fmt.Errorf("workflow '%s' in %s: unknown event '%s' (known: %v)", s.Name, source, event, config.KnownEvents)
		}
		if slices.Contains(wf.On, event) {
			return nil, fmt.Errorf("workflow '%s' in %s: event '%s' listed twice", s.Name, source, event)
		}
		wf.On = append(wf.On, event)
	}

	if s.Concurrency != nil {
		c, err := translateConcurrency(s.Concurrency)
		if err != nil {
			return nil, fmt.Errorf("workflow '%s' in %s: %w", s.Name, source, err)
		}
		wf.Concurrency = c
	}

	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("workflow '%s' in %s: no steps defined", s.Name, source)
	}
	for _, st := range s.Steps {
		if _, dup := wf.Step(st.Name); dup {
			return nil, fmt.Errorf("workflow '%s' in %s: duplicate step name '%s'", s.Name, source, st.Name)
		}
		step, err := translateStep(st)
		if err != nil {
			return nil, fmt.Errorf("workflow '%s' in %s: %w", s.Name, source, err)
		}
		wf.Steps = append(wf.Steps, step)
	}
	return wf, nil
}

// translateStep converts the HCL-specific step schema into the agnostic model.
func translateStep(s *schema.Step) (*config.Step, error) {
	step := &config.Step{
		RunnerType: s.RunnerType,
		Name:       s.Name,
		Env:        s.Env,
	}
	if s.Arguments != nil {
		step.Arguments = s.Arguments.Body
	} else {
		step.Arguments = hcl.EmptyBody()
	}

	if s.Timeout != "" {
		d, err := time.ParseDuration(s.Timeout)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("step '%s': invalid timeout '%s'", s.Name, s.Timeout)
		}
		step.Timeout = d
	}
	return step, nil
}

func translateConcurrency(s *schema.Concurrency) (*config.Concurrency, error) {
	if s.Group == "" {
		return nil, fmt.Errorf("concurrency group must not be empty")
	}
	c := &config.Concurrency{Group: s.Group}
	if s.TTL != "" {
		d, err := time.ParseDuration(s.TTL)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid concurrency ttl '%s'", s.TTL)
		}
		c.TTL = d
	}
	if s.MinIO != nil {
		c.MinIO = s.MinIO.Body
	}
	return c, nil
}
