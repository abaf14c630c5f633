package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/vk/dispatchgrid/internal/config"
	"github.com/vk/dispatchgrid/internal/ctxlog"
	"github.com/vk/dispatchgrid/workflows"
)

// ErrUnknownWorkflow is returned when a name matches no workflow.
var ErrUnknownWorkflow = errors.New("unknown workflow")

// resolveWorkflow loads the requested workflow. An existing path is loaded
// from disk, anything else is looked up among the shipped workflows.
func (a *App) resolveWorkflow(ctx context.Context, cfg *Config) (*config.Workflow, config.Converter, error) {
	logger := ctxlog.FromContext(ctx)

	var (
		model *config.Model
		conv  config.Converter
		err   error
		name  = cfg.Job
	)
	if _, statErr := os.Stat(cfg.Workflow); statErr == nil {
		logger.Debug("Loading workflow from disk.", "path", cfg.Workflow)
		model, conv, err = a.loader.Load(ctx, cfg.Workflow)
	} else {
		logger.Debug("Loading shipped workflows.", "name", cfg.Workflow)
		model, conv, err = a.loader.LoadFS(ctx, workflows.FS)
		if name == "" {
			name = cfg.Workflow
		}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load workflows: %w", err)
	}

	if name == "" {
		if len(model.Workflows) != 1 {
			return nil, nil, fmt.Errorf("'%s' defines %d workflows (%s); choose one with -job",
				cfg.Workflow, len(model.Workflows), strings.Join(workflowNames(model), ", "))
		}
		for _, wf := range model.Workflows {
			return wf, conv, nil
		}
	}

	wf, ok := model.Workflows[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w '%s' (available: %s)", ErrUnknownWorkflow, name, strings.Join(workflowNames(model), ", "))
	}
	return wf, conv, nil
}

// List writes the shipped workflows with their triggers and descriptions.
func (a *App) List(ctx context.Context) error {
	model, _, err := a.loader.LoadFS(a.context(ctx), workflows.FS)
	if err != nil {
		return fmt.Errorf("failed to load workflows: %w", err)
	}
	for _, name := range workflowNames(model) {
		wf := model.Workflows[name]
		fmt.Fprintf(a.outW, "%-24s on: %-20s %s\n", name, strings.Join(wf.On, ","), wf.Description)
	}
	return nil
}

func workflowNames(model *config.Model) []string {
	names := make([]string, 0, len(model.Workflows))
	for name := range model.Workflows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
