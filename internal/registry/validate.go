package registry

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/vk/dispatchgrid/internal/config"
	"github.com/vk/dispatchgrid/internal/ctxlog"
	"github.com/zclconf/go-cty/cty/gocty"
)

// ValidateWorkflow checks that every step of wf uses a registered runner and
// that the runner's input struct can be bound from HCL.
func (r *Registry) ValidateWorkflow(ctx context.Context, wf *config.Workflow) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	for _, step := range wf.Steps {
		handler, ok := r.Runners[step.RunnerType]
		if !ok {
			errs = append(errs, fmt.Sprintf("step '%s': unknown runner '%s' (registered: %s)",
				step.Name, step.RunnerType, strings.Join(r.Names(), ", ")))
			continue
		}
		for _, problem := range inputProblems(handler.InputType) {
			errs = append(errs, fmt.Sprintf("step '%s', runner '%s': %s", step.Name, step.RunnerType, problem))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("workflow '%s' validation failed:\n- %s", wf.Name, strings.Join(errs, "\n- "))
	}
	logger.Debug("Workflow validated against registry.", "workflow", wf.Name, "steps", len(wf.Steps))
	return nil
}

// inputProblems lists fields of an input struct that gohcl cannot decode.
func inputProblems(t reflect.Type) []string {
	var problems []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("hcl")
		if tag == "" {
			problems = append(problems, fmt.Sprintf("field '%s' has no hcl tag", field.Name))
			continue
		}
		parts := strings.Split(tag, ",")
		if len(parts) > 1 && parts[1] != "optional" {
			// Blocks and labels are not supported in step arguments.
			problems = append(problems, fmt.Sprintf("field '%s' uses unsupported hcl kind '%s'", field.Name, parts[1]))
			continue
		}
		if _, err := gocty.ImpliedType(reflect.Zero(field.Type).Interface()); err != nil {
			problems = append(problems, fmt.Sprintf("input '%s': could not imply cty type from Go field type %s: %v", parts[0], field.Type, err))
		}
	}
	return problems
}
