package hcl

import (
	"context"
	"fmt"
	"regexp"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/vk/dispatchgrid/internal/ctxlog"
	"github.com/vk/dispatchgrid/internal/secrets"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
)

var envNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Converter is the HCL-specific implementation of the config.Converter interface.
type Converter struct{}

// NewConverter creates a new HCL converter.
func NewConverter() *Converter {
	return &Converter{}
}

// EvalContext implements config.Converter.
func (c *Converter) EvalContext(store secrets.Store, masker *secrets.Masker) *hcl.EvalContext {
	return &hcl.EvalContext{
		Functions: map[string]function.Function{
			"secret": secretFunc(store, masker),
			"env":    envFunc(),
		},
	}
}

// DecodeBody implements config.Converter using gohcl struct tags on target.
func (c *Converter) DecodeBody(ctx context.Context, body hcl.Body, evalCtx *hcl.EvalContext, target any) error {
	logger := ctxlog.FromContext(ctx)
	if body == nil {
		body = hcl.EmptyBody()
	}
	if diags := gohcl.DecodeBody(body, evalCtx, target); diags.HasErrors() {
		return diags
	}
	logger.Debug("Decoded step arguments.", "target", fmt.Sprintf("%T", target))
	return nil
}

// DecodeEnv implements config.Converter. The expression must evaluate to an
// object or map whose values convert to strings.
func (c *Converter) DecodeEnv(ctx context.Context, expr hcl.Expression, evalCtx *hcl.EvalContext) (map[string]string, error) {
	env := make(map[string]string)
	if expr == nil {
		return env, nil
	}

	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return nil, diags
	}
	if val.IsNull() {
		return env, nil
	}
	if !val.IsWhollyKnown() {
		return nil, diagError("Invalid env", "The env map must be fully known.", expr.Range().Ptr())
	}
	ty := val.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil, diagError("Invalid env", fmt.Sprintf("env must be a map of strings, got %s.", ty.FriendlyName()), expr.Range().Ptr())
	}

	for it := val.ElementIterator(); it.Next(); {
		k, v := it.Element()
		name := k.AsString()
		if !envNameRegex.MatchString(name) {
			return nil, diagError("Invalid env", fmt.Sprintf("'%s' is not a valid environment variable name.", name), expr.Range().Ptr())
		}
		if v.IsNull() {
			return nil, diagError("Invalid env", fmt.Sprintf("env '%s' is null.", name), expr.Range().Ptr())
		}
		s, err := convert.Convert(v, cty.String)
		if err != nil {
			return nil, diagError("Invalid env", fmt.Sprintf("env '%s': %s.", name, err), expr.Range().Ptr())
		}
		env[name] = s.AsString()
	}

	ctxlog.FromContext(ctx).Debug("Resolved step environment.", "count", len(env))
	return env, nil
}
