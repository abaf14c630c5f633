package hcl

import (
	"os"

	"github.com/vk/dispatchgrid/internal/secrets"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// secretFunc builds `secret(name)`, which resolves a value from store and
// registers it for masking.
func secretFunc(store secrets.Store, masker *secrets.Masker) function.Function {
	return function.New(&function.Spec{
		Description: "Returns the named secret.",
		Params: []function.Parameter{
			{Name: "name", Type: cty.String},
		},
		Type: function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			v, err := secrets.Resolve(store, args[0].AsString())
			if err != nil {
				return cty.UnknownVal(cty.String), err
			}
			if masker != nil {
				masker.Add(v)
			}
			return cty.StringVal(v), nil
		},
	})
}

// envFunc builds `env(name)`, which reads a plain process variable and
// yields an empty string when it is unset.
func envFunc() function.Function {
	return function.New(&function.Spec{
		Description: "Returns a process environment variable.",
		Params: []function.Parameter{
			{Name: "name", Type: cty.String},
		},
		Type: function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			return cty.StringVal(os.Getenv(args[0].AsString())), nil
		},
	})
}
