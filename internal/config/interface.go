package config

import (
	"context"
	"io/fs"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/dispatchgrid/internal/secrets"
)

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads workflow files from disk (files or directories), translates
	// them into the format-agnostic model, and returns a matching Converter.
	Load(ctx context.Context, paths ...string) (*Model, Converter, error)
	// LoadFS does the same for every workflow file in fsys.
	LoadFS(ctx context.Context, fsys fs.FS) (*Model, Converter, error)
}

// Converter is the interface for a format-specific data binding
// implementation. It acts as the bridge between the raw configuration and
// the Go types used by runners.
type Converter interface {
	// EvalContext returns the evaluation scope for a run. Secrets looked up
	// through it are registered with masker.
	EvalContext(store secrets.Store, masker *secrets.Masker) *hcl.EvalContext

	// DecodeBody decodes a raw configuration body (e.g., an 'arguments'
	// block) into a target Go struct.
	DecodeBody(ctx context.Context, body hcl.Body, evalCtx *hcl.EvalContext, target any) error

	// DecodeEnv evaluates an environment map expression into strings.
	DecodeEnv(ctx context.Context, expr hcl.Expression, evalCtx *hcl.EvalContext) (map[string]string, error)
}
