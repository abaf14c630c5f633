// Package s3 implements the 's3' runner for small object store operations,
// such as the connectivity smoke test.
package s3

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/dispatchgrid/internal/ctxlog"
	"github.com/vk/dispatchgrid/internal/job"
	"github.com/vk/dispatchgrid/internal/objectstore"
	"github.com/vk/dispatchgrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'arguments' HCL block.
type Input struct {
	Action   string `hcl:"action" validate:"oneof=put get stat"`
	Endpoint string `hcl:"endpoint" validate:"required"`
	Secure   *bool  `hcl:"secure,optional"`
	Region   string `hcl:"region,optional"`
	Bucket   string `hcl:"bucket" validate:"required"`
	Key      string `hcl:"key" validate:"required"`
	// Content is uploaded by 'put' unless SourcePath is set.
	Content     string `hcl:"content,optional"`
	SourcePath  string `hcl:"source_path,optional"`
	ContentType string `hcl:"content_type,optional"`
}

// OnRunS3 is the handler for the 's3' runner.
func OnRunS3(ctx context.Context, step *job.Step, input *Input) error {
	cfg := objectstore.Config{
		Endpoint: input.Endpoint,
		Bucket:   input.Bucket,
		Region:   input.Region,
		Secure:   true,
	}
	if input.Secure != nil {
		cfg.Secure = *input.Secure
	}
	cfg, err := cfg.WithEnvCredentials(step.Env)
	if err != nil {
		return err
	}
	store, err := objectstore.NewMinIO(cfg)
	if err != nil {
		return err
	}
	return apply(ctx, step, store, input)
}

// apply performs the action against store.
func apply(ctx context.Context, step *job.Step, store objectstore.Store, input *Input) error {
	logger := ctxlog.FromContext(ctx).With("action", input.Action, "key", input.Key)

	switch strings.ToLower(input.Action) {
	case "put":
		data := []byte(input.Content)
		contentType := input.ContentType
		if input.SourcePath != "" {
			path := input.SourcePath
			if !filepath.IsAbs(path) {
				path = filepath.Join(step.Job.Workspace, path)
			}
			var err error
			if data, err = os.ReadFile(path); err != nil {
				return fmt.Errorf("failed to read source file '%s': %w", input.SourcePath, err)
			}
			if contentType == "" {
				contentType = mime.TypeByExtension(filepath.Ext(path))
			}
		}
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		if err := store.EnsureBucket(ctx); err != nil {
			return err
		}
		if err := store.Put(ctx, input.Key, data, contentType); err != nil {
			return err
		}
		logger.Info("Object uploaded", "size", len(data), "contentType", contentType)
		fmt.Fprintf(step.Stdout, "Uploaded %d bytes to %s\n", len(data), input.Key)

	case "get":
		data, err := store.Get(ctx, input.Key)
		if err != nil {
			return err
		}
		if _, err := step.Stdout.Write(data); err != nil {
			return err
		}

	case "stat":
		info, err := store.Stat(ctx, input.Key)
		if err != nil {
			return err
		}
		fmt.Fprintf(step.Stdout, "%s\t%d bytes\t%s\t%s\n", info.Key, info.Size, info.ETag, info.LastModified.UTC().Format("2006-01-02T15:04:05Z"))

	default:
		return fmt.Errorf("unknown s3 action: '%s'", input.Action)
	}
	return nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("s3", &registry.RegisteredRunner{
		NewInput: func() any { return new(Input) },
		Fn:       OnRunS3,
	})
}
