// Package tmdb_sync implements the 'tmdb_sync' runner, the native version of
// the dataset update script.
package tmdb_sync

import (
	"context"
	"fmt"

	"github.com/vk/dispatchgrid/internal/ctxlog"
	"github.com/vk/dispatchgrid/internal/job"
	"github.com/vk/dispatchgrid/internal/objectstore"
	"github.com/vk/dispatchgrid/internal/registry"
	"github.com/vk/dispatchgrid/internal/tmdb"
	"github.com/vk/dispatchgrid/internal/tmdbsync"
)

// EnvTMDBKey is the step environment key holding the TMDB read access token.
const EnvTMDBKey = "TMDB_KEY"

// Defaults for the bucket the dataset lives in.
const (
	DefaultEndpoint = "minio.lab.sspcloud.fr"
	DefaultBucket   = "alimane"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'arguments' HCL block.
type Input struct {
	Endpoint      string `hcl:"endpoint,optional"`
	Secure        *bool  `hcl:"secure,optional"`
	Bucket        string `hcl:"bucket,optional"`
	Dataset       string `hcl:"dataset,optional"`
	TempPrefix    string `hcl:"temp_prefix,optional"`
	ArchivePrefix string `hcl:"archive_prefix,optional"`
	Workers       int    `hcl:"workers,optional" validate:"gte=0,lte=64"`
	StartFrom     string `hcl:"start_from,optional" validate:"omitempty,oneof=min max"`
	StartID       int64  `hcl:"start_id,optional" validate:"gte=0"`
	KeepTemp      bool   `hcl:"keep_temp,optional"`
	MaxFailures   int64  `hcl:"max_failures,optional" validate:"gte=0"`
	TMDBBaseURL   string `hcl:"tmdb_base_url,optional"`
}

// storeConfig applies the defaults and the step credentials.
func (in *Input) storeConfig(env map[string]string) (objectstore.Config, error) {
	cfg := objectstore.Config{
		Endpoint: in.Endpoint,
		Bucket:   in.Bucket,
		Secure:   true,
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Bucket == "" {
		cfg.Bucket = DefaultBucket
	}
	if in.Secure != nil {
		cfg.Secure = *in.Secure
	}
	return cfg.WithEnvCredentials(env)
}

func (in *Input) syncOptions(step *job.Step) tmdbsync.Options {
	return tmdbsync.Options{
		Dataset:       in.Dataset,
		TempPrefix:    in.TempPrefix,
		ArchivePrefix: in.ArchivePrefix,
		Workers:       in.Workers,
		StartFrom:     tmdbsync.Start(in.StartFrom),
		StartID:       in.StartID,
		KeepTemp:      in.KeepTemp,
		MaxFailures:   in.MaxFailures,
		Progress:      step.Stderr,
	}
}

// OnRunTMDBSync is the handler for the 'tmdb_sync' runner.
func OnRunTMDBSync(ctx context.Context, step *job.Step, input *Input) error {
	logger := ctxlog.FromContext(ctx)

	env, err := step.RequireEnv(EnvTMDBKey)
	if err != nil {
		return err
	}
	cfg, err := input.storeConfig(step.Env)
	if err != nil {
		return err
	}

	store, err := objectstore.NewMinIO(cfg)
	if err != nil {
		return err
	}
	client, err := tmdb.New(env[EnvTMDBKey], tmdb.Options{BaseURL: input.TMDBBaseURL})
	if err != nil {
		return err
	}
	defer client.Close()

	logger.Debug("TMDB sync configured.", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket, "secure", cfg.Secure)
	return run(ctx, step, store, client, input.syncOptions(step))
}

// run is the part of the handler that does not depend on real backends.
func run(ctx context.Context, step *job.Step, store objectstore.Store, source tmdbsync.Source, opts tmdbsync.Options) error {
	syncer, err := tmdbsync.New(store, source, opts)
	if err != nil {
		return err
	}
	report, err := syncer.Run(ctx)
	if err != nil {
		return fmt.Errorf("tmdb sync failed: %w", err)
	}
	fmt.Fprintf(step.Stdout, "Fetched %d movies (%d skipped, %d failed) between ids %d and %d; dataset has %d rows\n",
		report.Fetched, report.Skipped, report.Failed, report.First, report.Latest, report.Rows)
	if report.Failed > 0 {
		fmt.Fprintf(step.Stdout, "Failed ids: %v\n", report.FailedIDs)
	}
	if report.Archive != "" {
		fmt.Fprintf(step.Stdout, "Archive: %s (%d documents)\n", report.Archive, report.Archived)
	}
	return nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("tmdb_sync", &registry.RegisteredRunner{
		NewInput: func() any { return new(Input) },
		Fn:       OnRunTMDBSync,
	})
}
