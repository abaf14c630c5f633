package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/vk/dispatchgrid/internal/config"
	"github.com/vk/dispatchgrid/internal/ctxlog"
	"github.com/vk/dispatchgrid/internal/executor"
	"github.com/vk/dispatchgrid/internal/job"
	"github.com/vk/dispatchgrid/internal/secrets"
)

// ErrEventNotAllowed is returned when a dispatch names an event the workflow
// does not declare, or one this runner cannot execute.
var ErrEventNotAllowed = errors.New("event not allowed")

// Run dispatches the configured workflow and blocks until the job ends.
func (a *App) Run(ctx context.Context, cfg *Config) (err error) {
	ctx = a.context(ctx)
	a.logger.Debug("App.Run method started.")

	if cfg.List {
		return a.List(ctx)
	}

	if cfg.HealthcheckPort > 0 {
		a.startHealthcheckServer(cfg.HealthcheckPort)
		defer func() { err = errors.Join(err, a.closeHealthcheckServer(ctx)) }()
	}

	wf, conv, err := a.resolveWorkflow(ctx, cfg)
	if err != nil {
		return err
	}
	if err := checkEvent(wf, cfg.Event); err != nil {
		return err
	}
	if err := a.registry.ValidateWorkflow(ctx, wf); err != nil {
		return err
	}

	store, err := secretStore(cfg.SecretsFile)
	if err != nil {
		return err
	}
	masker := secrets.NewMasker()

	runID := uuid.NewString()
	logger := a.logger.With("run_id", runID, "workflow", wf.Name)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Info("📨 Workflow dispatched", "event", cfg.Event, "source", wf.Source)

	if wf.Concurrency != nil {
		locker, err := newLocker(ctx, wf.Concurrency, conv, conv.EvalContext(store, masker), cfg.LockDir, runID)
		if err != nil {
			return err
		}
		release, err := locker.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("failed to acquire concurrency group '%s': %w", wf.Concurrency.Group, err)
		}
		logger.Info("🔒 Concurrency lock acquired", "group", wf.Concurrency.Group)
		defer func() {
			if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
				logger.Error("Failed to release concurrency lock.", "error", rerr)
				err = errors.Join(err, rerr)
				return
			}
			logger.Debug("Concurrency lock released.")
		}()
	}

	workspace, cleanup, err := prepareWorkspace(cfg, runID)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := cleanup(); cerr != nil {
			logger.Warn("Failed to remove workspace.", "path", workspace, "error", cerr)
		}
	}()
	logger.Debug("Workspace ready.", "path", workspace)

	exec := executor.New(a.registry, conv, executor.Options{
		Secrets: store,
		Masker:  masker,
		Stdout:  a.outW,
		Stderr:  a.outW,
	})
	if _, err := exec.Execute(ctx, wf, job.New(runID, wf.Name, cfg.Event, workspace)); err != nil {
		return fmt.Errorf("workflow '%s' failed: %w", wf.Name, err)
	}
	return nil
}

// checkEvent gates the dispatch on the workflow's triggers. Only manual
// dispatch can be run from here.
func checkEvent(wf *config.Workflow, event string) error {
	if !wf.Triggers(event) {
		return fmt.Errorf("%w: workflow '%s' is not triggered by '%s' (on: %v)", ErrEventNotAllowed, wf.Name, event, wf.On)
	}
	if event != config.EventWorkflowDispatch {
		return fmt.Errorf("%w: only '%s' can be dispatched, got '%s'", ErrEventNotAllowed, config.EventWorkflowDispatch, event)
	}
	return nil
}

// secretStore chains the process environment with an optional dotenv file.
func secretStore(path string) (secrets.Store, error) {
	chain := secrets.Chain{secrets.Env{}}
	if path != "" {
		file, err := secrets.LoadDotenv(path)
		if err != nil {
			return nil, err
		}
		chain = append(chain, file)
	}
	return chain, nil
}

// prepareWorkspace creates the job directory. Temporary workspaces are
// removed by the returned cleanup unless cfg.KeepWorkspace is set.
func prepareWorkspace(cfg *Config, runID string) (string, func() error, error) {
	noop := func() error { return nil }
	if cfg.Workdir != "" {
		dir, err := filepath.Abs(cfg.Workdir)
		if err != nil {
			return "", nil, fmt.Errorf("failed to resolve workdir: %w", err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", nil, fmt.Errorf("failed to create workdir: %w", err)
		}
		return dir, noop, nil
	}

	dir, err := os.MkdirTemp("", "dispatchgrid-"+runID[:8]+"-")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	if cfg.KeepWorkspace {
		return dir, noop, nil
	}
	return dir, func() error { return os.RemoveAll(dir) }, nil
}
