package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/vk/dispatchgrid/internal/config"
	"github.com/vk/dispatchgrid/internal/ctxlog"
	"github.com/vk/dispatchgrid/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW       io.Writer
	logger     *slog.Logger
	registry   *registry.Registry
	loader     config.Loader
	httpServer *http.Server
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
// Without explicit modules the core runner modules are registered.
func NewApp(outW io.Writer, appConfig *Config, loader config.Loader, modules ...registry.Module) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	reg.Register(modules...)
	logger.Debug("All Go modules registered.", "count", len(modules), "runners", reg.Names())

	return &App{
		outW:     outW,
		logger:   logger,
		registry: reg,
		loader:   loader,
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// context attaches the app logger to ctx.
func (a *App) context(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}
