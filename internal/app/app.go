package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/vk/snapforge/internal/config"
	"github.com/vk/snapforge/internal/ctxlog"
	"github.com/vk/snapforge/internal/dag"
	"github.com/vk/snapforge/internal/executor"
	"github.com/vk/snapforge/internal/layout"
	"github.com/vk/snapforge/internal/migrator"
	"github.com/vk/snapforge/internal/registry"
	"github.com/vk/snapforge/internal/statestore"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	runID    string
	config   *Config
	registry *registry.Registry
	model    *config.Model
	layout   *layout.Layout
	store    *statestore.Store
	migrator *migrator.Migrator
}

// NewApp is the constructor for the main application. It loads and validates
// the project manifest; every ManifestError surfaces here, before anything
// runs. outW receives logs and build tool output.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader, modules ...registry.Module) (*App, error) {
	runID := uuid.NewString()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW).With("run_id", runID)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := loader.Load(ctx, cfg.ProjectDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	logger.Debug("Manifest loaded and translated into unified model.", "parts", len(model.Parts))

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All plugins registered.", "count", len(modules))

	if err := reg.ValidateParts(ctx, model); err != nil {
		return nil, err
	}
	if _, err := dag.Build(ctx, model); err != nil {
		return nil, err
	}
	logger.Debug("Manifest validation passed.")

	l := layout.New(cfg.WorkDir)
	return &App{
		outW:     outW,
		logger:   logger,
		runID:    runID,
		config:   cfg,
		registry: reg,
		model:    model,
		layout:   l,
		store:    statestore.New(l),
		migrator: migrator.New(),
	}, nil
}

// Context attaches the application's logger to ctx.
func (a *App) Context(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry { return a.registry }

// Model returns the loaded project.
func (a *App) Model() *config.Model { return a.model }

// Layout returns the work directory layout.
func (a *App) Layout() *layout.Layout { return a.layout }

// RunID identifies this application instance in its logs.
func (a *App) RunID() string { return a.runID }

func (a *App) executor() *executor.Executor {
	return executor.New(executor.Options{
		Model:    a.model,
		Layout:   a.layout,
		Registry: a.registry,
		State:    a.store,
		Migrator: a.migrator,
		Workers:  a.config.Workers,
		Parallel: a.config.Parallel,
		Stdout:   a.outW,
		Stderr:   a.outW,
	})
}
