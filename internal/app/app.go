package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/buildgridgo/internal/config"
	"github.com/vk/buildgridgo/internal/ctxlog"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
	model  *config.Model
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger and the loaded
// pipeline model.
func NewApp(outW io.Writer, appConfig *Config, loader config.Loader) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := loader.Load(ctx, appConfig.PipelinePath)
	if err != nil {
		// A failure to load the pipeline definition is a fatal startup error.
		panic(fmt.Errorf("failed to load pipeline configuration: %w", err))
	}
	if appConfig.Workers > 0 {
		model.Workers = appConfig.Workers
	}
	logger.Debug("Pipeline configuration loaded.",
		"registry", model.Registry, "components", len(model.Components), "workers", model.Workers)

	return &App{
		outW:   outW,
		logger: logger,
		config: appConfig,
		model:  model,
	}
}

// Model returns the loaded pipeline model. This is primarily for testing.
func (a *App) Model() *config.Model {
	return a.model
}
