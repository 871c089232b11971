// Package app wires configuration into the registries, vision model,
// pipeline and storage shared by the CLI, web server and bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"vibe-mind/internal/config"
	"vibe-mind/internal/httpclient"
	"vibe-mind/internal/imaging"
	"vibe-mind/internal/pipeline"
	"vibe-mind/internal/platform"
	"vibe-mind/internal/profile"
	"vibe-mind/internal/storage"
	"vibe-mind/internal/vision"
)

type App struct {
	Config     config.Config
	Logger     *slog.Logger
	HTTPClient *http.Client
	Profiles   *profile.Registry
	Platforms  *platform.Registry
	// Model is nil when no API key is configured.
	Model    vision.Model
	Pipeline *pipeline.Pipeline
	Files    *storage.Files
	// Index is nil unless Options.Index was set.
	Index *storage.Index
}

type Options struct {
	// RequireModel fails New when no vision API key is configured.
	RequireModel bool
	// Index opens the SQLite report index.
	Index bool
}

func NewLogger(cfg config.Config, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

func New(cfg config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
	})

	profiles := profile.NewRegistry(cfg.ProfilesDir, logger)
	platforms := platform.NewRegistry(cfg.PlatformsDir, logger)
	var g errgroup.Group
	g.Go(profiles.Reload)
	g.Go(platforms.Reload)
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load configurations: %w", err)
	}
	logger.Info("configurations loaded", "profiles", profiles.Len(), "platforms", platforms.Len())

	var model vision.Model
	if err := cfg.RequireVision(); err != nil {
		if opts.RequireModel {
			return nil, err
		}
		logger.Warn("vision model disabled", "reason", err.Error())
	} else {
		baseURL, modelName := cfg.GeminiBaseURL, cfg.GeminiModel
		if cfg.VisionProvider == "openai" {
			baseURL, modelName = cfg.OpenAIBaseURL, cfg.OpenAIModel
		}
		m, err := vision.New(vision.Config{
			Provider:   cfg.VisionProvider,
			APIKey:     cfg.VisionAPIKey(),
			BaseURL:    baseURL,
			APIVersion: cfg.GeminiAPIVersion,
			Model:      modelName,
			HTTPClient: httpClient,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		model = m
	}

	a := &App{
		Config:     cfg,
		Logger:     logger,
		HTTPClient: httpClient,
		Profiles:   profiles,
		Platforms:  platforms,
		Model:      model,
		Pipeline: pipeline.New(pipeline.Options{
			Profiles:     profiles,
			Platforms:    platforms,
			Model:        model,
			Loader:       imaging.NewLoader(imaging.Options{HTTPClient: httpClient}),
			Logger:       logger,
			MaxDimension: cfg.MaxDimension,
			ColorCount:   cfg.ColorCount,
			ColorSeed:    cfg.ColorSeed,
		}),
		Files: storage.NewFiles(storage.FilesOptions{Dir: cfg.OutputDir}),
	}

	if opts.Index {
		idx, err := storage.OpenIndex(cfg.IndexPath)
		if err != nil {
			return nil, err
		}
		a.Index = idx
	}
	return a, nil
}

// WatchConfigs reloads profiles and platforms on file changes until ctx is
// done. It is a no-op unless WatchConfigs is enabled.
func (a *App) WatchConfigs(ctx context.Context) error {
	if !a.Config.WatchConfigs {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Profiles.Watch(gctx, 0) })
	g.Go(func() error { return a.Platforms.Watch(gctx, 0) })
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) Close() error {
	if a.Index != nil {
		return a.Index.Close()
	}
	return nil
}
