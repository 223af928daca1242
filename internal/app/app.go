// Package app wires settings, storage, embedding backends and services into
// a running stash instance.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/stash/internal/adapters/driven/ai"
	"github.com/custodia-labs/stash/internal/adapters/driven/config/file"
	"github.com/custodia-labs/stash/internal/adapters/driven/fetcher"
	"github.com/custodia-labs/stash/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/stash/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/stash/internal/core/domain"
	"github.com/custodia-labs/stash/internal/core/ports/driven"
	"github.com/custodia-labs/stash/internal/core/services"
	"github.com/custodia-labs/stash/internal/extractor"
	"github.com/custodia-labs/stash/internal/logger"
	"github.com/custodia-labs/stash/internal/postprocessors"
)

// Options controls how an App is assembled.
type Options struct {
	// ConfigDir holds config.toml. Empty means ~/.stash.
	ConfigDir string

	// Version is sent in the fetcher user agent.
	Version string
}

// App holds the assembled services.
type App struct {
	Settings        domain.Settings
	Config          driven.ConfigStore
	SettingsService *services.SettingsService

	Tasks      *services.TaskService
	Dispatcher *services.Dispatcher
	Search     *services.SearchService
	Documents  *services.DocumentService
	Embeddings *services.EmbeddingsService

	closers []func() error
}

// ResolveConfigDir returns dir, or ~/.stash when dir is empty.
func ResolveConfigDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".stash"), nil
}

// OpenSettings opens the config file in configDir and the settings service
// reading it. The default data directory is configDir/data.
func OpenSettings(configDir string) (*file.ConfigStore, *services.SettingsService, error) {
	dir, err := ResolveConfigDir(configDir)
	if err != nil {
		return nil, nil, err
	}
	store, err := file.NewConfigStore(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening config: %w", err)
	}
	return store, services.NewSettingsService(store, filepath.Join(dir, "data")), nil
}

// New loads and validates settings, configures logging and builds every
// service. Callers must Close the returned App.
func New(ctx context.Context, opts Options) (*App, error) {
	store, settingsSvc, err := OpenSettings(opts.ConfigDir)
	if err != nil {
		return nil, err
	}
	settings, err := settingsSvc.Get()
	if err != nil {
		return nil, err
	}
	if err := settingsSvc.Validate(settings); err != nil {
		return nil, err
	}

	a := &App{
		Settings:        settings,
		Config:          store,
		SettingsService: settingsSvc,
	}

	closeLog, err := logger.Setup(settings.Log.Level, settings.Log.File)
	if err != nil {
		return nil, fmt.Errorf("configuring logging: %w", err)
	}
	a.closers = append(a.closers, closeLog)

	if err := a.build(ctx, opts); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, opts Options) error {
	queue, docs, err := a.openStorage()
	if err != nil {
		return err
	}

	embedder, err := ai.CreateEmbeddingService(ctx, &a.Settings.Embedding)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, embedder.Close)

	registry := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(registry)
	chunker, err := registry.Build(postprocessors.DefaultChunker, nil)
	if err != nil {
		return err
	}

	version := opts.Version
	if version == "" {
		version = "dev"
	}
	pages := fetcher.New(fetcher.Config{UserAgent: "stash/" + version})

	pipeline := services.NewPipeline(docs, pages, extractor.New(), chunker, embedder)
	a.Tasks = services.NewTaskService(queue, pipeline, a.Settings.Worker)
	a.Dispatcher = services.NewDispatcher(a.Tasks, a.Settings.Worker)
	a.Search = services.NewSearchService(docs, embedder, a.Settings.Search)
	a.Documents = services.NewDocumentService(docs, a.Tasks)
	a.Documents.SetChangeHook(a.Search.Invalidate)
	a.Embeddings = services.NewEmbeddingsService(embedder, chunker)

	logger.L().Info("stash ready",
		"storage", a.Settings.Storage.Driver,
		"embedding", embedder.Provider(),
		"model", embedder.ModelName(),
		"dimensions", embedder.Dimensions())
	return nil
}

func (a *App) openStorage() (driven.TaskQueue, driven.DocumentStore, error) {
	switch a.Settings.Storage.Driver {
	case domain.StorageDriverMemory:
		return memory.NewTaskQueue(), memory.NewDocumentStore(), nil
	default:
		store, err := sqlite.NewStore(a.Settings.Storage.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("opening storage: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		logger.Debug("sqlite database at %s", store.Path())
		return store.TaskQueue(), store.DocumentStore(), nil
	}
}

// WatchConfig reloads search settings whenever the config file changes.
// It blocks until ctx is cancelled.
func (a *App) WatchConfig(ctx context.Context) error {
	return a.Config.Watch(ctx, func() {
		settings, err := a.SettingsService.Get()
		if err != nil {
			logger.Warn("reloading settings: %v", err)
			return
		}
		if err := a.SettingsService.Validate(settings); err != nil {
			logger.Warn("ignoring invalid settings: %v", err)
			return
		}
		a.Search.UpdateSettings(settings.Search)
		logger.Info("search settings reloaded")
	})
}

// Close releases storage, backends and the log file in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
