// Package cli provides the command-line interface for stash.
package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/stash/internal/app"
	"github.com/custodia-labs/stash/internal/core/ports/driving"
	"github.com/custodia-labs/stash/internal/logger"
)

// annotationSettingsOnly marks commands that only need the settings service.
const annotationSettingsOnly = "stash/settings-only"

var (
	// version is set at build time via SetVersion.
	version = "dev"

	// Global flags
	configDir  string
	verbose    bool
	jsonOutput bool
	userID     string

	// application is built lazily by PersistentPreRunE. Tests assign the
	// service variables directly instead.
	application *app.App

	taskService      driving.TaskService
	searchService    driving.SearchService
	documentService  driving.DocumentService
	embeddingService driving.EmbeddingGenerator
	dispatcher       driving.Dispatcher
	settingsService  driving.SettingsService
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "stash",
	Short: "Save links and notes, find them by meaning",
	Long: `Stash keeps bookmarks and notes, indexes them in the background and
finds them again with hybrid keyword and semantic search.

Documents are indexed by a durable task queue: saving a link queues a
metadata fetch and an embedding task, which "stash serve" or "stash worker"
process in the background.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		return teardown()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "directory holding config.toml (default ~/.stash)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "local", "owner of links, notes and tasks")
}

// SetVersion sets the version reported by the CLI and sent by the fetcher.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func settingsOnly(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if _, ok := c.Annotations[annotationSettingsOnly]; ok {
			return true
		}
	}
	return false
}

// setup builds the services the command needs unless they are already set.
func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	switch {
	case cmd.Name() == "help" || cmd.Name() == "version":
		return nil
	case settingsOnly(cmd):
		if settingsService != nil {
			return nil
		}
		_, svc, err := app.OpenSettings(configDir)
		if err != nil {
			return err
		}
		settingsService = svc
		return nil
	case taskService != nil:
		return nil
	}

	a, err := app.New(cmd.Context(), app.Options{ConfigDir: configDir, Version: version})
	if err != nil {
		return err
	}
	application = a
	taskService = a.Tasks
	searchService = a.Search
	documentService = a.Documents
	embeddingService = a.Embeddings
	dispatcher = a.Dispatcher
	settingsService = a.SettingsService
	return nil
}

func teardown() error {
	if application == nil {
		return nil
	}
	err := application.Close()
	application = nil
	return err
}

var errNotConfigured = errors.New("service not configured")
