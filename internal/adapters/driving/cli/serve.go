package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/stash/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/stash/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the background worker",
	Long: `Serve the REST API and process queued tasks until interrupted.

Endpoints:
  POST /tasks               queue a task
  GET  /tasks               list tasks (userId required)
  POST /tasks/run           process tasks inline
  POST /tasks/{id}/cancel   cancel a task
  PUT  /links, PUT /notes   save a document and queue its indexing
  POST /search              hybrid search
  POST /search/semantic     embedding similarity search
  POST /embeddings          embed raw texts
  GET  /health              liveness

Search weights in config.toml are reloaded when the file changes.`,
	RunE: runServe,
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process queued tasks until interrupted",
	RunE:  runWorker,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from http.addr)")
	serveCmd.Flags().Bool("no-worker", false, "serve the API without processing tasks")
	rootCmd.AddCommand(serveCmd, workerCmd)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if taskService == nil || searchService == nil || documentService == nil || embeddingService == nil {
		return fmt.Errorf("serve %w", errNotConfigured)
	}

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" && application != nil {
		addr = application.Settings.HTTP.Addr
	}
	if addr == "" {
		addr = ":8080"
	}
	noWorker, _ := cmd.Flags().GetBool("no-worker")

	server, err := httpapi.NewServer(&httpapi.Ports{
		Tasks:      taskService,
		Search:     searchService,
		Documents:  documentService,
		Embeddings: embeddingService,
	})
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(ctx, addr) })
	if !noWorker {
		startWorker(ctx, g)
	}
	watchConfig(ctx, g)

	cmd.Printf("Listening on %s\n", addr)
	return ignoreCanceled(g.Wait())
}

func runWorker(cmd *cobra.Command, _ []string) error {
	if dispatcher == nil {
		return fmt.Errorf("worker %w", errNotConfigured)
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	startWorker(ctx, g)
	watchConfig(ctx, g)

	cmd.Println("Worker started, press Ctrl-C to stop")
	return ignoreCanceled(g.Wait())
}

func startWorker(ctx context.Context, g *errgroup.Group) {
	if dispatcher == nil {
		return
	}
	g.Go(func() error { return dispatcher.Start(ctx) })
}

// watchConfig hot-reloads search settings. A watcher that cannot start is
// logged and does not stop the server.
func watchConfig(ctx context.Context, g *errgroup.Group) {
	if application == nil {
		return
	}
	g.Go(func() error {
		if err := application.WatchConfig(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("config watcher stopped: %v", err)
		}
		return nil
	})
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
