package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/stash/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can search
your links and notes and manage indexing tasks.

By default, the server communicates over stdio using JSON-RPC. Use --port to
start an HTTP server instead.

Tools: search, semantic_search, create_task, list_tasks
Resources: stash://tasks/{taskId}

Examples:
  # Stdio mode (default)
  stash mcp serve

  # HTTP mode, also processing queued tasks
  stash mcp serve --port 8090 --worker

Client configuration:
  {
    "mcpServers": {
      "stash": {
        "command": "/path/to/stash",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpServeCmd.Flags().Bool("worker", false, "also process queued tasks")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}
	withWorker, _ := cmd.Flags().GetBool("worker")

	server, err := mcp.NewServer(&mcp.Ports{
		Search:       searchService,
		Tasks:        taskService,
		DefaultOwner: userID,
	}, version)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	if withWorker {
		startWorker(ctx, g)
	}
	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://localhost%s\n", addr)
		g.Go(func() error { return server.RunHTTP(ctx, addr) })
	} else {
		g.Go(func() error { return server.Run(ctx) })
	}
	return ignoreCanceled(g.Wait())
}
