package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/helixbi/querypilot/internal/adapters/driving/httpapi"
	"github.com/helixbi/querypilot/internal/adapters/driving/mcp"
	"github.com/helixbi/querypilot/internal/connectors/seedfile"
	"github.com/helixbi/querypilot/internal/logger"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the suggestion server",
	Long: `Start the HTTP API server, and the MCP server when enabled in the
configuration. Seeds the corpus from seed.path when configured and
re-ingests it on change when seed.watch is set.

Examples:
  querypilot serve
  querypilot serve --addr :9090 --config querypilot.toml`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	eng, err := buildEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if eng.cfg.Seed.Path != "" {
		if _, err := seedfile.Load(ctx, eng.ingest, eng.cfg.Seed.Path); err != nil {
			return fmt.Errorf("seeding corpus: %w", err)
		}
		if eng.cfg.Seed.Watch {
			watcher, err := seedfile.NewWatcher(eng.ingest, eng.cfg.Seed.Path)
			if err != nil {
				return fmt.Errorf("watching seed file: %w", err)
			}
			watcher.Start(ctx)
			defer watcher.Close()
		}
	}

	addr := eng.cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	server := httpapi.NewServer(eng.suggestions, eng.ingest, eng.health,
		httpapi.Config{Addr: addr})

	errCh := make(chan error, 2)

	go func() {
		errCh <- server.Start()
	}()

	if eng.cfg.Server.EnableMCP {
		mcpServer, err := mcp.NewServer(&mcp.Ports{
			Suggestions: eng.suggestions,
			Health:      eng.health,
		})
		if err != nil {
			return fmt.Errorf("building MCP server: %w", err)
		}
		go func() {
			if mcpAddr := eng.cfg.Server.MCPAddr; mcpAddr != "" {
				logger.Info("MCP server listening on %s", mcpAddr)
				errCh <- mcpServer.RunHTTP(ctx, mcpAddr)
			} else {
				logger.Info("MCP server on stdio")
				errCh <- mcpServer.Run(ctx)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpapi.DefaultShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
