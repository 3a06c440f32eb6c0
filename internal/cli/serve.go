package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"genai-studio/common"
	"genai-studio/internal/tools"
	"genai-studio/internal/web"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the browser UI and the MCP endpoint",
	Long: `Serve the studio UI over HTTP. The same session is exposed to MCP clients
through the streamable HTTP transport at /mcp.

Examples:
  genai-studio serve
  genai-studio serve --addr 127.0.0.1:9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: SERVER_ADDRESS:SERVER_PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	mcpServer := newMCPServer()
	if err := tools.RegisterStudioTools(mcpServer, a.session); err != nil {
		return fmt.Errorf("failed to register studio tools: %w", err)
	}

	ui, err := web.NewServer(a.session,
		web.WithMCPHandler(server.NewStreamableHTTPServer(mcpServer)),
		web.WithMaxUploadBytes(a.config.MaxUploadBytes()),
	)
	if err != nil {
		return fmt.Errorf("failed to create web server: %w", err)
	}

	addr := serveAddr
	if addr == "" {
		addr = a.config.GetServerAddr()
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           ui.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		common.Infof("Studio server listening on http://%s (MCP endpoint /mcp)", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	common.Info("Shutting down studio server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func newMCPServer() *server.MCPServer {
	return server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
	)
}
