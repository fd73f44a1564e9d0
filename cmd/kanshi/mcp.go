package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	kanshimcp "github.com/ashita-ai/kanshi/internal/mcp"
)

func newMCPCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the run tools over the Model Context Protocol",
		Long: `Serve the run tools over the Model Context Protocol.

By default the server speaks MCP on stdin and stdout. With --http it serves
the streamable HTTP transport at /mcp on the given address instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			srv := kanshimcp.New(c, a.logger, version)
			if addr == "" {
				a.logger.Info("mcp server on stdio", "base_url", a.cfg.BaseURL)
				return srv.ServeStdio()
			}
			return serveMCPHTTP(cmd.Context(), a, srv, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "http", "", "serve streamable HTTP on this address, e.g. :8091")
	return cmd
}

func serveMCPHTTP(ctx context.Context, a *app, srv *kanshimcp.Server, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(srv.MCPServer()))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("mcp server on http", "addr", addr, "base_url", a.cfg.BaseURL)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("mcp server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
