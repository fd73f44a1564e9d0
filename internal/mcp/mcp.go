// Package mcp implements the Model Context Protocol server for Kanshi.
//
// The MCP server exposes run comparison, patch parsing, and log paging as
// MCP tools so an agent can review the output of several executors without
// going through the CLI.
package mcp

import (
	"context"
	"log/slog"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/kanshi/internal/client"
	"github.com/ashita-ai/kanshi/internal/model"
)

// RunService is the part of the run service API the tools call.
// *client.Client satisfies it.
type RunService interface {
	GetRun(ctx context.Context, runID string) (model.Run, error)
	GetRuns(ctx context.Context, ids []string) ([]model.Run, error)
	ListRuns(ctx context.Context, opts client.ListOptions) ([]model.Run, error)
	FetchLogs(ctx context.Context, runID string, fromLine int) (model.LogPage, error)
	CancelRun(ctx context.Context, runID string) error
}

// cursorWindow is how long kanshi_run_logs remembers where a caller stopped.
const cursorWindow = 30 * time.Minute

// Server wraps the MCP server with the run service.
type Server struct {
	mcpServer *mcpserver.MCPServer
	runs      RunService
	cursors   *cursorTracker
	logger    *slog.Logger
}

// New creates and configures a new MCP server with all tools, resources and
// prompts registered.
func New(runs RunService, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		runs:    runs,
		cursors: newCursorTracker(cursorWindow),
		logger:  logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"kanshi",
		version,
		mcpserver.WithResourceCapabilities(false, false),
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithPromptCapabilities(false),
	)

	s.registerTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// ServeStdio serves MCP over stdin and stdout until the input closes.
func (s *Server) ServeStdio() error {
	return mcpserver.ServeStdio(s.mcpServer)
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

func textResult(text string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: text},
		},
	}
}
