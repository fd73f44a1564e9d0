package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/kanshi/internal/diff"
)

const runURIPrefix = "kanshi://runs/"

func (s *Server) registerResources() {
	// kanshi://runs/{run_id}: one run with its full patches.
	s.mcpServer.AddResourceTemplate(
		mcplib.NewResourceTemplate(
			runURIPrefix+"{run_id}",
			"Run",
			mcplib.WithTemplateDescription("A run with every changed file and its parsed patch"),
			mcplib.WithTemplateMIMEType("application/json"),
		),
		s.handleRunResource,
	)
}

type runResource struct {
	ID       string            `json:"id"`
	TaskID   string            `json:"task_id,omitempty"`
	Executor string            `json:"executor"`
	Status   string            `json:"status"`
	Files    []diff.ParsedFile `json:"files"`
}

func (s *Server) handleRunResource(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	uri := request.Params.URI
	runID := strings.TrimPrefix(uri, runURIPrefix)
	if runID == uri || runID == "" || strings.Contains(runID, "/") {
		return nil, fmt.Errorf("mcp: invalid run URI: %s", uri)
	}

	run, err := s.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("mcp: run resource: %w", err)
	}

	res := runResource{
		ID:       run.ID,
		TaskID:   run.TaskID,
		Executor: run.Executor,
		Status:   string(run.Status),
		Files:    make([]diff.ParsedFile, len(run.FilesChanged)),
	}
	for i, f := range run.FilesChanged {
		res.Files[i] = diff.ParseFileDiff(f)
	}

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal run: %w", err)
	}

	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
