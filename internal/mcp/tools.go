package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/kanshi/internal/client"
	"github.com/ashita-ai/kanshi/internal/compare"
	"github.com/ashita-ai/kanshi/internal/diff"
	"github.com/ashita-ai/kanshi/internal/model"
)

const (
	defaultLogLines = 200
	maxLogLines     = 1000
	maxTaskRuns     = 500
)

func (s *Server) registerTools() {
	// kanshi_compare_runs: side-by-side file overlap of several runs.
	s.mcpServer.AddTool(
		mcplib.NewTool("kanshi_compare_runs",
			mcplib.WithDescription(`Compare the files changed by several executor runs of the same task.

WHEN TO USE: After two or more executors have attempted a task and you need
to decide which result to keep, or to see where they agree.

Pass either run_ids or task_id. With task_id and latest_only (the default),
only the most recent succeeded run of each executor is compared.

WHAT YOU GET BACK:
- available: false when fewer than two runs succeeded
- runs: each compared run with its stats and file list
- common_files: files every compared run changed
- shared_files: files changed by some but not all runs
- unique_files: per run ID, files no other compared run touched`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithString("run_ids",
				mcplib.Description("Comma-separated run IDs to compare"),
			),
			mcplib.WithString("task_id",
				mcplib.Description("Compare the runs of this task. Ignored when run_ids is set."),
			),
			mcplib.WithBoolean("latest_only",
				mcplib.Description("Keep only the latest succeeded run per executor"),
				mcplib.DefaultBool(true),
			),
		),
		s.handleCompareRuns,
	)

	// kanshi_latest_runs: most recent succeeded run per executor.
	s.mcpServer.AddTool(
		mcplib.NewTool("kanshi_latest_runs",
			mcplib.WithDescription(`List the most recent succeeded run of each executor.

WHEN TO USE: To find which runs are worth reviewing for a task before
calling kanshi_compare_runs or reading patches.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithString("task_id",
				mcplib.Description("Only consider runs of this task"),
			),
			mcplib.WithString("executor",
				mcplib.Description("Only consider runs of this executor"),
			),
		),
		s.handleLatestRuns,
	)

	// kanshi_parse_patch: structure a unified diff.
	s.mcpServer.AddTool(
		mcplib.NewTool("kanshi_parse_patch",
			mcplib.WithDescription(`Parse unified diff text into files, hunks, and classified lines with
old and new line numbers.

Parsing never fails: malformed hunk headers start numbering at line 1 and
unrecognised lines are treated as context.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("patch",
				mcplib.Description("Unified diff text"),
				mcplib.Required(),
			),
			mcplib.WithString("path",
				mcplib.Description("Treat the patch as one file's fragment with this path"),
			),
		),
		s.handleParsePatch,
	)

	// kanshi_run_logs: one page of a run's output.
	s.mcpServer.AddTool(
		mcplib.NewTool("kanshi_run_logs",
			mcplib.WithDescription(`Read a page of a run's output starting at from_line.

Call repeatedly with the returned next_from_line until is_complete is true.
When from_line is omitted the read continues where the previous call for the
same run stopped.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithString("run_id",
				mcplib.Description("Run to read"),
				mcplib.Required(),
			),
			mcplib.WithNumber("from_line",
				mcplib.Description("First line number to return (0-based)"),
				mcplib.Min(0),
			),
			mcplib.WithNumber("max_lines",
				mcplib.Description("Maximum lines to return"),
				mcplib.Min(1),
				mcplib.Max(maxLogLines),
				mcplib.DefaultNumber(defaultLogLines),
			),
		),
		s.handleRunLogs,
	)

	// kanshi_cancel_run: ask the service to stop a run.
	s.mcpServer.AddTool(
		mcplib.NewTool("kanshi_cancel_run",
			mcplib.WithDescription(`Ask the run service to cancel a queued or running run.

The request is advisory: the run may still finish with another status.`),
			mcplib.WithDestructiveHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithString("run_id",
				mcplib.Description("Run to cancel"),
				mcplib.Required(),
			),
		),
		s.handleCancelRun,
	)
}

func (s *Server) handleCompareRuns(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	ids := splitIDs(request.GetString("run_ids", ""))
	taskID := request.GetString("task_id", "")
	latestOnly := request.GetBool("latest_only", true)

	var (
		runs []model.Run
		err  error
	)
	switch {
	case len(ids) > 0:
		runs, err = s.runs.GetRuns(ctx, ids)
	case taskID != "":
		runs, err = s.runs.ListRuns(ctx, client.ListOptions{TaskID: taskID, Limit: maxTaskRuns})
	default:
		return errorResult("run_ids or task_id is required"), nil
	}
	if err != nil {
		return errorResult(serviceErrorMessage(err)), nil
	}

	c, ok := compare.Compare(runs, compare.Options{LatestOnly: latestOnly})
	if !ok {
		succeeded := len(compare.Comparable(runs))
		if latestOnly {
			succeeded = len(compare.LatestSucceededByExecutor(runs))
		}
		return jsonResult(map[string]any{
			"available": false,
			"succeeded": succeeded,
			"reason":    fmt.Sprintf("need at least %d succeeded runs", compare.MinComparable),
		})
	}
	return jsonResult(compactComparison(c))
}

func (s *Server) handleLatestRuns(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	runs, err := s.runs.ListRuns(ctx, client.ListOptions{
		TaskID:   request.GetString("task_id", ""),
		Executor: request.GetString("executor", ""),
		Limit:    maxTaskRuns,
	})
	if err != nil {
		return errorResult(serviceErrorMessage(err)), nil
	}

	latest := compare.LatestSucceededByExecutor(runs)
	selected := make([]model.Run, 0, len(latest))
	for _, r := range latest {
		selected = append(selected, r)
	}
	sort.Slice(selected, func(i, j int) bool { return selected[i].Executor < selected[j].Executor })

	return jsonResult(map[string]any{
		"runs":        compactRuns(selected),
		"can_compare": compare.CanCompare(selected),
	})
}

func (s *Server) handleParsePatch(_ context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	patch := request.GetString("patch", "")
	if strings.TrimSpace(patch) == "" {
		return errorResult("patch is required"), nil
	}

	var files []diff.ParsedFile
	if path := request.GetString("path", ""); path != "" {
		files = []diff.ParsedFile{diff.ParseFileDiff(model.FileDiff{Path: path, Patch: patch})}
	} else {
		files = diff.Parse(patch)
	}
	return jsonResult(map[string]any{"files": files})
}

type logLine struct {
	LineNumber int    `json:"line_number"`
	Content    string `json:"content"`
}

func (s *Server) handleRunLogs(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	runID := request.GetString("run_id", "")
	if runID == "" {
		return errorResult("run_id is required"), nil
	}
	from := request.GetInt("from_line", -1)
	if from < 0 {
		from = s.cursors.Next(runID)
	}
	maxLines := min(max(request.GetInt("max_lines", defaultLogLines), 1), maxLogLines)

	page, err := s.runs.FetchLogs(ctx, runID, from)
	if err != nil {
		return errorResult(serviceErrorMessage(err)), nil
	}

	lines := make([]logLine, 0, min(len(page.Logs), maxLines))
	next := from
	truncated := false
	for _, l := range page.Logs {
		if l.LineNumber < next {
			continue
		}
		if len(lines) == maxLines {
			truncated = true
			break
		}
		lines = append(lines, logLine{LineNumber: l.LineNumber, Content: l.Content})
		next = l.LineNumber + 1
	}
	if !truncated && len(page.Logs) > 0 {
		next = max(next, page.TotalLines)
	}
	s.cursors.Record(runID, next)

	return jsonResult(map[string]any{
		"run_id":         runID,
		"lines":          lines,
		"next_from_line": next,
		"is_complete":    page.IsComplete && !truncated,
		"run_status":     page.RunStatus,
	})
}

func (s *Server) handleCancelRun(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	runID := request.GetString("run_id", "")
	if runID == "" {
		return errorResult("run_id is required"), nil
	}
	if err := s.runs.CancelRun(ctx, runID); err != nil {
		if client.IsConflict(err) {
			return errorResult(fmt.Sprintf("run %s already finished", runID)), nil
		}
		return errorResult(serviceErrorMessage(err)), nil
	}
	s.logger.Info("mcp: run cancel requested", "run_id", runID)
	return jsonResult(map[string]any{"run_id": runID, "status": "cancel_requested"})
}

func serviceErrorMessage(err error) string {
	if client.IsNotFound(err) {
		return "run not found"
	}
	return fmt.Sprintf("run service request failed: %v", err)
}

func splitIDs(s string) []string {
	var ids []string
	for _, part := range strings.Split(s, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal result: %w", err)
	}
	return textResult(string(data)), nil
}
