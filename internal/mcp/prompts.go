package mcp

import (
	"context"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	// review-runs: walks the agent through picking a result for a task.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("review-runs",
			mcplib.WithPromptDescription("Review the runs of a task and choose which executor's change to keep"),
			mcplib.WithArgument("task_id",
				mcplib.ArgumentDescription("The task whose runs should be reviewed"),
				mcplib.RequiredArgument(),
			),
		),
		s.handleReviewRunsPrompt,
	)

	// watch-run: follow a live run's output to completion.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("watch-run",
			mcplib.WithPromptDescription("Follow a run's output until it finishes"),
			mcplib.WithArgument("run_id",
				mcplib.ArgumentDescription("The run to follow"),
				mcplib.RequiredArgument(),
			),
		),
		s.handleWatchRunPrompt,
	)
}

func (s *Server) handleReviewRunsPrompt(_ context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	taskID := request.Params.Arguments["task_id"]
	if taskID == "" {
		return nil, fmt.Errorf("task_id argument is required")
	}

	return &mcplib.GetPromptResult{
		Description: fmt.Sprintf("Review the runs of task %s", taskID),
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Several executors attempted task %s. Pick the change to keep.

1. CALL kanshi_latest_runs with task_id="%s". If can_compare is false,
   report which executors failed and stop.

2. CALL kanshi_compare_runs with task_id="%s".
   - common_files were changed by every executor. Differences there are
     the most informative.
   - unique_files show what only one executor touched. Decide whether each
     is necessary or scope creep.

3. READ the patches of the files that matter from kanshi://runs/{run_id}.

4. RECOMMEND one run and explain the choice in terms of the files above.`, taskID, taskID, taskID),
				},
			},
		},
	}, nil
}

func (s *Server) handleWatchRunPrompt(_ context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	runID := request.Params.Arguments["run_id"]
	if runID == "" {
		return nil, fmt.Errorf("run_id argument is required")
	}

	return &mcplib.GetPromptResult{
		Description: fmt.Sprintf("Follow run %s", runID),
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`CALL kanshi_run_logs with run_id="%s" and from_line=0, then keep calling it
without from_line until is_complete is true. Summarize errors and the final
run_status. If the output shows the run is stuck, call kanshi_cancel_run.`, runID),
				},
			},
		},
	}, nil
}
