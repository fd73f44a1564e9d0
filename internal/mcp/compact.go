package mcp

import (
	"github.com/ashita-ai/kanshi/internal/compare"
	"github.com/ashita-ai/kanshi/internal/model"
)

// compactRun returns a minimal representation of a run for MCP responses.
// Patches are dropped; agents fetch them through kanshi://runs/{run_id}
// when they need the full text.
func compactRun(r model.Run) map[string]any {
	m := map[string]any{
		"id":         r.ID,
		"executor":   r.Executor,
		"status":     r.Status,
		"created_at": r.CreatedAt,
	}
	if r.TaskID != "" {
		m["task_id"] = r.TaskID
	}
	if r.CompletedAt != nil {
		m["completed_at"] = r.CompletedAt
	}
	if r.Status == model.RunStatusSucceeded {
		m["stats"] = compare.Stats(r)
		files := make([]string, len(r.FilesChanged))
		for i, f := range r.FilesChanged {
			files[i] = f.Path
		}
		m["files"] = files
	}
	return m
}

func compactRuns(runs []model.Run) []map[string]any {
	out := make([]map[string]any, len(runs))
	for i, r := range runs {
		out[i] = compactRun(r)
	}
	return out
}

// compactComparison flattens a comparison into the shape returned by
// kanshi_compare_runs.
func compactComparison(c compare.Comparison) map[string]any {
	runs := make([]map[string]any, len(c.Runs))
	for i, s := range c.Runs {
		runs[i] = compactRun(s.Run)
	}
	return map[string]any{
		"available":    true,
		"runs":         runs,
		"common_files": c.Overlap.CommonFiles,
		"shared_files": c.Overlap.Shared(),
		"unique_files": c.Overlap.UniqueFiles,
	}
}
