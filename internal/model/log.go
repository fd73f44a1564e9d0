package model

import "time"

// OutputLine is a single line of executor output. LineNumber is 0-based and
// forms a contiguous, strictly increasing sequence per run.
type OutputLine struct {
	LineNumber int       `json:"line_number"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

// LogPage is the response body for GET /runs/{run_id}/logs?from_line=N.
// Logs only holds lines with LineNumber >= N in increasing order and may be
// empty while the run is still producing output.
type LogPage struct {
	Logs       []OutputLine `json:"logs"`
	IsComplete bool         `json:"is_complete"`
	TotalLines int          `json:"total_lines"`
	RunStatus  RunStatus    `json:"run_status"`
}
