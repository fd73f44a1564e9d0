// Package model defines the core domain types for Kanshi.
//
// All types mirror the payloads returned by the backend run service. The
// client treats them as read-only views: statuses are server-driven and
// never mutated locally.
package model

import (
	"time"
)

// RunStatus represents the lifecycle state of an executor run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCanceled  RunStatus = "canceled"
)

// IsTerminal reports whether no further transitions can happen.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed, RunStatusCanceled:
		return true
	default:
		return false
	}
}

// Valid reports whether s is one of the known statuses.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusQueued, RunStatusRunning, RunStatusSucceeded, RunStatusFailed, RunStatusCanceled:
		return true
	default:
		return false
	}
}

// Run is one execution of one executor against an instruction.
// FilesChanged is populated if and only if Status is succeeded.
type Run struct {
	ID           string     `json:"id"`
	TaskID       string     `json:"task_id,omitempty"`
	Executor     string     `json:"executor"`
	Status       RunStatus  `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	FilesChanged []FileDiff `json:"files_changed,omitempty"`
}

// Normalize enforces the files-iff-succeeded invariant on a run received
// from the wire. Backends occasionally attach partial diffs to failed runs;
// those are not comparable output and are dropped.
func (r Run) Normalize() Run {
	if r.Status != RunStatusSucceeded {
		r.FilesChanged = nil
	}
	return r
}

// FileDiff is the change a run made to a single file. Patch is a unified
// diff fragment scoped to exactly that file.
type FileDiff struct {
	Path      string `json:"path"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Patch     string `json:"patch,omitempty"`
}

// RunList is the response body for GET /runs.
type RunList struct {
	Runs []Run `json:"runs"`
}

// MaxRunIDLen bounds run identifiers accepted in paths.
const MaxRunIDLen = 128
