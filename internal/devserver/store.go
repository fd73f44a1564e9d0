// Package devserver is an in-memory implementation of the run service API
// for local development and end-to-end tests. It serves the same envelope and
// endpoints the real backend does, seeds runs from a YAML fixture, and can
// replay log output on a timer to exercise live streaming.
package devserver

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/kanshi/internal/model"
)

var (
	// ErrRunNotFound is returned for an unknown run ID.
	ErrRunNotFound = errors.New("devserver: run not found")
	// ErrRunFinished is returned when mutating a run in a terminal state.
	ErrRunFinished = errors.New("devserver: run already finished")
	// ErrRunExists is returned by CreateRun for a duplicate ID.
	ErrRunExists = errors.New("devserver: run already exists")
)

// DefaultPageSize bounds the lines returned by one Logs call.
const DefaultPageSize = 1000

type runRecord struct {
	run  model.Run
	logs []model.OutputLine
}

// Store holds runs and their output. All methods are safe for concurrent use
// and return copies.
type Store struct {
	mu       sync.RWMutex
	runs     map[string]*runRecord
	pageSize int
	now      func() time.Time
}

// NewStore creates an empty store. pageSize <= 0 means DefaultPageSize.
func NewStore(pageSize int) *Store {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Store{
		runs:     make(map[string]*runRecord),
		pageSize: pageSize,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateRun adds a run. A missing ID is generated, a missing status becomes
// queued, and a zero CreatedAt becomes now. Files on a run that did not
// succeed are dropped.
func (s *Store) CreateRun(run model.Run) (model.Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if err := model.ValidateRunID(run.ID); err != nil {
		return model.Run{}, fmt.Errorf("devserver: %w", err)
	}
	if run.Status == "" {
		run.Status = model.RunStatusQueued
	}
	if !run.Status.Valid() {
		return model.Run{}, fmt.Errorf("devserver: invalid status %q", run.Status)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now()
	}
	if run.Status.IsTerminal() && run.CompletedAt == nil {
		at := run.CreatedAt
		run.CompletedAt = &at
	}
	run = run.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; ok {
		return model.Run{}, fmt.Errorf("%w: %s", ErrRunExists, run.ID)
	}
	s.runs[run.ID] = &runRecord{run: cloneRun(run)}
	return cloneRun(run), nil
}

// AppendLogs adds output lines to a run, numbering them after the existing
// ones. A queued run moves to running.
func (s *Store) AppendLogs(runID string, contents ...string) ([]model.OutputLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.lookup(runID)
	if err != nil {
		return nil, err
	}
	if rec.run.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s", ErrRunFinished, runID)
	}
	if rec.run.Status == model.RunStatusQueued {
		rec.run.Status = model.RunStatusRunning
	}

	now := s.now()
	added := make([]model.OutputLine, len(contents))
	for i, c := range contents {
		added[i] = model.OutputLine{LineNumber: len(rec.logs), Content: c, Timestamp: now}
		rec.logs = append(rec.logs, added[i])
	}
	return added, nil
}

// Finish moves a run to a terminal status. Files are kept only on success.
func (s *Store) Finish(runID string, status model.RunStatus, files []model.FileDiff) (model.Run, error) {
	if !status.IsTerminal() {
		return model.Run{}, fmt.Errorf("devserver: %q is not a terminal status", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.lookup(runID)
	if err != nil {
		return model.Run{}, err
	}
	if rec.run.Status.IsTerminal() {
		return model.Run{}, fmt.Errorf("%w: %s is %s", ErrRunFinished, runID, rec.run.Status)
	}
	now := s.now()
	rec.run.Status = status
	rec.run.CompletedAt = &now
	rec.run.FilesChanged = slices.Clone(files)
	rec.run = rec.run.Normalize()
	return cloneRun(rec.run), nil
}

// Cancel marks a queued or running run as canceled.
func (s *Store) Cancel(runID string) (model.Run, error) {
	return s.Finish(runID, model.RunStatusCanceled, nil)
}

// GetRun returns one run.
func (s *Store) GetRun(runID string) (model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.lookup(runID)
	if err != nil {
		return model.Run{}, err
	}
	return cloneRun(rec.run), nil
}

// ListFilter narrows ListRuns. Zero values match everything.
type ListFilter struct {
	TaskID   string
	Executor string
	Limit    int
}

// ListRuns returns matching runs, newest first, ties broken by ID.
func (s *Store) ListRuns(f ListFilter) []model.Run {
	s.mu.RLock()
	out := make([]model.Run, 0, len(s.runs))
	for _, rec := range s.runs {
		if f.TaskID != "" && rec.run.TaskID != f.TaskID {
			continue
		}
		if f.Executor != "" && rec.run.Executor != f.Executor {
			continue
		}
		out = append(out, cloneRun(rec.run))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// Logs returns up to one page of lines with LineNumber >= from. The page is
// complete only when the run is terminal and no lines remain after it.
//
// TotalLines counts lines through the end of the page, so a client that
// resumes from TotalLines never skips a line held back by paging.
func (s *Store) Logs(runID string, from int) (model.LogPage, error) {
	if from < 0 {
		from = 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := s.lookup(runID)
	if err != nil {
		return model.LogPage{}, err
	}
	total := len(rec.logs)
	end := total
	if from < total && end-from > s.pageSize {
		end = from + s.pageSize
	}
	lines := []model.OutputLine{}
	if from < total {
		lines = slices.Clone(rec.logs[from:end])
	}
	return model.LogPage{
		Logs:       lines,
		IsComplete: rec.run.Status.IsTerminal() && (from >= total || end == total),
		TotalLines: end,
		RunStatus:  rec.run.Status,
	}, nil
}

// Len is the number of runs held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}

func (s *Store) lookup(runID string) (*runRecord, error) {
	rec, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return rec, nil
}

func cloneRun(r model.Run) model.Run {
	r.FilesChanged = slices.Clone(r.FilesChanged)
	if r.CompletedAt != nil {
		at := *r.CompletedAt
		r.CompletedAt = &at
	}
	return r
}
