package mcp

import (
	"sync"
	"time"
)

// cursorTracker remembers, per run, the line kanshi_run_logs should resume
// from when the caller omits from_line. Entries expire after window. It is
// per-process and lost on restart; a caller can always pass from_line.
type cursorTracker struct {
	mu      sync.Mutex
	cursors map[string]cursorEntry
	window  time.Duration
	now     func() time.Time
}

type cursorEntry struct {
	next int
	at   time.Time
}

// maxTrackedRuns triggers a purge of stale entries.
const maxTrackedRuns = 1000

func newCursorTracker(window time.Duration) *cursorTracker {
	return &cursorTracker{
		cursors: make(map[string]cursorEntry),
		window:  window,
		now:     time.Now,
	}
}

// Record stores the next line to read for runID.
func (t *cursorTracker) Record(runID string, next int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cursors[runID] = cursorEntry{next: next, at: t.now()}

	if len(t.cursors) > maxTrackedRuns {
		t.purgeStale()
	}
}

// Next returns the remembered cursor for runID, or 0 when none is recent.
func (t *cursorTracker) Next(runID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.cursors[runID]
	if !ok {
		return 0
	}
	if t.now().Sub(e.at) > t.window {
		delete(t.cursors, runID)
		return 0
	}
	return e.next
}

// purgeStale removes expired entries. Must be called with mu held.
func (t *cursorTracker) purgeStale() {
	now := t.now()
	for k, e := range t.cursors {
		if now.Sub(e.at) > t.window {
			delete(t.cursors, k)
		}
	}
}
