package logstream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashita-ai/kanshi/internal/model"
)

// State is the lifecycle position of a Stream.
type State int32

const (
	StateIdle State = iota
	StatePolling
	StateCompleted
	StateCancelled
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Stream is one live subscription to a run's output. Streams share nothing
// with each other.
type Stream struct {
	runID    string
	ctrl     *Controller
	handlers Handlers

	cancel    context.CancelFunc
	cancelled atomic.Bool
	state     atomic.Int32
	cursor    atomic.Int64
	done      chan struct{}

	// mu covers the stopped check and the handler call that follows it.
	// inHandler is set while a handler runs.
	mu        sync.Mutex
	inHandler atomic.Bool

	// next is the smallest line number not yet delivered. Owned by run.
	next int
}

// Cancel stops the stream. Once Cancel returns no handler starts, even for a
// response that was already in flight. A handler already running may finish.
// Cancel does not wait for the stream goroutine, so it is safe to call from
// inside a handler, and calling it more than once is harmless.
func (s *Stream) Cancel() {
	s.cancelled.Store(true)
	s.cancel()
	// Outside a handler, wait out a check that passed before the flag was
	// set. Inside one, the lock is already held.
	if !s.inHandler.Load() {
		s.mu.Lock()
		s.mu.Unlock()
	}
}

// Done is closed when the stream goroutine has exited.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Wait blocks until the stream goroutine has exited.
func (s *Stream) Wait() { <-s.done }

// Cursor is the from_line the next poll would use. After an error it is the
// offset to resume from.
func (s *Stream) Cursor() int { return int(s.cursor.Load()) }

// State reports where the stream is in its lifecycle.
func (s *Stream) State() State { return State(s.state.Load()) }

// RunID is the run this stream follows.
func (s *Stream) RunID() string { return s.runID }

func (s *Stream) stopped(ctx context.Context) bool {
	return s.cancelled.Load() || ctx.Err() != nil
}

// emit calls fn unless the stream has stopped, and reports whether it did.
func (s *Stream) emit(ctx context.Context, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped(ctx) {
		return false
	}
	s.inHandler.Store(true)
	defer s.inHandler.Store(false)
	fn()
	return true
}

func (s *Stream) run(ctx context.Context) {
	defer close(s.done)
	defer s.cancel()

	c := s.ctrl
	log := c.logger.With("run_id", s.runID)
	s.state.Store(int32(StatePolling))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.state.Store(int32(StateCancelled))
			return
		case <-timer.C:
		}

		from := s.Cursor()
		c.metrics.polls.Add(ctx, 1)
		page, err := c.fetcher.FetchLogs(ctx, s.runID, from)

		// A response that lands after cancellation is discarded whole.
		if s.stopped(ctx) {
			s.state.Store(int32(StateCancelled))
			log.Debug("logstream: cancelled", "cursor", from)
			return
		}
		if err != nil {
			c.metrics.errors.Add(context.WithoutCancel(ctx), 1)
			log.Warn("logstream: fetch failed", "cursor", from, "error", err)
			if !s.emit(ctx, func() {
				s.state.Store(int32(StateErrored))
				if s.handlers.OnError != nil {
					s.handlers.OnError(err)
				}
			}) {
				s.state.Store(int32(StateCancelled))
			}
			return
		}

		if !s.deliver(ctx, page.Logs) {
			s.state.Store(int32(StateCancelled))
			return
		}
		if len(page.Logs) > 0 {
			// The server's count is authoritative, not cursor + len(logs).
			s.cursor.Store(int64(page.TotalLines))
		}

		if page.IsComplete {
			if !s.emit(ctx, func() {
				s.state.Store(int32(StateCompleted))
				log.Debug("logstream: complete", "total_lines", page.TotalLines, "run_status", page.RunStatus)
				if s.handlers.OnComplete != nil {
					s.handlers.OnComplete(page)
				}
			}) {
				s.state.Store(int32(StateCancelled))
			}
			return
		}

		timer.Reset(c.interval)
	}
}

// deliver hands each new line to OnLine in array order. Lines below the next
// expected number were already delivered and are skipped. It reports false
// if the stream was cancelled part way.
func (s *Stream) deliver(ctx context.Context, lines []model.OutputLine) bool {
	var delivered int64
	defer func() {
		if delivered > 0 {
			s.ctrl.metrics.lines.Add(context.WithoutCancel(ctx), delivered)
		}
	}()

	for _, line := range lines {
		if line.LineNumber < s.next {
			continue
		}
		if !s.emit(ctx, func() {
			if s.handlers.OnLine != nil {
				s.handlers.OnLine(line)
			}
		}) {
			return false
		}
		delivered++
		s.next = line.LineNumber + 1
	}
	return true
}
