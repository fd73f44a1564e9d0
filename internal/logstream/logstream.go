// Package logstream turns the pull-only "lines from offset N" logs endpoint
// into an ordered, resumable, cancellable stream of output lines.
//
// Each Stream polls from its own cursor, delivers every new line exactly once
// in line-number order, and stops on completion, on the first transport
// error, or on cancellation. Streams never retry; a caller that wants to
// resume after an error starts a new stream from Stream.Cursor().
package logstream

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/ashita-ai/kanshi/internal/model"
	"github.com/ashita-ai/kanshi/internal/telemetry"
)

// DefaultInterval is the pause between polls of an incomplete run.
const DefaultInterval = 500 * time.Millisecond

// Fetcher retrieves one page of log lines starting at fromLine.
type Fetcher interface {
	FetchLogs(ctx context.Context, runID string, fromLine int) (model.LogPage, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, runID string, fromLine int) (model.LogPage, error)

// FetchLogs calls f.
func (f FetcherFunc) FetchLogs(ctx context.Context, runID string, fromLine int) (model.LogPage, error) {
	return f(ctx, runID, fromLine)
}

// Handlers receive stream events on the stream's goroutine. Any of them may
// be nil. At most one of OnComplete and OnError fires, at most once.
type Handlers struct {
	OnLine     func(model.OutputLine)
	OnComplete func(model.LogPage)
	OnError    func(error)
}

// Options configures a Controller.
type Options struct {
	Interval time.Duration
	Logger   *slog.Logger
}

// Controller starts log streams against a single Fetcher.
type Controller struct {
	fetcher  Fetcher
	interval time.Duration
	logger   *slog.Logger
	metrics  streamMetrics
}

type streamMetrics struct {
	polls  metric.Int64Counter
	lines  metric.Int64Counter
	errors metric.Int64Counter
}

// New creates a Controller. A zero Interval means DefaultInterval.
func New(fetcher Fetcher, opts Options) *Controller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	meter := telemetry.Meter("kanshi/logstream")
	// Instrument creation only fails on invalid names; the no-op fallbacks
	// returned alongside the error are still safe to use.
	polls, _ := meter.Int64Counter("kanshi.logstream.polls",
		metric.WithDescription("Log page fetches issued by streams"))
	lines, _ := meter.Int64Counter("kanshi.logstream.lines",
		metric.WithDescription("Log lines delivered to handlers"))
	errs, _ := meter.Int64Counter("kanshi.logstream.errors",
		metric.WithDescription("Streams stopped by a transport error"))

	return &Controller{
		fetcher:  fetcher,
		interval: opts.Interval,
		logger:   opts.Logger,
		metrics:  streamMetrics{polls: polls, lines: lines, errors: errs},
	}
}

// Start begins polling runID from fromLine and returns immediately. The
// stream stops when ctx is cancelled, when Cancel is called, when the run
// completes, or on the first fetch error.
func (c *Controller) Start(ctx context.Context, runID string, fromLine int, h Handlers) *Stream {
	if fromLine < 0 {
		fromLine = 0
	}
	streamCtx, cancel := context.WithCancel(ctx)
	s := &Stream{
		runID:    runID,
		ctrl:     c,
		handlers: h,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	s.cursor.Store(int64(fromLine))
	s.next = fromLine
	s.state.Store(int32(StateIdle))

	go s.run(streamCtx)
	return s
}
