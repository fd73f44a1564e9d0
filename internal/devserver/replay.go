package devserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultReplayInterval is the pause between replayed log lines.
const DefaultReplayInterval = 200 * time.Millisecond

// Replayer appends a live run's output to the store one line per tick and
// then finishes the run, imitating an executor that is still working.
type Replayer struct {
	store    *Store
	interval time.Duration
	logger   *slog.Logger
}

// NewReplayer creates a Replayer. interval <= 0 means DefaultReplayInterval.
func NewReplayer(store *Store, interval time.Duration, logger *slog.Logger) *Replayer {
	if interval <= 0 {
		interval = DefaultReplayInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Replayer{store: store, interval: interval, logger: logger}
}

// Replay drips rp.Lines and then moves the run to rp.Status. If the run is
// canceled part way the replay stops quietly.
func (r *Replayer) Replay(ctx context.Context, rp Replay) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for _, line := range rp.Lines {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if _, err := r.store.AppendLogs(rp.RunID, line); err != nil {
			if errors.Is(err, ErrRunFinished) {
				r.logger.Info("replay stopped, run finished elsewhere", "run_id", rp.RunID)
				return nil
			}
			return fmt.Errorf("devserver: replay %s: %w", rp.RunID, err)
		}
	}

	if !rp.Status.IsTerminal() {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ticker.C:
	}
	if _, err := r.store.Finish(rp.RunID, rp.Status, rp.Files); err != nil {
		if errors.Is(err, ErrRunFinished) {
			return nil
		}
		return fmt.Errorf("devserver: finish replay %s: %w", rp.RunID, err)
	}
	r.logger.Debug("replay finished", "run_id", rp.RunID, "lines", len(rp.Lines), "status", rp.Status)
	return nil
}

// ReplayAll replays every run concurrently and returns the first error.
func (r *Replayer) ReplayAll(ctx context.Context, replays []Replay) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, rp := range replays {
		g.Go(func() error { return r.Replay(gctx, rp) })
	}
	return g.Wait()
}
