package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/spf13/cobra"

	"github.com/ashita-ai/kanshi/internal/client"
	"github.com/ashita-ai/kanshi/internal/logstream"
	"github.com/ashita-ai/kanshi/internal/model"
	"github.com/ashita-ai/kanshi/internal/prefs"
	"github.com/ashita-ai/kanshi/internal/render"
)

func newLogsCmd(a *app) *cobra.Command {
	var (
		from         int
		resume       bool
		retries      uint64
		retryBackoff time.Duration
		interval     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "logs RUN_ID",
		Short: "Follow a run's output until it finishes",
		Long: `Follow a run's output until it finishes.

A stream that fails with a server or network error is resumed from the last
line received, up to --retries times. The position reached is saved so
--resume can pick up where a previous invocation stopped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			runID := args[0]
			if from < 0 {
				return fmt.Errorf("--from must be >= 0, got %d", from)
			}
			if retryBackoff <= 0 {
				return fmt.Errorf("--retry-backoff must be > 0, got %s", retryBackoff)
			}

			c, err := a.client()
			if err != nil {
				return err
			}
			store := a.openPrefsOptional(ctx)
			if store != nil {
				defer func() { _ = store.Close() }()
			}
			if resume && !cmd.Flags().Changed("from") && store != nil {
				cursor, err := store.Cursor(ctx, runID)
				switch {
				case err == nil:
					from = cursor
				case !errors.Is(err, prefs.ErrNotFound):
					a.logger.Warn("saved cursor unreadable", "run_id", runID, "error", err)
				}
			}
			if !cmd.Flags().Changed("interval") {
				interval = a.pollInterval(ctx, store)
			}

			p := prefs.Defaults()
			if store != nil {
				if loaded, err := store.Load(ctx); err == nil {
					p = loaded
				}
			}
			f := &follower{
				ctrl:    logstream.New(c, logstream.Options{Interval: interval, Logger: a.logger}),
				runID:   runID,
				cursor:  from,
				printer: a.printer(p),
				jsonOut: a.jsonOut,
				enc:     json.NewEncoder(a.out),
			}

			backoff := retry.WithMaxRetries(retries, retry.NewExponential(retryBackoff))
			err = retry.Do(ctx, backoff, func(ctx context.Context) error {
				err := f.follow(ctx)
				var outErr *outputError
				if err != nil && !errors.As(err, &outErr) && client.IsRetryable(err) {
					a.logger.Warn("log stream failed, resuming", "run_id", runID, "cursor", f.cursor, "error", err)
					return retry.RetryableError(err)
				}
				return err
			})

			if store != nil {
				// Save even when interrupted; the command context may be done.
				if serr := store.SaveCursor(context.WithoutCancel(ctx), runID, f.cursor); serr != nil {
					a.logger.Warn("saving cursor", "run_id", runID, "error", serr)
				}
			}
			if errors.Is(err, context.Canceled) {
				// Interrupted; the cursor is saved for --resume.
				return nil
			}
			return err
		},
	}

	cmd.Flags().IntVar(&from, "from", 0, "first line number to print")
	cmd.Flags().BoolVar(&resume, "resume", false, "continue from the position saved by the last invocation")
	cmd.Flags().Uint64Var(&retries, "retries", 3, "times to resume a stream after a retryable error")
	cmd.Flags().DurationVar(&retryBackoff, "retry-backoff", time.Second, "initial delay before resuming, doubled each time")
	cmd.Flags().DurationVar(&interval, "interval", 0, "poll interval (default from prefs or $KANSHI_POLL_INTERVAL)")
	return cmd
}

// follower runs one stream at a time from a cursor that survives failed
// attempts.
type follower struct {
	ctrl    *logstream.Controller
	runID   string
	cursor  int
	printer *render.Printer
	jsonOut bool
	enc     *json.Encoder
}

// outputError is a failure to write to the terminal. Resuming the stream
// cannot fix it, so it is never retried.
type outputError struct {
	err error
}

func (e *outputError) Error() string { return "write output: " + e.err.Error() }
func (e *outputError) Unwrap() error { return e.err }

// follow streams from f.cursor until the run completes, the stream fails, or
// ctx ends. f.cursor is left at the first line that was not printed.
func (f *follower) follow(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		streamErr error
		writeErr  error
		failedAt  int
		final     *model.LogPage
	)
	s := f.ctrl.Start(ctx, f.runID, f.cursor, logstream.Handlers{
		OnLine: func(l model.OutputLine) {
			if writeErr != nil {
				return
			}
			if f.jsonOut {
				writeErr = f.enc.Encode(l)
			} else {
				writeErr = f.printer.LogLine(l)
			}
			if writeErr != nil {
				failedAt = l.LineNumber
				cancel()
			}
		},
		OnComplete: func(p model.LogPage) { final = &p },
		OnError:    func(err error) { streamErr = err },
	})
	s.Wait()

	if writeErr != nil {
		f.cursor = failedAt
		return &outputError{err: writeErr}
	}
	f.cursor = s.Cursor()

	switch {
	case streamErr != nil:
		return streamErr
	case final == nil:
		return ctx.Err()
	}

	var err error
	if f.jsonOut {
		err = f.enc.Encode(map[string]any{
			"complete":    true,
			"run_status":  final.RunStatus,
			"total_lines": final.TotalLines,
		})
	} else {
		err = f.printer.LogEnd(*final)
	}
	if err != nil {
		return &outputError{err: err}
	}
	return nil
}
