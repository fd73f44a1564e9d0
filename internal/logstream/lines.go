package logstream

import (
	"context"

	"github.com/ashita-ai/kanshi/internal/model"
)

// Lines is a channel view of a stream. The line channel yields the same
// ordered sequence OnLine would see and is closed when the stream stops. The
// error channel then yields at most one value: the fetch error, or ctx.Err()
// if ctx ended the stream. It is closed after the line channel.
//
// Callers must drain the line channel or cancel ctx.
func (c *Controller) Lines(ctx context.Context, runID string, fromLine int) (<-chan model.OutputLine, <-chan error) {
	out := make(chan model.OutputLine)
	errc := make(chan error, 1)

	var streamErr error
	s := c.Start(ctx, runID, fromLine, Handlers{
		OnLine: func(l model.OutputLine) {
			select {
			case out <- l:
			case <-ctx.Done():
			}
		},
		OnError: func(err error) { streamErr = err },
	})

	go func() {
		s.Wait()
		close(out)
		switch {
		case streamErr != nil:
			errc <- streamErr
		case s.State() == StateCancelled && ctx.Err() != nil:
			errc <- ctx.Err()
		}
		close(errc)
	}()
	return out, errc
}
