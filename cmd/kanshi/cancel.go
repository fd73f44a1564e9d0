package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ashita-ai/kanshi/internal/client"
)

func newCancelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel RUN_ID",
		Short: "Ask the run service to stop a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			runID := args[0]

			c, err := a.client()
			if err != nil {
				return err
			}
			if err := c.CancelRun(ctx, runID); err != nil {
				switch {
				case client.IsConflict(err):
					return fmt.Errorf("run %s already finished", runID)
				case client.IsNotFound(err):
					return fmt.Errorf("run %s not found", runID)
				}
				return err
			}
			a.logger.Info("cancel requested", "run_id", runID)

			// Cancellation is asynchronous, so the status may still be running.
			run, err := c.GetRun(ctx, runID)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.writeJSON(run)
			}
			return a.printer(a.loadPrefs(ctx)).RunLine(run)
		},
	}
}
