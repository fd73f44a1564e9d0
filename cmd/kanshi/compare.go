package main

import (
	"errors"
	"slices"

	"github.com/spf13/cobra"

	"github.com/ashita-ai/kanshi/internal/client"
	"github.com/ashita-ai/kanshi/internal/compare"
	"github.com/ashita-ai/kanshi/internal/model"
)

func newCompareCmd(a *app) *cobra.Command {
	var (
		taskID     string
		latestOnly bool
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "compare [run-id...]",
		Short: "Compare the files changed by several runs",
		Long: `Compare the files changed by several runs of the same task.

Pass run IDs, or --task to compare every run of a task. With --task only the
pinned executors are considered when the pinned_executors preference is set.
At least two succeeded runs are needed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) == 0 && taskID == "" {
				return errors.New("pass run IDs or --task")
			}

			p := a.loadPrefs(ctx)
			if !cmd.Flags().Changed("latest-only") {
				latestOnly = p.LatestOnly
			}

			c, err := a.client()
			if err != nil {
				return err
			}
			var runs []model.Run
			if len(args) > 0 {
				runs, err = c.GetRuns(ctx, args)
			} else {
				runs, err = c.ListRuns(ctx, client.ListOptions{TaskID: taskID, Limit: limit})
				runs = pinnedOnly(runs, p.PinnedExecutors)
			}
			if err != nil {
				return err
			}

			cmp, ok := compare.Compare(runs, compare.Options{LatestOnly: latestOnly})
			if !ok {
				succeeded := len(compare.Comparable(runs))
				if latestOnly {
					succeeded = len(compare.LatestSucceededByExecutor(runs))
				}
				if a.jsonOut {
					return a.writeJSON(map[string]any{"available": false, "succeeded": succeeded})
				}
				return a.printer(p).Unavailable(succeeded)
			}

			a.logger.Debug("compared runs", "runs", len(cmp.Runs), "common_files", len(cmp.Overlap.CommonFiles))
			if a.jsonOut {
				return a.writeJSON(cmp)
			}
			return a.printer(p).Comparison(cmp)
		},
	}

	cmd.Flags().StringVar(&taskID, "task", "", "compare the runs of this task")
	cmd.Flags().BoolVar(&latestOnly, "latest-only", false, "keep only the latest succeeded run per executor (default from prefs)")
	cmd.Flags().IntVar(&limit, "limit", 200, "maximum runs to fetch with --task")
	return cmd
}

// pinnedOnly keeps runs of the pinned executors. No pins keeps everything.
func pinnedOnly(runs []model.Run, pinned []string) []model.Run {
	if len(pinned) == 0 {
		return runs
	}
	out := make([]model.Run, 0, len(runs))
	for _, r := range runs {
		if slices.Contains(pinned, r.Executor) {
			out = append(out, r)
		}
	}
	return out
}
