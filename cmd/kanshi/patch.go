package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ashita-ai/kanshi/internal/diff"
)

func newPatchCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "patch [RUN_ID | -]",
		Short: "Show the parsed patches of a run, or of a diff on stdin",
		Long: `Show the parsed patches of a run's changed files with line numbers.

With "-" or no argument a unified diff is read from stdin instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var files []diff.ParsedFile
			if len(args) == 0 || args[0] == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read patch: %w", err)
				}
				if strings.TrimSpace(string(data)) == "" {
					return errors.New("empty patch on stdin")
				}
				files = diff.Parse(string(data))
			} else {
				c, err := a.client()
				if err != nil {
					return err
				}
				run, err := c.GetRun(ctx, args[0])
				if err != nil {
					return err
				}
				for _, fd := range run.FilesChanged {
					if file != "" && fd.Path != file {
						continue
					}
					files = append(files, diff.ParseFileDiff(fd))
				}
				if file != "" && len(files) == 0 {
					return fmt.Errorf("run %s did not change %s", run.ID, file)
				}
			}

			if a.jsonOut {
				if files == nil {
					files = []diff.ParsedFile{}
				}
				return a.writeJSON(files)
			}
			pr := a.printer(a.loadPrefs(ctx))
			for _, f := range files {
				if err := pr.Patch(f); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "show only this path")
	return cmd
}
