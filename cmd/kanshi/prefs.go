package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ashita-ai/kanshi/internal/prefs"
)

func newPrefsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Read and change saved preferences",
		Long: fmt.Sprintf(`Read and change saved preferences.

Keys: %s.`, strings.Join(prefs.Keys, ", ")),
	}
	cmd.AddCommand(newPrefsGetCmd(a), newPrefsSetCmd(a))
	return cmd
}

func newPrefsGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get [KEY]",
		Short: "Print one preference, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openPrefs(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			p, err := store.Load(ctx)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				if !slices.Contains(prefs.Keys, args[0]) {
					return fmt.Errorf("unknown key %q", args[0])
				}
				if a.jsonOut {
					return a.writeJSON(map[string]string{args[0]: p.Value(args[0])})
				}
				_, err := fmt.Fprintln(a.out, p.Value(args[0]))
				return err
			}

			if a.jsonOut {
				return a.writeJSON(p)
			}
			for _, k := range prefs.Keys {
				if _, err := fmt.Fprintf(a.out, "%s=%s\n", k, p.Value(k)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newPrefsSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Save one preference",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openPrefs(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.Set(ctx, args[0], args[1]); err != nil {
				return err
			}
			a.logger.Debug("preference saved", "key", args[0])
			return nil
		},
	}
}

