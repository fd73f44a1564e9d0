package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/kanshi/internal/devserver"
)

func newDevServerCmd(a *app) *cobra.Command {
	var (
		port           int
		fixture        string
		replayInterval time.Duration
		pollRate       float64
		pollBurst      int
		pageSize       int
	)
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run an in-memory run service seeded from a fixture",
		Long: `Run an in-memory run service seeded from a YAML fixture.

Live runs in the fixture start as running and have their output replayed
line by line so "kanshi logs" has something to follow.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("port") {
				port = a.cfg.DevPort
			}
			if !cmd.Flags().Changed("fixture") {
				fixture = a.cfg.DevFixture
			}

			fx, err := devserver.LoadFixture(fixture)
			if err != nil {
				return err
			}
			store := devserver.NewStore(pageSize)
			replays, err := fx.Seed(store)
			if err != nil {
				return err
			}
			a.logger.Info("fixture seeded", "runs", store.Len(), "live", len(replays))

			srv := devserver.New(devserver.Config{
				Store:        store,
				Logger:       a.logger,
				Port:         port,
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 30 * time.Second,
				Version:      version,
				PollRate:     pollRate,
				PollBurst:    pollBurst,
			})
			replayer := devserver.NewReplayer(store, replayInterval, a.logger)

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(srv.Start)
			g.Go(func() error {
				if err := replayer.ReplayAll(ctx, replays); err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}

	cmd.Flags().IntVar(&port, "port", 8090, "listen port (default $KANSHI_DEV_PORT)")
	cmd.Flags().StringVar(&fixture, "fixture", "", "YAML fixture of runs (default $KANSHI_DEV_FIXTURE, else the built-in demo)")
	cmd.Flags().DurationVar(&replayInterval, "replay-interval", devserver.DefaultReplayInterval, "delay between replayed log lines")
	cmd.Flags().Float64Var(&pollRate, "poll-rate", 0, "log polls per second allowed per client; 0 disables limiting")
	cmd.Flags().IntVar(&pollBurst, "poll-burst", 10, "log poll burst per client")
	cmd.Flags().IntVar(&pageSize, "page-size", devserver.DefaultPageSize, "maximum lines per log page")
	return cmd
}
