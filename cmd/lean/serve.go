package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"leannotes/internal/app"
)

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle against the remote store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.SyncOnce(ctx)
				if errors.Is(err, app.ErrSyncDisabled) {
					fmt.Println("Remote store not configured; notes stay local.")
					return nil
				}
				if err != nil {
					// 临时错误不影响本地数据，下次同步重试
					fmt.Printf("Sync incomplete, will retry: %v\n", err)
					return nil
				}
				if res.Skipped {
					fmt.Println("Not signed in; sync skipped.")
					return nil
				}
				fmt.Printf("Pushed %d, pulled %d, kept local %d, quarantined %d\n",
					res.Pushed, res.Pulled, res.KeptLocal, res.Quarantined)
				a.Queue.Drain(ctx)
				return nil
			})
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run sync, enrichment and pattern loops with the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)

			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				return a.Serve(ctx)
			})
		},
	}
}
