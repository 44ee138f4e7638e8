package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"leannotes/internal/app"
)

func factCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fact",
		Short: "Manage facts used as enrichment context",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add [fact]",
		Short: "Remember a fact about yourself",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				f, err := a.AddFact(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Printf("Remembered (%s): %s\n", f.Category, f.Fact)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List active facts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				facts, err := a.Facts.ListActive(ctx)
				if err != nil {
					return err
				}
				if len(facts) == 0 {
					fmt.Println("No facts yet. Use 'lean fact add' to add one.")
					return nil
				}
				for _, f := range facts {
					fmt.Printf("%s  %-10s  %s\n", shortID(f.ID), f.Category, f.Fact)
				}
				return nil
			})
		},
	})
	return cmd
}
