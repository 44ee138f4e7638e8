package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"leannotes/internal/app"
	"leannotes/internal/entrystore"
	"leannotes/internal/model"
)

const shortIDLen = 8

func addCmd() *cobra.Command {
	var noSettle bool

	cmd := &cobra.Command{
		Use:   "add [content]",
		Short: "Capture a note",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				e, err := a.Store.Insert(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Printf("Added %s\n", shortID(e.ID))
				if !noSettle {
					a.Settle(ctx)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&noSettle, "no-settle", false, "skip enrichment and sync after the write")
	return cmd
}

func editCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit [id] [content]",
		Short: "Replace a note's content",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				id, err := resolveID(ctx, a.Store, args[0])
				if err != nil {
					return err
				}
				e, err := a.Store.Update(ctx, id, strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				fmt.Printf("Updated %s\n", shortID(e.ID))
				a.Settle(ctx)
				return nil
			})
		},
	}
}

func rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm [id]",
		Short: "Delete a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				id, err := resolveID(ctx, a.Store, args[0])
				if err != nil {
					return err
				}
				if err := a.Store.Delete(ctx, id); err != nil {
					return err
				}
				fmt.Printf("Deleted %s\n", shortID(id))
				a.Settle(ctx)
				return nil
			})
		},
	}
}

func listCmd() *cobra.Command {
	var (
		limit     int
		tag       string
		contains  string
		today     bool
		yesterday bool
		week      bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent notes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				var (
					entries []*model.Entry
					err     error
				)
				switch {
				case today:
					entries, err = a.Store.Today(ctx)
				case yesterday:
					entries, err = a.Store.Yesterday(ctx)
				case week:
					entries, err = a.Store.LastWeek(ctx)
				default:
					entries, err = a.Store.Query(ctx, entrystore.Predicate{Contains: contains, Tag: tag}, limit)
				}
				if err != nil {
					return err
				}

				if len(entries) == 0 {
					fmt.Println("No notes yet. Use 'lean add' to capture one.")
					return nil
				}
				for _, e := range entries {
					fmt.Printf("%s  %s  %-8s  %s\n", shortID(e.ID), e.CreatedAt.Format("2006-01-02 15:04"), e.SyncState, truncate(e.Content, 60))
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of notes to show")
	cmd.Flags().StringVarP(&tag, "tag", "t", "", "only notes with this tag")
	cmd.Flags().StringVarP(&contains, "search", "s", "", "only notes containing this text")
	cmd.Flags().BoolVar(&today, "today", false, "notes created today")
	cmd.Flags().BoolVar(&yesterday, "yesterday", false, "notes created yesterday")
	cmd.Flags().BoolVar(&week, "week", false, "notes from the last 7 days")
	cmd.MarkFlagsMutuallyExclusive("today", "yesterday", "week")
	return cmd
}

// resolveID accepts a full id or a unique prefix of a live note's id.
func resolveID(ctx context.Context, store *entrystore.Store, ref string) (string, error) {
	if _, err := store.Get(ctx, ref); err == nil {
		return ref, nil
	}

	entries, err := store.Query(ctx, entrystore.Predicate{}, 0)
	if err != nil {
		return "", err
	}
	var found []string
	for _, e := range entries {
		if strings.HasPrefix(e.ID, ref) {
			found = append(found, e.ID)
		}
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("%w: %s", entrystore.ErrNotFound, ref)
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("ambiguous id %q matches %d notes", ref, len(found))
	}
}

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
