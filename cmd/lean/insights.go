package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"leannotes/internal/app"
	"leannotes/internal/patterns"
)

func patternsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "patterns",
		Short: "Recompute and show patterns and insights",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				a.Queue.Sweep(ctx)
				snap, err := a.Patterns.Recompute(ctx)
				if err != nil {
					return err
				}

				if len(snap.Patterns) == 0 && len(snap.Insights) == 0 {
					fmt.Println("Not enough history for patterns yet.")
					return nil
				}
				for _, p := range snap.Patterns {
					fmt.Printf("%.2f  %s\n", p.Metrics.Confidence, patterns.Describe(p))
				}
				if len(snap.Insights) > 0 {
					fmt.Println()
					for _, in := range snap.Insights {
						fmt.Printf("* %s\n", in.Text)
					}
				}
				if len(snap.Promoted) > 0 {
					fmt.Println()
					fmt.Println("Learned phrases:")
					for _, p := range snap.Promoted {
						fmt.Printf("  %s (%s, used %d times)\n", p.Phrase, p.Category, p.UsageCount)
					}
				}
				return nil
			})
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show writing statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				snap, err := a.Patterns.Recompute(ctx)
				if err != nil {
					return err
				}
				s := snap.Stats

				fmt.Printf("Entries:   %d total, %d today, %d this week\n", s.TotalEntries, s.Today, s.ThisWeek)
				fmt.Printf("Streak:    %d days (longest %d)\n", s.CurrentStreak, s.LongestStreak)
				fmt.Printf("Trend:     %+.0f%% vs previous week\n", s.TrendPercent)
				if s.BestDay != "" {
					fmt.Printf("Best day:  %s\n", s.BestDay)
				}
				fmt.Printf("Average:   %.1f per active day\n", s.AveragePerActiveDay)

				var bars []string
				for _, d := range s.Activity {
					bars = append(bars, fmt.Sprintf("%s %d", d.Day.Format("Mon"), d.Count))
				}
				fmt.Printf("Activity:  %s\n", strings.Join(bars, "  "))

				if len(s.TopTags) > 0 {
					tags := make([]string, 0, len(s.TopTags))
					for _, t := range s.TopTags {
						tags = append(tags, fmt.Sprintf("#%s (%d)", t.Tag, t.Count))
					}
					fmt.Printf("Top tags:  %s\n", strings.Join(tags, ", "))
				}
				for _, st := range snap.Streaks {
					if st.Type == patterns.StreakWriting {
						continue
					}
					fmt.Printf("Streak %s: %d days (best %d)\n", st.Type, st.Current, st.Best)
				}
				return nil
			})
		},
	}
}

func summarizeCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Summarize recent notes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				summary, method, err := a.Summarize(ctx, time.Duration(days)*24*time.Hour)
				if err != nil {
					return err
				}
				fmt.Println(summary)
				fmt.Printf("(%s)\n", method)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&days, "days", "d", 7, "how many days back to summarize")
	return cmd
}
