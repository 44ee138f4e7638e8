package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"leannotes/config"
	"leannotes/internal/app"
	pkgconfig "leannotes/pkg/config"
	"leannotes/pkg/logger"
)

var (
	configEnv string
	configDir string
	dbPath    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "lean",
		Short:         "Local-first notes with sync and background enrichment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configEnv, "env", pkgconfig.GetConfigEnv(), "config environment")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", pkgconfig.GetEnv("CONFIG_DIR", "config"), "config directory")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "local database path (overrides config)")

	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(editCmd())
	rootCmd.AddCommand(rmCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(patternsCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(factCmd())
	rootCmd.AddCommand(summarizeCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withApp builds the application for one command and tears it down afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load(configEnv, configDir)
	if err != nil {
		return err
	}
	if dbPath != "" {
		cfg.Local.Path = dbPath
	}

	log := logger.NewLoggerWithLevel(cfg.LogLevel)
	defer log.Sync()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to start", zap.Error(err))
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}
