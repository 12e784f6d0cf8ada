// Package cli defines the formsctl commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"voice-forms-go/internal/app"
	"voice-forms-go/internal/config"
	"voice-forms-go/internal/logger"
)

var (
	configFile   string
	drainTimeout time.Duration
	version      = "dev" // set via ldflags at build time
)

var rootCmd = &cobra.Command{
	Use:           "formsctl",
	Short:         "Operate the voice forms enrichment service",
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config overlay (overrides CONFIG_FILE)")
	rootCmd.PersistentFlags().DurationVar(&drainTimeout, "drain-timeout", 5*time.Minute, "How long to wait for queued enrichment on exit")

	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

// withApp builds the service, starts its workers, runs fn and drains the
// queue before returning.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	if configFile != "" {
		if err := os.Setenv("CONFIG_FILE", configFile); err != nil {
			return err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logger.NewWithOptions(logger.Options{Environment: cfg.Environment, Level: cfg.LogLevel, Output: cmd.ErrOrStderr()})

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	a.Dispatcher.Start()

	runErr := fn(ctx, a)

	shutdown, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := a.Close(shutdown); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
