package main

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ugfund/ugfsync/internal/app"
	"github.com/ugfund/ugfsync/internal/config"
	"github.com/ugfund/ugfsync/internal/observability"
)

// application is built before every subcommand and closed after it.
var application *app.App

var rootCmd = &cobra.Command{
	Use:   "syncctl",
	Short: "Operate the Airtable media sync",
	Long: `syncctl runs sync cycles, refreshes Airtable webhooks and inspects the
stored cursors and sync log using the same configuration as the server.`,
	SilenceUsage:      true,
	PersistentPreRunE: openApplication,
	PersistentPostRunE: func(*cobra.Command, []string) error {
		return closeApplication()
	},
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if closeErr := closeApplication(); err == nil {
		err = closeErr
	}
	return err
}

func openApplication(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "help" || cmd.Name() == "completion" {
		return nil
	}
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}
	cfg, err := config.LoadForTool()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log := observability.NewLogger(cfg.IsProduction())
	slog.SetDefault(log)

	built, err := app.New(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	application = built
	return nil
}

func closeApplication() error {
	if application == nil {
		return nil
	}
	err := application.Close()
	application = nil
	return err
}
