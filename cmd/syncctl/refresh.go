package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ugfund/ugfsync/internal/mediasync"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Extend the lifetime of the configured Airtable webhooks",
	Args:  cobra.NoArgs,
	RunE:  runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, _ []string) error {
	cfg := application.Config
	if !application.Webhooks.Enabled() || cfg.Airtable.BaseID == "" {
		return errors.New("AIRTABLE_WEBHOOK_PAT and AIRTABLE_BASE_ID are required")
	}

	targets := map[string]string{
		mediasync.CategoryTeam:      cfg.Airtable.Team.WebhookID,
		mediasync.CategoryPortfolio: cfg.Airtable.Deals.WebhookID,
	}
	refreshed := 0
	for _, category := range []string{mediasync.CategoryTeam, mediasync.CategoryPortfolio} {
		webhookID := targets[category]
		if webhookID == "" {
			cmd.Printf("%s: no webhook configured, skipped\n", category)
			continue
		}
		result, err := application.Webhooks.RefreshWebhook(cmd.Context(), cfg.Airtable.BaseID, webhookID)
		if err != nil {
			return fmt.Errorf("refresh %s webhook: %w", category, err)
		}
		expires := "unknown"
		if result.ExpirationTime != nil {
			expires = *result.ExpirationTime
		}
		cmd.Printf("%s: refreshed %s, expires %s\n", category, webhookID, expires)
		refreshed++
	}
	if refreshed == 0 {
		return errors.New("no webhooks configured")
	}
	return nil
}
