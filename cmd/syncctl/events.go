package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	eventsLimit    int
	eventsCategory string
	eventsJSON     bool
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recent media actions from the sync log",
	Args:  cobra.NoArgs,
	RunE:  runEvents,
}

func init() {
	eventsCmd.Flags().IntVarP(&eventsLimit, "limit", "n", 20, "maximum number of events")
	eventsCmd.Flags().StringVarP(&eventsCategory, "category", "c", "", "only show this category")
	eventsCmd.Flags().BoolVar(&eventsJSON, "json", false, "output events as JSON")
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, _ []string) error {
	events, err := application.Database.ListSyncEvents(cmd.Context(), eventsCategory, eventsLimit)
	if err != nil {
		return fmt.Errorf("list sync events: %w", err)
	}

	if eventsJSON {
		data, err := json.MarshalIndent(events, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal events: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(events) == 0 {
		cmd.Println("No sync events recorded.")
		return nil
	}
	for _, event := range events {
		cmd.Printf("%s  %-9s  %-7s %-6s %s %s\n",
			event.CreatedAt.Format("2006-01-02 15:04:05"),
			event.Category,
			event.Action,
			event.Outcome,
			event.RecordID,
			event.Detail,
		)
	}
	return nil
}
