package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	syncCategory   string
	syncRevalidate bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync cycle for a category",
	Long: `Drains pending webhook payloads for the category, uploads or deletes
images and advances the stored cursor, exactly as a webhook notification would.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVarP(&syncCategory, "category", "c", "team", "category to sync (team or portfolio)")
	syncCmd.Flags().BoolVar(&syncRevalidate, "revalidate", true, "notify the website after a successful cycle")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	pipeline, err := application.Pipeline(syncCategory)
	if err != nil {
		return err
	}
	result, err := pipeline.RunCycle(cmd.Context())
	if err != nil {
		return fmt.Errorf("sync %s: %w", syncCategory, err)
	}
	if syncRevalidate {
		if err := application.Revalidator.Revalidate(cmd.Context(), pipeline.Category().RevalidatePath); err != nil {
			cmd.PrintErrf("revalidate failed: %v\n", err)
		}
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
