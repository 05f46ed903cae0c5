package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ugfund/ugfsync/internal/app"
	"github.com/ugfund/ugfsync/internal/cursor"
)

var cursorCategory string

var cursorCmd = &cobra.Command{
	Use:   "cursor",
	Short: "Inspect or move a category's payload cursor",
}

var cursorGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the stored cursor",
	Args:  cobra.NoArgs,
	RunE:  runCursorGet,
}

var cursorSetCmd = &cobra.Command{
	Use:   "set [cursor]",
	Short: "Store a cursor value",
	Long:  `Stores a positive integer cursor. The next cycle fetches payloads from this position.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runCursorSet,
}

var cursorClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored cursor",
	Long:  `Removes the cursor so the next cycle starts from the oldest payload Airtable retains.`,
	Args:  cobra.NoArgs,
	RunE:  runCursorClear,
}

func init() {
	cursorCmd.PersistentFlags().StringVarP(&cursorCategory, "category", "c", "team", "category (team or portfolio)")
	cursorCmd.AddCommand(cursorGetCmd)
	cursorCmd.AddCommand(cursorSetCmd)
	cursorCmd.AddCommand(cursorClearCmd)
	rootCmd.AddCommand(cursorCmd)
}

func runCursorGet(cmd *cobra.Command, _ []string) error {
	key, err := app.CursorKey(cursorCategory)
	if err != nil {
		return err
	}
	value, err := cursor.MustGet(cmd.Context(), application.Cursors, key)
	if errors.Is(err, cursor.ErrNoCursor) {
		cmd.Printf("%s: no cursor stored\n", cursorCategory)
		return nil
	}
	if err != nil {
		return err
	}
	cmd.Printf("%s: %s\n", cursorCategory, value)
	return nil
}

func runCursorSet(cmd *cobra.Command, args []string) error {
	key, err := app.CursorKey(cursorCategory)
	if err != nil {
		return err
	}
	value, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || value <= 0 {
		return fmt.Errorf("cursor must be a positive integer, got %q", args[0])
	}
	if err := application.Cursors.Set(cmd.Context(), key, strconv.FormatInt(value, 10)); err != nil {
		return err
	}
	cmd.Printf("%s: cursor set to %d\n", cursorCategory, value)
	return nil
}

func runCursorClear(cmd *cobra.Command, _ []string) error {
	key, err := app.CursorKey(cursorCategory)
	if err != nil {
		return err
	}
	if err := application.Cursors.Clear(cmd.Context(), key); err != nil {
		return err
	}
	cmd.Printf("%s: cursor cleared\n", cursorCategory)
	return nil
}
