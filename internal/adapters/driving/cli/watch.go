package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/answercart/answercart/internal/adapters/driving/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch <export-dir>",
	Short: "Reindex incrementally from a content export directory",
	Long: `Watches a directory of per-item JSON exports (product-42.json,
page-7.json, ...) and applies each change to the index as it happens.
Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcher := watch.New(a.indexer, args[0])
	if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch failed: %w", err)
	}
	cmd.Println("Watch stopped.")
	return nil
}
