package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/answercart/answercart/internal/core/domain"
	"github.com/answercart/answercart/internal/core/ports/driving"
)

var (
	reindexTypes []string
	reindexForce bool
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Scan store content and rebuild the knowledge base",
	Long: `Scans the configured content source, chunks and embeds everything
that changed, and replaces the affected index entries. Unchanged
content is skipped unless --force is given.`,
	RunE: runReindex,
}

func init() {
	reindexCmd.Flags().StringSliceVar(&reindexTypes, "type", nil, "restrict to source types (product, page, policy, faq, setting)")
	reindexCmd.Flags().BoolVar(&reindexForce, "force", false, "re-embed content even when unchanged")
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, _ []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var filter *driving.ReindexFilter
	if len(reindexTypes) > 0 || reindexForce {
		filter = &driving.ReindexFilter{ForceRescan: reindexForce}
		for _, t := range reindexTypes {
			st := domain.SourceType(t)
			if !st.Valid() {
				return fmt.Errorf("unknown source type %q", t)
			}
			filter.SourceTypes = append(filter.SourceTypes, st)
		}
	}

	cmd.Println("Reindexing store content...")
	report, err := a.indexer.Reindex(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}

	cmd.Printf("Done in %s: %d indexed, %d unchanged, %d failed.\n",
		report.Duration.Round(time.Millisecond), report.Processed, report.Skipped, report.Failed)

	if len(report.Failures) > 0 {
		ids := make([]string, 0, len(report.Failures))
		for id := range report.Failures {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			cmd.Printf("  %s: %s\n", id, report.Failures[id])
		}
	}
	return nil
}
