// history.go implements the "askgate history" command listing recent
// finalized interactions from the local store.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/askgate-dev/askgate/internal/config"
	"github.com/askgate-dev/askgate/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent finalized interactions",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum entries to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	dir := config.BaseDir()
	pol := config.NewStore(dir).LoadOrDefault()

	store, err := history.NewStore(config.HistoryPath(dir), pol.RetentionDays, pol.MaxSessions)
	if err != nil {
		return fmt.Errorf("opening history store: %w", err)
	}
	defer store.Close()

	records, err := store.Recent(historyLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No finalized interactions yet.")
		return nil
	}

	for _, rec := range records {
		kind := "pending"
		selected := ""
		if rec.Outcome != nil {
			kind = rec.Outcome.Kind
			selected = strings.Join(rec.Outcome.SelectedIDs, ", ")
		}

		when := rec.StartedAt
		if rec.CompletedAt != nil {
			when = *rec.CompletedAt
		}

		fmt.Printf("  %s  %-26s  %-40s  %s", when.Format("2006-01-02 15:04"), kind, truncate(rec.Title, 40), rec.Transport)
		if selected != "" {
			fmt.Printf("  -> %s", selected)
		}
		fmt.Println()
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
