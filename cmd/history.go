// file: cmd/history.go
// version: 1.0.0
// guid: 8b9c0d1e-2f3a-4b5c-6d7e-8f9a0b1c2d3e

package cmd

import (
	"fmt"

	"github.com/jdfalk/ipodsync/internal/config"
	"github.com/jdfalk/ipodsync/internal/synclog"
	"github.com/spf13/cobra"
)

// historyCmd represents the history command: recent sync runs from the
// sqlite-backed log (spec "sync history log").
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent sync runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		store, err := synclog.Open(config.AppConfig.SyncLogPath)
		if err != nil {
			return fmt.Errorf("opening sync log: %w", err)
		}
		defer store.Close()

		runs, err := store.RecentRuns(limit)
		if err != nil {
			return fmt.Errorf("reading sync history: %w", err)
		}
		if len(runs) == 0 {
			fmt.Println("No sync runs recorded yet.")
			return nil
		}

		for _, r := range runs {
			finished := "running"
			if r.FinishedAt != nil {
				finished = r.FinishedAt.Format("2006-01-02T15:04:05Z07:00")
			}
			fmt.Printf("#%d  %s -> %s  %-8s +%d -%d ~%d",
				r.ID, r.StartedAt.Format("2006-01-02T15:04:05Z07:00"), finished, r.Status, r.Added, r.Removed, r.Updated)
			if r.Error != "" {
				fmt.Printf("  error=%q", r.Error)
			}
			fmt.Println()
		}
		return nil
	},
}
