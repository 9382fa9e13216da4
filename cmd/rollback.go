// file: cmd/rollback.go
// version: 1.0.0
// guid: 6f7a8b9c-0d1e-2f3a-4b5c-6d7e8f9a0b1c

package cmd

import (
	"fmt"

	"github.com/jdfalk/ipodsync/internal/config"
	"github.com/jdfalk/ipodsync/internal/executor"
	"github.com/spf13/cobra"
)

// rollbackCmd represents the rollback command: it restores the device's
// iTunesDB and mapping store from the most recent checkpoint written by
// stage 2 of a prior sync (spec §4.10).
var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Restore the device from its most recent sync checkpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireMountPoint(); err != nil {
			return err
		}

		checkpoints, err := executor.ListCheckpoints(config.AppConfig.MountPoint)
		if err != nil {
			return fmt.Errorf("listing checkpoints: %w", err)
		}
		if len(checkpoints) == 0 {
			return fmt.Errorf("no checkpoints found on %s", config.AppConfig.MountPoint)
		}

		listOnly, _ := cmd.Flags().GetBool("list")
		if listOnly {
			for _, c := range checkpoints {
				fmt.Printf("%s  %s\n", c.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), c.Dir)
			}
			return nil
		}

		latest := checkpoints[len(checkpoints)-1]
		fmt.Printf("Rolling back to checkpoint from %s\n", latest.CreatedAt)

		if err := executor.Rollback(
			config.AppConfig.MountPoint,
			latest,
			devicePath(config.AppConfig.ItunesDBPath),
			devicePath(config.AppConfig.MappingPath),
		); err != nil {
			return fmt.Errorf("rolling back: %w", err)
		}

		fmt.Println("Rollback complete.")
		return nil
	},
}
