// file: cmd/verify.go
// version: 1.0.0
// guid: 5e6f7a8b-9c0d-1e2f-3a4b-5c6d7e8f9a0b

package cmd

import (
	"fmt"

	"github.com/jdfalk/ipodsync/internal/config"
	"github.com/jdfalk/ipodsync/internal/integrity"
	"github.com/spf13/cobra"
)

// verifyCmd represents the verify command: it runs the three-way
// integrity check (spec §4.6) and persists any repairs it makes to the
// mapping store, without running a sync.
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Run the integrity check against the device and repair drift",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireMountPoint(); err != nil {
			return err
		}

		db, _, err := loadDeviceDatabase()
		if err != nil {
			return err
		}
		mappingStore, err := loadMappingStore()
		if err != nil {
			return err
		}

		surviving, report := integrity.Check(config.AppConfig.MountPoint, db.Tracks, mappingStore)

		fmt.Printf("Tracks before: %d, surviving: %d\n", len(db.Tracks), len(surviving))
		fmt.Printf("Missing files removed:  %d\n", report.MissingFiles)
		fmt.Printf("Stale mappings removed: %d\n", report.StaleMappings)
		fmt.Printf("Orphan files deleted:   %d\n", report.OrphanFiles)

		if report.StaleMappings > 0 {
			if err := mappingStore.Save(); err != nil {
				return fmt.Errorf("saving repaired mapping store: %w", err)
			}
			fmt.Println("Mapping store repaired and saved.")
		}

		return nil
	},
}
