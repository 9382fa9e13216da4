// file: cmd/diff.go
// version: 1.0.0
// guid: 3c4d5e6f-7a8b-9c0d-1e2f-3a4b5c6d7e8f

package cmd

import (
	"fmt"

	"github.com/jdfalk/ipodsync/internal/config"
	"github.com/jdfalk/ipodsync/internal/differ"
	"github.com/jdfalk/ipodsync/internal/integrity"
	"github.com/spf13/cobra"
)

// diffCmd represents the diff command: it runs the integrity check and
// the fingerprint differ without touching the device, printing the
// classified plan the sync command would otherwise execute.
var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show what a sync would change, without changing anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireMountPoint(); err != nil {
			return err
		}
		if err := requirePCLibrary(); err != nil {
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

		fmt.Println("Checking device integrity...")
		survivingTracks, integrityReport := integrity.Check(config.AppConfig.MountPoint, db.Tracks, mappingStore)
		fmt.Printf("  missing files removed: %d, stale mappings removed: %d, orphan files deleted: %d\n",
			integrityReport.MissingFiles, integrityReport.StaleMappings, integrityReport.OrphanFiles)

		fmt.Println("Scanning PC library...")
		pcTracks, errs := scanPCLibrary()
		for _, e := range errs {
			fmt.Printf("Warning: %v\n", e)
		}

		plan := differ.Run(differ.Input{
			PCTracks:     pcTracks,
			DeviceTracks: survivingTracks,
			Mapping:      mappingStore,
		})

		printPlanSummary(plan)
		return nil
	},
}

func printPlanSummary(plan differ.Plan) {
	fmt.Printf("To add:              %d\n", len(plan.ToAdd))
	fmt.Printf("To remove:           %d\n", len(plan.ToRemove))
	fmt.Printf("To update metadata:  %d\n", len(plan.ToUpdateMetadata))
	fmt.Printf("To update file:      %d\n", len(plan.ToUpdateFile))
	fmt.Printf("To update artwork:   %d\n", len(plan.ToUpdateArtwork))
	fmt.Printf("To sync play count:  %d\n", len(plan.ToSyncPlayCount))
	fmt.Printf("To sync rating:      %d\n", len(plan.ToSyncRating))
	fmt.Printf("Storage: +%d -%d (updated %d)\n", plan.Storage.BytesToAdd, plan.Storage.BytesToRemove, plan.Storage.BytesToUpdate)

	if len(plan.Duplicates) > 0 {
		fmt.Printf("Duplicate fingerprints blocked: %d\n", len(plan.Duplicates))
	}
	if len(plan.UnresolvedCollisions) > 0 {
		fmt.Printf("Unresolved collisions needing attention: %d\n", len(plan.UnresolvedCollisions))
	}
}
