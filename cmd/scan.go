// file: cmd/scan.go
// version: 1.0.0
// guid: 2b3c4d5e-6f7a-8b9c-0d1e-2f3a4b5c6d7e

package cmd

import (
	"fmt"

	"github.com/jdfalk/ipodsync/internal/config"
	"github.com/jdfalk/ipodsync/internal/pclibrary"
	"github.com/spf13/cobra"
)

// scanCmd represents the scan command.
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the PC music library and rebuild the search index",
	Long:  `Walk the PC library root, extract tags and fingerprints, and rebuild the full-text search index used by "ipodsync search".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requirePCLibrary(); err != nil {
			return err
		}

		fmt.Printf("Scanning PC library: %s\n", config.AppConfig.PCLibraryRoot)
		tracks, errs := scanPCLibrary()
		for _, e := range errs {
			fmt.Printf("Warning: %v\n", e)
		}
		fmt.Printf("Found %d tracks\n", len(tracks))

		idx, err := pclibrary.OpenIndex(config.AppConfig.SearchIndexDir)
		if err != nil {
			return fmt.Errorf("opening search index: %w", err)
		}
		defer idx.Close()

		if err := idx.Rebuild(tracks); err != nil {
			return fmt.Errorf("rebuilding search index: %w", err)
		}

		fmt.Printf("Search index rebuilt: %s\n", config.AppConfig.SearchIndexDir)
		return nil
	},
}
