// file: cmd/search.go
// version: 1.0.0
// guid: 7a8b9c0d-1e2f-3a4b-5c6d-7e8f9a0b1c2d

package cmd

import (
	"fmt"
	"strings"

	"github.com/jdfalk/ipodsync/internal/config"
	"github.com/jdfalk/ipodsync/internal/pclibrary"
	"github.com/spf13/cobra"
)

// searchCmd represents the search command: a free-text query over the
// last "ipodsync scan"'s search index.
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the PC library's full-text index",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		limit, _ := cmd.Flags().GetInt("limit")

		idx, err := pclibrary.OpenIndex(config.AppConfig.SearchIndexDir)
		if err != nil {
			return fmt.Errorf("opening search index: %w", err)
		}
		defer idx.Close()

		results, err := idx.Search(query, limit)
		if err != nil {
			return fmt.Errorf("searching: %w", err)
		}
		if len(results) == 0 {
			fmt.Println("No matches. Run \"ipodsync scan\" first if the index is stale.")
			return nil
		}
		for _, r := range results {
			fmt.Printf("%.2f  %s — %s (%s)  [%s]\n", r.Score, r.Artist, r.Title, r.Album, r.RelPath)
		}
		return nil
	},
}
