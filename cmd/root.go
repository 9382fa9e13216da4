// file: cmd/root.go
// version: 2.0.0
// guid: 6a7b8c9d-0e1f-2a3b-4c5d-6e7f8a9b0c1d

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jdfalk/ipodsync/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string
var mountPoint string
var pcLibraryRoot string
var workerCount int

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ipodsync",
	Short: "Sync a PC music library onto an iPod Classic",
	Long: `ipodsync reconciles a PC music folder against an iPod Classic's
on-device iTunesDB by acoustic fingerprint, transactionally applying
adds, removals, metadata updates, and artwork changes without ever
going through iTunes.`,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.ipodsync.yaml)")
	rootCmd.PersistentFlags().StringVar(&mountPoint, "mount", "", "iPod Classic mount point")
	rootCmd.PersistentFlags().StringVar(&pcLibraryRoot, "pc-library", "", "PC music library root directory")
	rootCmd.PersistentFlags().IntVar(&workerCount, "workers", 0, "worker pool size (0 picks min(NumCPU, 8))")

	viper.BindPFlag("mount_point", rootCmd.PersistentFlags().Lookup("mount"))
	viper.BindPFlag("pc_library_root", rootCmd.PersistentFlags().Lookup("pc-library"))
	viper.BindPFlag("worker_count", rootCmd.PersistentFlags().Lookup("workers"))

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "override server.host")
	serveCmd.Flags().String("port", "", "override server.port")
	searchCmd.Flags().Int("limit", 20, "maximum number of results")
	historyCmd.Flags().Int("limit", 20, "maximum number of runs to show")
	rollbackCmd.Flags().Bool("list", false, "list available checkpoints instead of rolling back")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".ipodsync")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}

	config.InitConfig()

	// The search index directory is created by bleve itself on first
	// open; pre-creating it here would make OpenIndex mistake it for an
	// existing (but empty, invalid) index.
	for _, dir := range []string{
		filepath.Dir(config.AppConfig.SyncLogPath),
		config.AppConfig.TranscodeCacheDir,
	} {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Printf("Warning: could not create %s: %v\n", dir, err)
		}
	}
}
