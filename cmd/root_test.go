// file: cmd/root_test.go
// version: 1.0.0
// guid: 0f1e2d3c-4b5a-6978-8796-a5b4c3d2e1f0

package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jdfalk/ipodsync/internal/config"
	"github.com/spf13/viper"
)

func TestRootCmdRegistersAllSubcommands(t *testing.T) {
	want := []string{"scan", "diff", "sync", "verify", "rollback", "search", "history", "serve"}
	got := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		got[c.Name()] = true
	}
	for _, name := range want {
		if !got[name] {
			t.Errorf("expected rootCmd to register %q subcommand", name)
		}
	}
}

func TestInitConfigCreatesDirectories(t *testing.T) {
	tempDir := t.TempDir()

	origCfgFile := cfgFile
	origConfig := config.AppConfig
	defer func() {
		cfgFile = origCfgFile
		config.AppConfig = origConfig
		viper.Reset()
	}()

	viper.Reset()
	cfgFile = filepath.Join(tempDir, "config.yaml")
	viper.Set("sync_log_path", filepath.Join(tempDir, "logs", "ipodsync.sqlite"))
	viper.Set("transcode_cache_dir", filepath.Join(tempDir, "cache"))

	initConfig()

	if _, err := os.Stat(filepath.Join(tempDir, "logs")); err != nil {
		t.Fatalf("expected sync log directory to exist: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "cache")); err != nil {
		t.Fatalf("expected transcode cache directory to exist: %v", err)
	}
}

func TestInitConfigSkipsEmptyAndDotDirs(t *testing.T) {
	origConfig := config.AppConfig
	defer func() {
		config.AppConfig = origConfig
		viper.Reset()
	}()

	viper.Reset()
	viper.Set("sync_log_path", "ipodsync.sqlite")
	viper.Set("transcode_cache_dir", ".")

	// Must not panic or attempt to create "." or "" as a directory.
	initConfig()
}
