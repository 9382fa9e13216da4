// file: cmd/serve.go
// version: 1.0.0
// guid: 9c0d1e2f-3a4b-5c6d-7e8f-9a0b1c2d3e4f

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jdfalk/ipodsync/internal/config"
	"github.com/jdfalk/ipodsync/internal/server"
	"github.com/jdfalk/ipodsync/internal/synclog"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command: the local-loopback status and
// progress HTTP API (spec "internal/server").
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local status/progress HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := server.GetDefaultServerConfig()
		cfg.Host = config.AppConfig.Server.Host
		cfg.Port = config.AppConfig.Server.Port
		cfg.BasicAuthUsername = config.AppConfig.Server.BasicAuthUsername
		cfg.BasicAuthPassHash = config.AppConfig.Server.BasicAuthPassHash
		cfg.RateLimitPerMin = config.AppConfig.Server.RateLimitPerMin
		cfg.MountPoint = config.AppConfig.MountPoint

		if rt, err := time.ParseDuration(config.AppConfig.Server.ReadTimeout); err == nil {
			cfg.ReadTimeout = rt
		}
		if wt, err := time.ParseDuration(config.AppConfig.Server.WriteTimeout); err == nil {
			cfg.WriteTimeout = wt
		}
		if it, err := time.ParseDuration(config.AppConfig.Server.IdleTimeout); err == nil {
			cfg.IdleTimeout = it
		}

		if host, _ := cmd.Flags().GetString("host"); host != "" {
			cfg.Host = host
		}
		if port, _ := cmd.Flags().GetString("port"); port != "" {
			cfg.Port = port
		}

		var history *synclog.Store
		if store, err := synclog.Open(config.AppConfig.SyncLogPath); err != nil {
			fmt.Printf("Warning: sync history unavailable: %v\n", err)
		} else {
			history = store
			defer history.Close()
		}

		srv := server.NewServer(cfg, history)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		fmt.Printf("Listening on %s:%s\n", cfg.Host, cfg.Port)
		return srv.Start(ctx)
	},
}
