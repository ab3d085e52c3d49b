// ABOUTME: Serve command that exposes the cache over HTTP and server-sent events
// ABOUTME: Starts a controller, optionally refreshes on start, and runs until interrupted

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/feedsync/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the cache over HTTP",
	Long: `Start the HTTP API.

Endpoints:
  GET  /health         liveness and item count
  GET  /items          cached items (since, unseen, premium, limit)
  GET  /items/:id      one item with markdown content
  GET  /state          loading, empty, last error, refresh counters
  POST /refresh        start a refresh (202); ?wait=true blocks for the outcome
  GET  /events         server-sent state snapshots and error events`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		noRefresh, _ := cmd.Flags().GetBool("no-refresh")
		if addr == "" {
			addr = cfg.GetHTTPAddr()
		}

		ctx, stop := signalContext(cmd)
		defer stop()

		a, err := openApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		ctrl, err := a.startController(ctx)
		if err != nil {
			return err
		}
		defer ctrl.Dispose()

		if !noRefresh {
			ctrl.Refresh()
		}

		if err := api.NewServer(a.syncer, ctrl, logger).Run(ctx, addr); err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default: http_addr from config, or 127.0.0.1:8080)")
	serveCmd.Flags().Bool("no-refresh", false, "skip the refresh on start")
}
