// ABOUTME: Cloud subcommand for the Charm-backed cache
// ABOUTME: Shows link status, pushes pending writes, and resets the local copy

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/feedsync/internal/charm"
	"github.com/harper/feedsync/internal/config"
)

var cloudCmd = &cobra.Command{
	Use:   "cloud",
	Short: "Manage Charm cloud sync for the charm backend",
	Long: `Manage the Charm cloud copy of the cache when backend is "charm".

Charm uses your SSH keys for authentication and encrypts data end-to-end.

Commands:
  status  - Show the linked account and sync mode
  push    - Sync the local copy with the server now
  reset   - Drop the local copy and pull it again from the server

Set charm_local_only in config.json (or FEEDSYNC_CHARM_LOCAL_ONLY=true) to
skip the server round trip on every refresh and push with 'feedsync cloud push'.`,
}

var cloudStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show Charm link status",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cfg.OpenCharmClient()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Backend: %s\n", cfg.GetBackend())
		fmt.Fprintf(out, "Server: %s\n", charm.DefaultCharmHost)
		fmt.Fprintf(out, "Push after each write: %v\n", client.AutoSync())

		id, err := client.ID()
		if err != nil {
			color.Yellow("Not linked to Charm: %v", err)
			return nil
		}
		color.Green("Linked to Charm")
		fmt.Fprintf(out, "  Account ID: %s\n", id)
		return nil
	},
}

var cloudPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Sync the cache with the Charm server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCharm(cfg); err != nil {
			return err
		}
		client, err := cfg.OpenCharmClient()
		if err != nil {
			return err
		}
		if err := client.Sync(); err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		color.Green("Synced with %s", charm.DefaultCharmHost)
		return nil
	},
}

var cloudResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop the local copy and pull it from the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		if err := requireCharm(cfg); err != nil {
			return err
		}
		if !force {
			return fmt.Errorf("reset discards unsynced local writes; rerun with --force")
		}
		client, err := cfg.OpenCharmClient()
		if err != nil {
			return err
		}
		if err := client.Reset(); err != nil {
			return fmt.Errorf("reset failed: %w", err)
		}
		color.Green("Local cache reset from %s", charm.DefaultCharmHost)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cloudCmd)
	cloudCmd.AddCommand(cloudStatusCmd, cloudPushCmd, cloudResetCmd)

	cloudResetCmd.Flags().Bool("force", false, "confirm discarding unsynced local writes")
}

// requireCharm fails unless the cache lives in Charm KV.
func requireCharm(c *config.Config) error {
	if backend := c.GetBackend(); backend != config.BackendCharm {
		return fmt.Errorf("cloud commands need backend %q, current backend is %q", config.BackendCharm, backend)
	}
	return nil
}
