// ABOUTME: Refresh command that replaces the local cache with the remote feed
// ABOUTME: Reports the outcome with failure kind and keeps the old cache on failure

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/feedsync/internal/feedstate"
	"github.com/harper/feedsync/internal/syncer"
)

var refreshCmd = &cobra.Command{
	Use:     "refresh",
	Aliases: []string{"fetch", "sync"},
	Short:   "Replace the local cache with the remote feed",
	Long: `Fetch the configured feed and replace every cached record with the result.

If the fetch or the store write fails, the previous cache is left untouched and
the command exits non-zero.`,
	RunE: runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	count, refreshErr, err := refreshAndCount(ctx, a)
	if err != nil {
		return err
	}

	if refreshErr != nil {
		kind := "unknown"
		var rerr *syncer.RefreshError
		if errors.As(refreshErr, &rerr) {
			kind = rerr.Kind.String()
		}
		color.Red("Refresh failed (%s): %s", kind, feedstate.Message(refreshErr))
		fmt.Printf("Cache unchanged: %d items\n", count)
		return fmt.Errorf("refresh failed: %w", refreshErr)
	}

	color.Green("Refreshed: %d items cached", count)
	return nil
}

// refreshAndCount runs one refresh and counts the cache afterwards. The count
// runs even when ctx has ended so an interrupted refresh still reports the
// cache it left behind.
func refreshAndCount(ctx context.Context, a *app) (count int, refreshErr, err error) {
	refreshErr = a.syncer.Refresh(ctx)

	count, err = a.store.Count(context.WithoutCancel(ctx))
	if err != nil {
		return 0, refreshErr, fmt.Errorf("failed to count records: %w", err)
	}
	return count, refreshErr, nil
}
