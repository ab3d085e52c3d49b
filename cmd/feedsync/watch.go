// ABOUTME: Watch command that keeps the cache fresh and prints state transitions
// ABOUTME: Refreshes on an interval and, for file sources, whenever the file changes

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/zoobzio/clockz"

	"github.com/harper/feedsync/internal/config"
	"github.com/harper/feedsync/internal/feedstate"
	"github.com/harper/feedsync/internal/source"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Refresh periodically and print state changes",
	Long: `Keep the cache fresh until interrupted.

Refreshes once at start, then every --interval. When the source is a local
file, edits to it trigger a refresh too. Loading, item count, and refresh
errors are printed as they change.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().Duration("interval", config.DefaultWatchInterval, "time between refreshes")
}

func runWatch(cmd *cobra.Command, args []string) error {
	interval, _ := cmd.Flags().GetDuration("interval")
	if interval <= 0 {
		return fmt.Errorf("--interval must be positive, got %s", interval)
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

	var changes <-chan struct{}
	if fs, ok := a.src.(*source.FileSource); ok {
		changes, err = source.NewFileWatcher(fs.Path()).Watch(ctx)
		if err != nil {
			return fmt.Errorf("watch %s: %w", fs.Path(), err)
		}
		logger.Info("watching source file", "path", fs.Path())
	}

	go printTransitions(ctx, cmd.OutOrStdout(), ctrl)

	refreshLoop(ctx, clockz.RealClock, interval, changes, ctrl.Refresh)
	return nil
}

// refreshLoop calls refresh once, then after every interval and on every
// value from changes, until ctx ends.
func refreshLoop(ctx context.Context, clock clockz.Clock, interval time.Duration, changes <-chan struct{}, refresh func()) {
	timer := clock.NewTimer(interval)
	defer timer.Stop()

	refresh()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C():
			refresh()
			timer.Reset(interval)
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			refresh()
		}
	}
}

// printTransitions writes a line whenever loading, item count, or the last
// error changes, and one line per refresh failure event.
func printTransitions(ctx context.Context, w io.Writer, ctrl *feedstate.Controller) {
	states := ctrl.States().Subscribe()
	defer states.Close()
	errs := ctrl.Errors().Subscribe()
	defer errs.Close()

	faint := color.New(color.Faint).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	var last *feedstate.FeedState
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states.C():
			if !ok {
				return
			}
			if last != nil && last.IsLoading == st.IsLoading && len(last.Items) == len(st.Items) && last.IsEmpty == st.IsEmpty {
				continue
			}
			last = &st
			fmt.Fprintf(w, "%s %s\n", faint(time.Now().Format(time.TimeOnly)), describeState(st))
		case ev, ok := <-errs.C():
			if !ok {
				return
			}
			if msg, fresh := ev.Take(); fresh {
				fmt.Fprintf(w, "%s %s\n", faint(time.Now().Format(time.TimeOnly)), red("refresh failed: "+msg))
			}
		}
	}
}

func describeState(st feedstate.FeedState) string {
	switch {
	case st.IsLoading:
		return "refreshing..."
	case st.IsEmpty:
		return "cache is empty"
	default:
		return fmt.Sprintf("%d items cached", len(st.Items))
	}
}
