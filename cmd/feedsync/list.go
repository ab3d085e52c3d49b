// ABOUTME: List command for viewing cached feed items with filtering options
// ABOUTME: Displays items with seen status, title, and relative publish time using color formatting

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/feedsync/internal/config"
	"github.com/harper/feedsync/internal/models"
	"github.com/harper/feedsync/internal/timeutil"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls", "l"},
	Short:   "List cached feed items",
	Long: `List cached feed items in feed order with optional filtering.

--since accepts today, yesterday, week, month, a duration like 36h, a day count
like 3d, or a date like 2025-03-01.`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringP("since", "s", "", "only items published after this point")
	listCmd.Flags().BoolP("unseen", "u", false, "only items not yet seen")
	listCmd.Flags().BoolP("premium", "p", false, "only premium items")
	listCmd.Flags().IntP("limit", "n", config.DefaultListLimit, "max items to show (0 for all)")
	listCmd.Flags().BoolP("refresh", "r", false, "refresh before listing")
}

func runList(cmd *cobra.Command, args []string) error {
	since, _ := cmd.Flags().GetString("since")
	unseen, _ := cmd.Flags().GetBool("unseen")
	premium, _ := cmd.Flags().GetBool("premium")
	limit, _ := cmd.Flags().GetInt("limit")
	refresh, _ := cmd.Flags().GetBool("refresh")

	now := time.Now()
	filter, err := buildFilter(now, since, unseen, premium, limit)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if refresh {
		if err := a.syncer.Refresh(ctx); err != nil {
			color.Yellow("Refresh failed, showing cached items: %v", err)
		}
	}

	records, err := a.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list items: %w", err)
	}

	printRecords(cmd.OutOrStdout(), now, filter.Apply(records))
	return nil
}

func buildFilter(now time.Time, since string, unseen, premium bool, limit int) (models.Filter, error) {
	filter := models.Filter{
		UnseenOnly:  unseen,
		PremiumOnly: premium,
	}
	if limit < 0 {
		return filter, fmt.Errorf("--limit must be non-negative, got %d", limit)
	}
	filter.Limit = limit

	if since != "" {
		t, err := timeutil.ParseSince(now, since)
		if err != nil {
			return filter, fmt.Errorf("invalid --since: %w", err)
		}
		filter.Since = &t
	}
	return filter, nil
}

func printRecords(w io.Writer, now time.Time, records []models.FeedRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No items found")
		return
	}

	faint := color.New(color.Faint).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	for _, r := range records {
		idShort := r.ID
		if len(idShort) > config.DisplayIDLength {
			idShort = idShort[:config.DisplayIDLength]
		}
		fmt.Fprint(w, faint(idShort))
		fmt.Fprint(w, " ")

		if r.Seen {
			fmt.Fprint(w, "✓ ")
		} else {
			fmt.Fprint(w, "  ")
		}

		fmt.Fprint(w, r.DisplayTitle())

		if r.Premium {
			fmt.Fprint(w, " ")
			fmt.Fprint(w, yellow("★"))
		}

		if r.PublishedAt != nil {
			fmt.Fprint(w, " ")
			fmt.Fprint(w, faint(timeutil.Ago(now, *r.PublishedAt)))
		}

		fmt.Fprintln(w)
	}
}
