// ABOUTME: Show command for viewing one cached item
// ABOUTME: Displays item details with markdown rendering of the summary

package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/feedsync/internal/config"
	"github.com/harper/feedsync/internal/content"
	"github.com/harper/feedsync/internal/models"
	"github.com/harper/feedsync/internal/storage"
)

var showCmd = &cobra.Command{
	Use:     "show <item-id>",
	Aliases: []string{"read"},
	Short:   "Show a cached item",
	Long:    "Display one cached item by ID or unique ID prefix, with its summary rendered as markdown.",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetBool("raw")

		ctx, stop := signalContext(cmd)
		defer stop()

		a, err := openApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		record, err := storage.Lookup(ctx, a.store, args[0])
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("item not found: %s", args[0])
			}
			return fmt.Errorf("failed to get item: %w", err)
		}

		printRecord(cmd.OutOrStdout(), record, raw)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().Bool("raw", false, "print markdown without terminal rendering")
}

func printRecord(w io.Writer, r models.FeedRecord, raw bool) {
	bold := color.New(color.Bold).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	fmt.Fprintln(w, strings.Repeat("─", config.SeparatorWidth))
	fmt.Fprintf(w, "%s\n\n", bold(r.DisplayTitle()))

	fmt.Fprintf(w, "%s %s\n", faint("ID:"), r.ID)
	if r.Author != "" {
		fmt.Fprintf(w, "%s %s\n", faint("Author:"), r.Author)
	}
	if r.PublishedAt != nil {
		fmt.Fprintf(w, "%s %s\n", faint("Published:"), r.PublishedAt.Format(config.DateFormatLong))
	}
	if r.Link != "" {
		fmt.Fprintf(w, "%s %s\n", faint("Link:"), cyan(r.Link))
	}
	if r.ThumbnailURL != "" {
		fmt.Fprintf(w, "%s %s\n", faint("Image:"), r.ThumbnailURL)
	}
	if r.Premium {
		fmt.Fprintf(w, "%s yes\n", faint("Premium:"))
	}

	fmt.Fprintln(w, strings.Repeat("─", config.SeparatorWidth))

	if r.Summary == "" {
		fmt.Fprintln(w, "\n(No content available)")
		return
	}

	markdown := content.ToMarkdown(r.Summary)
	if raw {
		fmt.Fprintf(w, "\n%s\n", markdown)
		return
	}

	rendered, err := glamour.Render(markdown, "dark")
	if err != nil {
		fmt.Fprintf(w, "%s\n", faint("(markdown rendering unavailable, showing plain text)"))
		fmt.Fprintf(w, "\n%s\n", markdown)
		return
	}
	fmt.Fprint(w, rendered)
}
