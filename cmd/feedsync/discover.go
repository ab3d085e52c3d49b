// ABOUTME: Discover command that finds a feed URL from a site or page URL
// ABOUTME: Optionally saves the discovered feed as the configured source

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/feedsync/internal/config"
	"github.com/harper/feedsync/internal/discover"
	"github.com/harper/feedsync/internal/fetch"
)

var discoverCmd = &cobra.Command{
	Use:   "discover <url>",
	Short: "Find the feed for a website",
	Long: `Find a feed for a site or page URL.

Tries the URL itself, then <link rel="alternate"> tags in the page, then common
feed paths such as /feed and /rss.xml. With --save the result becomes the
configured source.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		save, _ := cmd.Flags().GetBool("save")

		ctx, stop := signalContext(cmd)
		defer stop()

		d := discover.New(fetch.New(config.DefaultHTTPTimeout, cfg.UserAgent))
		found, err := d.Discover(ctx, args[0])
		if err != nil {
			return fmt.Errorf("discovery failed: %w", err)
		}

		faint := color.New(color.Faint).SprintFunc()
		color.Green("Found feed: %s", found.URL)
		if found.Title != "" {
			fmt.Printf("%s %s\n", faint("Title:"), found.Title)
		}
		fmt.Printf("%s %d\n", faint("Entries:"), found.Entries)
		fmt.Printf("%s %s\n", faint("Method:"), found.Method)

		if !save {
			return nil
		}

		cfg.SourceKind = config.SourceHTTP
		cfg.SourceURL = found.URL
		cfg.SourcePath = ""
		return saveConfig(cfg)
	},
}

func init() {
	rootCmd.AddCommand(discoverCmd)

	discoverCmd.Flags().Bool("save", false, "save the discovered feed as the configured source")
}
