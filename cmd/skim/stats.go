// ABOUTME: Stats command showing feed and article counts
// ABOUTME: Displays totals plus the per-feed unread breakdown

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show feed and article statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := svc.Statistics()
		if err != nil {
			return fmt.Errorf("failed to compute statistics: %w", err)
		}

		bold := color.New(color.Bold).SprintFunc()

		fmt.Printf("%s %d\n", bold("Feeds:"), stats.TotalFeeds)
		fmt.Printf("%s %d (%d unread, %d starred)\n", bold("Articles:"), stats.TotalArticles, stats.UnreadArticles, stats.StarredArticles)

		if len(stats.PerFeed) > 0 {
			fmt.Println()
			fmt.Println(bold("Unread by feed:"))
			for _, pf := range stats.PerFeed {
				title := pf.FeedID
				if pf.FeedTitle != nil && *pf.FeedTitle != "" {
					title = *pf.FeedTitle
				}
				fmt.Printf("  %4d  %s\n", pf.UnreadCount, title)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
