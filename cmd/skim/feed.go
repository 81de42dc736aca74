// ABOUTME: Feed management commands for adding, listing, and removing feeds
// ABOUTME: Includes OPML import/export and pausing feeds out of the bulk sync

package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/skim/internal/ingest"
	"github.com/harper/skim/internal/opml"
	"github.com/harper/skim/internal/storage"
	"github.com/harper/skim/internal/timeutil"
)

var feedCmd = &cobra.Command{
	Use:     "feed",
	Aliases: []string{"f"},
	Short:   "Manage RSS/Atom feeds",
	Long:    "Add, list, and remove RSS/Atom feeds from your subscriptions",
}

var feedAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Add a new RSS/Atom feed",
	Long: `Add a feed and run its first sync.

By default the command waits for the first sync and rolls the feed back if
it fails. Use --background to register immediately and sync asynchronously.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url := args[0]
		background, _ := cmd.Flags().GetBool("background")

		if background {
			feed, err := svc.AddFeedAsync(url)
			if err != nil {
				return addFeedError(url, err)
			}
			fmt.Printf("Added feed: %s (syncing in background)\n", url)
			fmt.Printf("Feed ID: %s\n", feed.ID)
			return nil
		}

		feed, err := svc.AddFeed(cmd.Context(), url)
		if err != nil {
			return addFeedError(url, err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Added feed: %s\n", green("v"), feed.DisplayTitle())
		fmt.Printf("Feed ID: %s\n", feed.ID)
		return nil
	},
}

func addFeedError(url string, err error) error {
	switch {
	case errors.Is(err, storage.ErrDuplicateURL):
		return fmt.Errorf("feed already exists: %s", url)
	case errors.Is(err, ingest.ErrInvalidURL):
		return err
	default:
		return fmt.Errorf("failed to add feed: %w", err)
	}
}

var feedListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all feeds",
	Long:    "List all subscribed feeds with their sync state",
	RunE: func(cmd *cobra.Command, args []string) error {
		feeds, err := svc.ListFeeds()
		if err != nil {
			return fmt.Errorf("failed to list feeds: %w", err)
		}
		if len(feeds) == 0 {
			fmt.Println("No feeds found. Add a feed with 'skim feed add <url>'")
			return nil
		}

		faint := color.New(color.Faint).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		fmt.Printf("Found %d feed(s):\n\n", len(feeds))
		for _, feed := range feeds {
			idShort := feed.ID
			if len(idShort) > 8 {
				idShort = idShort[:8]
			}
			fmt.Printf("%s %s", faint(idShort), feed.DisplayTitle())
			if !feed.Active {
				fmt.Printf(" %s", faint("(paused)"))
			}
			fmt.Println()
			fmt.Printf("  URL: %s\n", feed.URL)
			fmt.Printf("  Last sync: %s\n", timeutil.RelativePtr(feed.LastSyncedAt, "never"))
			if feed.LastError != nil {
				fmt.Printf("  %s %s %s\n", red("x"), *feed.LastError, faint(fmt.Sprintf("(%d consecutive)", feed.ErrorCount)))
			}
			fmt.Println()
		}
		return nil
	},
}

var feedRemoveCmd = &cobra.Command{
	Use:     "remove <url-or-id>",
	Aliases: []string{"rm"},
	Short:   "Remove a feed",
	Long:    "Remove a feed and all its articles; an in-flight sync is cancelled first",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		feed, err := resolveFeed(args[0])
		if err != nil {
			return err
		}
		if err := svc.DeleteFeed(feed.ID); err != nil {
			return fmt.Errorf("failed to delete feed: %w", err)
		}
		fmt.Printf("Removed feed: %s\n", feed.DisplayTitle())
		return nil
	},
}

var feedPauseCmd = &cobra.Command{
	Use:   "pause <url-or-id>",
	Short: "Exclude a feed from bulk syncs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		feed, err := resolveFeed(args[0])
		if err != nil {
			return err
		}
		if err := svc.SetFeedActive(feed.ID, false); err != nil {
			return fmt.Errorf("failed to pause feed: %w", err)
		}
		fmt.Printf("Paused feed: %s\n", feed.DisplayTitle())
		return nil
	},
}

var feedResumeCmd = &cobra.Command{
	Use:   "resume <url-or-id>",
	Short: "Include a paused feed in bulk syncs again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		feed, err := resolveFeed(args[0])
		if err != nil {
			return err
		}
		if err := svc.SetFeedActive(feed.ID, true); err != nil {
			return fmt.Errorf("failed to resume feed: %w", err)
		}
		fmt.Printf("Resumed feed: %s\n", feed.DisplayTitle())
		return nil
	},
}

var feedImportCmd = &cobra.Command{
	Use:   "import <file.opml>",
	Short: "Import feeds from an OPML file",
	Long:  "Register every subscription from an OPML export; existing URLs are skipped",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		subs, err := opml.ParseFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to parse OPML: %w", err)
		}
		if len(subs) == 0 {
			fmt.Println("No subscriptions found in file")
			return nil
		}

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		faint := color.New(color.Faint).SprintFunc()

		added, skipped, failed := 0, 0, 0
		for _, sub := range subs {
			_, err := svc.AddFeedAsync(sub.URL)
			switch {
			case errors.Is(err, storage.ErrDuplicateURL):
				fmt.Printf("%s %s (already subscribed)\n", faint("-"), sub.URL)
				skipped++
			case err != nil:
				fmt.Printf("%s %s: %v\n", red("x"), sub.URL, err)
				failed++
			default:
				fmt.Printf("%s %s\n", green("v"), sub.URL)
				added++
			}
		}

		fmt.Printf("\nImported %d feed(s), %d skipped, %d failed\n", added, skipped, failed)
		if added > 0 {
			fmt.Println("First syncs are running in the background; check 'skim feed list'")
		}
		return nil
	},
}

var feedExportCmd = &cobra.Command{
	Use:   "export <file.opml>",
	Short: "Export all feeds to an OPML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		feeds, err := svc.ListFeeds()
		if err != nil {
			return fmt.Errorf("failed to list feeds: %w", err)
		}
		if err := opml.WriteFile(args[0], "skim subscriptions", feeds); err != nil {
			return fmt.Errorf("failed to write OPML: %w", err)
		}
		fmt.Printf("Exported %d feed(s) to %s\n", len(feeds), args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(feedCmd)
	feedCmd.AddCommand(feedAddCmd)
	feedCmd.AddCommand(feedListCmd)
	feedCmd.AddCommand(feedRemoveCmd)
	feedCmd.AddCommand(feedPauseCmd)
	feedCmd.AddCommand(feedResumeCmd)
	feedCmd.AddCommand(feedImportCmd)
	feedCmd.AddCommand(feedExportCmd)

	feedAddCmd.Flags().BoolP("background", "b", false, "register now and sync in the background")
}
