// ABOUTME: Sync command running feed ingestion with live progress output
// ABOUTME: Consumes the event bus to report per-feed results and new articles

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/skim/internal/events"
	"github.com/harper/skim/internal/ingest"
)

var syncCmd = &cobra.Command{
	Use:   "sync [url-or-id]",
	Short: "Sync feeds",
	Long: `Sync all active feeds, or one feed by URL or ID.

Uses HTTP caching headers (ETag, Last-Modified) so unchanged feeds cost one
cheap request. Syncing is idempotent: existing articles are refreshed in
place and your read/starred flags are preserved.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sub := svc.Subscribe(cfg.GetEventBuffer())
		defer sub.Unsubscribe()

		syncDone := make(chan struct{})
		displayDone := make(chan struct{})
		go displayProgress(sub, syncDone, displayDone)

		var syncErr error
		if len(args) == 1 {
			feed, err := resolveFeed(args[0])
			if err != nil {
				close(syncDone)
				<-displayDone
				return err
			}
			syncErr = svc.SyncFeed(cmd.Context(), feed.ID)
		} else {
			syncErr = svc.SyncAll(cmd.Context())
		}

		close(syncDone)
		<-displayDone

		// Per-feed failures were already reported through events; only
		// surface errors the display could not show.
		var runErr *ingest.RunError
		if errors.As(syncErr, &runErr) {
			return nil
		}
		return syncErr
	},
}

// displayProgress prints one line per finished feed plus a summary. It keeps
// draining briefly after the sync returns so queued events are not lost.
func displayProgress(sub *events.Subscription, syncDone, displayDone chan struct{}) {
	defer close(displayDone)

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	newCounts := make(map[string]int)
	totalNew, completed, failed := 0, 0, 0
	draining := false

	for {
		var idle <-chan time.Time
		if draining {
			idle = time.After(300 * time.Millisecond)
		}
		select {
		case p, ok := <-sub.Progress():
			if !ok {
				return
			}
			switch p.Status {
			case events.StatusCompleted:
				completed++
				if n := newCounts[p.FeedID]; n > 0 {
					fmt.Printf("%s %s: %d new\n", green("v"), p.FeedTitle, n)
				} else {
					fmt.Printf("%s %s: no new articles\n", green("v"), p.FeedTitle)
				}
			case events.StatusFailed:
				failed++
				fmt.Printf("%s %s: %s\n", red("x"), p.FeedTitle, p.Reason)
			}
		case a, ok := <-sub.Articles():
			if !ok {
				return
			}
			newCounts[a.FeedID]++
			totalNew++
		case <-syncDone:
			syncDone = nil
			draining = true
		case <-idle:
			fmt.Println()
			fmt.Printf("Summary: %d feed(s) synced\n", completed)
			if totalNew > 0 {
				fmt.Printf("  %s %d new articles\n", green("v"), totalNew)
			}
			if failed > 0 {
				fmt.Printf("  %s %d failed\n", red("x"), failed)
			}
			if completed == 0 && failed == 0 {
				fmt.Printf("  %s nothing to sync\n", faint("-"))
			}
			return
		}
	}
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
