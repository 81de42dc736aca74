// ABOUTME: Root Cobra command and global flags
// ABOUTME: Wires config, storage, event bus, and the feed service for subcommands

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/harper/skim/internal/config"
	"github.com/harper/skim/internal/events"
	"github.com/harper/skim/internal/ingest"
	"github.com/harper/skim/internal/models"
	"github.com/harper/skim/internal/storage"
)

var (
	dataDir string
	verbose bool

	cfg   *config.Config
	store storage.Store
	bus   *events.Bus
	svc   *ingest.Service
)

var rootCmd = &cobra.Command{
	Use:   "skim",
	Short: "RSS/Atom feed reader with incremental sync",
	Long: `skim ingests RSS and Atom feeds into a local article store.

Subscribe to feeds, sync them incrementally with HTTP caching, and read
articles in your terminal. Re-syncing is always safe: entries are
deduplicated and your read/starred flags survive every refresh.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetLevel(log.DebugLevel)
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if dataDir != "" {
			cfg.DataDir = dataDir
		}

		store, err = cfg.OpenStorage()
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}

		bus = events.NewBus()
		pipeline := ingest.NewFeedPipeline(cfg.GetFetchTimeout())
		orch := ingest.NewOrchestrator(store, bus, pipeline, cfg.GetSyncWorkers())
		svc = ingest.NewService(store, orch, bus)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if svc != nil {
			// Let background syncs finish before the store goes away
			svc.Quiesce()
		}
		if bus != nil {
			bus.Close()
		}
		if store != nil {
			if err := store.Close(); err != nil {
				return fmt.Errorf("failed to close storage: %w", err)
			}
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default: ~/.local/share/skim)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// resolveFeed finds a feed by URL, exact ID, or unique ID prefix.
func resolveFeed(ref string) (*models.Feed, error) {
	if feed, err := svc.GetFeedByURL(ref); err == nil {
		return feed, nil
	}
	if feed, err := svc.GetFeed(ref); err == nil {
		return feed, nil
	}

	feeds, err := svc.ListFeeds()
	if err != nil {
		return nil, fmt.Errorf("failed to list feeds: %w", err)
	}
	var match *models.Feed
	for _, feed := range feeds {
		if strings.HasPrefix(feed.ID, ref) {
			if match != nil {
				return nil, fmt.Errorf("ambiguous feed reference: %s", ref)
			}
			match = feed
		}
	}
	if match == nil {
		return nil, fmt.Errorf("feed not found: %s", ref)
	}
	return match, nil
}

// resolveArticle finds an article by exact ID or unique ID prefix.
func resolveArticle(ref string) (*models.Article, error) {
	if article, err := svc.GetArticle(ref); err == nil {
		return article, nil
	}

	limit := 1000
	articles, err := svc.ListArticles(&storage.ArticleFilter{Limit: &limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	var match *models.Article
	for _, article := range articles {
		if strings.HasPrefix(article.ID, ref) {
			if match != nil {
				return nil, fmt.Errorf("ambiguous article reference: %s", ref)
			}
			match = article
		}
	}
	if match == nil {
		return nil, fmt.Errorf("article not found: %s", ref)
	}
	return match, nil
}
