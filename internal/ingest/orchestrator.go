// ABOUTME: Synchronization orchestrator driving per-feed ingestion runs
// ABOUTME: Enforces single-flight per feed, emits progress events, and fans out bulk syncs

package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/harper/skim/internal/events"
	"github.com/harper/skim/internal/models"
	"github.com/harper/skim/internal/parse"
	"github.com/harper/skim/internal/storage"
)

// ErrSyncInProgress is returned when a run is requested for a feed that
// already has one in flight.
var ErrSyncInProgress = errors.New("sync already in progress for this feed")

// DefaultSyncWorkers bounds concurrent feed runs during a bulk sync.
const DefaultSyncWorkers = 5

// Orchestrator owns the lifecycle of ingestion runs. At most one run per
// feed is in flight at any time; concurrent requests either fail with
// ErrSyncInProgress (SyncFeed) or coalesce into the in-flight run
// (RefreshFeed).
type Orchestrator struct {
	store    storage.Store
	bus      *events.Bus
	pipeline Pipeline
	workers  int
	logger   *log.Logger

	mu      sync.Mutex
	running map[string]*runHandle
}

type runHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewOrchestrator creates an orchestrator. workers bounds bulk-sync
// concurrency; values below 1 fall back to DefaultSyncWorkers.
func NewOrchestrator(store storage.Store, bus *events.Bus, pipeline Pipeline, workers int) *Orchestrator {
	if workers < 1 {
		workers = DefaultSyncWorkers
	}
	return &Orchestrator{
		store:    store,
		bus:      bus,
		pipeline: pipeline,
		workers:  workers,
		logger:   log.Default().WithPrefix("sync"),
		running:  make(map[string]*runHandle),
	}
}

// SyncFeed runs one ingestion pass for the feed and blocks until it
// finishes. Returns ErrSyncInProgress if a run is already in flight.
func (o *Orchestrator) SyncFeed(ctx context.Context, feedID string) error {
	runCtx, release, err := o.acquire(ctx, feedID)
	if err != nil {
		return err
	}
	defer release()
	return o.run(runCtx, feedID)
}

// RefreshFeed requests a background run for the feed and returns once the
// run has been admitted. A request for a feed that is already syncing
// coalesces into the in-flight run and succeeds immediately.
func (o *Orchestrator) RefreshFeed(feedID string) error {
	if _, err := o.store.GetFeed(feedID); err != nil {
		return err
	}
	runCtx, release, err := o.acquire(context.Background(), feedID)
	if err != nil {
		if errors.Is(err, ErrSyncInProgress) {
			return nil
		}
		return err
	}
	go func() {
		defer release()
		if err := o.run(runCtx, feedID); err != nil {
			o.logger.Error("background sync failed", "feed", feedID, "error", err)
		}
	}()
	return nil
}

// SyncAll runs every active feed through the pipeline with bounded
// concurrency. Per-feed failures are recorded on the feed and reported via
// events; they do not abort the pass. Feeds already syncing are skipped.
func (o *Orchestrator) SyncAll(ctx context.Context) error {
	feeds, err := o.store.ListFeeds()
	if err != nil {
		return fmt.Errorf("failed to list feeds: %w", err)
	}

	g := new(errgroup.Group)
	g.SetLimit(o.workers)
	for _, feed := range feeds {
		if !feed.Active {
			continue
		}
		feed := feed
		g.Go(func() error {
			err := o.SyncFeed(ctx, feed.ID)
			if err != nil && !errors.Is(err, ErrSyncInProgress) {
				o.logger.Warn("feed sync failed", "feed", feed.DisplayTitle(), "error", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// CancelRun cancels the in-flight run for the feed, waits for it to wind
// down, and reports whether one was running. The cancelled run ends with a
// failed status carrying a cancelled reason.
func (o *Orchestrator) CancelRun(feedID string) bool {
	o.mu.Lock()
	h, ok := o.running[feedID]
	o.mu.Unlock()
	if !ok {
		return false
	}
	h.cancel()
	<-h.done
	return true
}

// Quiesce blocks until no runs are in flight. It does not prevent new runs
// from starting; callers stop issuing requests first.
func (o *Orchestrator) Quiesce() {
	for {
		o.mu.Lock()
		n := len(o.running)
		o.mu.Unlock()
		if n == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Running reports whether the feed currently has a run in flight.
func (o *Orchestrator) Running(feedID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.running[feedID]
	return ok
}

// acquire takes the single-flight lease for the feed. The returned release
// must be called exactly once when the run ends.
func (o *Orchestrator) acquire(ctx context.Context, feedID string) (context.Context, func(), error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.running[feedID]; ok {
		return nil, nil, ErrSyncInProgress
	}
	runCtx, cancel := context.WithCancel(ctx)
	h := &runHandle{cancel: cancel, done: make(chan struct{})}
	o.running[feedID] = h
	release := func() {
		o.mu.Lock()
		delete(o.running, feedID)
		o.mu.Unlock()
		cancel()
		close(h.done)
	}
	return runCtx, release, nil
}

// run executes the state machine for one feed: started, per-entry progress,
// then completed or failed. The caller holds the single-flight lease.
func (o *Orchestrator) run(ctx context.Context, feedID string) error {
	feed, err := o.store.GetFeed(feedID)
	if err != nil {
		return fmt.Errorf("failed to load feed: %w", err)
	}

	o.bus.PublishProgress(events.Progress{
		FeedID:    feed.ID,
		FeedTitle: feed.DisplayTitle(),
		Status:    events.StatusStarted,
	})

	res, err := o.pipeline.Run(ctx, feed)
	if err != nil {
		return o.fail(feed, err)
	}

	if res.NotModified {
		// The source is unchanged since the last pass. The last-synced
		// marker still advances: the check itself succeeded.
		if err := o.store.MarkFeedSynced(feed.ID, feed.ETag, feed.LastModified, time.Now()); err != nil {
			return o.fail(feed, err)
		}
		zero := 0
		o.bus.PublishProgress(events.Progress{
			FeedID:    feed.ID,
			FeedTitle: feed.DisplayTitle(),
			Total:     &zero,
			Status:    events.StatusCompleted,
		})
		o.logger.Debug("feed unchanged", "feed", feed.DisplayTitle())
		return nil
	}

	o.backfillMetadata(feed, res.Feed)

	total := res.Feed.Len()
	o.bus.PublishProgress(events.Progress{
		FeedID:    feed.ID,
		FeedTitle: feed.DisplayTitle(),
		Total:     &total,
		Status:    events.StatusInProgress,
	})

	processed := 0
	it := res.Feed.Entries()
	for {
		// Cancellation is honored between entries; the entry being
		// persisted is never torn.
		if err := ctx.Err(); err != nil {
			return o.fail(feed, err)
		}
		entry, ok := it.Next()
		if !ok {
			break
		}

		stored, outcome, err := o.store.UpsertArticle(entryToArticle(feed.ID, entry))
		if err != nil {
			return o.fail(feed, err)
		}
		processed++
		if outcome == storage.Inserted {
			o.bus.PublishArticle(events.ArticleArrived{FeedID: feed.ID, Article: stored})
		}
		o.bus.PublishProgress(events.Progress{
			FeedID:       feed.ID,
			FeedTitle:    feed.DisplayTitle(),
			Processed:    processed,
			Total:        &total,
			CurrentTitle: entry.Title,
			Status:       events.StatusInProgress,
		})
	}

	etag, lastModified := feed.ETag, feed.LastModified
	if res.ETag != "" {
		etag = &res.ETag
	}
	if res.LastModified != "" {
		lastModified = &res.LastModified
	}
	if err := o.store.MarkFeedSynced(feed.ID, etag, lastModified, time.Now()); err != nil {
		return o.fail(feed, err)
	}

	o.bus.PublishProgress(events.Progress{
		FeedID:    feed.ID,
		FeedTitle: feed.DisplayTitle(),
		Processed: processed,
		Total:     &total,
		Status:    events.StatusCompleted,
	})
	o.logger.Debug("feed synced", "feed", feed.DisplayTitle(), "entries", processed)
	return nil
}

// fail records the error on the feed, emits a failed progress event with the
// classified reason, and returns the RunError. Cancellation is not a source
// fault, so it does not touch the feed's error bookkeeping.
func (o *Orchestrator) fail(feed *models.Feed, cause error) error {
	runErr := classify(cause)
	if runErr.Kind != FailureCancelled {
		if err := o.store.RecordFeedError(feed.ID, runErr.Error()); err != nil {
			o.logger.Error("failed to record feed error", "feed", feed.ID, "error", err)
		}
	}
	o.bus.PublishProgress(events.Progress{
		FeedID:    feed.ID,
		FeedTitle: feed.DisplayTitle(),
		Status:    events.StatusFailed,
		Reason:    runErr.Kind.String(),
	})
	return runErr
}

// backfillMetadata copies feed-level metadata from the parsed document onto
// the registered feed. Best effort: a write failure is logged, not fatal.
func (o *Orchestrator) backfillMetadata(feed *models.Feed, parsed *parse.ParsedFeed) {
	changed := false
	if feed.Title == nil || *feed.Title != parsed.Title {
		title := parsed.Title
		feed.Title = &title
		changed = true
	}
	if parsed.Description != nil && !strPtrEqual(feed.Description, parsed.Description) {
		feed.Description = parsed.Description
		changed = true
	}
	if parsed.SiteURL != nil && !strPtrEqual(feed.SiteURL, parsed.SiteURL) {
		feed.SiteURL = parsed.SiteURL
		changed = true
	}
	if !changed {
		return
	}
	if err := o.store.UpdateFeed(feed); err != nil {
		o.logger.Warn("failed to update feed metadata", "feed", feed.ID, "error", err)
	}
}

func entryToArticle(feedID string, entry *parse.Entry) *models.Article {
	article := models.NewArticle(feedID, entry.GUID, entry.Title)
	article.Link = entry.Link
	article.Description = entry.Description
	article.Content = entry.Content
	article.Author = entry.Author
	article.PublishedAt = entry.PublishedAt
	return article
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
