// ABOUTME: High-level feed service tying registry, orchestrator, and content together
// ABOUTME: The surface the CLI commands call; validates input and owns feed lifecycle

package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/charmbracelet/log"

	"github.com/harper/skim/internal/content"
	"github.com/harper/skim/internal/events"
	"github.com/harper/skim/internal/models"
	"github.com/harper/skim/internal/storage"
)

// ErrInvalidURL is returned when a feed URL fails validation before any
// network or storage work happens.
var ErrInvalidURL = errors.New("invalid feed URL")

// ErrNoLink is returned when full content is requested for an article that
// has neither a stored body nor a link to extract one from.
var ErrNoLink = errors.New("article has no link to extract content from")

// DefaultArticleLimit is the page size used when a listing gives no limit.
const DefaultArticleLimit = 50

// Service is the high-level API over the feed registry and article store.
type Service struct {
	store  storage.Store
	orch   *Orchestrator
	bus    *events.Bus
	logger *log.Logger
}

// NewService wires a service from its parts.
func NewService(store storage.Store, orch *Orchestrator, bus *events.Bus) *Service {
	return &Service{
		store:  store,
		orch:   orch,
		bus:    bus,
		logger: log.Default().WithPrefix("feeds"),
	}
}

// Subscribe attaches an event consumer to the service's bus.
func (s *Service) Subscribe(buffer int) *events.Subscription {
	return s.bus.Subscribe(buffer)
}

// AddFeed registers a feed and runs its first ingestion pass synchronously.
// If the first pass fails the registration is rolled back, so a feed only
// exists once it has synced at least once.
func (s *Service) AddFeed(ctx context.Context, feedURL string) (*models.Feed, error) {
	if err := validateFeedURL(feedURL); err != nil {
		return nil, err
	}

	feed := models.NewFeed(feedURL)
	if err := s.store.CreateFeed(feed); err != nil {
		return nil, err
	}

	if err := s.orch.SyncFeed(ctx, feed.ID); err != nil {
		if delErr := s.store.DeleteFeed(feed.ID); delErr != nil {
			s.logger.Error("failed to roll back feed", "feed", feed.ID, "error", delErr)
		}
		return nil, fmt.Errorf("initial sync failed: %w", err)
	}

	// Reload to pick up backfilled metadata and the sync marker
	return s.store.GetFeed(feed.ID)
}

// AddFeedAsync registers a feed and kicks off its first ingestion pass in
// the background. The returned feed has no metadata yet; watch the event
// bus for the run outcome.
func (s *Service) AddFeedAsync(feedURL string) (*models.Feed, error) {
	if err := validateFeedURL(feedURL); err != nil {
		return nil, err
	}

	feed := models.NewFeed(feedURL)
	if err := s.store.CreateFeed(feed); err != nil {
		return nil, err
	}
	if err := s.orch.RefreshFeed(feed.ID); err != nil {
		return nil, err
	}
	return feed, nil
}

// GetFeed retrieves a feed by ID.
func (s *Service) GetFeed(id string) (*models.Feed, error) {
	return s.store.GetFeed(id)
}

// GetFeedByURL retrieves a feed by its URL.
func (s *Service) GetFeedByURL(feedURL string) (*models.Feed, error) {
	return s.store.GetFeedByURL(feedURL)
}

// ListFeeds returns all registered feeds, newest first.
func (s *Service) ListFeeds() ([]*models.Feed, error) {
	return s.store.ListFeeds()
}

// SetFeedActive toggles whether bulk syncs include the feed.
func (s *Service) SetFeedActive(id string, active bool) error {
	feed, err := s.store.GetFeed(id)
	if err != nil {
		return err
	}
	if feed.Active == active {
		return nil
	}
	feed.Active = active
	return s.store.UpdateFeed(feed)
}

// DeleteFeed removes a feed and all its articles. An in-flight run for the
// feed is cancelled and drained first so it cannot write to deleted rows.
func (s *Service) DeleteFeed(id string) error {
	if _, err := s.store.GetFeed(id); err != nil {
		return err
	}
	if s.orch.CancelRun(id) {
		s.logger.Debug("cancelled in-flight sync before delete", "feed", id)
	}
	return s.store.DeleteFeed(id)
}

// SyncFeed runs one ingestion pass for the feed and blocks until done.
func (s *Service) SyncFeed(ctx context.Context, id string) error {
	return s.orch.SyncFeed(ctx, id)
}

// RefreshFeed requests a background run, coalescing with any in flight.
func (s *Service) RefreshFeed(id string) error {
	return s.orch.RefreshFeed(id)
}

// SyncAll ingests every active feed with bounded concurrency.
func (s *Service) SyncAll(ctx context.Context) error {
	return s.orch.SyncAll(ctx)
}

// CancelSync cancels the in-flight run for a feed, reporting whether there
// was one.
func (s *Service) CancelSync(id string) bool {
	return s.orch.CancelRun(id)
}

// Quiesce blocks until all in-flight runs finish. Called before shutdown so
// background syncs are not cut off mid-run.
func (s *Service) Quiesce() {
	s.orch.Quiesce()
}

// ListArticles returns articles matching the filter, newest first. A nil
// filter or missing pagination gets the default page size.
func (s *Service) ListArticles(filter *storage.ArticleFilter) ([]*models.Article, error) {
	if filter == nil {
		filter = &storage.ArticleFilter{}
	}
	if filter.Limit == nil {
		limit := DefaultArticleLimit
		filter.Limit = &limit
	}
	if filter.Offset == nil {
		offset := 0
		filter.Offset = &offset
	}
	return s.store.ListArticles(filter)
}

// GetArticle retrieves an article by ID.
func (s *Service) GetArticle(id string) (*models.Article, error) {
	return s.store.GetArticle(id)
}

// GetArticleContent returns the article body as Markdown. A stored body is
// converted directly; otherwise the article page is fetched and its main
// content extracted, then cached on the article for next time.
func (s *Service) GetArticleContent(ctx context.Context, id string) (string, error) {
	article, err := s.store.GetArticle(id)
	if err != nil {
		return "", err
	}

	if article.Content != nil && *article.Content != "" {
		body := *article.Content
		if content.IsHTML(body) {
			return content.ToMarkdown(body), nil
		}
		return body, nil
	}

	if article.Link == nil || *article.Link == "" {
		return "", ErrNoLink
	}

	extracted, err := content.ExtractFromURL(ctx, *article.Link)
	if err != nil {
		return "", fmt.Errorf("content extraction failed: %w", err)
	}
	if err := s.store.SetArticleContent(article.ID, extracted); err != nil {
		s.logger.Warn("failed to cache extracted content", "article", article.ID, "error", err)
	}
	return extracted, nil
}

// UpdateArticle applies a partial read/starred update to an article.
func (s *Service) UpdateArticle(id string, flags storage.ArticleFlags) error {
	return s.store.SetArticleFlags(id, flags)
}

// Statistics computes the feed and article statistics projection.
func (s *Service) Statistics() (*storage.Stats, error) {
	return s.store.Stats()
}

func validateFeedURL(feedURL string) error {
	parsed, err := url.Parse(feedURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return nil
}
