// ABOUTME: In-memory Store implementation for tests and ephemeral use
// ABOUTME: Mirrors SQLite semantics including dedup upsert, cascade delete, and stats

package storage

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/harper/skim/internal/models"
)

// MemoryStore implements Store with plain maps under a mutex. It exists so
// orchestrator and event tests can run without touching disk, and mirrors
// the SQLite implementation's semantics exactly.
type MemoryStore struct {
	mu       sync.Mutex
	feeds    map[string]*models.Feed
	articles map[string]*models.Article
	// byKey indexes articles by feedID + "\x00" + guid for dedup lookups
	byKey map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		feeds:    make(map[string]*models.Feed),
		articles: make(map[string]*models.Article),
		byKey:    make(map[string]string),
	}
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

func dedupKey(feedID, guid string) string {
	return feedID + "\x00" + guid
}

// CreateFeed stores a new feed.
func (s *MemoryStore) CreateFeed(feed *models.Feed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.feeds {
		if f.URL == feed.URL {
			return fmt.Errorf("%w: %s", ErrDuplicateURL, feed.URL)
		}
	}
	copied := *feed
	s.feeds[feed.ID] = &copied
	return nil
}

// GetFeed retrieves a feed by ID.
func (s *MemoryStore) GetFeed(id string) (*models.Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	feed, ok := s.feeds[id]
	if !ok {
		return nil, fmt.Errorf("%w: feed %s", ErrNotFound, id)
	}
	copied := *feed
	return &copied, nil
}

// GetFeedByURL finds a feed by its URL.
func (s *MemoryStore) GetFeedByURL(url string) (*models.Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, feed := range s.feeds {
		if feed.URL == url {
			copied := *feed
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("%w: feed url %s", ErrNotFound, url)
}

// ListFeeds returns all feeds, newest first.
func (s *MemoryStore) ListFeeds() ([]*models.Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	feeds := make([]*models.Feed, 0, len(s.feeds))
	for _, feed := range s.feeds {
		copied := *feed
		feeds = append(feeds, &copied)
	}
	sort.Slice(feeds, func(i, j int) bool {
		return feeds[i].CreatedAt.After(feeds[j].CreatedAt)
	})
	return feeds, nil
}

// UpdateFeed updates feed metadata.
func (s *MemoryStore) UpdateFeed(feed *models.Feed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.feeds[feed.ID]
	if !ok {
		return fmt.Errorf("%w: feed %s", ErrNotFound, feed.ID)
	}
	existing.Title = feed.Title
	existing.Description = feed.Description
	existing.SiteURL = feed.SiteURL
	existing.Active = feed.Active
	existing.UpdatedAt = time.Now()
	return nil
}

// DeleteFeed removes a feed and all its articles.
func (s *MemoryStore) DeleteFeed(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.feeds[id]; !ok {
		return fmt.Errorf("%w: feed %s", ErrNotFound, id)
	}
	delete(s.feeds, id)
	for articleID, article := range s.articles {
		if article.FeedID == id {
			delete(s.byKey, dedupKey(article.FeedID, article.GUID))
			delete(s.articles, articleID)
		}
	}
	return nil
}

// MarkFeedSynced records a successful sync completion.
func (s *MemoryStore) MarkFeedSynced(feedID string, etag, lastModified *string, syncedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	feed, ok := s.feeds[feedID]
	if !ok {
		return fmt.Errorf("%w: feed %s", ErrNotFound, feedID)
	}
	feed.ETag = etag
	feed.LastModified = lastModified
	synced := syncedAt
	feed.LastSyncedAt = &synced
	feed.LastError = nil
	feed.ErrorCount = 0
	feed.UpdatedAt = syncedAt
	return nil
}

// RecordFeedError stores a sync error.
func (s *MemoryStore) RecordFeedError(feedID string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	feed, ok := s.feeds[feedID]
	if !ok {
		return fmt.Errorf("%w: feed %s", ErrNotFound, feedID)
	}
	feed.LastError = &errMsg
	feed.ErrorCount++
	feed.UpdatedAt = time.Now()
	return nil
}

// UpsertArticle inserts or refreshes an article keyed by (FeedID, GUID).
func (s *MemoryStore) UpsertArticle(article *models.Article) (*models.Article, UpsertOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.feeds[article.FeedID]; !ok {
		return nil, Unchanged, fmt.Errorf("%w: feed %s", ErrNotFound, article.FeedID)
	}

	key := dedupKey(article.FeedID, article.GUID)
	if existingID, ok := s.byKey[key]; ok {
		existing := s.articles[existingID]
		if !contentFieldsDiffer(existing, article) {
			copied := *existing
			return &copied, Unchanged, nil
		}
		existing.Title = article.Title
		existing.Link = article.Link
		existing.Description = article.Description
		existing.Content = article.Content
		existing.Author = article.Author
		existing.PublishedAt = article.PublishedAt
		copied := *existing
		return &copied, Updated, nil
	}

	stored := *article
	stored.Read = false
	stored.Starred = false
	s.articles[stored.ID] = &stored
	s.byKey[key] = stored.ID
	copied := stored
	return &copied, Inserted, nil
}

// GetArticle retrieves an article by ID.
func (s *MemoryStore) GetArticle(id string) (*models.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	article, ok := s.articles[id]
	if !ok {
		return nil, fmt.Errorf("%w: article %s", ErrNotFound, id)
	}
	copied := *article
	return &copied, nil
}

// ListArticles returns articles matching the filter, newest first.
func (s *MemoryStore) ListArticles(filter *ArticleFilter) ([]*models.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var articles []*models.Article
	for _, article := range s.articles {
		if filter != nil {
			if filter.FeedID != nil && article.FeedID != *filter.FeedID {
				continue
			}
			if filter.UnreadOnly && article.Read {
				continue
			}
			if filter.StarredOnly && !article.Starred {
				continue
			}
		}
		copied := *article
		articles = append(articles, &copied)
	}

	sort.Slice(articles, func(i, j int) bool {
		ti := articles[i].CreatedAt
		if articles[i].PublishedAt != nil {
			ti = *articles[i].PublishedAt
		}
		tj := articles[j].CreatedAt
		if articles[j].PublishedAt != nil {
			tj = *articles[j].PublishedAt
		}
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return articles[i].CreatedAt.After(articles[j].CreatedAt)
	})

	if filter != nil {
		offset := 0
		if filter.Offset != nil {
			offset = *filter.Offset
		}
		if offset > len(articles) {
			offset = len(articles)
		}
		articles = articles[offset:]
		if filter.Limit != nil && *filter.Limit < len(articles) {
			articles = articles[:*filter.Limit]
		}
	}
	return articles, nil
}

// SetArticleFlags applies a partial read/starred update.
func (s *MemoryStore) SetArticleFlags(id string, flags ArticleFlags) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	article, ok := s.articles[id]
	if !ok {
		return fmt.Errorf("%w: article %s", ErrNotFound, id)
	}
	if flags.Read != nil {
		article.Read = *flags.Read
	}
	if flags.Starred != nil {
		article.Starred = *flags.Starred
	}
	return nil
}

// SetArticleContent caches extracted content on an article.
func (s *MemoryStore) SetArticleContent(id string, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	article, ok := s.articles[id]
	if !ok {
		return fmt.Errorf("%w: article %s", ErrNotFound, id)
	}
	article.Content = &content
	return nil
}

// Stats computes the statistics projection.
func (s *MemoryStore) Stats() (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &Stats{TotalFeeds: len(s.feeds), TotalArticles: len(s.articles)}
	unreadByFeed := make(map[string]int)
	for _, article := range s.articles {
		if !article.Read {
			stats.UnreadArticles++
			unreadByFeed[article.FeedID]++
		}
		if article.Starred {
			stats.StarredArticles++
		}
	}

	var active []*models.Feed
	for _, feed := range s.feeds {
		if feed.Active {
			active = append(active, feed)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.After(active[j].CreatedAt)
	})
	for _, feed := range active {
		stats.PerFeed = append(stats.PerFeed, FeedUnread{
			FeedID:      feed.ID,
			FeedTitle:   feed.Title,
			UnreadCount: unreadByFeed[feed.ID],
		})
	}
	return stats, nil
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
