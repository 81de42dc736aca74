// ABOUTME: Storage interface and types for skim data persistence
// ABOUTME: Defines the contract for feed registry and article store operations

package storage

import (
	"errors"
	"time"

	"github.com/harper/skim/internal/models"
)

// Sentinel errors returned by Store implementations.
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateURL = errors.New("feed URL already exists")
)

// UpsertOutcome reports what UpsertArticle did with an incoming entry.
type UpsertOutcome int

const (
	// Inserted means a new article row was created.
	Inserted UpsertOutcome = iota
	// Updated means an existing row matched and at least one content field changed.
	Updated
	// Unchanged means an existing row matched and nothing differed.
	Unchanged
)

func (o UpsertOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	case Unchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// ArticleFilter specifies criteria for listing articles.
type ArticleFilter struct {
	FeedID      *string
	UnreadOnly  bool
	StarredOnly bool
	Limit       *int
	Offset      *int
}

// ArticleFlags carries a partial read/starred update; nil fields are left unchanged.
type ArticleFlags struct {
	Read    *bool
	Starred *bool
}

// FeedUnread is the per-feed unread count in the statistics projection.
type FeedUnread struct {
	FeedID      string
	FeedTitle   *string
	UnreadCount int
}

// Stats is the on-demand statistics projection over feeds and articles.
type Stats struct {
	TotalFeeds      int
	TotalArticles   int
	UnreadArticles  int
	StarredArticles int
	PerFeed         []FeedUnread
}

// Store defines the persistence contract for feeds and articles.
// Implementations must make UpsertArticle atomic per row so runs for
// different feeds can proceed in parallel.
type Store interface {
	// Close closes the store and releases resources.
	Close() error

	// Feed Operations

	// CreateFeed stores a new feed. Returns ErrDuplicateURL if the URL is taken.
	CreateFeed(feed *models.Feed) error

	// GetFeed retrieves a feed by ID. Returns ErrNotFound if absent.
	GetFeed(id string) (*models.Feed, error)

	// GetFeedByURL finds a feed by its URL. Returns ErrNotFound if absent.
	GetFeedByURL(url string) (*models.Feed, error)

	// ListFeeds returns all feeds, newest first.
	ListFeeds() ([]*models.Feed, error)

	// UpdateFeed updates feed metadata (title, description, site URL, active flag).
	UpdateFeed(feed *models.Feed) error

	// DeleteFeed removes a feed and all its articles (cascade).
	DeleteFeed(id string) error

	// MarkFeedSynced records a successful sync: caching headers, cleared
	// error state, and the advanced last-synced marker.
	MarkFeedSynced(feedID string, etag, lastModified *string, syncedAt time.Time) error

	// RecordFeedError stores the latest sync error and bumps the error count.
	// The last-synced marker is left untouched.
	RecordFeedError(feedID string, errMsg string) error

	// Article Operations

	// UpsertArticle inserts or refreshes an article keyed by (FeedID, GUID).
	// On insert the stored row is returned with read/starred false. On match,
	// content fields are refreshed and the user flags of the existing row are
	// preserved; the outcome is Updated only when a content field actually
	// differed.
	UpsertArticle(article *models.Article) (*models.Article, UpsertOutcome, error)

	// GetArticle retrieves an article by ID. Returns ErrNotFound if absent.
	GetArticle(id string) (*models.Article, error)

	// ListArticles returns articles matching the filter, ordered by published
	// time descending with creation time as tiebreak.
	ListArticles(filter *ArticleFilter) ([]*models.Article, error)

	// SetArticleFlags applies a partial read/starred update.
	SetArticleFlags(id string, flags ArticleFlags) error

	// SetArticleContent caches extracted full content on an article.
	SetArticleContent(id string, content string) error

	// Stats computes the statistics projection.
	Stats() (*Stats, error)
}
