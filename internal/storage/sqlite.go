// ABOUTME: SQLite storage implementation using modernc.org/sqlite (pure Go)
// ABOUTME: Provides feed and article persistence with per-row atomic upsert and cascade delete

package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harper/skim/internal/models"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite storage instance.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure directory exists. 0700: reading habits are personal data.
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the database tables if they don't exist.
func (s *SQLiteStore) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS feeds (
			id TEXT PRIMARY KEY,
			url TEXT UNIQUE NOT NULL,
			title TEXT,
			description TEXT,
			website_url TEXT,
			etag TEXT,
			last_modified TEXT,
			last_updated TIMESTAMP,
			last_error TEXT,
			error_count INTEGER NOT NULL DEFAULT 0,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_feeds_url ON feeds(url);

		CREATE TABLE IF NOT EXISTS articles (
			id TEXT PRIMARY KEY,
			feed_id TEXT NOT NULL REFERENCES feeds(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			link TEXT,
			description TEXT,
			content TEXT,
			author TEXT,
			published_at TIMESTAMP,
			guid TEXT NOT NULL,
			is_read INTEGER NOT NULL DEFAULT 0,
			is_starred INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			UNIQUE(guid, feed_id)
		);

		CREATE INDEX IF NOT EXISTS idx_articles_feed_id ON articles(feed_id);
		CREATE INDEX IF NOT EXISTS idx_articles_published_at ON articles(published_at);
		CREATE INDEX IF NOT EXISTS idx_articles_is_read ON articles(is_read);
		CREATE INDEX IF NOT EXISTS idx_articles_is_starred ON articles(is_starred);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Feed Operations

// CreateFeed stores a new feed.
func (s *SQLiteStore) CreateFeed(feed *models.Feed) error {
	query := `
		INSERT INTO feeds (id, url, title, description, website_url, etag, last_modified, last_updated, last_error, error_count, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		feed.ID, feed.URL, feed.Title, feed.Description, feed.SiteURL,
		feed.ETag, feed.LastModified, timeToSQL(feed.LastSyncedAt),
		feed.LastError, feed.ErrorCount, boolToInt(feed.Active),
		feed.CreatedAt, feed.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "feeds.url") {
			return fmt.Errorf("%w: %s", ErrDuplicateURL, feed.URL)
		}
		return fmt.Errorf("insert feed: %w", err)
	}
	return nil
}

const feedColumns = `id, url, title, description, website_url, etag, last_modified, last_updated, last_error, error_count, is_active, created_at, updated_at`

// GetFeed retrieves a feed by ID.
func (s *SQLiteStore) GetFeed(id string) (*models.Feed, error) {
	query := `SELECT ` + feedColumns + ` FROM feeds WHERE id = ?`
	return scanFeed(s.db.QueryRow(query, id))
}

// GetFeedByURL finds a feed by its URL.
func (s *SQLiteStore) GetFeedByURL(url string) (*models.Feed, error) {
	query := `SELECT ` + feedColumns + ` FROM feeds WHERE url = ?`
	return scanFeed(s.db.QueryRow(query, url))
}

// ListFeeds returns all feeds, sorted by creation date (newest first).
func (s *SQLiteStore) ListFeeds() ([]*models.Feed, error) {
	query := `SELECT ` + feedColumns + ` FROM feeds ORDER BY created_at DESC`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("query feeds: %w", err)
	}
	defer rows.Close()

	var feeds []*models.Feed
	for rows.Next() {
		feed, err := scanFeedFromRows(rows)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, feed)
	}
	return feeds, rows.Err()
}

// UpdateFeed updates an existing feed's metadata.
func (s *SQLiteStore) UpdateFeed(feed *models.Feed) error {
	query := `
		UPDATE feeds SET
			title = ?, description = ?, website_url = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`
	now := time.Now()
	result, err := s.db.Exec(query,
		feed.Title, feed.Description, feed.SiteURL, boolToInt(feed.Active), now,
		feed.ID,
	)
	if err != nil {
		return fmt.Errorf("update feed: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: feed %s", ErrNotFound, feed.ID)
	}
	feed.UpdatedAt = now
	return nil
}

// DeleteFeed removes a feed and all its articles (cascade).
func (s *SQLiteStore) DeleteFeed(id string) error {
	result, err := s.db.Exec("DELETE FROM feeds WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete feed: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: feed %s", ErrNotFound, id)
	}
	return nil
}

// MarkFeedSynced records a successful sync completion.
func (s *SQLiteStore) MarkFeedSynced(feedID string, etag, lastModified *string, syncedAt time.Time) error {
	query := `
		UPDATE feeds SET
			etag = ?, last_modified = ?, last_updated = ?,
			last_error = NULL, error_count = 0, updated_at = ?
		WHERE id = ?
	`
	result, err := s.db.Exec(query, etag, lastModified, syncedAt, syncedAt, feedID)
	if err != nil {
		return fmt.Errorf("mark feed synced: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: feed %s", ErrNotFound, feedID)
	}
	return nil
}

// RecordFeedError stores a sync error, leaving the last-synced marker alone.
func (s *SQLiteStore) RecordFeedError(feedID string, errMsg string) error {
	query := `UPDATE feeds SET last_error = ?, error_count = error_count + 1, updated_at = ? WHERE id = ?`
	result, err := s.db.Exec(query, errMsg, time.Now(), feedID)
	if err != nil {
		return fmt.Errorf("record feed error: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: feed %s", ErrNotFound, feedID)
	}
	return nil
}

// Article Operations

const articleColumns = `id, feed_id, title, link, description, content, author, published_at, guid, is_read, is_starred, created_at`

// UpsertArticle inserts or refreshes an article keyed by (FeedID, GUID).
// The read-match-then-write sequence runs inside a transaction so concurrent
// runs for different feeds cannot interleave on the same row.
func (s *SQLiteStore) UpsertArticle(article *models.Article) (*models.Article, UpsertOutcome, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, Unchanged, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + articleColumns + ` FROM articles WHERE feed_id = ? AND guid = ?`
	existing, err := scanArticle(tx.QueryRow(query, article.FeedID, article.GUID))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, Unchanged, err
	}

	if existing == nil {
		insert := `
			INSERT INTO articles (id, feed_id, title, link, description, content, author, published_at, guid, is_read, is_starred, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?)
		`
		if _, err := tx.Exec(insert,
			article.ID, article.FeedID, article.Title, article.Link,
			article.Description, article.Content, article.Author,
			timeToSQL(article.PublishedAt), article.GUID, article.CreatedAt,
		); err != nil {
			return nil, Unchanged, fmt.Errorf("insert article: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, Unchanged, fmt.Errorf("commit upsert: %w", err)
		}
		stored := *article
		stored.Read = false
		stored.Starred = false
		return &stored, Inserted, nil
	}

	if !contentFieldsDiffer(existing, article) {
		return existing, Unchanged, nil
	}

	update := `
		UPDATE articles SET title = ?, link = ?, description = ?, content = ?, author = ?, published_at = ?
		WHERE id = ?
	`
	if _, err := tx.Exec(update,
		article.Title, article.Link, article.Description, article.Content,
		article.Author, timeToSQL(article.PublishedAt),
		existing.ID,
	); err != nil {
		return nil, Unchanged, fmt.Errorf("update article: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, Unchanged, fmt.Errorf("commit upsert: %w", err)
	}

	// Row identity and user flags survive the refresh
	merged := *existing
	merged.Title = article.Title
	merged.Link = article.Link
	merged.Description = article.Description
	merged.Content = article.Content
	merged.Author = article.Author
	merged.PublishedAt = article.PublishedAt
	return &merged, Updated, nil
}

// contentFieldsDiffer reports whether any ingestion-owned field changed.
// Read/starred are user-owned and excluded on purpose.
func contentFieldsDiffer(a, b *models.Article) bool {
	return a.Title != b.Title ||
		!strPtrEqual(a.Link, b.Link) ||
		!strPtrEqual(a.Description, b.Description) ||
		!strPtrEqual(a.Content, b.Content) ||
		!strPtrEqual(a.Author, b.Author) ||
		!timePtrEqual(a.PublishedAt, b.PublishedAt)
}

// GetArticle retrieves an article by ID.
func (s *SQLiteStore) GetArticle(id string) (*models.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE id = ?`
	return scanArticle(s.db.QueryRow(query, id))
}

// ListArticles returns articles matching the filter, newest first.
func (s *SQLiteStore) ListArticles(filter *ArticleFilter) ([]*models.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles`

	var conditions []string
	var args []interface{}

	if filter != nil {
		if filter.FeedID != nil {
			conditions = append(conditions, "feed_id = ?")
			args = append(args, *filter.FeedID)
		}
		if filter.UnreadOnly {
			conditions = append(conditions, "is_read = 0")
		}
		if filter.StarredOnly {
			conditions = append(conditions, "is_starred = 1")
		}
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY published_at DESC, created_at DESC"

	if filter != nil {
		if filter.Limit != nil {
			query += fmt.Sprintf(" LIMIT %d", *filter.Limit)
		}
		if filter.Offset != nil {
			if filter.Limit == nil {
				query += " LIMIT -1"
			}
			query += fmt.Sprintf(" OFFSET %d", *filter.Offset)
		}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var articles []*models.Article
	for rows.Next() {
		article, err := scanArticleFromRows(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, article)
	}
	return articles, rows.Err()
}

// SetArticleFlags applies a partial read/starred update.
func (s *SQLiteStore) SetArticleFlags(id string, flags ArticleFlags) error {
	var sets []string
	var args []interface{}

	if flags.Read != nil {
		sets = append(sets, "is_read = ?")
		args = append(args, boolToInt(*flags.Read))
	}
	if flags.Starred != nil {
		sets = append(sets, "is_starred = ?")
		args = append(args, boolToInt(*flags.Starred))
	}
	if len(sets) == 0 {
		// Nothing requested; still verify the article exists
		_, err := s.GetArticle(id)
		return err
	}

	args = append(args, id)
	query := "UPDATE articles SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	result, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("set article flags: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: article %s", ErrNotFound, id)
	}
	return nil
}

// SetArticleContent caches extracted full content on an article.
func (s *SQLiteStore) SetArticleContent(id string, content string) error {
	result, err := s.db.Exec("UPDATE articles SET content = ? WHERE id = ?", content, id)
	if err != nil {
		return fmt.Errorf("set article content: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: article %s", ErrNotFound, id)
	}
	return nil
}

// Statistics

// Stats computes the statistics projection over feeds and articles.
func (s *SQLiteStore) Stats() (*Stats, error) {
	var stats Stats

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM feeds`).Scan(&stats.TotalFeeds); err != nil {
		return nil, fmt.Errorf("count feeds: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM articles`).Scan(&stats.TotalArticles); err != nil {
		return nil, fmt.Errorf("count articles: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM articles WHERE is_read = 0`).Scan(&stats.UnreadArticles); err != nil {
		return nil, fmt.Errorf("count unread: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM articles WHERE is_starred = 1`).Scan(&stats.StarredArticles); err != nil {
		return nil, fmt.Errorf("count starred: %w", err)
	}

	query := `
		SELECT f.id, f.title,
			   SUM(CASE WHEN a.id IS NOT NULL AND a.is_read = 0 THEN 1 ELSE 0 END) as unread_count
		FROM feeds f
		LEFT JOIN articles a ON f.id = a.feed_id
		WHERE f.is_active = 1
		GROUP BY f.id, f.title
		ORDER BY f.created_at DESC
	`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("query per-feed unread: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row FeedUnread
		var unread sql.NullInt64
		if err := rows.Scan(&row.FeedID, &row.FeedTitle, &unread); err != nil {
			return nil, fmt.Errorf("scan per-feed unread: %w", err)
		}
		if unread.Valid {
			row.UnreadCount = int(unread.Int64)
		}
		stats.PerFeed = append(stats.PerFeed, row)
	}
	return &stats, rows.Err()
}

// Helper functions

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFeed(row rowScanner) (*models.Feed, error) {
	var feed models.Feed
	var lastSynced sql.NullTime
	var active int
	if err := row.Scan(
		&feed.ID, &feed.URL, &feed.Title, &feed.Description, &feed.SiteURL,
		&feed.ETag, &feed.LastModified, &lastSynced,
		&feed.LastError, &feed.ErrorCount, &active,
		&feed.CreatedAt, &feed.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: feed", ErrNotFound)
		}
		return nil, fmt.Errorf("scan feed: %w", err)
	}
	if lastSynced.Valid {
		feed.LastSyncedAt = &lastSynced.Time
	}
	feed.Active = active == 1
	return &feed, nil
}

func scanFeedFromRows(rows *sql.Rows) (*models.Feed, error) {
	return scanFeed(rows)
}

func scanArticle(row rowScanner) (*models.Article, error) {
	var article models.Article
	var publishedAt sql.NullTime
	var readInt, starredInt int
	if err := row.Scan(
		&article.ID, &article.FeedID, &article.Title, &article.Link,
		&article.Description, &article.Content, &article.Author,
		&publishedAt, &article.GUID, &readInt, &starredInt,
		&article.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: article", ErrNotFound)
		}
		return nil, fmt.Errorf("scan article: %w", err)
	}
	if publishedAt.Valid {
		article.PublishedAt = &publishedAt.Time
	}
	article.Read = readInt == 1
	article.Starred = starredInt == 1
	return &article, nil
}

func scanArticleFromRows(rows *sql.Rows) (*models.Article, error) {
	return scanArticle(rows)
}

func isUniqueViolation(err error, column string) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: "+column)
}

func timeToSQL(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
