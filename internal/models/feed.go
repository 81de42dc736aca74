// ABOUTME: Feed model representing a subscribed RSS/Atom source with sync bookkeeping
// ABOUTME: Tracks metadata, conditional request headers, last-synced marker, and error state

package models

import (
	"time"

	"github.com/google/uuid"
)

// Feed represents an RSS/Atom feed subscription
type Feed struct {
	ID           string     // Unique identifier for the feed
	URL          string     // Feed URL (unique across all feeds)
	Title        *string    // Feed title (backfilled from feed metadata on first sync)
	Description  *string    // Feed description from metadata
	SiteURL      *string    // Website the feed belongs to
	ETag         *string    // HTTP ETag header for conditional requests
	LastModified *string    // HTTP Last-Modified header for conditional requests
	LastSyncedAt *time.Time // Timestamp of last successful sync; nil until one completes
	LastError    *string    // Last sync error message (if any)
	ErrorCount   int        // Consecutive sync error count
	Active       bool       // Inactive feeds are skipped by bulk sync but stay queryable
	CreatedAt    time.Time  // Feed creation timestamp
	UpdatedAt    time.Time  // Last mutation timestamp
}

// NewFeed creates a new active Feed with a generated ID and timestamps
func NewFeed(url string) *Feed {
	now := time.Now()
	return &Feed{
		ID:        uuid.New().String(),
		URL:       url,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// DisplayTitle returns the feed title, falling back to the URL when
// no title has been backfilled yet
func (f *Feed) DisplayTitle() string {
	if f.Title != nil && *f.Title != "" {
		return *f.Title
	}
	return f.URL
}

// SetCacheHeaders updates the feed's HTTP caching headers for conditional requests
func (f *Feed) SetCacheHeaders(etag, lastModified string) {
	if etag != "" {
		f.ETag = &etag
	}
	if lastModified != "" {
		f.LastModified = &lastModified
	}
}
