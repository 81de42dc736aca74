// ABOUTME: Article model representing one normalized, persisted feed entry
// ABOUTME: Identified within its feed by a dedup GUID; carries user read/starred flags

package models

import (
	"time"

	"github.com/google/uuid"
)

// Article represents a single persisted entry originating from a feed.
// The pair (FeedID, GUID) is unique: re-ingesting the same source entry
// updates content fields in place and never creates a second row.
type Article struct {
	ID          string     // Unique identifier for the article
	FeedID      string     // Owning feed
	Title       string     // Entry title; "Untitled Article" when the source omits it
	Link        *string    // Entry permalink
	Description *string    // Entry summary
	Content     *string    // Full content when the source (or extraction) provides it
	Author      *string    // Author name
	PublishedAt *time.Time // Source publish time
	GUID        string     // Dedup key (see DeriveGUID)
	Read        bool       // User flag; never touched by ingestion
	Starred     bool       // User flag; never touched by ingestion
	CreatedAt   time.Time  // First-ingested timestamp
}

// NewArticle creates a new unread, unstarred Article with a generated ID
func NewArticle(feedID, guid, title string) *Article {
	return &Article{
		ID:        uuid.New().String(),
		FeedID:    feedID,
		GUID:      guid,
		Title:     title,
		CreatedAt: time.Now(),
	}
}

// DeriveGUID returns the dedup key for a source entry: the source guid when
// present, otherwise the entry link, otherwise a stable key synthesized from
// title and publish time. The synthesized key cannot distinguish genuinely
// different entries that share both fields; sources without guid or link get
// best-effort dedup only.
func DeriveGUID(guid, link, title string, publishedAt *time.Time) string {
	if guid != "" {
		return guid
	}
	if link != "" {
		return link
	}
	seed := title + "\x00"
	if publishedAt != nil {
		seed += publishedAt.UTC().Format(time.RFC3339)
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(seed)).String()
}
