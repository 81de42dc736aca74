// ABOUTME: RSS/Atom feed parsing using gofeed with entry normalization
// ABOUTME: Produces feed metadata plus a one-shot iterator of normalized entries

package parse

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/harper/skim/internal/models"
)

// ErrMalformed marks content that fetched fine but is not a valid feed,
// so operators can tell "source down" from "source publishes garbage".
var ErrMalformed = errors.New("malformed feed content")

// Placeholders used when the source omits a title.
const (
	UntitledFeed    = "Untitled Feed"
	UntitledArticle = "Untitled Article"
)

// ParsedFeed represents a normalized feed: metadata plus its entries.
type ParsedFeed struct {
	Title       string
	Description *string
	SiteURL     *string
	entries     []Entry
}

// Entry represents a normalized feed entry. Title is always set (placeholder
// if the source omits it); GUID is always set via models.DeriveGUID.
type Entry struct {
	GUID        string
	Title       string
	Link        *string
	Description *string
	Content     *string
	Author      *string
	PublishedAt *time.Time
}

// Parse parses RSS or Atom feed data and returns a normalized ParsedFeed.
func Parse(data []byte) (*ParsedFeed, error) {
	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	parsed := &ParsedFeed{
		Title:   strings.TrimSpace(feed.Title),
		entries: make([]Entry, 0, len(feed.Items)),
	}
	if parsed.Title == "" {
		parsed.Title = UntitledFeed
	}
	if desc := strings.TrimSpace(feed.Description); desc != "" {
		parsed.Description = &desc
	}
	if link := strings.TrimSpace(feed.Link); link != "" {
		parsed.SiteURL = &link
	}

	for _, item := range feed.Items {
		parsed.entries = append(parsed.entries, normalizeItem(item))
	}

	return parsed, nil
}

func normalizeItem(item *gofeed.Item) Entry {
	entry := Entry{
		Title: strings.TrimSpace(item.Title),
	}
	if entry.Title == "" {
		entry.Title = UntitledArticle
	}

	if item.Link != "" {
		link := item.Link
		entry.Link = &link
	}

	if desc := strings.TrimSpace(item.Description); desc != "" {
		entry.Description = &desc
	}

	// Prefer Content over Description for the body
	if body := strings.TrimSpace(item.Content); body != "" {
		entry.Content = &body
	} else if entry.Description != nil {
		entry.Content = entry.Description
	}

	if item.Author != nil && item.Author.Name != "" {
		author := item.Author.Name
		entry.Author = &author
	}

	// Use PublishedParsed or fall back to UpdatedParsed
	if item.PublishedParsed != nil {
		entry.PublishedAt = item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		entry.PublishedAt = item.UpdatedParsed
	}

	entry.GUID = models.DeriveGUID(item.GUID, item.Link, entry.Title, entry.PublishedAt)
	return entry
}

// Len returns the number of entries in the feed.
func (f *ParsedFeed) Len() int {
	return len(f.entries)
}

// Entries returns a one-shot iterator over the feed's entries in document
// order. The iterator is finite and non-restartable.
func (f *ParsedFeed) Entries() *EntryIterator {
	return &EntryIterator{entries: f.entries}
}

// EntryIterator yields entries one at a time so callers can account progress
// per entry instead of waiting for a whole batch.
type EntryIterator struct {
	entries []Entry
	pos     int
}

// Next returns the next entry, or false when the sequence is exhausted.
func (it *EntryIterator) Next() (*Entry, bool) {
	if it.pos >= len(it.entries) {
		return nil, false
	}
	entry := &it.entries[it.pos]
	it.pos++
	return entry, true
}
