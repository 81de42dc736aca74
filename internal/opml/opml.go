// ABOUTME: OPML reading and writing for feed subscription exchange
// ABOUTME: Flattens nested outlines on import; exports the registry as a flat list

package opml

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/harper/skim/internal/models"
)

// Subscription is one feed entry found in an OPML document.
type Subscription struct {
	URL   string
	Title string
}

// XML structs for parsing and writing OPML files
type opmlXML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    headXML  `xml:"head"`
	Body    bodyXML  `xml:"body"`
}

type headXML struct {
	Title string `xml:"title"`
}

type bodyXML struct {
	Outlines []outlineXML `xml:"outline"`
}

type outlineXML struct {
	Text     string       `xml:"text,attr"`
	Title    string       `xml:"title,attr,omitempty"`
	Type     string       `xml:"type,attr,omitempty"`
	XMLURL   string       `xml:"xmlUrl,attr,omitempty"`
	Children []outlineXML `xml:"outline,omitempty"`
}

// Parse reads an OPML document and returns its subscriptions. Folder
// structure is flattened; skim keeps a flat registry. Duplicate URLs within
// the document collapse to one subscription.
func Parse(r io.Reader) ([]Subscription, error) {
	var doc opmlXML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode OPML: %w", err)
	}

	var subs []Subscription
	seen := make(map[string]bool)
	for _, outline := range doc.Body.Outlines {
		subs = collect(outline, subs, seen)
	}
	return subs, nil
}

// ParseFile reads an OPML file and returns its subscriptions.
func ParseFile(path string) ([]Subscription, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

func collect(outline outlineXML, subs []Subscription, seen map[string]bool) []Subscription {
	if outline.XMLURL != "" && !seen[outline.XMLURL] {
		seen[outline.XMLURL] = true
		subs = append(subs, Subscription{
			URL:   outline.XMLURL,
			Title: outlineTitle(outline),
		})
	}
	for _, child := range outline.Children {
		subs = collect(child, subs, seen)
	}
	return subs
}

func outlineTitle(outline outlineXML) string {
	if outline.Title != "" {
		return outline.Title
	}
	return outline.Text
}

// Write serializes the feeds as a flat OPML 2.0 document.
func Write(w io.Writer, title string, feeds []*models.Feed) error {
	doc := opmlXML{
		Version: "2.0",
		Head:    headXML{Title: title},
		Body:    bodyXML{Outlines: make([]outlineXML, 0, len(feeds))},
	}

	for _, feed := range feeds {
		doc.Body.Outlines = append(doc.Body.Outlines, outlineXML{
			Text:   feed.DisplayTitle(),
			Title:  feed.DisplayTitle(),
			Type:   "rss",
			XMLURL: feed.URL,
		})
	}

	if _, err := w.Write([]byte(xml.Header)); err != nil {
		return fmt.Errorf("failed to write XML header: %w", err)
	}
	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode OPML: %w", err)
	}
	return nil
}

// WriteFile writes the feeds to an OPML file, creating parent directories.
func WriteFile(path, title string, feeds []*models.Feed) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	return Write(file, title, feeds)
}
