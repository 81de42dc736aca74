// ABOUTME: Tests for OPML subscription parsing and export
// ABOUTME: Covers folder flattening, dedup, title fallback, and round-trips

package opml

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harper/skim/internal/models"
)

const sampleOPML = `<?xml version="1.0" encoding="UTF-8"?>
<opml version="2.0">
  <head><title>Subscriptions</title></head>
  <body>
    <outline text="Root Feed" title="Root Feed" type="rss" xmlUrl="https://example.com/root.xml"/>
    <outline text="Tech">
      <outline text="Nested" title="Nested Feed" type="rss" xmlUrl="https://example.com/nested.xml"/>
      <outline text="Root Feed" type="rss" xmlUrl="https://example.com/root.xml"/>
    </outline>
    <outline text="Empty Folder"/>
  </body>
</opml>`

func TestParseFlattensFolders(t *testing.T) {
	subs, err := Parse(strings.NewReader(sampleOPML))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("subscription count: got %d, want 2", len(subs))
	}
	if subs[0].URL != "https://example.com/root.xml" || subs[0].Title != "Root Feed" {
		t.Errorf("first subscription: %+v", subs[0])
	}
	if subs[1].URL != "https://example.com/nested.xml" || subs[1].Title != "Nested Feed" {
		t.Errorf("second subscription: %+v", subs[1])
	}
}

func TestParseTitleFallsBackToText(t *testing.T) {
	doc := `<opml version="2.0"><head/><body>
		<outline text="Only Text" type="rss" xmlUrl="https://example.com/f.xml"/>
	</body></opml>`
	subs, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(subs) != 1 || subs[0].Title != "Only Text" {
		t.Errorf("got %+v, want title from text attribute", subs)
	}
}

func TestParseInvalidXML(t *testing.T) {
	if _, err := Parse(strings.NewReader("not xml at all")); err == nil {
		t.Error("expected error for invalid XML")
	}
}

func TestWriteRoundTrip(t *testing.T) {
	title := "Example Blog"
	feedA := models.NewFeed("https://example.com/a.xml")
	feedA.Title = &title
	feedB := models.NewFeed("https://example.com/b.xml")

	var buf bytes.Buffer
	if err := Write(&buf, "skim subscriptions", []*models.Feed{feedA, feedB}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	subs, err := Parse(&buf)
	if err != nil {
		t.Fatalf("Parse of exported document failed: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("subscription count: got %d, want 2", len(subs))
	}
	if subs[0].Title != "Example Blog" {
		t.Errorf("exported title: got %q, want %q", subs[0].Title, "Example Blog")
	}
	// Untitled feeds export their URL as the display title
	if subs[1].Title != "https://example.com/b.xml" {
		t.Errorf("untitled feed title: got %q", subs[1].Title)
	}
}

func TestWriteFileAndParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export", "subs.opml")
	feed := models.NewFeed("https://example.com/a.xml")

	if err := WriteFile(path, "skim subscriptions", []*models.Feed{feed}); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	subs, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if len(subs) != 1 || subs[0].URL != "https://example.com/a.xml" {
		t.Errorf("round-trip: got %+v", subs)
	}
}
