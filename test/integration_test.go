// ABOUTME: Integration tests for the full feed ingestion workflow
// ABOUTME: Runs real HTTP fetch, parse, orchestration, and SQLite persistence end to end

package test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/harper/skim/internal/events"
	"github.com/harper/skim/internal/ingest"
	"github.com/harper/skim/internal/storage"
)

// feedServer serves a mutable RSS document with ETag support.
type feedServer struct {
	mu   sync.Mutex
	doc  string
	etag string
	hits int
}

func (s *feedServer) set(doc, etag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc
	s.etag = etag
}

func (s *feedServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits++
	if s.etag != "" && r.Header.Get("If-None-Match") == s.etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	if s.etag != "" {
		w.Header().Set("ETag", s.etag)
	}
	w.Header().Set("Content-Type", "application/rss+xml")
	fmt.Fprint(w, s.doc)
}

func rssDoc(guids ...string) string {
	doc := `<?xml version="1.0"?><rss version="2.0"><channel>` +
		`<title>Integration Blog</title><link>https://example.com</link>` +
		`<description>End to end test feed</description>`
	for _, g := range guids {
		doc += fmt.Sprintf(`<item><guid>%s</guid><title>Post %s</title><link>https://example.com/%s</link>`+
			`<description>Body of %s</description></item>`, g, g, g, g)
	}
	return doc + `</channel></rss>`
}

func newIntegrationService(t *testing.T) (*ingest.Service, storage.Store, *events.Bus) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "skim.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	bus := events.NewBus()
	t.Cleanup(bus.Close)

	pipeline := ingest.NewFeedPipeline(10 * time.Second)
	orch := ingest.NewOrchestrator(store, bus, pipeline, 2)
	return ingest.NewService(store, orch, bus), store, bus
}

func TestFullWorkflow(t *testing.T) {
	srv := &feedServer{}
	srv.set(rssDoc("g1", "g2", "g3"), `"v1"`)
	server := httptest.NewServer(srv)
	defer server.Close()

	svc, _, bus := newIntegrationService(t)

	sub := bus.Subscribe(64)
	defer sub.Unsubscribe()

	// Subscribe and run the first sync
	feed, err := svc.AddFeed(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("AddFeed failed: %v", err)
	}
	if feed.Title == nil || *feed.Title != "Integration Blog" {
		t.Errorf("feed title: got %v, want Integration Blog", feed.Title)
	}
	if feed.LastSyncedAt == nil {
		t.Error("LastSyncedAt not set after first sync")
	}
	if feed.ETag == nil || *feed.ETag != `"v1"` {
		t.Errorf("ETag not stored: got %v", feed.ETag)
	}

	// Every inserted article is announced exactly once
	announced := 0
	timer := time.After(2 * time.Second)
drain:
	for announced < 3 {
		select {
		case <-sub.Articles():
			announced++
		case <-timer:
			break drain
		}
	}
	if announced != 3 {
		t.Errorf("article events: got %d, want 3", announced)
	}

	articles, err := svc.ListArticles(nil)
	if err != nil {
		t.Fatalf("ListArticles failed: %v", err)
	}
	if len(articles) != 3 {
		t.Fatalf("article count: got %d, want 3", len(articles))
	}

	// User flags on existing articles
	read, star := true, true
	if err := svc.UpdateArticle(articles[0].ID, storage.ArticleFlags{Read: &read, Starred: &star}); err != nil {
		t.Fatalf("UpdateArticle failed: %v", err)
	}
	flagged := articles[0].ID

	// Source publishes a new entry; re-sync picks up only the delta
	srv.set(rssDoc("g1", "g2", "g3", "g4"), `"v2"`)
	if err := svc.SyncFeed(context.Background(), feed.ID); err != nil {
		t.Fatalf("second sync failed: %v", err)
	}

	articles, _ = svc.ListArticles(&storage.ArticleFilter{})
	if len(articles) != 4 {
		t.Errorf("article count after delta sync: got %d, want 4", len(articles))
	}

	kept, err := svc.GetArticle(flagged)
	if err != nil {
		t.Fatalf("GetArticle failed: %v", err)
	}
	if !kept.Read || !kept.Starred {
		t.Error("user flags lost across re-sync")
	}

	// Third sync gets a 304; the marker still advances
	before, _ := svc.GetFeed(feed.ID)
	time.Sleep(10 * time.Millisecond)
	if err := svc.SyncFeed(context.Background(), feed.ID); err != nil {
		t.Fatalf("cached sync failed: %v", err)
	}
	after, _ := svc.GetFeed(feed.ID)
	if !after.LastSyncedAt.After(*before.LastSyncedAt) {
		t.Error("304 sync did not advance the last-synced marker")
	}
	if n, _ := svc.ListArticles(nil); len(n) == 0 {
		t.Error("articles disappeared after cached sync")
	}

	// Statistics reflect the store
	stats, err := svc.Statistics()
	if err != nil {
		t.Fatalf("Statistics failed: %v", err)
	}
	if stats.TotalFeeds != 1 || stats.TotalArticles != 4 || stats.UnreadArticles != 3 {
		t.Errorf("stats: feeds=%d articles=%d unread=%d", stats.TotalFeeds, stats.TotalArticles, stats.UnreadArticles)
	}

	// Removing the feed cascades to its articles
	if err := svc.DeleteFeed(feed.ID); err != nil {
		t.Fatalf("DeleteFeed failed: %v", err)
	}
	articles, _ = svc.ListArticles(nil)
	if len(articles) != 0 {
		t.Errorf("articles after cascade delete: got %d, want 0", len(articles))
	}
}

func TestSyncAllAcrossFeeds(t *testing.T) {
	srvA := &feedServer{}
	srvA.set(rssDoc("a1", "a2"), "")
	serverA := httptest.NewServer(srvA)
	defer serverA.Close()

	srvB := &feedServer{}
	srvB.set(rssDoc("b1"), "")
	serverB := httptest.NewServer(srvB)
	defer serverB.Close()

	svc, _, _ := newIntegrationService(t)

	if _, err := svc.AddFeed(context.Background(), serverA.URL); err != nil {
		t.Fatalf("AddFeed A failed: %v", err)
	}
	if _, err := svc.AddFeed(context.Background(), serverB.URL); err != nil {
		t.Fatalf("AddFeed B failed: %v", err)
	}

	srvA.set(rssDoc("a1", "a2", "a3"), "")
	if err := svc.SyncAll(context.Background()); err != nil {
		t.Fatalf("SyncAll failed: %v", err)
	}

	articles, err := svc.ListArticles(nil)
	if err != nil {
		t.Fatalf("ListArticles failed: %v", err)
	}
	if len(articles) != 4 {
		t.Errorf("article count after bulk sync: got %d, want 4", len(articles))
	}
}

func TestAddFeedUnreachableSource(t *testing.T) {
	svc, _, _ := newIntegrationService(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	if _, err := svc.AddFeed(context.Background(), server.URL); err == nil {
		t.Fatal("expected AddFeed to fail for a 404 source")
	}
	feeds, _ := svc.ListFeeds()
	if len(feeds) != 0 {
		t.Errorf("failed subscription left %d feed(s) behind", len(feeds))
	}
}
