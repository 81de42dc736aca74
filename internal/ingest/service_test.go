// ABOUTME: Tests for the feed service: lifecycle, validation, listing, and content
// ABOUTME: Uses the fake pipeline plus httptest pages for content extraction

package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/harper/skim/internal/models"
	"github.com/harper/skim/internal/storage"
)

func newTestService(t *testing.T) (*Service, *testEnv) {
	t.Helper()
	env := newTestEnv(t)
	return NewService(env.store, env.orch, env.bus), env
}

func TestAddFeed(t *testing.T) {
	svc, env := newTestService(t)
	env.servesDoc(t, rssDoc("Example Blog", "g1", "g2"))

	feed, err := svc.AddFeed(context.Background(), "https://example.com/feed.xml")
	if err != nil {
		t.Fatalf("AddFeed failed: %v", err)
	}
	if feed.Title == nil || *feed.Title != "Example Blog" {
		t.Errorf("title: got %v, want Example Blog", feed.Title)
	}
	if feed.LastSyncedAt == nil {
		t.Error("LastSyncedAt not set after first sync")
	}

	articles, err := svc.ListArticles(nil)
	if err != nil {
		t.Fatalf("ListArticles failed: %v", err)
	}
	if len(articles) != 2 {
		t.Errorf("article count: got %d, want 2", len(articles))
	}
}

func TestAddFeedRollsBackOnFailure(t *testing.T) {
	svc, env := newTestService(t)
	env.pipe.fn = func(ctx context.Context, f *models.Feed) (*PipelineResult, error) {
		return nil, errors.New("boom")
	}

	if _, err := svc.AddFeed(context.Background(), "https://example.com/feed.xml"); err == nil {
		t.Fatal("expected AddFeed to fail")
	}

	feeds, err := svc.ListFeeds()
	if err != nil {
		t.Fatalf("ListFeeds failed: %v", err)
	}
	if len(feeds) != 0 {
		t.Errorf("feed registration not rolled back: %d feeds remain", len(feeds))
	}
}

func TestAddFeedValidation(t *testing.T) {
	svc, _ := newTestService(t)

	for _, url := range []string{"ftp://example.com/feed", "https://", "://broken"} {
		if _, err := svc.AddFeed(context.Background(), url); !errors.Is(err, ErrInvalidURL) {
			t.Errorf("AddFeed(%q): got %v, want ErrInvalidURL", url, err)
		}
	}
}

func TestAddFeedDuplicateURL(t *testing.T) {
	svc, env := newTestService(t)
	env.servesDoc(t, rssDoc("Blog", "g1"))

	if _, err := svc.AddFeed(context.Background(), "https://example.com/feed.xml"); err != nil {
		t.Fatalf("first AddFeed failed: %v", err)
	}
	if _, err := svc.AddFeed(context.Background(), "https://example.com/feed.xml"); !errors.Is(err, storage.ErrDuplicateURL) {
		t.Errorf("got %v, want ErrDuplicateURL", err)
	}
}

func TestAddFeedAsync(t *testing.T) {
	svc, env := newTestService(t)
	env.servesDoc(t, rssDoc("Async Blog", "g1"))

	feed, err := svc.AddFeedAsync("https://example.com/feed.xml")
	if err != nil {
		t.Fatalf("AddFeedAsync failed: %v", err)
	}
	waitNotRunning(t, env.orch, feed.ID)

	stored, err := svc.GetFeed(feed.ID)
	if err != nil {
		t.Fatalf("GetFeed failed: %v", err)
	}
	if stored.Title == nil || *stored.Title != "Async Blog" {
		t.Errorf("title after background sync: got %v", stored.Title)
	}
}

func TestDeleteFeedCancelsInFlightRun(t *testing.T) {
	svc, env := newTestService(t)
	feed := env.addFeed(t, "https://example.com/feed.xml")

	env.pipe.fn = func(ctx context.Context, f *models.Feed) (*PipelineResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := svc.RefreshFeed(feed.ID); err != nil {
		t.Fatalf("RefreshFeed failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !env.orch.Running(feed.ID) {
		if time.Now().After(deadline) {
			t.Fatal("run never started")
		}
		time.Sleep(time.Millisecond)
	}

	if err := svc.DeleteFeed(feed.ID); err != nil {
		t.Fatalf("DeleteFeed failed: %v", err)
	}
	if _, err := svc.GetFeed(feed.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("feed still present after delete: %v", err)
	}
}

func TestSetFeedActive(t *testing.T) {
	svc, env := newTestService(t)
	feed := env.addFeed(t, "https://example.com/feed.xml")

	if err := svc.SetFeedActive(feed.ID, false); err != nil {
		t.Fatalf("SetFeedActive failed: %v", err)
	}
	stored, _ := svc.GetFeed(feed.ID)
	if stored.Active {
		t.Error("feed still active after pause")
	}

	if err := svc.SetFeedActive(feed.ID, true); err != nil {
		t.Fatalf("SetFeedActive failed: %v", err)
	}
	stored, _ = svc.GetFeed(feed.ID)
	if !stored.Active {
		t.Error("feed still inactive after resume")
	}
}

func TestListArticlesDefaultPagination(t *testing.T) {
	svc, env := newTestService(t)
	feed := env.addFeed(t, "https://example.com/feed.xml")

	base := time.Now().Add(-time.Hour)
	for i := 0; i < DefaultArticleLimit+10; i++ {
		article := models.NewArticle(feed.ID, fmt.Sprintf("g%d", i), fmt.Sprintf("Post %d", i))
		published := base.Add(time.Duration(i) * time.Second)
		article.PublishedAt = &published
		if _, _, err := env.store.UpsertArticle(article); err != nil {
			t.Fatalf("UpsertArticle failed: %v", err)
		}
	}

	articles, err := svc.ListArticles(nil)
	if err != nil {
		t.Fatalf("ListArticles failed: %v", err)
	}
	if len(articles) != DefaultArticleLimit {
		t.Errorf("default page size: got %d, want %d", len(articles), DefaultArticleLimit)
	}
}

func TestGetArticleContentFromStoredBody(t *testing.T) {
	svc, env := newTestService(t)
	feed := env.addFeed(t, "https://example.com/feed.xml")

	article := models.NewArticle(feed.ID, "g1", "Post")
	body := "<p>Hello <strong>world</strong></p>"
	article.Content = &body
	if _, _, err := env.store.UpsertArticle(article); err != nil {
		t.Fatalf("UpsertArticle failed: %v", err)
	}

	got, err := svc.GetArticleContent(context.Background(), article.ID)
	if err != nil {
		t.Fatalf("GetArticleContent failed: %v", err)
	}
	if !strings.Contains(got, "**world**") {
		t.Errorf("expected markdown body, got %q", got)
	}
}

func TestGetArticleContentExtractsAndCaches(t *testing.T) {
	long := strings.Repeat("Extracted article text. ", 10)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><article><p>" + long + "</p></article></body></html>"))
	}))
	defer server.Close()

	svc, env := newTestService(t)
	feed := env.addFeed(t, "https://example.com/feed.xml")

	article := models.NewArticle(feed.ID, "g1", "Post")
	link := server.URL
	article.Link = &link
	if _, _, err := env.store.UpsertArticle(article); err != nil {
		t.Fatalf("UpsertArticle failed: %v", err)
	}

	got, err := svc.GetArticleContent(context.Background(), article.ID)
	if err != nil {
		t.Fatalf("GetArticleContent failed: %v", err)
	}
	if !strings.Contains(got, "Extracted article text.") {
		t.Errorf("expected extracted body, got %q", got)
	}

	stored, err := svc.GetArticle(article.ID)
	if err != nil {
		t.Fatalf("GetArticle failed: %v", err)
	}
	if stored.Content == nil || !strings.Contains(*stored.Content, "Extracted article text.") {
		t.Error("extracted content was not cached on the article")
	}
}

func TestGetArticleContentWithoutLink(t *testing.T) {
	svc, env := newTestService(t)
	feed := env.addFeed(t, "https://example.com/feed.xml")

	article := models.NewArticle(feed.ID, "g1", "Post")
	if _, _, err := env.store.UpsertArticle(article); err != nil {
		t.Fatalf("UpsertArticle failed: %v", err)
	}

	if _, err := svc.GetArticleContent(context.Background(), article.ID); !errors.Is(err, ErrNoLink) {
		t.Errorf("got %v, want ErrNoLink", err)
	}
}

func TestUpdateArticleFlags(t *testing.T) {
	svc, env := newTestService(t)
	feed := env.addFeed(t, "https://example.com/feed.xml")

	article := models.NewArticle(feed.ID, "g1", "Post")
	if _, _, err := env.store.UpsertArticle(article); err != nil {
		t.Fatalf("UpsertArticle failed: %v", err)
	}

	read := true
	if err := svc.UpdateArticle(article.ID, storage.ArticleFlags{Read: &read}); err != nil {
		t.Fatalf("UpdateArticle failed: %v", err)
	}

	stored, _ := svc.GetArticle(article.ID)
	if !stored.Read {
		t.Error("article not marked read")
	}
	if stored.Starred {
		t.Error("starred flag changed by a read-only update")
	}
}

func TestStatistics(t *testing.T) {
	svc, env := newTestService(t)
	env.servesDoc(t, rssDoc("Blog", "g1", "g2", "g3"))

	feed, err := svc.AddFeed(context.Background(), "https://example.com/feed.xml")
	if err != nil {
		t.Fatalf("AddFeed failed: %v", err)
	}

	articles, _ := svc.ListArticles(nil)
	read := true
	if err := svc.UpdateArticle(articles[0].ID, storage.ArticleFlags{Read: &read}); err != nil {
		t.Fatalf("UpdateArticle failed: %v", err)
	}

	stats, err := svc.Statistics()
	if err != nil {
		t.Fatalf("Statistics failed: %v", err)
	}
	if stats.TotalFeeds != 1 || stats.TotalArticles != 3 {
		t.Errorf("totals: feeds=%d articles=%d", stats.TotalFeeds, stats.TotalArticles)
	}
	if stats.UnreadArticles != 2 {
		t.Errorf("unread: got %d, want 2", stats.UnreadArticles)
	}
	if len(stats.PerFeed) != 1 || stats.PerFeed[0].FeedID != feed.ID || stats.PerFeed[0].UnreadCount != 2 {
		t.Errorf("per-feed stats: %+v", stats.PerFeed)
	}
}
