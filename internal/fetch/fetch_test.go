// ABOUTME: Tests for HTTP fetcher with conditional requests and typed transport errors.
// ABOUTME: Uses httptest to simulate fresh, cached, failing, and slow server responses.

package fetch_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/harper/skim/internal/fetch"
)

func TestFetch_Fresh(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "skim/1.0 (feed reader)" {
			t.Errorf("expected User-Agent 'skim/1.0 (feed reader)', got %q", ua)
		}

		w.Header().Set("ETag", `"abc123"`)
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<rss>test content</rss>"))
	}))
	defer server.Close()

	result, err := fetch.Fetch(context.Background(), server.URL, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.NotModified {
		t.Error("expected NotModified=false for fresh fetch")
	}
	if string(result.Body) != "<rss>test content</rss>" {
		t.Errorf("body mismatch: got %q", string(result.Body))
	}
	if result.ETag != `"abc123"` {
		t.Errorf("ETag mismatch: got %q", result.ETag)
	}
	if result.LastModified != "Mon, 02 Jan 2006 15:04:05 GMT" {
		t.Errorf("LastModified mismatch: got %q", result.LastModified)
	}
}

func TestFetch_Cached(t *testing.T) {
	etag := `"abc123"`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inm := r.Header.Get("If-None-Match"); inm != etag {
			t.Errorf("expected If-None-Match %q, got %q", etag, inm)
		}
		w.WriteHeader(http.StatusNotModified)
	}))
	defer server.Close()

	result, err := fetch.Fetch(context.Background(), server.URL, &etag, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.NotModified {
		t.Error("expected NotModified=true for 304 response")
	}
	if len(result.Body) != 0 {
		t.Errorf("expected empty body for 304 response, got %d bytes", len(result.Body))
	}
}

func TestFetch_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("Not Found"))
	}))
	defer server.Close()

	result, err := fetch.Fetch(context.Background(), server.URL, nil, nil)
	if err == nil {
		t.Fatal("expected error for 404 response, got nil")
	}
	if !errors.Is(err, fetch.ErrUnreachable) {
		t.Errorf("expected ErrUnreachable, got %v", err)
	}
	if result != nil {
		t.Errorf("expected nil result for error case, got %+v", result)
	}
}

func TestFetch_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := fetch.Fetch(ctx, server.URL, nil, nil)
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	if !errors.Is(err, fetch.ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestFetch_ConnectionRefused(t *testing.T) {
	// Grab a port that nothing listens on
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := fetch.Fetch(context.Background(), url, nil, nil)
	if err == nil {
		t.Fatal("expected error for refused connection, got nil")
	}
	if !errors.Is(err, fetch.ErrUnreachable) {
		t.Errorf("expected ErrUnreachable, got %v", err)
	}
}

func TestFetch_InvalidURL(t *testing.T) {
	_, err := fetch.Fetch(context.Background(), "://not-a-url", nil, nil)
	if err == nil {
		t.Fatal("expected error for invalid URL, got nil")
	}
}
