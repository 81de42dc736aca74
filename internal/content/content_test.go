// ABOUTME: Tests for HTML detection, Markdown conversion, and content extraction
// ABOUTME: Covers the selector cascade and the paragraph-aggregation fallback

package content

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestIsHTML(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"plain text", "just some plain text", false},
		{"doctype", "<!DOCTYPE html><html></html>", true},
		{"paragraph tag", "<p>hello</p>", true},
		{"link tag", `<a href="https://example.com">link</a>`, true},
		{"angle brackets only", "1 < 2 and 3 > 2", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsHTML(tt.content); got != tt.want {
				t.Errorf("IsHTML(%q) = %v, want %v", tt.content, got, tt.want)
			}
		})
	}
}

func TestToMarkdown(t *testing.T) {
	got := ToMarkdown("<p>Hello <strong>world</strong></p>")
	if !strings.Contains(got, "**world**") {
		t.Errorf("expected bold markdown, got %q", got)
	}

	plain := "no markup here"
	if got := ToMarkdown(plain); got != plain {
		t.Errorf("plain text should pass through unchanged, got %q", got)
	}

	if got := ToMarkdown(""); got != "" {
		t.Errorf("empty input should stay empty, got %q", got)
	}
}

func TestExtractSelectorCascade(t *testing.T) {
	long := strings.Repeat("Substantial article text. ", 10)
	page := `<html><body>
		<nav>menu menu menu</nav>
		<article><p>` + long + `</p></article>
		<footer>fine print</footer>
	</body></html>`

	got, err := Extract([]byte(page))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !strings.Contains(got, "Substantial article text.") {
		t.Errorf("expected article body, got %q", got)
	}
	if strings.Contains(got, "menu menu") {
		t.Errorf("navigation leaked into extraction: %q", got)
	}
}

func TestExtractParagraphFallback(t *testing.T) {
	page := `<html><body>
		<div class="whatever">
			<p>This paragraph is long enough to count as real content.</p>
			<p>short</p>
			<p>Another paragraph with enough words to pass the threshold.</p>
		</div>
	</body></html>`

	got, err := Extract([]byte(page))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !strings.Contains(got, "real content") || !strings.Contains(got, "pass the threshold") {
		t.Errorf("expected both substantial paragraphs, got %q", got)
	}
	if strings.Contains(got, "short") {
		t.Errorf("short paragraph should be filtered out, got %q", got)
	}
}

func TestExtractNoContent(t *testing.T) {
	_, err := Extract([]byte("<html><body><span>x</span></body></html>"))
	if !errors.Is(err, ErrNoContent) {
		t.Errorf("expected ErrNoContent, got %v", err)
	}
}

func TestExtractFromURL(t *testing.T) {
	long := strings.Repeat("Fetched article text. ", 10)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><article><p>` + long + `</p></article></body></html>`))
	}))
	defer server.Close()

	got, err := ExtractFromURL(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("ExtractFromURL failed: %v", err)
	}
	if !strings.Contains(got, "Fetched article text.") {
		t.Errorf("expected fetched body, got %q", got)
	}
}

func TestExtractFromURLErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	if _, err := ExtractFromURL(context.Background(), server.URL); err == nil {
		t.Error("expected error for 500 response, got nil")
	}
}
