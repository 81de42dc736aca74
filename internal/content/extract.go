// ABOUTME: Full-content extraction for articles whose feed entry carries no body
// ABOUTME: Fetches the article page and pulls the main text via a selector cascade

package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoContent is returned when no extraction strategy produced usable text.
var ErrNoContent = errors.New("no extractable content")

const (
	maxPageSize = 5 * 1024 * 1024
	// Thresholds below which a match is considered boilerplate, not the article
	minSelectorTextLen  = 100
	minParagraphTextLen = 20
)

// articleSelectors are tried in order against the fetched page. These cover
// the markup conventions most blogs and CMSes use for the main body.
var articleSelectors = []string{
	"article",
	".post-content",
	".entry-content",
	".content",
	"main",
	".article-body",
	"#content",
	".post-body",
	".article-content",
	".post",
	"[role='main']",
}

var pageClient = &http.Client{
	Timeout: 30 * time.Second,
}

// ExtractFromURL fetches an article page and extracts its main content as
// Markdown. Used when a feed entry has a link but no body.
func ExtractFromURL(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	// A browser UA: many sites serve bot UAs a consent page instead of the article
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")

	resp, err := pageClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return "", fmt.Errorf("failed to read page: %w", err)
	}

	return Extract(body)
}

// Extract pulls the main article text out of an HTML page. It tries the
// selector cascade first, then falls back to joining substantial paragraphs.
func Extract(page []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("failed to parse page: %w", err)
	}

	for _, selector := range articleSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		if text := strings.TrimSpace(sel.Text()); len(text) >= minSelectorTextLen {
			if html, err := sel.Html(); err == nil {
				return ToMarkdown(html), nil
			}
			return text, nil
		}
	}

	// Last resort: aggregate all substantial paragraphs
	var paragraphs []string
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		text := strings.TrimSpace(p.Text())
		if len(text) >= minParagraphTextLen {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) > 0 {
		return strings.Join(paragraphs, "\n\n"), nil
	}

	return "", ErrNoContent
}
