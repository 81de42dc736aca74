// ABOUTME: HTTP fetcher with conditional request support and typed transport errors
// ABOUTME: Distinguishes timeouts from unreachable sources so run failures carry a cause

package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

const MaxResponseSize = 10 * 1024 * 1024 // 10MB

// Transport failure categories. Callers match with errors.Is.
var (
	ErrTimeout     = errors.New("fetch timed out")
	ErrUnreachable = errors.New("source unreachable")
)

// Result contains the response from an HTTP fetch operation.
type Result struct {
	Body         []byte
	ETag         string
	LastModified string
	NotModified  bool
}

var httpClient = &http.Client{
	Timeout: 30 * time.Second,
}

// isPrivateIP checks if an IP address is in a private range (excluding loopback for tests).
func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() {
		return false
	}
	return ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()
}

// Fetch retrieves a URL with optional conditional request headers.
// If etag is provided, sets If-None-Match; if lastModified is provided, sets
// If-Modified-Since. Returns NotModified=true for 304 responses. Transport
// failures wrap ErrTimeout or ErrUnreachable so the caller can classify the
// run outcome. Blocks private IP ranges and caps the response size.
func Fetch(ctx context.Context, urlStr string, etag, lastModified *string) (*Result, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	// SSRF protection: block private IP ranges
	if ips, err := net.LookupIP(parsedURL.Hostname()); err == nil {
		for _, ip := range ips {
			if isPrivateIP(ip) {
				return nil, fmt.Errorf("%w: access to private IP ranges is not allowed", ErrUnreachable)
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, "GET", urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", "skim/1.0 (feed reader)")

	if etag != nil && *etag != "" {
		req.Header.Set("If-None-Match", *etag)
	}

	if lastModified != nil && *lastModified != "" {
		req.Header.Set("If-Modified-Since", *lastModified)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	// Handle 304 Not Modified
	if resp.StatusCode == http.StatusNotModified {
		return &Result{
			NotModified: true,
		}, nil
	}

	// Handle non-200 status
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status code %d", ErrUnreachable, resp.StatusCode)
	}

	// Read response body with size limit
	limitedReader := io.LimitReader(resp.Body, MaxResponseSize+1)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("%w: response too large (exceeds %d bytes)", ErrUnreachable, MaxResponseSize)
	}

	return &Result{
		Body:         body,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		NotModified:  false,
	}, nil
}

// classifyTransportError maps low-level transport failures onto the two
// categories the run status distinguishes. Caller cancellation passes
// through unchanged so it is not mistaken for an unreachable source.
func classifyTransportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}
