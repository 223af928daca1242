// Package fetcher downloads bookmarked pages over HTTP.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/custodia-labs/stash/internal/core/domain"
	"github.com/custodia-labs/stash/internal/core/ports/driven"
)

// Ensure Fetcher implements the interface.
var _ driven.PageFetcher = (*Fetcher)(nil)

// Default configuration values.
const (
	DefaultMaxBytes  = 5 << 20
	DefaultUserAgent = "stash/dev"

	maxErrorBody = 512
)

// Config holds fetcher configuration.
type Config struct {
	// UserAgent is sent with every request (default: stash/dev).
	UserAgent string

	// MaxBytes caps the response body (default: 5 MiB). Longer bodies are
	// truncated, not rejected.
	MaxBytes int64

	// Client overrides the HTTP client. Its Timeout is ignored in favour of
	// the per-call timeout.
	Client *http.Client
}

// Fetcher is an HTTP PageFetcher.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

// New creates a fetcher.
func New(cfg Config) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	return &Fetcher{client: client, userAgent: cfg.UserAgent, maxBytes: cfg.MaxBytes}
}

// Fetch GETs rawURL within timeout.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, timeout time.Duration) (*driven.FetchedPage, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: not an http(s) url: %q", domain.ErrInvalidInput, rawURL)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		// Network failures and timeouts are transient.
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, statusError(rawURL, resp.StatusCode, snippet)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}

	return &driven.FetchedPage{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// statusError classifies an HTTP failure. 429 and 5xx are transient; other
// client errors are permanent.
func statusError(rawURL string, status int, snippet []byte) error {
	if status == http.StatusTooManyRequests {
		return fmt.Errorf("%w: fetch %s: status %d", domain.ErrRateLimited, rawURL, status)
	}
	if status >= 500 {
		return fmt.Errorf("fetch %s: status %d: %s", rawURL, status, snippet)
	}
	return fmt.Errorf("%w: fetch %s: status %d", domain.ErrPermanent, rawURL, status)
}
