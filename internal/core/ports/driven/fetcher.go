package driven

import (
	"context"
	"time"
)

// FetchedPage is a downloaded web page.
type FetchedPage struct {
	// URL is the final URL after redirects.
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// PageFetcher downloads web pages.
type PageFetcher interface {
	// Fetch GETs rawURL, giving up after timeout. Unreachable hosts, timeouts,
	// 5xx and 429 responses are transient errors; other 4xx responses wrap
	// domain.ErrPermanent.
	Fetch(ctx context.Context, rawURL string, timeout time.Duration) (*FetchedPage, error)
}
