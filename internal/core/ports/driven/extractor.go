package driven

import (
	"time"

	"github.com/custodia-labs/stash/internal/core/domain"
)

// Extraction is the structured content pulled from a page.
type Extraction struct {
	Title         string
	Description   string
	Favicon       string
	SiteName      string
	FullText      string
	ContentType   domain.ContentType
	Author        string
	PublishedDate *time.Time
	WordCount     int
}

// ContentExtractor turns a fetched page into an Extraction.
type ContentExtractor interface {
	// Extract parses page and classifies it using its URL.
	Extract(page *FetchedPage) (*Extraction, error)
}
