package extractor

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/custodia-labs/stash/internal/core/domain"
	"github.com/custodia-labs/stash/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.ContentExtractor = (*Extractor)(nil)

// Extractor is a goquery-based ContentExtractor.
type Extractor struct{}

// New creates a new extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract parses page and pulls out its metadata and main text.
func (e *Extractor) Extract(page *driven.FetchedPage) (*driven.Extraction, error) {
	if page == nil || page.URL == "" {
		return nil, domain.ErrInvalidInput
	}
	pageURL, err := url.Parse(page.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: page url: %w", domain.ErrInvalidInput, err)
	}

	ctype := Classify(page.URL)
	if !isHTML(page) {
		return extractNonHTML(page, pageURL, ctype), nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	ex := &driven.Extraction{
		Title:         pageTitle(doc, pageURL),
		Description:   pageDescription(doc),
		Favicon:       favicon(doc, pageURL),
		SiteName:      siteName(doc, pageURL),
		ContentType:   ctype,
		Author:        author(doc),
		PublishedDate: publishedDate(doc),
	}

	switch ctype {
	case domain.ContentTypeTweet:
		ex.FullText = tweetText(doc)
	case domain.ContentTypeVideo:
		text, channel := videoText(doc, ex.Title)
		ex.FullText = text
		if channel != "" {
			ex.Author = channel
		}
	default:
		ex.FullText = mainText(doc)
	}
	ex.FullText = cleanText(ex.FullText)
	ex.WordCount = wordCount(ex.FullText)
	return ex, nil
}

func isHTML(page *driven.FetchedPage) bool {
	ct := strings.ToLower(page.ContentType)
	if strings.Contains(ct, "html") {
		return true
	}
	if ct != "" {
		return false
	}
	head := strings.ToLower(string(page.Body[:min(len(page.Body), 512)]))
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html")
}

func extractNonHTML(page *driven.FetchedPage, pageURL *url.URL, ctype domain.ContentType) *driven.Extraction {
	ex := &driven.Extraction{
		Title:       titleFromPath(pageURL.Path),
		Favicon:     defaultFavicon(pageURL),
		SiteName:    hostName(pageURL),
		ContentType: ctype,
	}
	switch {
	case isMarkdown(page, pageURL):
		body := string(page.Body)
		if t := markdownTitle(body); t != "" {
			ex.Title = t
		}
		ex.FullText = cleanText(stripMarkdown(body))
	case strings.HasPrefix(strings.ToLower(page.ContentType), "text/"):
		ex.FullText = cleanText(string(page.Body))
	}
	ex.WordCount = wordCount(ex.FullText)
	return ex
}

// metaContent returns the first non-empty content of the meta tags matched by
// selectors, in order.
func metaContent(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if v := collapse(doc.Find(sel).First().AttrOr("content", "")); v != "" {
			return v
		}
	}
	return ""
}

func pageTitle(doc *goquery.Document, pageURL *url.URL) string {
	if t := metaContent(doc, `meta[property="og:title"]`, `meta[name="twitter:title"]`); t != "" {
		return t
	}
	if t := collapse(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if t := collapse(doc.Find("h1").First().Text()); t != "" {
		return t
	}
	if t := titleFromPath(pageURL.Path); t != "" {
		return t
	}
	return hostName(pageURL)
}

func pageDescription(doc *goquery.Document) string {
	return metaContent(doc,
		`meta[property="og:description"]`,
		`meta[name="description"]`,
		`meta[name="twitter:description"]`,
	)
}

func favicon(doc *goquery.Document, pageURL *url.URL) string {
	var href string
	doc.Find("link[rel]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, rel := range strings.Fields(strings.ToLower(s.AttrOr("rel", ""))) {
			if rel == "icon" || rel == "apple-touch-icon" {
				href = strings.TrimSpace(s.AttrOr("href", ""))
				return href == ""
			}
		}
		return true
	})
	if href == "" {
		return defaultFavicon(pageURL)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return defaultFavicon(pageURL)
	}
	return pageURL.ResolveReference(ref).String()
}

func defaultFavicon(pageURL *url.URL) string {
	return pageURL.Scheme + "://" + pageURL.Host + "/favicon.ico"
}

func siteName(doc *goquery.Document, pageURL *url.URL) string {
	if name := metaContent(doc, `meta[property="og:site_name"]`, `meta[name="application-name"]`); name != "" {
		return name
	}
	return hostName(pageURL)
}

func hostName(pageURL *url.URL) string {
	return strings.TrimPrefix(strings.ToLower(pageURL.Hostname()), "www.")
}

func author(doc *goquery.Document) string {
	if a := metaContent(doc,
		`meta[name="author"]`,
		`meta[property="article:author"]`,
		`meta[name="twitter:creator"]`,
	); a != "" && !strings.HasPrefix(a, "http") {
		return a
	}
	for _, sel := range []string{`[rel="author"]`, `[itemprop="author"] [itemprop="name"]`, `.author`, `.byline`} {
		if a := collapse(doc.Find(sel).First().Text()); a != "" && len(a) < 100 {
			return a
		}
	}
	return ""
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
}

func publishedDate(doc *goquery.Document) *time.Time {
	candidates := []string{
		metaContent(doc,
			`meta[property="article:published_time"]`,
			`meta[itemprop="datePublished"]`,
			`meta[name="date"]`,
			`meta[name="publish-date"]`,
		),
		doc.Find("time[datetime]").First().AttrOr("datetime", ""),
	}
	for _, raw := range candidates {
		if raw == "" {
			continue
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
				t = t.UTC()
				return &t
			}
		}
	}
	return nil
}
