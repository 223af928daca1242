package extractor

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/custodia-labs/stash/internal/core/ports/driven"
)

var (
	mdCodeBlock    = regexp.MustCompile("(?s)```.*?```")
	mdInlineCode   = regexp.MustCompile("`([^`]+)`")
	mdImage        = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	mdLink         = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	mdHeading      = regexp.MustCompile(`(?m)^#{1,6}[ \t]+`)
	mdBlockquote   = regexp.MustCompile(`(?m)^>[ \t]*`)
	mdRule         = regexp.MustCompile(`(?m)^[-*_]{3,}[ \t]*$`)
	mdBullet       = regexp.MustCompile(`(?m)^[ \t]*[-*+][ \t]+`)
	mdNumbered     = regexp.MustCompile(`(?m)^[ \t]*\d+\.[ \t]+`)
	mdEmphasis     = regexp.MustCompile(`(\*\*|__|\*)([^*\n]+?)(\*\*|__|\*)`)
	markdownExts   = []string{".md", ".markdown", ".mdown"}
	markdownCTypes = []string{"text/markdown", "text/x-markdown"}
)

// isMarkdown reports whether the page is a markdown document, by content
// type or, for plain text responses, by file extension.
func isMarkdown(page *driven.FetchedPage, pageURL *url.URL) bool {
	ct := strings.ToLower(page.ContentType)
	for _, m := range markdownCTypes {
		if strings.HasPrefix(ct, m) {
			return true
		}
	}
	if ct != "" && !strings.HasPrefix(ct, "text/plain") {
		return false
	}
	ext := strings.ToLower(path.Ext(pageURL.Path))
	for _, e := range markdownExts {
		if ext == e {
			return true
		}
	}
	return false
}

// markdownTitle returns the first level-one heading.
func markdownTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return collapse(strings.TrimPrefix(line, "#"))
		}
	}
	return ""
}

// stripMarkdown reduces markdown to its readable text. Fenced code is
// dropped; inline code, link text and emphasised words are kept.
func stripMarkdown(content string) string {
	content = mdCodeBlock.ReplaceAllString(content, "")
	content = mdInlineCode.ReplaceAllString(content, "$1")
	content = mdImage.ReplaceAllString(content, "")
	content = mdLink.ReplaceAllString(content, "$1")
	content = mdHeading.ReplaceAllString(content, "")
	content = mdBlockquote.ReplaceAllString(content, "")
	content = mdRule.ReplaceAllString(content, "")
	content = mdBullet.ReplaceAllString(content, "")
	content = mdNumbered.ReplaceAllString(content, "")
	content = mdEmphasis.ReplaceAllString(content, "$2")
	return content
}
