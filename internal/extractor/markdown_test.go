package extractor

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/stash/internal/core/ports/driven"
)

const readme = "# Getting Started\n\n" +
	"Install with `go install`. See [the docs](https://go.dev/doc) for **more**.\n\n" +
	"```go\nfmt.Println(\"hi\")\n```\n\n" +
	"- first item\n- second item\n"

func TestExtract_Markdown(t *testing.T) {
	page := &driven.FetchedPage{
		URL:         "https://raw.example.com/project/README.md",
		ContentType: "text/plain; charset=utf-8",
		Body:        []byte(readme),
	}

	ex, err := New().Extract(page)

	require.NoError(t, err)
	assert.Equal(t, "Getting Started", ex.Title)
	assert.Equal(t,
		"Getting Started\n\nInstall with go install. See the docs for more.\n\nfirst item\nsecond item",
		ex.FullText)
	assert.NotContains(t, ex.FullText, "Println")
	assert.Equal(t, 15, ex.WordCount)
}

func TestExtract_MarkdownWithoutHeadingKeepsPathTitle(t *testing.T) {
	page := &driven.FetchedPage{
		URL:         "https://example.com/notes/weekly_review",
		ContentType: "text/markdown",
		Body:        []byte("Some *short* notes."),
	}

	ex, err := New().Extract(page)

	require.NoError(t, err)
	assert.Equal(t, "weekly review", ex.Title)
	assert.Equal(t, "Some short notes.", ex.FullText)
}

func TestIsMarkdown(t *testing.T) {
	tests := []struct {
		name  string
		url   string
		ctype string
		want  bool
	}{
		{"markdown content type", "https://x.dev/a", "text/markdown; charset=utf-8", true},
		{"plain text with md path", "https://x.dev/README.md", "text/plain", true},
		{"missing content type with md path", "https://x.dev/doc.markdown", "", true},
		{"plain text file", "https://x.dev/notes.txt", "text/plain", false},
		{"pdf with md path", "https://x.dev/file.md", "application/pdf", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := &driven.FetchedPage{URL: tt.url, ContentType: tt.ctype}
			u := mustParse(t, tt.url)
			assert.Equal(t, tt.want, isMarkdown(page, u))
		})
	}
}

func TestStripMarkdown(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"## Section", "Section"},
		{"> quoted line", "quoted line"},
		{"1. step one", "step one"},
		{"![logo](/logo.png) Brand", " Brand"},
		{"snake_case_name stays", "snake_case_name stays"},
		{"__bold__ and *italic*", "bold and italic"},
		{"---", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripMarkdown(tt.in), tt.in)
	}
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}
