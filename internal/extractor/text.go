package extractor

import (
	"path"
	"regexp"
	"strings"
)

var (
	multiSpaces   = regexp.MustCompile(`[ \t\f\r\v]+`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// cleanText collapses runs of spaces, caps consecutive newlines at two and
// trims every line.
func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = multiSpaces.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = multiNewlines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// collapse squeezes all whitespace, newlines included, to single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// wordCount counts whitespace-delimited tokens.
func wordCount(s string) int {
	return len(strings.Fields(s))
}

// titleFromPath derives a readable title from the last URL path segment,
// e.g. "/docs/getting_started.pdf" gives "getting started".
func titleFromPath(p string) string {
	name := path.Base(p)
	if name == "/" || name == "." {
		return ""
	}
	name = strings.TrimSuffix(name, path.Ext(name))
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	return collapse(name)
}
