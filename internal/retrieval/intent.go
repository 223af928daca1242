package retrieval

import (
	"regexp"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/custodia-labs/stash/internal/core/domain"
)

const day = 24 * time.Hour

var (
	datePhrase = regexp.MustCompile(`(?i)\b(today|yesterday|this week|last week|this month|last month|recently|recent)\b`)

	folderQuoted = regexp.MustCompile(`(?i)\b(?:in|from)\s+(?:folder\s+)?"([^"]+)"`)
	folderWord   = regexp.MustCompile(`(?i)\b(?:from|in folder)\s+([\p{L}\p{N}_-]+)`)

	tagHash   = regexp.MustCompile(`(?:^|\s)#([\p{L}\p{N}_-]+)`)
	tagTagged = regexp.MustCompile(`(?i)\btagged\s+(?:with\s+)?#?([\p{L}\p{N}_-]+)`)

	typeWord = regexp.MustCompile(`(?i)\b(links|link|bookmarks|bookmark|notes|note)\b`)
)

// dateWords start a date phrase.
var dateWords = []string{"today", "yesterday", "this", "last", "recent", "recently"}

// fillerWords are dropped from the search terms.
var fillerWords = []string{"show", "me", "find", "my", "all", "about", "from", "in"}

// ParseIntent reads filters and search terms from a raw query. Date phrases
// are resolved relative to now.
func ParseIntent(query string, now time.Time) domain.QueryIntent {
	intent := domain.QueryIntent{Kind: domain.IntentSearch}
	rest := query

	// Folder phrases go first so quoted names keep words like "notes".
	if m := folderQuoted.FindStringSubmatch(rest); m != nil {
		intent.Folder = strings.TrimSpace(m[1])
		rest = strings.Replace(rest, m[0], " ", 1)
	} else if m := bareFolder(rest); m != nil {
		intent.Folder = m[1]
		rest = strings.Replace(rest, m[0], " ", 1)
	}

	if m := tagTagged.FindStringSubmatch(rest); m != nil {
		intent.Tag = m[1]
		rest = strings.Replace(rest, m[0], " ", 1)
	} else if m := tagHash.FindStringSubmatch(rest); m != nil {
		intent.Tag = m[1]
		rest = strings.Replace(rest, m[0], " ", 1)
	}

	var when string
	if m := datePhrase.FindStringSubmatch(rest); m != nil {
		when = strings.ToLower(m[1])
		intent.DateRange = dateRange(when, now)
		rest = strings.Replace(rest, m[0], " ", 1)
	}

	if m := typeWord.FindStringSubmatch(rest); m != nil {
		switch strings.ToLower(m[1]) {
		case "link", "links", "bookmark", "bookmarks":
			intent.Type = domain.EntityTypeLink
		default:
			intent.Type = domain.EntityTypeNote
		}
		rest = strings.Replace(rest, m[0], " ", 1)
	}

	// Folder outranks tag, tag outranks date, date outranks type.
	switch {
	case intent.Folder != "":
		intent.Kind, intent.Value = domain.IntentFilterFolder, intent.Folder
	case intent.Tag != "":
		intent.Kind, intent.Value = domain.IntentFilterTag, intent.Tag
	case intent.DateRange != nil:
		intent.Kind, intent.Value = domain.IntentFilterDate, when
	case intent.Type != "":
		intent.Kind, intent.Value = domain.IntentFilterType, string(intent.Type)
	}

	intent.SearchTerms = searchTerms(rest)
	return intent
}

// bareFolder finds an unquoted folder phrase. "from yesterday" and
// "from last week" are date phrases, not folders.
func bareFolder(s string) []string {
	for _, m := range folderWord.FindAllStringSubmatch(s, -1) {
		if !lo.Contains(dateWords, strings.ToLower(m[1])) {
			return m
		}
	}
	return nil
}

func searchTerms(s string) []string {
	terms := lo.Filter(words(strings.ToLower(s)), func(w string, _ int) bool {
		return !lo.Contains(fillerWords, w)
	})
	if terms == nil {
		return []string{}
	}
	return terms
}

// dateRange resolves a date phrase to a half-open range ending at the end
// of today, or at a past boundary for "last week" and "last month".
func dateRange(phrase string, now time.Time) *domain.DateRange {
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	endOfDay := startOfDay.Add(day)

	var r domain.DateRange
	switch phrase {
	case "today":
		r = domain.DateRange{From: startOfDay, To: endOfDay}
	case "yesterday":
		r = domain.DateRange{From: startOfDay.Add(-day), To: startOfDay}
	case "this week":
		r = domain.DateRange{From: now.Add(-7 * day), To: endOfDay}
	case "last week":
		r = domain.DateRange{From: now.Add(-14 * day), To: now.Add(-7 * day)}
	case "this month":
		r = domain.DateRange{From: now.Add(-30 * day), To: endOfDay}
	case "last month":
		r = domain.DateRange{From: now.Add(-60 * day), To: now.Add(-30 * day)}
	default: // recent, recently
		r = domain.DateRange{From: now.Add(-7 * day), To: endOfDay}
	}
	return &r
}
