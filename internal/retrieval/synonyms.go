package retrieval

import (
	"strings"

	"github.com/samber/lo"
)

// synonyms maps a term to related terms. Lookups work in both directions.
var synonyms = map[string][]string{
	"article":   {"post", "blog", "story", "news"},
	"video":     {"clip", "movie", "film", "youtube"},
	"tutorial":  {"guide", "howto", "lesson", "course"},
	"recipe":    {"cooking", "food", "dish"},
	"code":      {"programming", "software", "development"},
	"note":      {"memo", "idea", "thought"},
	"link":      {"bookmark", "url", "site"},
	"photo":     {"image", "picture", "pic"},
	"music":     {"song", "audio", "album"},
	"job":       {"career", "work", "hiring"},
	"travel":    {"trip", "vacation", "holiday"},
	"book":      {"reading", "novel", "ebook"},
	"paper":     {"research", "study", "publication"},
	"tool":      {"app", "utility", "software"},
	"documents": {"docs", "documentation", "reference"},
}

// reverseSynonyms maps every synonym value back to its keys.
var reverseSynonyms = func() map[string][]string {
	rev := make(map[string][]string)
	for key, values := range synonyms {
		for _, v := range values {
			rev[v] = append(rev[v], key)
		}
	}
	return rev
}()

// Synonyms returns the related terms of term, excluding term itself.
func Synonyms(term string) []string {
	term = strings.ToLower(term)
	related := append(append([]string{}, synonyms[term]...), reverseSynonyms[term]...)
	// A reverse hit also brings in the key's other synonyms.
	for _, key := range reverseSynonyms[term] {
		related = append(related, synonyms[key]...)
	}
	related = lo.Uniq(related)
	return lo.Filter(related, func(s string, _ int) bool { return s != term })
}

// Expand returns the synonyms of all terms that are not terms themselves.
func Expand(terms []string) []string {
	var out []string
	for _, t := range terms {
		out = append(out, Synonyms(t)...)
	}
	return lo.Without(lo.Uniq(out), terms...)
}
