package retrieval

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// Fuzzy similarity ladder.
const (
	scoreExact    = 1.0
	scorePrefix   = 0.95
	scoreContains = 0.9

	// shortQueryLen is the longest query scored by edit distance directly.
	shortQueryLen  = 10
	editThreshold  = 0.6
	editScale      = 0.7
	tokenScale     = 0.6
	fuzzyTokenPart = 0.7
	minFuzzyToken  = 3
)

// Similarity scores how well query matches field, in [0,1]. Matching is
// case-insensitive. A field word starting with the query is a substring
// match and scores as contains.
func Similarity(query, field string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	f := strings.ToLower(strings.TrimSpace(field))
	if q == "" || f == "" {
		return 0
	}

	switch {
	case q == f:
		return scoreExact
	case strings.HasPrefix(f, q):
		return scorePrefix
	case strings.Contains(f, q):
		return scoreContains
	}

	fieldWords := words(f)
	best := 0.0
	if qr := []rune(q); len(qr) <= shortQueryLen {
		best = shortQueryScore(q, f, fieldWords)
	}
	return max(best, tokenScore(words(q), fieldWords))
}

// shortQueryScore compares q with the same-length prefix of f and with each
// word of f by edit distance.
func shortQueryScore(q, f string, fieldWords []string) float64 {
	qLen := len([]rune(q))
	fr := []rune(f)
	prefix := string(fr[:min(qLen, len(fr))])

	best := editSimilarity(q, prefix)
	for _, w := range fieldWords {
		best = max(best, editSimilarity(q, w))
	}
	if best > editThreshold {
		return best * editScale
	}
	return 0
}

// editSimilarity is 1 - distance/longest.
func editSimilarity(a, b string) float64 {
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// tokenScore is the fraction of query tokens found in the field, scaled.
// A token counts fully when it contains or is contained by a field token,
// and partly when it is within edit distance of one.
func tokenScore(queryTokens, fieldTokens []string) float64 {
	if len(queryTokens) == 0 || len(fieldTokens) == 0 {
		return 0
	}
	var matched float64
	for _, qt := range queryTokens {
		matched += tokenCredit(qt, fieldTokens)
	}
	return matched / float64(len(queryTokens)) * tokenScale
}

func tokenCredit(qt string, fieldTokens []string) float64 {
	credit := 0.0
	for _, ft := range fieldTokens {
		qLen, fLen := len([]rune(qt)), len([]rune(ft))
		if strings.Contains(ft, qt) || (fLen >= minFuzzyToken && strings.Contains(qt, ft)) {
			return 1
		}
		if qLen < minFuzzyToken || fLen < minFuzzyToken {
			continue
		}
		if levenshtein.ComputeDistance(qt, ft) <= min(qLen, fLen)/3 {
			credit = fuzzyTokenPart
		}
	}
	return credit
}

// words splits s on anything that is not a letter or digit.
func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
