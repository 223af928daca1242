package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity_Ladder(t *testing.T) {
	tests := []struct {
		name  string
		query string
		field string
		want  float64
	}{
		{"exact ignores case", "Search", "search", 1.0},
		{"prefix", "sea", "search engine", 0.95},
		{"contains", "engine", "search engine", 0.9},
		{"word prefix scores as contains", "eng", "search engine", 0.9},
		{"empty query", "", "search", 0},
		{"empty field", "search", "  ", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Similarity(tt.query, tt.field), 1e-9)
		})
	}
}

func TestSimilarity_TypoTolerance(t *testing.T) {
	assert.Greater(t, Similarity("serch", "search"), 0.5)
	assert.InDelta(t, 0.0, Similarity("banana", "search"), 1e-9)
}

func TestSimilarity_TokenMatching(t *testing.T) {
	// machine and learning match, basics does not: 2/3 of 0.6.
	got := Similarity("machine learning basics", "an intro to learning machines")
	assert.InDelta(t, 0.4, got, 1e-9)
}

func TestSimilarity_FuzzyTokenCredit(t *testing.T) {
	// Both tokens are one edit away from a field word.
	got := Similarity("kubernetes operaters", "writing kubernetis operators")
	assert.InDelta(t, 0.7*0.6, got, 1e-9)
}

func TestSimilarity_UnrelatedText(t *testing.T) {
	assert.InDelta(t, 0.0, Similarity("go language tips", "python tricks"), 1e-9)
}

func TestEditSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, editSimilarity("abc", "abc"), 1e-9)
	assert.InDelta(t, 0.0, editSimilarity("", ""), 1e-9)
	assert.InDelta(t, 1-1.0/6, editSimilarity("serch", "search"), 1e-9)
}
