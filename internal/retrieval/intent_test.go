package retrieval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/stash/internal/core/domain"
)

var now = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func TestParseIntent_PlainSearch(t *testing.T) {
	intent := ParseIntent("Kubernetes operators", now)

	assert.Equal(t, domain.IntentSearch, intent.Kind)
	assert.False(t, intent.HasFilters())
	assert.Equal(t, []string{"kubernetes", "operators"}, intent.SearchTerms)
}

func TestParseIntent_FolderWord(t *testing.T) {
	intent := ParseIntent("show me react articles from work", now)

	assert.Equal(t, domain.IntentFilterFolder, intent.Kind)
	assert.Equal(t, "work", intent.Value)
	assert.Equal(t, "work", intent.Folder)
	assert.Equal(t, []string{"react", "articles"}, intent.SearchTerms)
}

func TestParseIntent_CombinedFilters(t *testing.T) {
	intent := ParseIntent(`notes in "Side Projects" tagged golang this week`, now)

	assert.Equal(t, domain.IntentFilterFolder, intent.Kind)
	assert.Equal(t, "Side Projects", intent.Folder)
	assert.Equal(t, "golang", intent.Tag)
	assert.Equal(t, domain.EntityTypeNote, intent.Type)
	require.NotNil(t, intent.DateRange)
	assert.Equal(t, now.Add(-7*day), intent.DateRange.From)
	assert.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), intent.DateRange.To)
	assert.Empty(t, intent.SearchTerms)
	assert.NotNil(t, intent.SearchTerms)
}

func TestParseIntent_HashTag(t *testing.T) {
	intent := ParseIntent("#recipes yesterday", now)

	assert.Equal(t, domain.IntentFilterTag, intent.Kind)
	assert.Equal(t, "recipes", intent.Tag)
	require.NotNil(t, intent.DateRange)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), intent.DateRange.From)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), intent.DateRange.To)
}

func TestParseIntent_DateOutranksType(t *testing.T) {
	intent := ParseIntent("links about golang last month", now)

	assert.Equal(t, domain.IntentFilterDate, intent.Kind)
	assert.Equal(t, "last month", intent.Value)
	assert.Equal(t, domain.EntityTypeLink, intent.Type)
	assert.Equal(t, []string{"golang"}, intent.SearchTerms)
	require.NotNil(t, intent.DateRange)
	assert.Equal(t, now.Add(-60*day), intent.DateRange.From)
	assert.Equal(t, now.Add(-30*day), intent.DateRange.To)
}

func TestParseIntent_FromDateIsNotFolder(t *testing.T) {
	intent := ParseIntent("notes from yesterday", now)

	assert.Empty(t, intent.Folder)
	assert.Equal(t, domain.IntentFilterDate, intent.Kind)
	assert.Equal(t, domain.EntityTypeNote, intent.Type)
	assert.Empty(t, intent.SearchTerms)
}

func TestParseIntent_TypeOnly(t *testing.T) {
	intent := ParseIntent("bookmarks", now)

	assert.Equal(t, domain.IntentFilterType, intent.Kind)
	assert.Equal(t, "link", intent.Value)
	assert.Empty(t, intent.SearchTerms)
}

func TestDateRange(t *testing.T) {
	tests := []struct {
		phrase   string
		from, to time.Time
	}{
		{"today", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)},
		{"last week", now.Add(-14 * day), now.Add(-7 * day)},
		{"this month", now.Add(-30 * day), time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)},
		{"recently", now.Add(-7 * day), time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.phrase, func(t *testing.T) {
			r := dateRange(tt.phrase, now)
			assert.Equal(t, tt.from, r.From)
			assert.Equal(t, tt.to, r.To)
		})
	}

	r := dateRange("today", now)
	assert.True(t, r.Contains(now))
	assert.False(t, r.Contains(r.To))
}
