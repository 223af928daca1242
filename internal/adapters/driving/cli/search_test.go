package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/stash/internal/core/domain"
)

func TestSearchCmd_Use(t *testing.T) {
	assert.Equal(t, "search [query]", searchCmd.Use)
}

func TestSearchCmd_Long(t *testing.T) {
	assert.Contains(t, searchCmd.Long, "hybrid search")
	assert.Contains(t, searchCmd.Long, "semantic")
}

func TestSearchCmd_RequiresExactlyOneArg(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute("search")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestSearchCmd_HasLimitFlag(t *testing.T) {
	flag := searchCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "limit flag should exist")
	assert.Equal(t, "n", flag.Shorthand)
	assert.Equal(t, "10", flag.DefValue)
}

func TestSearchCmd_PassesQueryAndLimit(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute("search", "--limit", "25", "-u", "alice", "golang tips")

	require.NoError(t, err)
	assert.Equal(t, "alice", ts.search.lastOwner)
	assert.Equal(t, "golang tips", ts.search.lastQuery)
	assert.Equal(t, 25, ts.search.lastOpts.Limit)
}

func TestSearchCmd_NoResults(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("search", "nothing")

	require.NoError(t, err)
	assert.Contains(t, out, "No results found.")
}

func TestSearchCmd_PrintsResults(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.search.results = []domain.SearchResult{
		{
			Type:          domain.EntityTypeLink,
			Link:          &domain.Link{ID: "l1", URL: "https://go.dev", Title: "The Go Programming Language"},
			CombinedScore: 0.87,
			Matches:       []domain.Match{{Field: "description", Excerpt: "Build simple, secure, scalable systems"}},
		},
		{
			Type:          domain.EntityTypeNote,
			Note:          &domain.Note{ID: "n1", Content: "untitled note body"},
			CombinedScore: 0.5,
		},
	}

	out, err := execute("search", "go")

	require.NoError(t, err)
	assert.Contains(t, out, "[1] The Go Programming Language")
	assert.Contains(t, out, "(0.87)")
	assert.Contains(t, out, "https://go.dev")
	assert.Contains(t, out, "Build simple, secure, scalable systems")
	assert.Contains(t, out, "[2] untitled note body")
}

func TestSearchCmd_ShowsParsedFilter(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.search.intent = &domain.QueryIntent{Kind: domain.IntentFilterTag, Tag: "golang"}

	out, err := execute("search", "#golang")

	require.NoError(t, err)
	assert.Contains(t, out, `tagged "golang"`)
}

func TestSearchCmd_JSON(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("search", "--json", "anything")

	require.NoError(t, err)
	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.JSONEq(t, `[]`, string(decoded["results"]))
	assert.Contains(t, decoded, "intent")
}

func TestSearchCmd_Semantic(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.search.semantic = []domain.SemanticResult{
		{
			Type:       domain.EntityTypeNote,
			Note:       &domain.Note{ID: "n1", Title: "Caching notes"},
			Similarity: 0.91,
			ChunkText:  "write-through caches keep the store current",
		},
	}

	out, err := execute("search", "--semantic", "--threshold", "0.5", "cache")

	require.NoError(t, err)
	assert.InDelta(t, 0.5, ts.search.lastSem.Threshold, 1e-9)
	assert.Equal(t, 10, ts.search.lastSem.Limit)
	assert.Contains(t, out, "[1] Caching notes")
	assert.Contains(t, out, "(0.91)")
	assert.Contains(t, out, "write-through caches")
}

func TestSearchCmd_NotConfigured(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	searchService = nil

	_, err := execute("search", "x")

	require.Error(t, err)
	assert.ErrorIs(t, err, errNotConfigured)
}

func TestDescribeIntent(t *testing.T) {
	tests := []struct {
		name   string
		intent domain.QueryIntent
		want   string
	}{
		{"folder", domain.QueryIntent{Folder: "Reading"}, `in folder "Reading"`},
		{"tag", domain.QueryIntent{Tag: "go"}, `tagged "go"`},
		{"type", domain.QueryIntent{Type: domain.EntityTypeNote}, "notes only"},
		{"none", domain.QueryIntent{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, describeIntent(&tt.intent))
		})
	}
}
