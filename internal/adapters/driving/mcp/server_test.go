package mcp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, search *mockSearchService, tasks *mockTaskService) *Server {
	t.Helper()
	server, err := NewServer(&Ports{Search: search, Tasks: tasks, DefaultOwner: "u1"}, "test")
	require.NoError(t, err)
	return server
}

func TestNewServer(t *testing.T) {
	t.Run("missing search service returns error", func(t *testing.T) {
		server, err := NewServer(&Ports{Tasks: &mockTaskService{}}, "test")
		require.Error(t, err)
		assert.Nil(t, server)
		assert.ErrorIs(t, err, ErrMissingSearchService)
	})

	t.Run("missing task service returns error", func(t *testing.T) {
		_, err := NewServer(&Ports{Search: &mockSearchService{}}, "test")
		assert.ErrorIs(t, err, ErrMissingTaskService)
	})

	t.Run("valid ports creates server", func(t *testing.T) {
		server := newTestServer(t, &mockSearchService{}, &mockTaskService{})
		assert.NotNil(t, server)
	})
}

func TestExtractTaskID(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"stash://tasks/abc-123", "abc-123"},
		{"stash://tasks/", ""},
		{"stash://tasks/a/b", ""},
		{"stash://links/abc", ""},
		{"other://tasks/abc", ""},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			assert.Equal(t, tt.want, extractTaskID(tt.uri))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}
