package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/stash/internal/core/domain"
	"github.com/custodia-labs/stash/internal/core/ports/driving"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(body), 0o600))
}

func TestNew_MemoryEndToEnd(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[storage]
driver = "memory"

[embedding]
provider = "local"
dimensions = 64
`)

	ctx := context.Background()
	a, err := New(ctx, Options{ConfigDir: dir, Version: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	assert.Equal(t, domain.StorageDriverMemory, a.Settings.Storage.Driver)
	assert.Equal(t, filepath.Join(dir, "data"), a.Settings.Storage.DataDir)

	note, tasks, err := a.Documents.SaveNote(ctx, driving.NoteInput{
		OwnerID: "u1",
		Title:   "Gardening tips",
		Content: "Water tomatoes early in the morning. Mulch keeps the soil moist through the summer.",
		Tags:    []string{"garden"},
	})
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	summary, err := a.Tasks.RunTasks(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{tasks[0].ID}, summary.Processed)

	done, err := a.Tasks.GetTask(ctx, tasks[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, done.Status)

	a.Search.Invalidate()
	results, _, err := a.Search.Search(ctx, "u1", "gardening", domain.SearchOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, note.ID, results[0].ItemID())

	resp, err := a.Embeddings.Generate(ctx, driving.EmbeddingRequest{Texts: []string{"hello world"}})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 1)
	assert.Len(t, resp.Embeddings[0].Embedding, 64)
	assert.Equal(t, domain.EmbeddingProviderLocal, resp.Provider)
}

func TestNew_SQLite(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[embedding]
dimensions = 32
`)

	a, err := New(context.Background(), Options{ConfigDir: dir})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	_, err = os.Stat(filepath.Join(dir, "data", "stash.db"))
	assert.NoError(t, err)
}

func TestNew_InvalidSettings(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[embedding]
provider = "openai"
`)
	t.Setenv("STASH_OPENAI_API_KEY", "")
	t.Setenv("STASH_EMBEDDING_API_KEY", "")

	_, err := New(context.Background(), Options{ConfigDir: dir})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestWatchConfig_ReloadsSearch(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "[storage]\ndriver = \"memory\"\n")

	a, err := New(context.Background(), Options{ConfigDir: dir})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = a.WatchConfig(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeConfig(t, dir, "[storage]\ndriver = \"memory\"\n\n[search]\ntop_k = 3\n")

	assert.Eventually(t, func() bool {
		return a.Search.Settings().TopK == 3
	}, 5*time.Second, 20*time.Millisecond)
}

func TestResolveConfigDir(t *testing.T) {
	dir, err := ResolveConfigDir("/etc/stash")
	require.NoError(t, err)
	assert.Equal(t, "/etc/stash", dir)

	t.Setenv("HOME", "/home/someone")
	dir, err = ResolveConfigDir("")
	require.NoError(t, err)
	assert.Equal(t, "/home/someone/.stash", dir)
}
