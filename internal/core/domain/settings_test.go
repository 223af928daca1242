package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	assert.Equal(t, ":8080", s.HTTP.Addr)
	assert.Equal(t, StorageDriverSQLite, s.Storage.Driver)
	assert.Equal(t, EmbeddingProviderLocal, s.Embedding.Provider)
	assert.Equal(t, DefaultEmbeddingDimensions, s.Embedding.Dimensions)
	assert.True(t, s.Embedding.FallbackOnError)
	assert.Equal(t, 2*time.Minute, s.Worker.Lease)
	assert.Equal(t, DefaultTopK, s.Search.TopK)
	assert.Equal(t, DefaultMinScore, s.Search.MinScore)
}

func TestEmbeddingSettings_IsRemote(t *testing.T) {
	assert.False(t, (&EmbeddingSettings{}).IsRemote())
	assert.False(t, (&EmbeddingSettings{Provider: EmbeddingProviderLocal}).IsRemote())
	assert.True(t, (&EmbeddingSettings{Provider: EmbeddingProviderOpenAI}).IsRemote())
}

func TestStorageDriver_IsValid(t *testing.T) {
	assert.True(t, StorageDriverSQLite.IsValid())
	assert.True(t, StorageDriverMemory.IsValid())
	assert.False(t, StorageDriver("postgres").IsValid())
}
