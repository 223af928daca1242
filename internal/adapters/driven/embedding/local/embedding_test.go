package local

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/stash/internal/core/domain"
)

func TestNewEmbeddingService_Defaults(t *testing.T) {
	svc := NewEmbeddingService(0)
	assert.Equal(t, domain.DefaultEmbeddingDimensions, svc.Dimensions())
	assert.Equal(t, domain.EmbeddingProviderLocal, svc.Provider())
	assert.Equal(t, ModelName, svc.ModelName())
	assert.NoError(t, svc.Ping(context.Background()))
	assert.NoError(t, svc.Close())
}

func TestEmbed_DeterministicAndNormalized(t *testing.T) {
	svc := NewEmbeddingService(256)
	ctx := context.Background()

	a, err := svc.Embed(ctx, "Go concurrency patterns with channels and goroutines")
	require.NoError(t, err)
	b, err := svc.Embed(ctx, "Go concurrency patterns with channels and goroutines")
	require.NoError(t, err)

	assert.Equal(t, a.Vector, b.Vector)
	assert.Len(t, a.Vector, 256)
	assert.Equal(t, domain.EmbeddingProviderLocal, a.Provider)

	var norm float64
	for _, x := range a.Vector {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestEmbed_SimilarTextScoresHigher(t *testing.T) {
	svc := NewEmbeddingService(512)
	ctx := context.Background()

	base, err := svc.Embed(ctx, "baking sourdough bread at home with starter")
	require.NoError(t, err)
	near, err := svc.Embed(ctx, "baking sourdough bread at home")
	require.NoError(t, err)
	far, err := svc.Embed(ctx, "kubernetes cluster autoscaling configuration")
	require.NoError(t, err)

	nearSim := domain.CosineSimilarity(base.Vector, near.Vector)
	farSim := domain.CosineSimilarity(base.Vector, far.Vector)
	assert.Greater(t, nearSim, farSim)
	assert.Greater(t, nearSim, 0.5)
}

func TestEmbed_NoWordsGivesZeroVector(t *testing.T) {
	svc := NewEmbeddingService(64)
	emb, err := svc.Embed(context.Background(), "a to ! ?")
	require.NoError(t, err)
	for _, x := range emb.Vector {
		assert.Zero(t, x)
	}
}

func TestEmbed_CancelledContext(t *testing.T) {
	svc := NewEmbeddingService(64)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Embed(ctx, "hello world")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmbedBatch_PreservesOrder(t *testing.T) {
	svc := NewEmbeddingService(128)
	ctx := context.Background()

	batch, err := svc.EmbedBatch(ctx, []string{"first text here", "second text here"})
	require.NoError(t, err)
	require.Len(t, batch, 2)

	second, err := svc.Embed(ctx, "second text here")
	require.NoError(t, err)
	assert.Equal(t, second.Vector, batch[1].Vector)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"hello", "world", "2024"}, tokenize("Hello, WORLD! an 2024 of"))
	assert.Empty(t, tokenize(""))
}
