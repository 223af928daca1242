// Package local provides a deterministic, credential-free embedding service.
//
// Vectors are built from per-word hashes, so identical or near-identical text
// scores high under cosine similarity. They carry no semantic meaning and must
// never be compared with vectors from a remote model.
package local

import (
	"context"
	"hash/fnv"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/custodia-labs/stash/internal/core/domain"
	"github.com/custodia-labs/stash/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// ModelName identifies vectors produced by this package.
const ModelName = "hashed-bow-v1"

// positionsPerWord is how many vector slots each word touches.
const positionsPerWord = 3

// minWordLength drops short tokens such as "a" and "of".
const minWordLength = 3

// EmbeddingService produces hashed bag-of-words vectors.
type EmbeddingService struct {
	dimensions int
}

// NewEmbeddingService creates a local embedding service producing vectors
// of the given size. A non-positive size uses domain.DefaultEmbeddingDimensions.
func NewEmbeddingService(dimensions int) *EmbeddingService {
	if dimensions <= 0 {
		dimensions = domain.DefaultEmbeddingDimensions
	}
	return &EmbeddingService{dimensions: dimensions}
}

// Embed generates a vector for text. Text without any usable word yields a
// zero vector.
func (s *EmbeddingService) Embed(ctx context.Context, text string) (domain.Embedding, error) {
	if err := ctx.Err(); err != nil {
		return domain.Embedding{}, err
	}
	return domain.Embedding{
		Vector:   s.vector(text),
		Provider: domain.EmbeddingProviderLocal,
		Model:    ModelName,
	}, nil
}

// EmbedBatch embeds each text in order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([]domain.Embedding, error) {
	out := make([]domain.Embedding, len(texts))
	for i, text := range texts {
		emb, err := s.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return out, nil
}

func (s *EmbeddingService) vector(text string) []float32 {
	words := tokenize(text)
	vec := make([]float32, s.dimensions)
	if len(words) == 0 {
		return vec
	}

	freq := make(map[string]int, len(words))
	for _, w := range words {
		freq[w]++
	}
	// Map iteration order is random and float addition is not associative.
	unique := make([]string, 0, len(freq))
	for w := range freq {
		unique = append(unique, w)
	}
	sort.Strings(unique)

	total := float64(len(words))
	for _, w := range unique {
		tf := float64(freq[w]) / total
		for k := 0; k < positionsPerWord; k++ {
			h := hashWord(w, k)
			vec[h%uint64(s.dimensions)] += float32(tf * math.Cos(float64(h)))
		}
	}
	return domain.Normalize(vec)
}

func hashWord(word string, k int) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(word))
	_, _ = h.Write([]byte{'#'})
	_, _ = h.Write([]byte(strconv.Itoa(k)))
	return h.Sum64()
}

// tokenize lowercases text and returns its alphanumeric words longer than
// two characters.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	words := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= minWordLength {
			words = append(words, f)
		}
	}
	return words
}

// Provider returns domain.EmbeddingProviderLocal.
func (s *EmbeddingService) Provider() domain.EmbeddingProvider {
	return domain.EmbeddingProviderLocal
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns ModelName.
func (s *EmbeddingService) ModelName() string {
	return ModelName
}

// Ping always succeeds.
func (s *EmbeddingService) Ping(context.Context) error {
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}
