package domain

import "math"

// DefaultEmbeddingDimensions is the vector size D used across the store.
const DefaultEmbeddingDimensions = 3072

// EmbeddingProvider identifies the backend that produced a vector.
type EmbeddingProvider string

// Available embedding providers.
const (
	// EmbeddingProviderLocal is the deterministic hashed fallback.
	EmbeddingProviderLocal EmbeddingProvider = "local"

	// EmbeddingProviderOpenAI is the OpenAI embeddings API.
	EmbeddingProviderOpenAI EmbeddingProvider = "openai"

	// EmbeddingProviderOllama is a local or remote Ollama server.
	EmbeddingProviderOllama EmbeddingProvider = "ollama"

	// EmbeddingProviderBedrock is Amazon Bedrock (Titan text embeddings).
	EmbeddingProviderBedrock EmbeddingProvider = "bedrock"

	// EmbeddingProviderVertex is Google Vertex AI.
	EmbeddingProviderVertex EmbeddingProvider = "vertex"
)

// IsValid returns true if the provider is recognised.
func (p EmbeddingProvider) IsValid() bool {
	switch p {
	case EmbeddingProviderLocal, EmbeddingProviderOpenAI, EmbeddingProviderOllama,
		EmbeddingProviderBedrock, EmbeddingProviderVertex:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (p EmbeddingProvider) String() string {
	return string(p)
}

// Embedding is a vector plus the provenance needed to decide comparability.
type Embedding struct {
	Vector   []float32         `json:"embedding"`
	Provider EmbeddingProvider `json:"provider"`
	Model    string            `json:"model"`
}

// Dimensions returns the vector length.
func (e *Embedding) Dimensions() int {
	if e == nil {
		return 0
	}
	return len(e.Vector)
}

// Comparable reports whether two embeddings live in the same vector space.
// Vectors from different providers, models or sizes must never be compared.
func (e *Embedding) Comparable(other *Embedding) bool {
	if e == nil || other == nil || len(e.Vector) == 0 || len(other.Vector) == 0 {
		return false
	}
	return e.Provider == other.Provider &&
		e.Model == other.Model &&
		len(e.Vector) == len(other.Vector)
}

// CosineSimilarity returns the cosine of the angle between a and b in [-1,1].
// Vectors of different length or with zero magnitude yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp rounding drift.
	if sim > 1 {
		return 1
	}
	if sim < -1 {
		return -1
	}
	return sim
}

// Normalize returns v scaled to unit length. A zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		copy(out, v)
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// AverageEmbeddings returns the component-wise mean of vectors re-normalised
// to unit length. Vectors whose length differs from the first are skipped.
// An empty input yields an empty vector.
func AverageEmbeddings(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return []float32{}
	}

	dims := len(vectors[0])
	sum := make([]float64, dims)
	count := 0
	for _, v := range vectors {
		if len(v) != dims {
			continue
		}
		for i, x := range v {
			sum[i] += float64(x)
		}
		count++
	}

	mean := make([]float32, dims)
	for i := range sum {
		mean[i] = float32(sum[i] / float64(count))
	}
	return Normalize(mean)
}
