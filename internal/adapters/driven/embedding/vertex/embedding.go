// Package vertex provides an embedding service adapter for Google Vertex AI
// text embedding models, called through the AI Platform predict API.
package vertex

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"
	aiplatform "google.golang.org/api/aiplatform/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/custodia-labs/stash/internal/core/domain"
	"github.com/custodia-labs/stash/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultModel      = "text-embedding-005"
	DefaultLocation   = "us-central1"
	DefaultDimensions = 768

	// maxInstances is the predict API limit per request.
	maxInstances = 250
)

// Config holds configuration for the Vertex AI embedding service.
// Credentials come from Application Default Credentials.
type Config struct {
	Project    string
	Location   string
	Model      string
	Dimensions int

	RequestsPerSecond float64
	Burst             int

	// Options are passed to the API client, e.g. option.WithEndpoint.
	Options []option.ClientOption
}

// EmbeddingService generates embeddings with Vertex AI.
type EmbeddingService struct {
	svc        *aiplatform.Service
	limiter    *rate.Limiter
	endpoint   string
	model      string
	dimensions int
}

// NewEmbeddingService creates a Vertex AI embedding service.
// A missing project is a domain.ErrConfiguration.
func NewEmbeddingService(ctx context.Context, cfg Config) (*EmbeddingService, error) {
	if cfg.Project == "" {
		return nil, fmt.Errorf("%w: vertex project is required", domain.ErrConfiguration)
	}
	if cfg.Location == "" {
		cfg.Location = DefaultLocation
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 3
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	opts := append([]option.ClientOption{
		option.WithEndpoint(fmt.Sprintf("https://%s-aiplatform.googleapis.com/", cfg.Location)),
	}, cfg.Options...)
	svc, err := aiplatform.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: create vertex client: %w", domain.ErrConfiguration, err)
	}

	return &EmbeddingService{
		svc:     svc,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		endpoint: fmt.Sprintf("projects/%s/locations/%s/publishers/google/models/%s",
			cfg.Project, cfg.Location, cfg.Model),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) (domain.Embedding, error) {
	embs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return domain.Embedding{}, err
	}
	return embs[0], nil
}

// EmbedBatch embeds texts, splitting requests at the per-call instance limit.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([]domain.Embedding, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([]domain.Embedding, 0, len(texts))
	for start := 0; start < len(texts); start += maxInstances {
		end := min(start+maxInstances, len(texts))
		batch, err := s.predict(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (s *EmbeddingService) predict(ctx context.Context, texts []string) ([]domain.Embedding, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("vertex: rate limiter: %w", err)
	}

	instances := make([]any, len(texts))
	for i, text := range texts {
		instances[i] = map[string]any{"content": text}
	}
	req := &aiplatform.GoogleCloudAiplatformV1PredictRequest{
		Instances:  instances,
		Parameters: map[string]any{"outputDimensionality": s.dimensions},
	}

	resp, err := s.svc.Projects.Locations.Publishers.Models.Predict(s.endpoint, req).Context(ctx).Do()
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Predictions) != len(texts) {
		return nil, fmt.Errorf("vertex: expected %d predictions, got %d", len(texts), len(resp.Predictions))
	}

	out := make([]domain.Embedding, len(texts))
	for i, p := range resp.Predictions {
		vector, err := predictionValues(p)
		if err != nil {
			return nil, fmt.Errorf("vertex: prediction %d: %w", i, err)
		}
		out[i] = domain.Embedding{
			Vector:   vector,
			Provider: domain.EmbeddingProviderVertex,
			Model:    s.model,
		}
	}
	return out, nil
}

// predictionValues reads {"embeddings": {"values": [...]}} from a decoded
// prediction.
func predictionValues(p any) ([]float32, error) {
	pred, ok := p.(map[string]any)
	if !ok {
		return nil, errors.New("unexpected prediction shape")
	}
	emb, ok := pred["embeddings"].(map[string]any)
	if !ok {
		return nil, errors.New("missing embeddings")
	}
	raw, ok := emb["values"].([]any)
	if !ok || len(raw) == 0 {
		return nil, errors.New("missing embedding values")
	}
	vector := make([]float32, len(raw))
	for i, v := range raw {
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("value %d is not a number", i)
		}
		vector[i] = float32(f)
	}
	return vector, nil
}

func classify(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%w: vertex: %w", domain.ErrEmbeddingUnavailable, err)
	}
	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: vertex: %w", domain.ErrRateLimited, err)
	case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
		return fmt.Errorf("%w: vertex: %w", domain.ErrConfiguration, err)
	case apiErr.Code >= 500:
		return fmt.Errorf("%w: vertex: %w", domain.ErrEmbeddingUnavailable, err)
	default:
		return fmt.Errorf("%w: vertex: %w", domain.ErrPermanent, err)
	}
}

// Provider returns domain.EmbeddingProviderVertex.
func (s *EmbeddingService) Provider() domain.EmbeddingProvider {
	return domain.EmbeddingProviderVertex
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping embeds a short probe text.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	_, err := s.Embed(ctx, "ping")
	return err
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}
