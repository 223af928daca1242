// Package bedrock provides an embedding service adapter for Amazon Bedrock
// Titan text embedding models.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/stash/internal/core/domain"
	"github.com/custodia-labs/stash/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultModel      = "amazon.titan-embed-text-v2:0"
	DefaultRegion     = "us-east-1"
	DefaultDimensions = 1024
)

// titanDimensions are the output sizes Titan v2 accepts.
var titanDimensions = map[int]bool{256: true, 512: true, 1024: true}

// Config holds configuration for the Bedrock embedding service.
// Credentials come from the default AWS chain.
type Config struct {
	Region     string
	Model      string
	Dimensions int

	RequestsPerSecond float64
	Burst             int
}

// invoker is the subset of the Bedrock runtime client used here.
type invoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput,
		optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// EmbeddingService generates embeddings with Titan text embeddings.
type EmbeddingService struct {
	client     invoker
	limiter    *rate.Limiter
	model      string
	dimensions int
}

type titanRequest struct {
	InputText  string `json:"inputText"`
	Dimensions int    `json:"dimensions,omitempty"`
	Normalize  bool   `json:"normalize"`
}

type titanResponse struct {
	Embedding           []float32 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

// NewEmbeddingService loads the default AWS configuration for the region and
// creates a Bedrock embedding service.
func NewEmbeddingService(ctx context.Context, cfg Config) (*EmbeddingService, error) {
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("%w: load aws config: %w", domain.ErrConfiguration, err)
	}
	return newWithClient(cfg, bedrockruntime.NewFromConfig(awsCfg)), nil
}

func newWithClient(cfg Config, client invoker) *EmbeddingService {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if !titanDimensions[cfg.Dimensions] {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 3
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &EmbeddingService{
		client:     client,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) (domain.Embedding, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return domain.Embedding{}, fmt.Errorf("bedrock: rate limiter: %w", err)
	}

	body, err := json.Marshal(titanRequest{
		InputText:  text,
		Dimensions: s.dimensions,
		Normalize:  true,
	})
	if err != nil {
		return domain.Embedding{}, fmt.Errorf("marshal request: %w", err)
	}

	out, err := s.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(s.model),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return domain.Embedding{}, classify(err)
	}

	var resp titanResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return domain.Embedding{}, fmt.Errorf("decode response: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return domain.Embedding{}, fmt.Errorf("bedrock: no embedding returned")
	}
	return domain.Embedding{
		Vector:   resp.Embedding,
		Provider: domain.EmbeddingProviderBedrock,
		Model:    s.model,
	}, nil
}

// EmbedBatch embeds texts one call at a time; Titan has no batch endpoint.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([]domain.Embedding, error) {
	out := make([]domain.Embedding, 0, len(texts))
	for _, text := range texts {
		emb, err := s.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, emb)
	}
	return out, nil
}

func classify(err error) error {
	var (
		throttled   *types.ThrottlingException
		denied      *types.AccessDeniedException
		invalid     *types.ValidationException
		notFound    *types.ResourceNotFoundException
		unavailable *types.ServiceUnavailableException
	)
	switch {
	case errors.As(err, &throttled):
		return fmt.Errorf("%w: bedrock: %w", domain.ErrRateLimited, err)
	case errors.As(err, &denied):
		return fmt.Errorf("%w: bedrock: %w", domain.ErrConfiguration, err)
	case errors.As(err, &invalid), errors.As(err, &notFound):
		return fmt.Errorf("%w: bedrock: %w", domain.ErrPermanent, err)
	case errors.As(err, &unavailable):
		return fmt.Errorf("%w: bedrock service unavailable: %w", domain.ErrEmbeddingUnavailable, err)
	default:
		return fmt.Errorf("%w: bedrock: %w", domain.ErrEmbeddingUnavailable, err)
	}
}

// Provider returns domain.EmbeddingProviderBedrock.
func (s *EmbeddingService) Provider() domain.EmbeddingProvider {
	return domain.EmbeddingProviderBedrock
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
