// Package ai provides factory functions for creating embedding service adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/stash/internal/adapters/driven/embedding/bedrock"
	"github.com/custodia-labs/stash/internal/adapters/driven/embedding/fallback"
	"github.com/custodia-labs/stash/internal/adapters/driven/embedding/local"
	ollamaembed "github.com/custodia-labs/stash/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/stash/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/stash/internal/adapters/driven/embedding/vertex"
	"github.com/custodia-labs/stash/internal/core/domain"
	"github.com/custodia-labs/stash/internal/core/ports/driven"
	"github.com/custodia-labs/stash/internal/logger"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// CreateEmbeddingService creates the embedding service selected by settings.
// Remote backends are wrapped with a local fallback when
// settings.FallbackOnError is set. A remote backend missing its credentials
// or address yields domain.ErrConfiguration.
func CreateEmbeddingService(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || settings.Provider == "" {
		return local.NewEmbeddingService(domain.DefaultEmbeddingDimensions), nil
	}

	var (
		svc driven.EmbeddingService
		err error
	)
	switch settings.Provider {
	case domain.EmbeddingProviderLocal:
		return local.NewEmbeddingService(settings.Dimensions), nil

	case domain.EmbeddingProviderOpenAI:
		svc, err = openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:            settings.APIKey,
			BaseURL:           settings.BaseURL,
			Model:             settings.Model,
			Dimensions:        settings.Dimensions,
			RequestsPerSecond: settings.RequestsPerSecond,
			Burst:             settings.Burst,
		})

	case domain.EmbeddingProviderOllama:
		svc, err = ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
		})

	case domain.EmbeddingProviderBedrock:
		svc, err = bedrock.NewEmbeddingService(ctx, bedrock.Config{
			Region:            settings.Region,
			Model:             settings.Model,
			Dimensions:        settings.Dimensions,
			RequestsPerSecond: settings.RequestsPerSecond,
			Burst:             settings.Burst,
		})

	case domain.EmbeddingProviderVertex:
		svc, err = vertex.NewEmbeddingService(ctx, vertex.Config{
			Project:           settings.Project,
			Location:          settings.Location,
			Model:             settings.Model,
			Dimensions:        settings.Dimensions,
			RequestsPerSecond: settings.RequestsPerSecond,
			Burst:             settings.Burst,
		})

	default:
		return nil, fmt.Errorf("%w: unsupported embedding provider: %s", domain.ErrConfiguration, settings.Provider)
	}
	if err != nil {
		return nil, err
	}

	if settings.FallbackOnError {
		svc = fallback.New(svc, local.NewEmbeddingService(svc.Dimensions()))
	}
	return svc, nil
}

// CreateAndValidateEmbeddingService creates an embedding service and checks
// it is reachable. An unreachable backend is only a warning when failed
// calls fall back to the local backend.
func CreateAndValidateEmbeddingService(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(ctx, settings)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := svc.Ping(pingCtx); err != nil {
		if settings != nil && settings.FallbackOnError {
			logger.Warn("%s embeddings unreachable, local fallback in use: %v", svc.Provider(), err)
			return svc, nil
		}
		_ = svc.Close()
		return nil, fmt.Errorf("%w: %s service unreachable: %w", domain.ErrEmbeddingUnavailable, svc.Provider(), err)
	}
	return svc, nil
}
