package postprocessors

import (
	"fmt"

	"github.com/custodia-labs/stash/internal/core/domain"
	"github.com/custodia-labs/stash/internal/core/ports/driven"
	"github.com/custodia-labs/stash/internal/postprocessors/chunker"
)

// DefaultChunker is the name of the built-in chunker.
const DefaultChunker = "chunker"

// RegisterDefaults registers all built-in chunkers with the registry.
func RegisterDefaults(r *Registry) {
	r.Register(DefaultChunker, buildChunker)
}

// buildChunker creates a chunker from generic config.
// Supported config keys:
//   - chunk_size (int): characters per chunk (default: 500)
//   - overlap (int): overlapping characters between chunks (default: 50)
//   - min_chunk_size (int): smallest chunk emitted on its own (default: 100)
//   - split_by (string): sentence, paragraph or character (default: sentence)
func buildChunker(cfg map[string]any) (driven.Chunker, error) {
	var opts []chunker.Option

	if size := getIntFromConfig(cfg, "chunk_size"); size > 0 {
		opts = append(opts, chunker.WithChunkSize(size))
	}
	if _, ok := cfg["overlap"]; ok {
		opts = append(opts, chunker.WithOverlap(getIntFromConfig(cfg, "overlap")))
	}
	if size := getIntFromConfig(cfg, "min_chunk_size"); size > 0 {
		opts = append(opts, chunker.WithMinChunkSize(size))
	}
	if raw, ok := cfg["split_by"].(string); ok {
		mode := domain.SplitMode(raw)
		if !mode.IsValid() {
			return nil, fmt.Errorf("%w: split_by %q", domain.ErrConfiguration, raw)
		}
		opts = append(opts, chunker.WithSplitMode(mode))
	}

	return chunker.New(opts...), nil
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) int {
	val, ok := cfg[key]
	if !ok {
		return 0
	}

	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
