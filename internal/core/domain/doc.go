// Package domain defines the core business entities for Stash.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Task: A unit of background indexing work and its typed payloads
//   - Link, Note: The documents a user saves
//   - Chunk: A slice of document text with its own embedding
//   - Embedding: A vector with the provider and model that produced it
//   - QueryIntent, SearchResult: Ephemeral retrieval types
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
