// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - TaskQueue: Durable job queue with atomic claim
//   - DocumentStore: Link, note, chunk, folder and tag persistence
//   - EmbeddingService: Vector generation (the local backend needs no credentials)
//   - PageFetcher: Downloads bookmarked pages
//   - ContentExtractor: Extracts metadata and main text from pages
//   - Chunker: Splits note text for embedding
//
// # Optional Interfaces
//
//   - ConfigStore: Only the CLI wiring reads it; services receive resolved settings.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
