// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The task service, pipeline and dispatcher form the background indexing
// path; the search service wraps the retrieval engine for interactive use.
package services
