package mcp

import (
	"github.com/custodia-labs/stash/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
type Ports struct {
	// Search provides hybrid and semantic search.
	Search driving.SearchService

	// Tasks manages the indexing queue.
	Tasks driving.TaskService

	// DefaultOwner is used when a tool call names no user.
	DefaultOwner string
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	if p.Tasks == nil {
		return ErrMissingTaskService
	}
	return nil
}
