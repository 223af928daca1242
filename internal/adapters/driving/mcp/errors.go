// Package mcp provides an MCP (Model Context Protocol) server adapter for stash.
// It lets AI assistants search an owner's links and notes and manage the
// indexing queue.
package mcp

import "errors"

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")

// ErrMissingTaskService is returned when the task service is not provided.
var ErrMissingTaskService = errors.New("mcp: task service is required")
