package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/stash/internal/core/domain"
)

// defaultLimit caps tool results when the caller gives no limit.
const defaultLimit = 10

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query  string `json:"query" jsonschema:"the search query, may include filters like 'from Reading' or '#go' or 'last week'"`
	UserID string `json:"user_id,omitempty" jsonschema:"owner of the documents (defaults to the configured owner)"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10)"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
	Intent  string               `json:"intent"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	ID       string  `json:"id"`
	Type     string  `json:"type"`
	Title    string  `json:"title"`
	URL      string  `json:"url,omitempty"`
	Score    float64 `json:"score"`
	Keyword  float64 `json:"keyword_score"`
	Semantic float64 `json:"semantic_score"`
	Excerpt  string  `json:"excerpt,omitempty"`
}

// SemanticSearchInput is the input schema for the semantic_search tool.
type SemanticSearchInput struct {
	Query     string  `json:"query" jsonschema:"natural language description of what to find"`
	UserID    string  `json:"user_id,omitempty" jsonschema:"owner of the documents (defaults to the configured owner)"`
	Limit     int     `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10)"`
	Threshold float64 `json:"threshold,omitempty" jsonschema:"minimum cosine similarity (default 0.5)"`
}

// SemanticSearchOutput is the output schema for the semantic_search tool.
type SemanticSearchOutput struct {
	Results []SemanticResultOutput `json:"results"`
	Count   int                    `json:"count"`
}

// SemanticResultOutput represents a single semantic match.
type SemanticResultOutput struct {
	ID         string  `json:"id"`
	Type       string  `json:"type"`
	Title      string  `json:"title"`
	Similarity float64 `json:"similarity"`
	ChunkText  string  `json:"chunk_text,omitempty"`
}

// CreateTaskInput is the input schema for the create_task tool.
type CreateTaskInput struct {
	TaskType   string          `json:"task_type" jsonschema:"one of link_metadata, link_embeddings, note_embeddings, refresh_link_content, refresh_note_content"`
	EntityType string          `json:"entity_type" jsonschema:"link or note"`
	EntityID   string          `json:"entity_id" jsonschema:"id of the link or note"`
	UserID     string          `json:"user_id,omitempty" jsonschema:"owner of the entity (defaults to the configured owner)"`
	Priority   int             `json:"priority,omitempty" jsonschema:"1 (lowest) to 10 (highest), default 5"`
	Payload    json.RawMessage `json:"payload,omitempty" jsonschema:"task specific options"`
}

// TaskOutput is a task as returned by the task tools.
type TaskOutput struct {
	ID           string `json:"id"`
	TaskType     string `json:"task_type"`
	EntityType   string `json:"entity_type"`
	EntityID     string `json:"entity_id"`
	Status       string `json:"status"`
	Priority     int    `json:"priority"`
	RetryCount   int    `json:"retry_count"`
	ErrorMessage string `json:"error_message,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// CreateTaskOutput is the output schema for the create_task tool.
type CreateTaskOutput struct {
	Task    TaskOutput `json:"task"`
	Created bool       `json:"created"`
}

// ListTasksInput is the input schema for the list_tasks tool.
type ListTasksInput struct {
	UserID   string   `json:"user_id,omitempty" jsonschema:"owner of the tasks (defaults to the configured owner)"`
	EntityID string   `json:"entity_id,omitempty" jsonschema:"only tasks for this link or note"`
	Statuses []string `json:"statuses,omitempty" jsonschema:"any of pending, processing, completed, failed, cancelled"`
	Limit    int      `json:"limit,omitempty" jsonschema:"maximum number of tasks to return (default 10, max 100)"`
}

// ListTasksOutput is the output schema for the list_tasks tool.
type ListTasksOutput struct {
	Tasks []TaskOutput `json:"tasks"`
	Count int          `json:"count"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Search saved links and notes by keywords and meaning",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "semantic_search",
		Description: "Find saved links and notes by embedding similarity alone",
	}, s.handleSemanticSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "create_task",
		Description: "Queue a background indexing task for a link or note",
	}, s.handleCreateTask)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_tasks",
		Description: "List indexing tasks, newest first",
	}, s.handleListTasks)
}

func (s *Server) owner(userID string) (string, error) {
	if userID != "" {
		return userID, nil
	}
	if s.ports.DefaultOwner != "" {
		return s.ports.DefaultOwner, nil
	}
	return "", fmt.Errorf("%w: user_id is required", domain.ErrInvalidInput)
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return limit
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	owner, err := s.owner(input.UserID)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	opts := domain.SearchOptions{Limit: limitOrDefault(input.Limit)}
	results, intent, err := s.ports.Search.Search(ctx, owner, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}
	if intent != nil {
		output.Intent = string(intent.Kind)
	}
	for i := range results {
		r := &results[i]
		out := SearchResultOutput{
			ID:       r.ItemID(),
			Type:     string(r.Type),
			Score:    r.CombinedScore,
			Keyword:  r.KeywordScore,
			Semantic: r.SemanticScore,
		}
		switch {
		case r.Link != nil:
			out.Title = r.Link.DisplayTitle()
			out.URL = r.Link.URL
		case r.Note != nil:
			out.Title = r.Note.Title
		}
		for _, m := range r.Matches {
			if m.Excerpt != "" {
				out.Excerpt = m.Excerpt
				break
			}
		}
		output.Results[i] = out
	}

	return nil, output, nil
}

// handleSemanticSearch handles the semantic_search tool invocation.
func (s *Server) handleSemanticSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SemanticSearchInput,
) (*mcp.CallToolResult, SemanticSearchOutput, error) {
	owner, err := s.owner(input.UserID)
	if err != nil {
		return nil, SemanticSearchOutput{}, err
	}

	results, err := s.ports.Search.SemanticSearch(ctx, owner, input.Query, domain.SemanticSearchOptions{
		Limit:     limitOrDefault(input.Limit),
		Threshold: input.Threshold,
	})
	if err != nil {
		return nil, SemanticSearchOutput{}, err
	}

	output := SemanticSearchOutput{
		Results: make([]SemanticResultOutput, len(results)),
		Count:   len(results),
	}
	for i := range results {
		r := &results[i]
		out := SemanticResultOutput{
			ID:         r.ItemID(),
			Type:       string(r.Type),
			Similarity: r.Similarity,
			ChunkText:  r.ChunkText,
		}
		if r.Link != nil {
			out.Title = r.Link.DisplayTitle()
		} else if r.Note != nil {
			out.Title = r.Note.Title
		}
		output.Results[i] = out
	}
	return nil, output, nil
}

// handleCreateTask handles the create_task tool invocation.
func (s *Server) handleCreateTask(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CreateTaskInput,
) (*mcp.CallToolResult, CreateTaskOutput, error) {
	owner, err := s.owner(input.UserID)
	if err != nil {
		return nil, CreateTaskOutput{}, err
	}

	task, created, err := s.ports.Tasks.CreateTask(ctx, domain.TaskRequest{
		OwnerID:    owner,
		Type:       domain.TaskType(input.TaskType),
		EntityType: domain.EntityType(input.EntityType),
		EntityID:   input.EntityID,
		Priority:   input.Priority,
		Payload:    input.Payload,
	})
	if err != nil {
		return nil, CreateTaskOutput{}, err
	}
	return nil, CreateTaskOutput{Task: taskOutput(task), Created: created}, nil
}

// handleListTasks handles the list_tasks tool invocation.
func (s *Server) handleListTasks(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListTasksInput,
) (*mcp.CallToolResult, ListTasksOutput, error) {
	owner, err := s.owner(input.UserID)
	if err != nil {
		return nil, ListTasksOutput{}, err
	}

	filter := domain.TaskFilter{
		OwnerID:  owner,
		EntityID: input.EntityID,
		Limit:    limitOrDefault(input.Limit),
	}
	for _, st := range input.Statuses {
		filter.Statuses = append(filter.Statuses, domain.TaskStatus(st))
	}

	tasks, err := s.ports.Tasks.ListTasks(ctx, filter)
	if err != nil {
		return nil, ListTasksOutput{}, err
	}

	output := ListTasksOutput{
		Tasks: make([]TaskOutput, len(tasks)),
		Count: len(tasks),
	}
	for i := range tasks {
		output.Tasks[i] = taskOutput(&tasks[i])
	}
	return nil, output, nil
}

func taskOutput(t *domain.Task) TaskOutput {
	return TaskOutput{
		ID:           t.ID,
		TaskType:     string(t.Type),
		EntityType:   string(t.EntityType),
		EntityID:     t.EntityID,
		Status:       string(t.Status),
		Priority:     t.Priority,
		RetryCount:   t.RetryCount,
		ErrorMessage: t.ErrorMessage,
		CreatedAt:    t.CreatedAt.Format(time.RFC3339),
	}
}
