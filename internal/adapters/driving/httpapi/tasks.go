package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/lo"

	"github.com/custodia-labs/stash/internal/core/domain"
)

// defaultRunMaxTasks bounds POST /tasks/run when maxTasks is omitted.
const defaultRunMaxTasks = 10

type createTaskRequest struct {
	UserID     string          `json:"userId"`
	TaskType   string          `json:"taskType"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Priority   int             `json:"priority,omitempty"`
	MaxRetries *int            `json:"maxRetries,omitempty"`
}

type taskResponse struct {
	Task    *domain.Task `json:"task"`
	Created bool         `json:"created"`
}

type tasksResponse struct {
	Tasks []domain.Task `json:"tasks"`
}

type runTasksRequest struct {
	MaxTasks int    `json:"maxTasks,omitempty"`
	UserID   string `json:"userId,omitempty"`
}

type runTasksResponse struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	TaskIDs   struct {
		Processed []string `json:"processed"`
		Failed    []string `json:"failed"`
	} `json:"taskIds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	for _, f := range [][2]string{
		{"userId", req.UserID},
		{"taskType", req.TaskType},
		{"entityType", req.EntityType},
		{"entityId", req.EntityID},
	} {
		if err := required(f[0], f[1]); err != nil {
			writeError(w, err)
			return
		}
	}

	task, created, err := s.ports.Tasks.CreateTask(r.Context(), domain.TaskRequest{
		OwnerID:    req.UserID,
		Type:       domain.TaskType(req.TaskType),
		EntityType: domain.EntityType(req.EntityType),
		EntityID:   req.EntityID,
		Payload:    req.Payload,
		Priority:   req.Priority,
		MaxRetries: req.MaxRetries,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskResponse{Task: task, Created: created})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if err := required("userId", q.Get("userId")); err != nil {
		writeError(w, err)
		return
	}

	filter := domain.TaskFilter{
		ID:         q.Get("id"),
		OwnerID:    q.Get("userId"),
		EntityID:   q.Get("entityId"),
		EntityType: domain.EntityType(q.Get("entityType")),
	}
	if status := q.Get("status"); status != "" {
		parts := lo.Compact(lo.Map(strings.Split(status, ","), func(s string, _ int) string {
			return strings.TrimSpace(s)
		}))
		filter.Statuses = lo.Map(parts, func(s string, _ int) domain.TaskStatus {
			return domain.TaskStatus(s)
		})
	}

	tasks, err := s.ports.Tasks.ListTasks(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	writeJSON(w, http.StatusOK, tasksResponse{Tasks: tasks})
}

func (s *Server) handleRunTasks(w http.ResponseWriter, r *http.Request) {
	var req runTasksRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.MaxTasks <= 0 {
		req.MaxTasks = defaultRunMaxTasks
	}

	summary, err := s.ports.Tasks.RunTasks(r.Context(), req.UserID, req.MaxTasks)
	if err != nil {
		writeError(w, err)
		return
	}

	var resp runTasksResponse
	resp.TaskIDs.Processed = lo.Ternary(summary.Processed == nil, []string{}, summary.Processed)
	resp.TaskIDs.Failed = lo.Ternary(summary.Failed == nil, []string{}, summary.Failed)
	resp.Processed = len(resp.TaskIDs.Processed)
	resp.Failed = len(resp.TaskIDs.Failed)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.ports.Tasks.CancelTask(r.Context(), id); err != nil {
		writeError(w, fmt.Errorf("cancel task %s: %w", id, err))
		return
	}
	task, err := s.ports.Tasks.GetTask(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskResponse{Task: task})
}
