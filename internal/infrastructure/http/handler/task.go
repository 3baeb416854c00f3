package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taskloop/taskloop/internal/application/reminder"
	"github.com/taskloop/taskloop/internal/application/task"
	"github.com/taskloop/taskloop/internal/domain"
	"github.com/taskloop/taskloop/internal/infrastructure/http/response"
)

// TaskHandler adapts HTTP requests to the task and reminder services.
type TaskHandler struct {
	taskService     *task.Service
	reminderService *reminder.Service
}

// NewTaskHandler creates a new HTTP API handler.
func NewTaskHandler(taskService *task.Service, reminderService *reminder.Service) *TaskHandler {
	return &TaskHandler{
		taskService:     taskService,
		reminderService: reminderService,
	}
}

// Routes returns the per-user API routes, mounted under /api/{user_id}.
func (h *TaskHandler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Post("/tasks", h.CreateTask)
	r.Get("/tasks", h.ListTasks)
	r.Get("/tasks/{task_id}", h.GetTask)
	r.Put("/tasks/{task_id}", h.UpdateTask)
	r.Patch("/tasks/{task_id}/complete", h.ToggleComplete)
	r.Delete("/tasks/{task_id}", h.DeleteTask)

	r.Post("/tasks/{task_id}/reminders", h.CreateReminder)
	r.Get("/tasks/{task_id}/reminders", h.ListReminders)
	r.Delete("/tasks/{task_id}/reminders/{reminder_id}", h.DeleteReminder)

	return r
}

// CreateTaskRequest is the POST /tasks body.
type CreateTaskRequest struct {
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Priority       *string    `json:"priority"`
	Tags           []string   `json:"tags"`
	DueAt          *time.Time `json:"due_at"`
	IsRecurring    bool       `json:"is_recurring"`
	RecurrenceRule *string    `json:"recurrence_rule"`
}

// CreateTask handles POST /tasks.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON")
		return
	}

	params := domain.CreateTaskParams{
		UserID:      chi.URLParam(r, "user_id"),
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
		DueAt:       req.DueAt,
		IsRecurring: req.IsRecurring,
	}

	if req.Priority != nil {
		priority, err := domain.NewTaskPriority(*req.Priority)
		if err != nil {
			response.FromDomainError(w, r, err)
			return
		}
		params.Priority = &priority
	}
	if req.RecurrenceRule != nil {
		rule, err := domain.NewRecurrenceRule(*req.RecurrenceRule)
		if err != nil {
			response.FromDomainError(w, r, err)
			return
		}
		params.RecurrenceRule = &rule
	}

	created, err := h.taskService.CreateTask(r.Context(), params)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "task created via HTTP",
		"task_id", created.ID,
		"user_id", created.UserID)
	response.Created(w, mapTask(created))
}

// ListTasks handles GET /tasks with filter, sort and search query params.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := domain.ListTasksParams{
		UserID:    chi.URLParam(r, "user_id"),
		Status:    q.Get("status"),
		Search:    q.Get("search"),
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	}

	if v := q.Get("priority"); v != "" {
		priority, err := domain.NewTaskPriority(v)
		if err != nil {
			response.FromDomainError(w, r, err)
			return
		}
		params.Priority = &priority
	}
	if tags, ok := q["tag"]; ok {
		params.Tags = tags
	}
	if v := q.Get("due_before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.BadRequest(w, "due_before must be RFC 3339")
			return
		}
		params.DueBefore = &t
	}
	if v := q.Get("due_after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.BadRequest(w, "due_after must be RFC 3339")
			return
		}
		params.DueAfter = &t
	}

	tasks, err := h.taskService.ListTasks(r.Context(), params)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.OK(w, mapTasks(tasks))
}

// GetTask handles GET /tasks/{task_id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.taskService.GetTask(r.Context(), chi.URLParam(r, "user_id"), chi.URLParam(r, "task_id"))
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.OK(w, mapTask(t))
}

// UpdateTaskRequest is the PUT /tasks/{task_id} body. Raw fields distinguish
// absent (leave unchanged) from null (clear).
type UpdateTaskRequest struct {
	Title          *string   `json:"title"`
	Description    *string   `json:"description"`
	Priority       optional  `json:"priority"`
	Tags           *[]string `json:"tags"`
	DueAt          optional  `json:"due_at"`
	IsRecurring    *bool     `json:"is_recurring"`
	RecurrenceRule *string   `json:"recurrence_rule"`
}

// UpdateTask handles PUT /tasks/{task_id} as a partial patch.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	var req UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON")
		return
	}

	params := domain.UpdateTaskParams{
		TaskID:      chi.URLParam(r, "task_id"),
		UserID:      chi.URLParam(r, "user_id"),
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
		IsRecurring: req.IsRecurring,
	}

	if len(req.Priority) > 0 {
		if isNull(req.Priority) {
			params.ClearPriority = true
		} else {
			var raw string
			if err := json.Unmarshal(req.Priority, &raw); err != nil {
				response.BadRequest(w, "priority must be a string")
				return
			}
			priority, err := domain.NewTaskPriority(raw)
			if err != nil {
				response.FromDomainError(w, r, err)
				return
			}
			params.Priority = &priority
		}
	}
	if len(req.DueAt) > 0 {
		if isNull(req.DueAt) {
			params.ClearDueAt = true
		} else {
			var t time.Time
			if err := json.Unmarshal(req.DueAt, &t); err != nil {
				response.BadRequest(w, "due_at must be RFC 3339")
				return
			}
			params.DueAt = &t
		}
	}
	if req.RecurrenceRule != nil {
		rule, err := domain.NewRecurrenceRule(*req.RecurrenceRule)
		if err != nil {
			response.FromDomainError(w, r, err)
			return
		}
		params.RecurrenceRule = &rule
	}

	updated, err := h.taskService.UpdateTask(r.Context(), params)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "task updated via HTTP",
		"task_id", updated.ID,
		"user_id", updated.UserID)
	response.OK(w, mapTask(updated))
}

// ToggleComplete handles PATCH /tasks/{task_id}/complete.
func (h *TaskHandler) ToggleComplete(w http.ResponseWriter, r *http.Request) {
	t, err := h.taskService.ToggleComplete(r.Context(), chi.URLParam(r, "user_id"), chi.URLParam(r, "task_id"))
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.OK(w, mapTask(t))
}

// DeleteTask handles DELETE /tasks/{task_id}.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	taskID := chi.URLParam(r, "task_id")

	if err := h.taskService.DeleteTask(r.Context(), userID, taskID); err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "task deleted via HTTP",
		"task_id", taskID,
		"user_id", userID)
	response.OK(w, map[string]string{"status": "deleted"})
}
