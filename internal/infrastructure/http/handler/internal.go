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

// InternalHandler serves the mesh-internal surface: the scheduler's reminder
// callback and service-to-service task creation. These routes are not
// user-authenticated and must never be exposed publicly.
type InternalHandler struct {
	taskService     *task.Service
	reminderService *reminder.Service
}

// NewInternalHandler creates the internal API handler.
func NewInternalHandler(taskService *task.Service, reminderService *reminder.Service) *InternalHandler {
	return &InternalHandler{
		taskService:     taskService,
		reminderService: reminderService,
	}
}

// Routes returns the internal routes, mounted under /internal.
func (h *InternalHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/jobs/reminder-trigger", h.ReminderTrigger)
	r.Post("/tasks", h.CreateTask)
	return r
}

// ReminderTrigger handles the scheduler's fire callback. The scheduler
// redelivers on non-2xx, so only transient failures may return an error
// status; a reminder already gone is acknowledged as success.
func (h *InternalHandler) ReminderTrigger(w http.ResponseWriter, r *http.Request) {
	var payload reminder.TriggerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.BadRequest(w, "invalid JSON")
		return
	}

	if err := h.reminderService.HandleTrigger(r.Context(), payload); err != nil {
		slog.ErrorContext(r.Context(), "reminder trigger failed",
			"reminder_id", payload.ReminderID,
			"error", err)
		response.FromDomainError(w, r, err)
		return
	}
	response.OK(w, map[string]string{"status": "ok"})
}

// internalCreateTaskRequest mirrors the user-facing create body plus the
// user id, which internal callers carry in the body instead of the path.
type internalCreateTaskRequest struct {
	UserID         string     `json:"user_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Priority       *string    `json:"priority"`
	Tags           []string   `json:"tags"`
	DueAt          *time.Time `json:"due_at"`
	IsRecurring    bool       `json:"is_recurring"`
	RecurrenceRule *string    `json:"recurrence_rule"`
}

// CreateTask handles POST /internal/tasks for service-to-service creation.
func (h *InternalHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req internalCreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON")
		return
	}
	if req.UserID == "" {
		response.BadRequest(w, "user_id is required")
		return
	}

	params := domain.CreateTaskParams{
		UserID:      req.UserID,
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

	slog.InfoContext(r.Context(), "task created via internal API",
		"task_id", created.ID,
		"user_id", created.UserID)
	response.Created(w, mapTask(created))
}
