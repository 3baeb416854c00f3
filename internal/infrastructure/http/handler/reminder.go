package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taskloop/taskloop/internal/infrastructure/http/response"
)

// CreateReminderRequest is the POST /tasks/{task_id}/reminders body.
type CreateReminderRequest struct {
	RemindAt time.Time `json:"remind_at"`
}

// CreateReminder handles POST /tasks/{task_id}/reminders.
func (h *TaskHandler) CreateReminder(w http.ResponseWriter, r *http.Request) {
	var req CreateReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON")
		return
	}
	if req.RemindAt.IsZero() {
		response.BadRequest(w, "remind_at is required")
		return
	}

	created, err := h.reminderService.CreateReminder(r.Context(),
		chi.URLParam(r, "user_id"), chi.URLParam(r, "task_id"), req.RemindAt)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "reminder created via HTTP",
		"reminder_id", created.ID,
		"task_id", created.TaskID)
	response.Created(w, mapReminder(created))
}

// ListReminders handles GET /tasks/{task_id}/reminders.
func (h *TaskHandler) ListReminders(w http.ResponseWriter, r *http.Request) {
	reminders, err := h.reminderService.ListReminders(r.Context(),
		chi.URLParam(r, "user_id"), chi.URLParam(r, "task_id"))
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.OK(w, mapReminders(reminders))
}

// DeleteReminder handles DELETE /tasks/{task_id}/reminders/{reminder_id}.
func (h *TaskHandler) DeleteReminder(w http.ResponseWriter, r *http.Request) {
	err := h.reminderService.DeleteReminder(r.Context(),
		chi.URLParam(r, "user_id"), chi.URLParam(r, "task_id"), chi.URLParam(r, "reminder_id"))
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.OK(w, map[string]string{"status": "deleted"})
}
