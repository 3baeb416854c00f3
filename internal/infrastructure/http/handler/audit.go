package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taskloop/taskloop/internal/application/audit"
	"github.com/taskloop/taskloop/internal/domain"
	"github.com/taskloop/taskloop/internal/infrastructure/http/response"
)

// AuditHandler serves the audit ledger's read side.
type AuditHandler struct {
	auditService *audit.Service
}

// NewAuditHandler creates the audit query handler.
func NewAuditHandler(auditService *audit.Service) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// Routes returns the per-user audit routes, mounted under /api/{user_id}.
func (h *AuditHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/audit", h.ListAudit)
	return r
}

// AuditEntryResponse is the HTTP representation of one ledger entry.
type AuditEntryResponse struct {
	ID        string          `json:"id"`
	EventID   string          `json:"event_id"`
	TaskID    string          `json:"task_id"`
	EventType string          `json:"event_type"`
	EventData json.RawMessage `json:"event_data"`
	Timestamp time.Time       `json:"timestamp"`
}

// ListAudit handles GET /audit with task, event_type, limit and offset params.
func (h *AuditHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := domain.ListAuditParams{
		UserID: chi.URLParam(r, "user_id"),
	}

	if v := q.Get("task"); v != "" {
		params.TaskID = &v
	}
	if v := q.Get("event_type"); v != "" {
		eventType, err := domain.NewEventType(v)
		if err != nil {
			response.BadRequest(w, "invalid event_type")
			return
		}
		params.EventType = &eventType
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			response.BadRequest(w, "limit must be a non-negative integer")
			return
		}
		params.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			response.BadRequest(w, "offset must be a non-negative integer")
			return
		}
		params.Offset = offset
	}

	entries, err := h.auditService.Query(r.Context(), params)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	out := make([]AuditEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = AuditEntryResponse{
			ID:        e.ID,
			EventID:   e.EventID,
			TaskID:    e.TaskID,
			EventType: string(e.EventType),
			EventData: json.RawMessage(e.EventData),
			Timestamp: e.Timestamp,
		}
	}
	response.OK(w, out)
}
