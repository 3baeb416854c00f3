package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskloop/taskloop/internal/application/audit"
	"github.com/taskloop/taskloop/internal/domain"
)

type memAuditRepo struct {
	entries    []domain.AuditEntry
	lastParams domain.ListAuditParams
}

func (m *memAuditRepo) Apply(_ context.Context, entry *domain.AuditEntry) error {
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memAuditRepo) FindEntries(_ context.Context, params domain.ListAuditParams) ([]domain.AuditEntry, error) {
	m.lastParams = params
	return m.entries, nil
}

func newAuditRouter(repo *memAuditRepo) http.Handler {
	h := NewAuditHandler(audit.NewService(repo))
	r := chi.NewRouter()
	r.Route("/api/{user_id}", func(r chi.Router) {
		r.Mount("/", h.Routes())
	})
	return r
}

func TestListAuditEndpoint(t *testing.T) {
	repo := &memAuditRepo{entries: []domain.AuditEntry{{
		ID:        "a1",
		EventID:   "e1",
		UserID:    "user-1",
		TaskID:    "t1",
		EventType: domain.EventTypeCreated,
		EventData: []byte(`{"id":"t1"}`),
		Timestamp: time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC),
	}}}
	h := newAuditRouter(repo)

	rec := doJSON(t, h, http.MethodGet, "/api/user-1/audit?task=t1&event_type=created&limit=5&offset=10", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out []AuditEntryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "e1", out[0].EventID)
	assert.Equal(t, "created", out[0].EventType)
	assert.JSONEq(t, `{"id":"t1"}`, string(out[0].EventData))

	assert.Equal(t, "user-1", repo.lastParams.UserID)
	require.NotNil(t, repo.lastParams.TaskID)
	assert.Equal(t, "t1", *repo.lastParams.TaskID)
	assert.Equal(t, 5, repo.lastParams.Limit)
	assert.Equal(t, 10, repo.lastParams.Offset)
}

func TestListAuditEndpointValidatesParams(t *testing.T) {
	h := newAuditRouter(&memAuditRepo{})

	rec := doJSON(t, h, http.MethodGet, "/api/user-1/audit?event_type=archived", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/user-1/audit?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/user-1/audit?offset=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
