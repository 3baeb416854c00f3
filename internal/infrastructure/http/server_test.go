package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskloop/taskloop/internal/auth"
)

const testSecret = "test-secret"

func signToken(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func newTestServer(t *testing.T, internalHandler http.Handler) http.Handler {
	t.Helper()

	api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"user_id":"` + chi.URLParam(r, "user_id") + `"}`))
	})

	srv := NewAPIServer(api, internalHandler, auth.NewTokenValidator(testSecret), ServerConfig{
		MaxBodyBytes: 64,
	})
	return srv.Handler()
}

func TestHealthNeedsNoAuth(t *testing.T) {
	h := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAPIRequiresBearerToken(t *testing.T) {
	h := newTestServer(t, nil)

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{name: "missing header", header: "", code: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", code: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer not-a-jwt", code: http.StatusUnauthorized},
		{name: "token for another user", header: "Bearer " + signToken(t, "user-2"), code: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/user-1/tasks", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.code, rec.Code)
			assert.Contains(t, rec.Body.String(), `"detail"`)
		})
	}
}

func TestAPIPassesMatchingToken(t *testing.T) {
	h := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/user-1/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "user-1"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":"user-1"}`, rec.Body.String())
}

func TestOversizedBodyRejected(t *testing.T) {
	h := newTestServer(t, nil)

	body := strings.NewReader(strings.Repeat("x", 128))
	req := httptest.NewRequest(http.MethodPost, "/api/user-1/tasks", body)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "user-1"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), `"detail"`)
}

func TestInternalMountSkipsAuth(t *testing.T) {
	internal := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := newTestServer(t, internal)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/internal/tasks", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestInternalMountAbsentWhenNil(t *testing.T) {
	h := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/internal/tasks", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
