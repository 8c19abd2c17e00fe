package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/onescheduler/dashboard/internal/api/handler"
)

// mockDBPinger implements handler.DBPinger for testing.
type mockDBPinger struct {
	err error
}

func (m *mockDBPinger) Ping(_ context.Context) error {
	return m.err
}

func TestHealthHandler_Healthy(t *testing.T) {
	// Arrange
	h := handler.NewHealthHandler(&mockDBPinger{}, "0.1.0")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	// Act
	h.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	env := parseEnvelope(t, w)
	data := env["data"].(map[string]interface{})
	assert.Equal(t, "healthy", data["status"])
	assert.Equal(t, "0.1.0", data["version"])
	db := data["database"].(map[string]interface{})
	assert.Equal(t, true, db["connected"])
	assert.Nil(t, env["error"])
	assert.NotNil(t, env["meta"])
}

func TestHealthHandler_Degraded(t *testing.T) {
	h := handler.NewHealthHandler(&mockDBPinger{err: errors.New("connection refused")}, "0.1.0")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	data := parseEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "degraded", data["status"])
	db := data["database"].(map[string]interface{})
	assert.Equal(t, false, db["connected"])
}

func TestHealthHandler_NoDatabase(t *testing.T) {
	h := handler.NewHealthHandler(nil, "dev")
	w := httptest.NewRecorder()

	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	data := parseEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "degraded", data["status"])
}
