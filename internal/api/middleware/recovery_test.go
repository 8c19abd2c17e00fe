package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onescheduler/dashboard/internal/api/middleware"
)

func TestRecovery_NoPanic(t *testing.T) {
	// Arrange
	handler := middleware.Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	// Act
	handler.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecovery_HandlesPanicWithRequestID(t *testing.T) {
	// Arrange: chain RequestID -> Recovery -> panicking handler
	panicker := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	handler := middleware.RequestID(middleware.Recovery(panicker))
	req := httptest.NewRequest(http.MethodGet, "/lincoln-high/dashboard", nil)
	req.Header.Set("X-Request-ID", "req-panic")
	w := httptest.NewRecorder()

	// Act
	handler.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var env map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Nil(t, env["data"])

	apiErr := env["error"].(map[string]interface{})
	assert.Equal(t, "INTERNAL_ERROR", apiErr["code"])
	assert.Equal(t, "An unexpected error occurred", apiErr["message"])

	meta := env["meta"].(map[string]interface{})
	assert.Equal(t, "req-panic", meta["requestId"])
}

func TestRecovery_RepanicsAbortHandler(t *testing.T) {
	handler := middleware.Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(w, req)
	})
}
