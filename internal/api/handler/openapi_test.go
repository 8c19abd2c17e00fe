package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	specpkg "github.com/onescheduler/dashboard/api"
	"github.com/onescheduler/dashboard/internal/api/handler"
)

func TestOpenAPIHandler_ReturnsJSON(t *testing.T) {
	t.Parallel()

	yamlSpec := []byte(`openapi: "3.0.3"
info:
  title: Test API
  version: "1.0.0"
paths: {}
`)
	h := handler.NewOpenAPIHandler(yamlSpec, "")
	req := httptest.NewRequest(http.MethodGet, "/openapi.json", nil)
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result), "response should be valid JSON")
	assert.Equal(t, "3.0.3", result["openapi"])
	info := result["info"].(map[string]interface{})
	assert.Equal(t, "Test API", info["title"])
}

func TestOpenAPIHandler_InvalidYAML_Returns500(t *testing.T) {
	t.Parallel()

	h := handler.NewOpenAPIHandler([]byte(`{{{not yaml at all}}}`), "")
	req := httptest.NewRequest(http.MethodGet, "/openapi.json", nil)
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", errorCode(t, w))
}

func TestOpenAPIHandler_EmbeddedSpec(t *testing.T) {
	t.Parallel()

	h := handler.NewOpenAPIHandler(specpkg.OpenAPISpec, "2026.10.1")
	w := httptest.NewRecorder()

	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	paths := result["paths"].(map[string]interface{})
	assert.Contains(t, paths, "/{tenantSlug}/dashboard")
	assert.Contains(t, paths, "/tenant/setup/create")
	info := result["info"].(map[string]interface{})
	assert.Equal(t, "2026.10.1", info["version"])
	assert.Equal(t, "One Scheduler Dashboard API", info["title"])
}

func TestOpenAPIHandler_KeepsDocumentVersionWhenUnset(t *testing.T) {
	t.Parallel()

	h := handler.NewOpenAPIHandler(specpkg.OpenAPISpec, "")
	w := httptest.NewRecorder()

	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "0.1.0", result["info"].(map[string]interface{})["version"])
}

func TestOpenAPIHandler_MissingInfoWithVersion_Returns500(t *testing.T) {
	t.Parallel()

	h := handler.NewOpenAPIHandler([]byte("openapi: \"3.0.3\"\npaths: {}\n"), "1.2.3")
	w := httptest.NewRecorder()

	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", errorCode(t, w))
}
