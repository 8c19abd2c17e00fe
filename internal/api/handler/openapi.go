package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"sigs.k8s.io/yaml"

	"github.com/onescheduler/dashboard/internal/api/middleware"
	"github.com/onescheduler/dashboard/internal/api/response"
)

// OpenAPIHandler serves the API description as JSON, stamped with the
// running server's version.
type OpenAPIHandler struct {
	rawYAML []byte
	version string

	once sync.Once
	doc  []byte
	err  error
}

// NewOpenAPIHandler creates a handler for yamlSpec. A non-empty version
// replaces info.version in the served document.
func NewOpenAPIHandler(yamlSpec []byte, version string) *OpenAPIHandler {
	return &OpenAPIHandler{rawYAML: yamlSpec, version: version}
}

// ServeHTTP handles GET /openapi.json. The document is built on first use.
func (h *OpenAPIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.once.Do(func() {
		h.doc, h.err = h.build()
	})

	if h.err != nil {
		slog.Error("failed to build OpenAPI document", "error", h.err)
		requestID := middleware.GetRequestID(r.Context())
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to convert OpenAPI spec", requestID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(h.doc); err != nil {
		slog.Error("failed to write OpenAPI spec response", "error", err)
	}
}

func (h *OpenAPIHandler) build() ([]byte, error) {
	raw, err := yaml.YAMLToJSON(h.rawYAML)
	if err != nil {
		return nil, fmt.Errorf("converting YAML: %w", err)
	}
	if h.version == "" {
		return raw, nil
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	info, ok := doc["info"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("document has no info object")
	}
	info["version"] = h.version

	return json.Marshal(doc)
}
