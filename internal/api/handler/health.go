package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/onescheduler/dashboard/internal/api/middleware"
	"github.com/onescheduler/dashboard/internal/api/response"
)

// DBPinger checks that the database answers.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles the GET /health endpoint.
type HealthHandler struct {
	db      DBPinger
	version string
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db DBPinger, version string) *HealthHandler {
	return &HealthHandler{
		db:      db,
		version: version,
	}
}

type databaseStatus struct {
	Connected bool `json:"connected"`
}

type healthData struct {
	Status   string         `json:"status"`
	Version  string         `json:"version"`
	Database databaseStatus `json:"database"`
}

// ServeHTTP handles the health check request. A failed ping degrades the
// status but still answers 200 so the process is not restarted for it.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	status := "healthy"
	connected := true
	if h.db == nil {
		connected = false
		status = "degraded"
	} else if err := h.db.Ping(r.Context()); err != nil {
		slog.Warn("database ping failed", "error", err, "requestId", requestID)
		connected = false
		status = "degraded"
	}

	response.Success(w, http.StatusOK, healthData{
		Status:   status,
		Version:  h.version,
		Database: databaseStatus{Connected: connected},
	}, requestID)
}
