package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/onescheduler/dashboard/internal/api/middleware"
	"github.com/onescheduler/dashboard/internal/identity"
	"github.com/onescheduler/dashboard/internal/tenant"
)

func makeChiRequest(method, path string, body []byte, params map[string]string) (*http.Request, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()

	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	return req, w
}

// withPrincipal returns req as admitted by the session gate.
func withPrincipal(req *http.Request, p *identity.Principal) *http.Request {
	return req.WithContext(middleware.WithPrincipal(req.Context(), p))
}

func parseEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var env map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &env)
	require.NoError(t, err, "failed to parse response body")
	return env
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	apiErr, ok := parseEnvelope(t, w)["error"].(map[string]interface{})
	require.True(t, ok, "response should carry an error")
	return apiErr["code"].(string)
}

func samplePrincipal() *identity.Principal {
	return &identity.Principal{
		User:      &identity.User{ID: uuid.New(), Email: "ana@lincoln.edu", Provider: identity.ProviderEmail},
		SessionID: uuid.New(),
		Token:     "session-token",
	}
}

func sampleTenant(slug string) *tenant.Tenant {
	return &tenant.Tenant{ID: uuid.New(), Name: "Lincoln High", Slug: slug, Code: "ABCD1234"}
}

func sampleMembership(slug string, role tenant.Role) tenant.Membership {
	return tenant.Membership{ID: uuid.New(), Role: role, Tenant: *sampleTenant(slug)}
}
