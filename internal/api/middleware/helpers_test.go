package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/onescheduler/dashboard/internal/identity"
	"github.com/onescheduler/dashboard/internal/preference"
	"github.com/onescheduler/dashboard/internal/tenant"
	"github.com/onescheduler/dashboard/internal/tenantctx"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func parseErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var env map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func testPrincipal() *identity.Principal {
	return &identity.Principal{
		User:      &identity.User{ID: uuid.New(), Email: "principal@lincoln.edu"},
		SessionID: uuid.New(),
		Token:     "session-token",
	}
}

func membership(slug string, role tenant.Role) tenant.Membership {
	return tenant.Membership{
		ID:   uuid.New(),
		Role: role,
		Tenant: tenant.Tenant{
			ID:   uuid.New(),
			Name: slug,
			Slug: slug,
			Code: "ABCD1234",
		},
	}
}

// --- Tenant context stubs ---

type stubUsers struct {
	user *identity.User
}

func (s *stubUsers) CurrentUser(context.Context, string) (*identity.User, error) {
	return s.user, nil
}

type stubMemberships struct {
	memberships []tenant.Membership
	err         error
}

func (s *stubMemberships) GetUserTenants(context.Context, uuid.UUID) ([]tenant.Membership, error) {
	return s.memberships, s.err
}

type stubContexts struct {
	c *tenantctx.Context
}

func (s *stubContexts) Acquire(context.Context, *identity.Principal) *tenantctx.Context {
	return s.c
}

// loadedContext returns a Context for p that has been refreshed against ms.
func loadedContext(t *testing.T, p *identity.Principal, ms *stubMemberships) *tenantctx.Context {
	t.Helper()
	c := tenantctx.New(tenantctx.Sources{
		Users:       &stubUsers{user: p.User},
		Memberships: ms,
		Preferences: preference.NewMemoryStore(),
	}, p)
	require.NoError(t, c.Refresh(context.Background()))
	return c
}
