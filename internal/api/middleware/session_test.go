package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onescheduler/dashboard/internal/api/middleware"
	"github.com/onescheduler/dashboard/internal/identity"
)

type mockAuthenticator struct {
	authenticateFn func(ctx context.Context, token string) (*identity.Principal, error)
	calls          int
	lastToken      string
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, token string) (*identity.Principal, error) {
	m.calls++
	m.lastToken = token
	return m.authenticateFn(ctx, token)
}

func authenticatorReturning(p *identity.Principal, err error) *mockAuthenticator {
	return &mockAuthenticator{authenticateFn: func(context.Context, string) (*identity.Principal, error) {
		return p, err
	}}
}

// --- SessionGate Tests ---

func TestSessionGate_AdmitsSignedInCookie(t *testing.T) {
	// Arrange
	p := testPrincipal()
	auth := authenticatorReturning(p, nil)
	var got *identity.Principal
	handler := middleware.SessionGate(auth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = middleware.GetPrincipal(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/lincoln-high/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: "cookie-token"})
	w := httptest.NewRecorder()

	// Act
	handler.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Same(t, p, got)
	assert.Equal(t, "cookie-token", auth.lastToken)
	assert.Equal(t, 1, auth.calls, "identity is checked once per request")
}

func TestSessionGate_AcceptsBearerToken(t *testing.T) {
	auth := authenticatorReturning(testPrincipal(), nil)
	handler := middleware.SessionGate(auth)(okHandler())
	req := httptest.NewRequest(http.MethodPost, "/tenant/setup/create", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "header-token", auth.lastToken)
}

func TestSessionGate_AnonymousNavigationRedirectsToLogin(t *testing.T) {
	// Arrange
	auth := authenticatorReturning(nil, nil)
	handler := middleware.SessionGate(auth)(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/lincoln-high/dashboard?tab=week", nil)
	w := httptest.NewRecorder()

	// Act
	handler.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login?from=%2Flincoln-high%2Fdashboard%3Ftab%3Dweek", w.Header().Get("Location"))
	assert.Equal(t, "", auth.lastToken)
}

func TestSessionGate_AnonymousPostGets401(t *testing.T) {
	auth := authenticatorReturning(nil, nil)
	handler := middleware.SessionGate(auth)(okHandler())
	req := httptest.NewRequest(http.MethodPost, "/tenant/setup/join", nil)
	req.Header.Set("X-Request-ID", "req-anon")
	w := httptest.NewRecorder()
	handler = middleware.RequestID(handler)

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	env := parseErrorResponse(t, w)
	apiErr := env["error"].(map[string]interface{})
	assert.Equal(t, "UNAUTHORIZED", apiErr["code"])
	meta := env["meta"].(map[string]interface{})
	assert.Equal(t, "req-anon", meta["requestId"])
}

func TestSessionGate_IdentityErrorTreatedAsSignedOut(t *testing.T) {
	auth := authenticatorReturning(nil, errors.New("connection refused"))
	handler := middleware.SessionGate(auth)(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login?from=%2Fdashboard", w.Header().Get("Location"))
}

func TestSessionGate_CancelledRequestWritesNothing(t *testing.T) {
	// Arrange: the client goes away while the identity check is running
	ctx, cancel := context.WithCancel(context.Background())
	auth := &mockAuthenticator{authenticateFn: func(context.Context, string) (*identity.Principal, error) {
		cancel()
		return nil, nil
	}}
	nextCalled := false
	handler := middleware.SessionGate(auth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
	}))
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	// Act
	handler.ServeHTTP(w, req)

	// Assert
	assert.False(t, nextCalled)
	assert.False(t, w.Flushed)
	assert.Empty(t, w.Header().Get("Location"))
	assert.Equal(t, 0, w.Body.Len())
}

func TestGetPrincipal_EmptyContext(t *testing.T) {
	assert.Nil(t, middleware.GetPrincipal(context.Background()))

	p := testPrincipal()
	require.Same(t, p, middleware.GetPrincipal(middleware.WithPrincipal(context.Background(), p)))
}

func TestLoginURL(t *testing.T) {
	assert.Equal(t, "/login", middleware.LoginURL(""))
	assert.Equal(t, "/login", middleware.LoginURL("/"))
	assert.Equal(t, "/login?from=%2Ftenant%2Fsetup", middleware.LoginURL("/tenant/setup"))
}
