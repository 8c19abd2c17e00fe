package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onescheduler/dashboard/internal/api/handler"
	"github.com/onescheduler/dashboard/internal/api/middleware"
	"github.com/onescheduler/dashboard/internal/identity"
)

type mockIdentity struct {
	signUpFn        func(ctx context.Context, email, password string) (*identity.User, string, error)
	signInFn        func(ctx context.Context, email, password string) (*identity.User, string, error)
	signOutFn       func(ctx context.Context, token string) error
	oauthURLFn      func(provider, from string) (string, error)
	completeOAuthFn func(ctx context.Context, code, state string) (*identity.User, string, string, error)
}

func (m *mockIdentity) Providers() []string {
	return []string{identity.ProviderEmail, identity.ProviderGoogle}
}

func (m *mockIdentity) SignUp(ctx context.Context, email, password string) (*identity.User, string, error) {
	return m.signUpFn(ctx, email, password)
}

func (m *mockIdentity) SignIn(ctx context.Context, email, password string) (*identity.User, string, error) {
	return m.signInFn(ctx, email, password)
}

func (m *mockIdentity) SignOut(ctx context.Context, token string) error {
	return m.signOutFn(ctx, token)
}

func (m *mockIdentity) OAuthURL(provider, from string) (string, error) {
	return m.oauthURLFn(provider, from)
}

func (m *mockIdentity) CompleteOAuth(ctx context.Context, code, state string) (*identity.User, string, string, error) {
	return m.completeOAuthFn(ctx, code, state)
}

var testCookie = handler.CookieOptions{Secure: true, TTL: time.Hour}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			return c
		}
	}
	return nil
}

// --- LoginView Tests ---

func TestLoginView_ListsProvidersAndSanitizesFrom(t *testing.T) {
	h := handler.NewAuthHandler(&mockIdentity{}, testCookie)
	req, w := makeChiRequest(http.MethodGet, "/login?from=https://evil.example/x&error=Session+expired", nil, nil)

	h.LoginView(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	data := parseEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, []interface{}{"email", "google"}, data["providers"])
	assert.Equal(t, "/dashboard", data["from"])
	assert.Equal(t, "Session expired", data["error"])
}

// --- Register Tests ---

func TestRegister_Success(t *testing.T) {
	// Arrange
	userID := uuid.New()
	svc := &mockIdentity{signUpFn: func(_ context.Context, email, password string) (*identity.User, string, error) {
		assert.Equal(t, "ana@lincoln.edu", email)
		assert.Equal(t, "Passw0rd", password)
		return &identity.User{ID: userID, Email: email, Provider: identity.ProviderEmail}, "new-token", nil
	}}
	h := handler.NewAuthHandler(svc, testCookie)
	body := mustJSON(t, map[string]string{"email": "ana@lincoln.edu", "password": "Passw0rd", "confirmPassword": "Passw0rd"})
	req, w := makeChiRequest(http.MethodPost, "/auth/register", body, nil)

	// Act
	h.Register(w, req)

	// Assert
	assert.Equal(t, http.StatusCreated, w.Code)
	data := parseEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "/tenant/setup", data["redirectTo"])
	user := data["user"].(map[string]interface{})
	assert.Equal(t, userID.String(), user["id"])

	c := sessionCookie(t, w)
	require.NotNil(t, c)
	assert.Equal(t, "new-token", c.Value)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, 3600, c.MaxAge)
}

func TestRegister_ValidationError(t *testing.T) {
	h := handler.NewAuthHandler(&mockIdentity{}, testCookie)
	body := mustJSON(t, map[string]string{"email": "ana@lincoln.edu", "password": "Passw0rd", "confirmPassword": "different1A"})
	req, w := makeChiRequest(http.MethodPost, "/auth/register", body, nil)

	h.Register(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	apiErr := parseEnvelope(t, w)["error"].(map[string]interface{})
	assert.Equal(t, "VALIDATION_ERROR", apiErr["code"])
	details := apiErr["details"].([]interface{})
	require.Len(t, details, 1)
	assert.Equal(t, "confirmPassword", details[0].(map[string]interface{})["field"])
	assert.Nil(t, sessionCookie(t, w))
}

func TestRegister_InvalidJSON(t *testing.T) {
	h := handler.NewAuthHandler(&mockIdentity{}, testCookie)
	req, w := makeChiRequest(http.MethodPost, "/auth/register", []byte("{"), nil)

	h.Register(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_JSON", errorCode(t, w))
}

func TestRegister_EmailTaken(t *testing.T) {
	svc := &mockIdentity{signUpFn: func(context.Context, string, string) (*identity.User, string, error) {
		return nil, "", identity.ErrEmailTaken
	}}
	h := handler.NewAuthHandler(svc, testCookie)
	body := mustJSON(t, map[string]string{"email": "ana@lincoln.edu", "password": "Passw0rd", "confirmPassword": "Passw0rd"})
	req, w := makeChiRequest(http.MethodPost, "/auth/register", body, nil)

	h.Register(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "EMAIL_TAKEN", errorCode(t, w))
}

// --- Login Tests ---

func TestLogin_ReturnsSafeFrom(t *testing.T) {
	svc := &mockIdentity{signInFn: func(_ context.Context, email, _ string) (*identity.User, string, error) {
		return &identity.User{ID: uuid.New(), Email: email}, "login-token", nil
	}}
	h := handler.NewAuthHandler(svc, testCookie)

	tests := []struct {
		from string
		want string
	}{
		{"/lincoln-high/dashboard", "/lincoln-high/dashboard"},
		{"", "/dashboard"},
		{"//evil.example", "/dashboard"},
		{"https://evil.example", "/dashboard"},
		{"/login", "/dashboard"},
	}
	for _, tt := range tests {
		t.Run(tt.from, func(t *testing.T) {
			body := mustJSON(t, map[string]string{"email": "ana@lincoln.edu", "password": "Passw0rd", "from": tt.from})
			req, w := makeChiRequest(http.MethodPost, "/auth/login", body, nil)

			h.Login(w, req)

			require.Equal(t, http.StatusOK, w.Code)
			data := parseEnvelope(t, w)["data"].(map[string]interface{})
			assert.Equal(t, tt.want, data["redirectTo"])
			assert.Equal(t, "login-token", sessionCookie(t, w).Value)
		})
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc := &mockIdentity{signInFn: func(context.Context, string, string) (*identity.User, string, error) {
		return nil, "", identity.ErrInvalidCredentials
	}}
	h := handler.NewAuthHandler(svc, testCookie)
	body := mustJSON(t, map[string]string{"email": "ana@lincoln.edu", "password": "wrong"})
	req, w := makeChiRequest(http.MethodPost, "/auth/login", body, nil)

	h.Login(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", errorCode(t, w))
}

func TestLogin_StoreFailure(t *testing.T) {
	svc := &mockIdentity{signInFn: func(context.Context, string, string) (*identity.User, string, error) {
		return nil, "", errors.New("connection refused")
	}}
	h := handler.NewAuthHandler(svc, testCookie)
	body := mustJSON(t, map[string]string{"email": "ana@lincoln.edu", "password": "Passw0rd"})
	req, w := makeChiRequest(http.MethodPost, "/auth/login", body, nil)

	h.Login(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// --- Logout Tests ---

func TestLogout_RevokesAndClearsCookie(t *testing.T) {
	var revoked string
	svc := &mockIdentity{signOutFn: func(_ context.Context, token string) error {
		revoked = token
		return nil
	}}
	h := handler.NewAuthHandler(svc, testCookie)
	req, w := makeChiRequest(http.MethodPost, "/auth/logout", nil, nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: "session-token"})

	h.Logout(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "session-token", revoked)
	c := sessionCookie(t, w)
	require.NotNil(t, c)
	assert.Equal(t, "", c.Value)
	assert.Less(t, c.MaxAge, 0)
	data := parseEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "/login", data["redirectTo"])
}

func TestLogout_WithoutSession(t *testing.T) {
	svc := &mockIdentity{signOutFn: func(context.Context, string) error {
		t.Fatal("sign out must not be called without a token")
		return nil
	}}
	h := handler.NewAuthHandler(svc, testCookie)
	req, w := makeChiRequest(http.MethodPost, "/auth/logout", nil, nil)

	h.Logout(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

// --- OAuth Tests ---

func TestOAuthStart_RedirectsToProvider(t *testing.T) {
	svc := &mockIdentity{oauthURLFn: func(provider, from string) (string, error) {
		assert.Equal(t, "google", provider)
		assert.Equal(t, "/lincoln-high/dashboard", from)
		return "https://accounts.example/auth?state=abc", nil
	}}
	h := handler.NewAuthHandler(svc, testCookie)
	req, w := makeChiRequest(http.MethodGet, "/auth/oauth/google?from=%2Flincoln-high%2Fdashboard", nil, map[string]string{"provider": "google"})

	h.OAuthStart(w, req)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "https://accounts.example/auth?state=abc", w.Header().Get("Location"))
}

func TestOAuthStart_UnknownProvider(t *testing.T) {
	svc := &mockIdentity{oauthURLFn: func(string, string) (string, error) {
		return "", identity.ErrUnknownProvider
	}}
	h := handler.NewAuthHandler(svc, testCookie)
	req, w := makeChiRequest(http.MethodGet, "/auth/oauth/github", nil, map[string]string{"provider": "github"})

	h.OAuthStart(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "UNKNOWN_PROVIDER", errorCode(t, w))
}

func TestCallback_SetsSessionAndReturnsToFrom(t *testing.T) {
	svc := &mockIdentity{completeOAuthFn: func(_ context.Context, code, state string) (*identity.User, string, string, error) {
		assert.Equal(t, "auth-code", code)
		assert.Equal(t, "signed-state", state)
		return &identity.User{ID: uuid.New()}, "oauth-token", "/lincoln-high/dashboard", nil
	}}
	h := handler.NewAuthHandler(svc, testCookie)
	req, w := makeChiRequest(http.MethodGet, "/auth/callback?code=auth-code&state=signed-state", nil, nil)

	h.Callback(w, req)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/lincoln-high/dashboard", w.Header().Get("Location"))
	assert.Equal(t, "oauth-token", sessionCookie(t, w).Value)
}

func TestCallback_ProviderError(t *testing.T) {
	h := handler.NewAuthHandler(&mockIdentity{}, testCookie)
	req, w := makeChiRequest(http.MethodGet, "/auth/callback?error=access_denied", nil, nil)

	h.Callback(w, req)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/login", loc.Path)
	assert.Equal(t, "Authentication failed. Please try again.", loc.Query().Get("error"))
	assert.Nil(t, sessionCookie(t, w))
}

func TestCallback_ExchangeFails(t *testing.T) {
	svc := &mockIdentity{completeOAuthFn: func(context.Context, string, string) (*identity.User, string, string, error) {
		return nil, "", "", identity.ErrUnverifiedEmail
	}}
	h := handler.NewAuthHandler(svc, testCookie)
	req, w := makeChiRequest(http.MethodGet, "/auth/callback?code=c&state=s", nil, nil)

	h.Callback(w, req)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/login", loc.Path)
	assert.Equal(t, "Your provider account email is not verified.", loc.Query().Get("error"))
}

func TestSafeRedirect(t *testing.T) {
	assert.Equal(t, "/tenant/setup", handler.SafeRedirect("/tenant/setup"))
	assert.Equal(t, "/lincoln-high/dashboard?tab=week", handler.SafeRedirect("/lincoln-high/dashboard?tab=week"))
	assert.Equal(t, "/dashboard", handler.SafeRedirect("dashboard"))
	assert.Equal(t, "/dashboard", handler.SafeRedirect("/\\evil.example"))
	assert.Equal(t, "/dashboard", handler.SafeRedirect("/login?from=/x"))
}
