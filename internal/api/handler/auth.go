package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/onescheduler/dashboard/internal/api/middleware"
	"github.com/onescheduler/dashboard/internal/api/response"
	"github.com/onescheduler/dashboard/internal/api/validation"
	"github.com/onescheduler/dashboard/internal/identity"
	"github.com/onescheduler/dashboard/internal/resolver"
)

// HomePath is where a signed-in user lands when no destination was requested.
const HomePath = "/dashboard"

// IdentityService is the part of identity.Service the auth endpoints use.
type IdentityService interface {
	Providers() []string
	SignUp(ctx context.Context, email, password string) (*identity.User, string, error)
	SignIn(ctx context.Context, email, password string) (*identity.User, string, error)
	SignOut(ctx context.Context, token string) error
	OAuthURL(provider, from string) (string, error)
	CompleteOAuth(ctx context.Context, code, state string) (*identity.User, string, string, error)
}

// CookieOptions control the session cookie.
type CookieOptions struct {
	Secure bool
	TTL    time.Duration
}

type registerRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	From     string `json:"from"`
}

type userResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Provider string `json:"provider"`
}

type signedInResponse struct {
	User       userResponse `json:"user"`
	RedirectTo string       `json:"redirectTo"`
}

type loginViewResponse struct {
	Providers []string `json:"providers"`
	From      string   `json:"from"`
	Error     string   `json:"error,omitempty"`
}

type redirectResponse struct {
	RedirectTo string `json:"redirectTo"`
}

// AuthHandler handles sign-up, sign-in, sign-out and the OAuth round trip.
type AuthHandler struct {
	identity IdentityService
	cookie   CookieOptions
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc IdentityService, cookie CookieOptions) *AuthHandler {
	return &AuthHandler{
		identity: svc,
		cookie:   cookie,
	}
}

// LoginView handles GET /login.
func (h *AuthHandler) LoginView(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	q := r.URL.Query()

	response.Success(w, http.StatusOK, loginViewResponse{
		Providers: h.identity.Providers(),
		From:      SafeRedirect(q.Get("from")),
		Error:     q.Get("error"),
	}, requestID)
}

// Register handles POST /auth/register. New accounts go straight to tenant setup.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	fieldErrors := validation.ValidateRegisterRequest(validation.RegisterRequest{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	user, token, err := h.identity.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrEmailTaken) {
			response.Err(w, http.StatusConflict, "EMAIL_TAKEN", "An account with this email already exists", requestID)
			return
		}
		slog.Error("failed to register user", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Registration failed. Please try again.", requestID)
		return
	}

	h.setSession(w, token)
	response.Success(w, http.StatusCreated, signedInResponse{
		User:       toUserResponse(user),
		RedirectTo: resolver.SetupPath,
	}, requestID)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	fieldErrors := validation.ValidateLoginRequest(validation.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	user, token, err := h.identity.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			response.Err(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", requestID)
			return
		}
		slog.Error("failed to sign in", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Login failed. Please try again.", requestID)
		return
	}

	h.setSession(w, token)
	response.Success(w, http.StatusOK, signedInResponse{
		User:       toUserResponse(user),
		RedirectTo: SafeRedirect(req.From),
	}, requestID)
}

// Logout handles POST /auth/logout. It succeeds without a session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	if token := middleware.SessionToken(r); token != "" {
		if err := h.identity.SignOut(r.Context(), token); err != nil {
			slog.Error("failed to sign out", "error", err, "requestId", requestID)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Logout failed. Please try again.", requestID)
			return
		}
	}

	h.clearSession(w)
	response.Success(w, http.StatusOK, redirectResponse{RedirectTo: middleware.LoginPath}, requestID)
}

// OAuthStart handles GET /auth/oauth/{provider}.
func (h *AuthHandler) OAuthStart(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	provider := chi.URLParam(r, "provider")

	target, err := h.identity.OAuthURL(provider, SafeRedirect(r.URL.Query().Get("from")))
	if err != nil {
		if errors.Is(err, identity.ErrUnknownProvider) {
			response.Err(w, http.StatusNotFound, "UNKNOWN_PROVIDER", "Sign-in provider is not available", requestID)
			return
		}
		slog.Error("failed to start oauth", "provider", provider, "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to sign in with provider", requestID)
		return
	}

	response.Redirect(w, r, target)
}

// Callback handles GET /auth/callback, the provider's return leg.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	q := r.URL.Query()

	if providerErr := q.Get("error"); providerErr != "" || q.Get("code") == "" {
		slog.Warn("oauth callback without code", "providerError", providerErr, "requestId", requestID)
		response.Redirect(w, r, loginErrorURL("Authentication failed. Please try again."))
		return
	}

	_, token, from, err := h.identity.CompleteOAuth(r.Context(), q.Get("code"), q.Get("state"))
	if err != nil {
		slog.Warn("oauth callback failed", "error", err, "requestId", requestID)
		msg := "Authentication failed. Please try again."
		if errors.Is(err, identity.ErrUnverifiedEmail) {
			msg = "Your provider account email is not verified."
		}
		response.Redirect(w, r, loginErrorURL(msg))
		return
	}

	h.setSession(w, token)
	response.Redirect(w, r, SafeRedirect(from))
}

func (h *AuthHandler) setSession(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cookie.TTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SafeRedirect returns from if it is a local path, HomePath otherwise.
// Login pages are never a destination.
func SafeRedirect(from string) string {
	if from == "" || !strings.HasPrefix(from, "/") || strings.HasPrefix(from, "//") || strings.HasPrefix(from, "/\\") {
		return HomePath
	}
	u, err := url.Parse(from)
	if err != nil || u.Host != "" || u.Scheme != "" || u.Path == middleware.LoginPath {
		return HomePath
	}
	return from
}

func loginErrorURL(msg string) string {
	return middleware.LoginPath + "?" + url.Values{"error": {msg}}.Encode()
}

func toUserResponse(u *identity.User) userResponse {
	return userResponse{
		ID:       u.ID.String(),
		Email:    u.Email,
		Provider: u.Provider,
	}
}
