package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/onescheduler/dashboard/internal/api/response"
	"github.com/onescheduler/dashboard/internal/identity"
)

// SessionCookie is the cookie carrying the signed session token.
const SessionCookie = "session"

// LoginPath is where unauthenticated navigations are sent.
const LoginPath = "/login"

const principalKey contextKey = "principal"

// Authenticator resolves a session token to the signed-in principal. A nil
// principal with a nil error means the token names no live session.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*identity.Principal, error)
}

// SessionGate admits requests that carry a live session and stores the
// principal in the request context. Anonymous GET and HEAD requests are
// redirected to the login page with the requested URI in "from"; other
// methods get 401. The identity check runs once per request.
func SessionGate(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			principal, err := auth.Authenticate(r.Context(), SessionToken(r))
			if r.Context().Err() != nil {
				return
			}
			if err != nil {
				slog.Error("session check failed", "error", err, "requestId", requestID)
			}

			if principal == nil {
				if r.Method == http.MethodGet || r.Method == http.MethodHead {
					response.Redirect(w, r, LoginURL(r.URL.RequestURI()))
					return
				}
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Please sign in to continue", requestID)
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPrincipal retrieves the signed-in principal from the request context.
func GetPrincipal(ctx context.Context) *identity.Principal {
	if p, ok := ctx.Value(principalKey).(*identity.Principal); ok {
		return p
	}
	return nil
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *identity.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// SessionToken returns the session token from the cookie, falling back to a
// bearer Authorization header.
func SessionToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// LoginURL builds the login URL that returns the user to from after sign-in.
func LoginURL(from string) string {
	if from == "" || from == "/" {
		return LoginPath
	}
	return LoginPath + "?from=" + url.QueryEscape(from)
}
