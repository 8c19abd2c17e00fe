package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/onescheduler/dashboard/internal/api/response"
	"github.com/onescheduler/dashboard/internal/identity"
	"github.com/onescheduler/dashboard/internal/resolver"
	"github.com/onescheduler/dashboard/internal/tenantctx"
)

const tenantStateKey contextKey = "tenantState"

// ContextSource hands out the tenant context of a session.
type ContextSource interface {
	Acquire(ctx context.Context, principal *identity.Principal) *tenantctx.Context
}

// TenantShell resolves the requested tenant page against the session's tenant
// context. It answers 202 while the context is loading, redirects to the setup
// page or the canonical URL when needed, and otherwise passes the snapshot it
// decided on to the next handler. It must run behind SessionGate.
func TenantShell(contexts ContextSource, page string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			principal := GetPrincipal(r.Context())
			if principal == nil {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Please sign in to continue", requestID)
				return
			}

			st := contexts.Acquire(r.Context(), principal).Snapshot()
			d := resolver.Resolve(resolver.Input{
				URLSlug: chi.URLParam(r, "tenantSlug"),
				Page:    page,
				Loading: st.Loading,
				Current: st.CurrentTenant,
				Error:   st.Error,
			})

			switch d.Kind {
			case resolver.KindLoading:
				response.Loading(w, requestID)
			case resolver.KindRedirect:
				response.Redirect(w, r, d.Target)
			default:
				ctx := context.WithValue(r.Context(), tenantStateKey, &st)
				next.ServeHTTP(w, r.WithContext(ctx))
			}
		})
	}
}

// GetTenantState retrieves the tenant snapshot TenantShell rendered with.
func GetTenantState(ctx context.Context) *tenantctx.State {
	if st, ok := ctx.Value(tenantStateKey).(*tenantctx.State); ok {
		return st
	}
	return nil
}
