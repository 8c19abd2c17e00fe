package middleware

import (
	"net/http"

	"github.com/onescheduler/dashboard/internal/api/response"
	"github.com/onescheduler/dashboard/internal/tenant"
)

// RequireRole returns middleware that rejects sessions whose role in the
// current tenant is not in the allowed list. It must run behind TenantShell.
func RequireRole(roles ...tenant.Role) func(http.Handler) http.Handler {
	allowed := make(map[tenant.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			if GetPrincipal(r.Context()) == nil {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Please sign in to continue", requestID)
				return
			}

			st := GetTenantState(r.Context())
			if st == nil || st.CurrentRole == nil || !allowed[*st.CurrentRole] {
				response.Err(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions", requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
