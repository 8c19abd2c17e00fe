package api

import (
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/go-chi/chi/v5"

	"github.com/onescheduler/dashboard/internal/api/handler"
	"github.com/onescheduler/dashboard/internal/api/middleware"
	"github.com/onescheduler/dashboard/internal/api/response"
	"github.com/onescheduler/dashboard/internal/resolver"
	"github.com/onescheduler/dashboard/internal/tenant"
)

// IdentityService authenticates sessions and serves the auth endpoints.
type IdentityService interface {
	handler.IdentityService
	middleware.Authenticator
}

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	DBPinger    handler.DBPinger
	Version     string
	OpenAPISpec []byte
	Identity    IdentityService
	Contexts    middleware.ContextSource
	Setup       handler.SetupService
	Cookie      handler.CookieOptions
}

// NewRouter creates and configures a Chi router with all middleware and routes.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(chimiddleware.Logger)

	healthHandler := handler.NewHealthHandler(deps.DBPinger, deps.Version)
	r.Get("/health", healthHandler.ServeHTTP)

	if len(deps.OpenAPISpec) > 0 {
		openapiHandler := handler.NewOpenAPIHandler(deps.OpenAPISpec, deps.Version)
		r.Get("/openapi.json", openapiHandler.ServeHTTP)
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		if req.Method == http.MethodGet || req.Method == http.MethodHead {
			response.Redirect(w, req, handler.HomePath)
			return
		}
		response.Err(w, http.StatusNotFound, "NOT_FOUND", "Resource not found", middleware.GetRequestID(req.Context()))
	})

	if deps.Identity == nil {
		return r
	}

	authHandler := handler.NewAuthHandler(deps.Identity, deps.Cookie)
	r.Get(middleware.LoginPath, authHandler.LoginView)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/oauth/{provider}", authHandler.OAuthStart)
		r.Get("/callback", authHandler.Callback)
	})

	if deps.Contexts == nil || deps.Setup == nil {
		return r
	}

	setupHandler := handler.NewSetupHandler(deps.Setup)
	dashboardHandler := handler.NewDashboardHandler()

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionGate(deps.Identity))

		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			response.Redirect(w, req, handler.HomePath)
		})

		r.Route("/tenant", func(r chi.Router) {
			r.Get("/setup", setupHandler.View)
			r.Post("/setup/check-name", setupHandler.CheckName)
			r.Post("/setup/create", setupHandler.Create)
			r.Post("/setup/join", setupHandler.Join)
			r.Get("/switcher", setupHandler.Switcher)
			r.Post("/switch", setupHandler.Switch)
		})

		shell := middleware.TenantShell(deps.Contexts, resolver.DefaultPage)
		r.With(shell).Get("/dashboard", dashboardHandler.View)
		r.With(shell).Get("/{tenantSlug}/dashboard", dashboardHandler.View)

		r.With(
			middleware.TenantShell(deps.Contexts, "invite"),
			middleware.RequireRole(tenant.RoleSuperAdmin, tenant.RoleAdmin),
		).Get("/{tenantSlug}/invite", dashboardHandler.Invite)
	})

	return r
}
