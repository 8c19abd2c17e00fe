package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/onescheduler/dashboard/internal/api/middleware"
	"github.com/onescheduler/dashboard/internal/api/response"
	"github.com/onescheduler/dashboard/internal/api/validation"
	"github.com/onescheduler/dashboard/internal/identity"
	"github.com/onescheduler/dashboard/internal/setup"
	"github.com/onescheduler/dashboard/internal/tenant"
)

// SetupService is the part of setup.Service the setup endpoints use.
type SetupService interface {
	CheckName(ctx context.Context, p *identity.Principal, name string) (bool, error)
	Create(ctx context.Context, p *identity.Principal, name string) (*setup.Outcome, error)
	Join(ctx context.Context, p *identity.Principal, inviteCode string) (*setup.Outcome, error)
	Switch(ctx context.Context, p *identity.Principal, slug string) string
	Switcher(ctx context.Context, p *identity.Principal) setup.SwitcherView
	Landing(ctx context.Context, p *identity.Principal) setup.Landing
}

type nameRequest struct {
	Name string `json:"name"`
}

type joinRequest struct {
	InviteCode string `json:"inviteCode"`
}

type switchRequest struct {
	Slug string `json:"slug"`
}

type tenantResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	InviteCode string `json:"inviteCode,omitempty"`
}

type membershipResponse struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
	Role string `json:"role"`
}

type setupViewResponse struct {
	Email   string   `json:"email"`
	Options []string `json:"options"`
	Error   string   `json:"error,omitempty"`
}

type nameCheckResponse struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

type outcomeResponse struct {
	Tenant               tenantResponse `json:"tenant"`
	RedirectTo           string         `json:"redirectTo"`
	RedirectAfterSeconds int            `json:"redirectAfterSeconds"`
}

type switcherResponse struct {
	Visible     bool                 `json:"visible"`
	Current     *tenantResponse      `json:"current"`
	Role        *string              `json:"role"`
	Memberships []membershipResponse `json:"memberships"`
}

// SetupHandler handles creating, joining and switching tenants.
type SetupHandler struct {
	svc SetupService
}

// NewSetupHandler creates a new SetupHandler.
func NewSetupHandler(svc SetupService) *SetupHandler {
	return &SetupHandler{svc: svc}
}

// View handles GET /tenant/setup. Users who already have a tenant are sent to
// its dashboard unless they were sent here with an error to read. Without an
// error query, a failed tenant fetch is reported instead.
func (h *SetupHandler) View(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	p := middleware.GetPrincipal(r.Context())
	msg := r.URL.Query().Get("error")

	if msg == "" {
		landing := h.svc.Landing(r.Context(), p)
		if landing.Target != "" {
			response.Redirect(w, r, landing.Target)
			return
		}
		msg = landing.Error
	}

	response.Success(w, http.StatusOK, setupViewResponse{
		Email:   p.User.Email,
		Options: []string{"create", "join"},
		Error:   msg,
	}, requestID)
}

// CheckName handles POST /tenant/setup/check-name.
func (h *SetupHandler) CheckName(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req nameRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}

	fieldErrors := validation.ValidateTenantNameRequest(validation.TenantNameRequest{Name: req.Name})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	available, err := h.svc.CheckName(r.Context(), middleware.GetPrincipal(r.Context()), req.Name)
	if err != nil {
		writeSetupError(w, err, requestID)
		return
	}

	response.Success(w, http.StatusOK, nameCheckResponse{Name: req.Name, Available: available}, requestID)
}

// Create handles POST /tenant/setup/create.
func (h *SetupHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req nameRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}

	fieldErrors := validation.ValidateTenantNameRequest(validation.TenantNameRequest{Name: req.Name})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	out, err := h.svc.Create(r.Context(), middleware.GetPrincipal(r.Context()), req.Name)
	if err != nil {
		writeSetupError(w, err, requestID)
		return
	}

	response.Success(w, http.StatusCreated, toOutcomeResponse(out), requestID)
}

// Join handles POST /tenant/setup/join.
func (h *SetupHandler) Join(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req joinRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}

	fieldErrors := validation.ValidateJoinRequest(validation.JoinRequest{InviteCode: req.InviteCode})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	out, err := h.svc.Join(r.Context(), middleware.GetPrincipal(r.Context()), req.InviteCode)
	if err != nil {
		writeSetupError(w, err, requestID)
		return
	}

	response.Success(w, http.StatusOK, toOutcomeResponse(out), requestID)
}

// Switcher handles GET /tenant/switcher.
func (h *SetupHandler) Switcher(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	view := h.svc.Switcher(r.Context(), middleware.GetPrincipal(r.Context()))

	resp := switcherResponse{
		Visible:     view.Visible,
		Memberships: toMembershipResponses(view.Memberships),
	}
	if view.Current != nil {
		t := toTenantResponse(view.Current, false)
		resp.Current = &t
	}
	if view.Role != nil {
		role := string(*view.Role)
		resp.Role = &role
	}

	response.Success(w, http.StatusOK, resp, requestID)
}

// Switch handles POST /tenant/switch and redirects to the resulting current
// tenant's dashboard. An unknown slug leaves the selection as it was.
func (h *SetupHandler) Switch(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req switchRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}

	fieldErrors := validation.ValidateSwitchRequest(validation.SwitchRequest{Slug: req.Slug})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	target := h.svc.Switch(r.Context(), middleware.GetPrincipal(r.Context()), req.Slug)
	response.Redirect(w, r, target)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, requestID string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return false
	}
	return true
}

func toOutcomeResponse(out *setup.Outcome) outcomeResponse {
	return outcomeResponse{
		Tenant:               toTenantResponse(out.Tenant, true),
		RedirectTo:           out.RedirectTo,
		RedirectAfterSeconds: int(out.RedirectAfter.Seconds()),
	}
}

func toTenantResponse(t *tenant.Tenant, withCode bool) tenantResponse {
	resp := tenantResponse{
		ID:   t.ID.String(),
		Name: t.Name,
		Slug: t.Slug,
	}
	if withCode {
		resp.InviteCode = t.Code
	}
	return resp
}

func toMembershipResponses(ms []tenant.Membership) []membershipResponse {
	out := make([]membershipResponse, 0, len(ms))
	for _, m := range ms {
		out = append(out, membershipResponse{
			Name: m.Tenant.Name,
			Slug: m.Tenant.Slug,
			Role: string(m.Role),
		})
	}
	return out
}
