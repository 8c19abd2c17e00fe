package handler

import (
	"net/http"

	"github.com/onescheduler/dashboard/internal/api/middleware"
	"github.com/onescheduler/dashboard/internal/api/response"
)

var gettingStarted = []string{
	"Upload information about students, teachers, and rooms",
	"Define lessons and subjects",
	"Generate optimized class schedules",
	"Manage school resources efficiently",
}

type dashboardResponse struct {
	Email           string               `json:"email"`
	Tenant          tenantResponse       `json:"tenant"`
	Role            string               `json:"role"`
	SwitcherVisible bool                 `json:"switcherVisible"`
	Memberships     []membershipResponse `json:"memberships"`
	GettingStarted  []string             `json:"gettingStarted"`
}

type inviteResponse struct {
	Tenant     tenantResponse `json:"tenant"`
	InviteCode string         `json:"inviteCode"`
}

// DashboardHandler renders the tenant-scoped pages. It runs behind TenantShell,
// so the tenant state it reads is the one the request resolved against.
type DashboardHandler struct{}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler() *DashboardHandler {
	return &DashboardHandler{}
}

// View handles GET /{tenantSlug}/dashboard.
func (h *DashboardHandler) View(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	p := middleware.GetPrincipal(r.Context())
	st := middleware.GetTenantState(r.Context())
	if p == nil || st == nil || st.CurrentTenant == nil {
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Tenant context is unavailable", requestID)
		return
	}

	var role string
	if st.CurrentRole != nil {
		role = string(*st.CurrentRole)
	}

	response.Success(w, http.StatusOK, dashboardResponse{
		Email:           p.User.Email,
		Tenant:          toTenantResponse(st.CurrentTenant, false),
		Role:            role,
		SwitcherVisible: len(st.Memberships) > 1,
		Memberships:     toMembershipResponses(st.Memberships),
		GettingStarted:  gettingStarted,
	}, requestID)
}

// Invite handles GET /{tenantSlug}/invite.
func (h *DashboardHandler) Invite(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	st := middleware.GetTenantState(r.Context())
	if st == nil || st.CurrentTenant == nil {
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Tenant context is unavailable", requestID)
		return
	}

	response.Success(w, http.StatusOK, inviteResponse{
		Tenant:     toTenantResponse(st.CurrentTenant, false),
		InviteCode: st.CurrentTenant.Code,
	}, requestID)
}
