package validation

import (
	"strings"

	"github.com/onescheduler/dashboard/internal/tenant"
)

// TenantNameRequest mirrors the fields of create and check-name requests.
type TenantNameRequest struct {
	Name string
}

// JoinRequest mirrors the fields of a join request.
type JoinRequest struct {
	InviteCode string
}

// SwitchRequest mirrors the fields of a switch request.
type SwitchRequest struct {
	Slug string
}

// ValidateTenantNameRequest validates a school name.
func ValidateTenantNameRequest(req TenantNameRequest) []FieldError {
	if err := tenant.ValidateName(req.Name); err != nil {
		return []FieldError{{Field: "name", Message: err.Error()}}
	}
	return nil
}

// ValidateJoinRequest checks that an invite code was supplied. Its shape is
// checked by the join flow so a malformed code reads as an invalid one.
func ValidateJoinRequest(req JoinRequest) []FieldError {
	if strings.TrimSpace(req.InviteCode) == "" {
		return []FieldError{{Field: "inviteCode", Message: "Please enter the invite code"}}
	}
	return nil
}

// ValidateSwitchRequest validates a switch request.
func ValidateSwitchRequest(req SwitchRequest) []FieldError {
	if strings.TrimSpace(req.Slug) == "" {
		return []FieldError{{Field: "slug", Message: "slug is required"}}
	}
	return nil
}
