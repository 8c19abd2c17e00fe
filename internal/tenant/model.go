package tenant

import (
	"time"

	"github.com/google/uuid"
)

// Role is a member's role within a tenant.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleTeacher    Role = "teacher"
	RoleStaff      Role = "staff"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleTeacher, RoleStaff:
		return true
	}
	return false
}

// Tenant represents a row in the tenants table: one school.
type Tenant struct {
	ID        uuid.UUID
	Name      string
	Slug      string
	Code      string // invite code
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Membership represents a row in the user_tenants table joined with its tenant.
type Membership struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TenantID  uuid.UUID
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
	Tenant    Tenant
}

// CreateParams are the inputs to Store.CreateTenant. Slug is derived from Name when empty.
type CreateParams struct {
	Name   string
	UserID uuid.UUID
	Slug   string
}

// JoinParams are the inputs to Store.JoinTenant.
type JoinParams struct {
	InviteCode string
	UserID     uuid.UUID
}
