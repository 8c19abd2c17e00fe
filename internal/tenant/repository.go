package tenant

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrTenantNotFound is returned when a tenant record is not found.
var ErrTenantNotFound = errors.New("tenant not found")

// ErrNameConflict is returned when a tenant with the same slug already exists.
var ErrNameConflict = errors.New("tenant name already taken")

// ErrInvalidInviteCode is returned when an invite code is malformed or matches no tenant.
var ErrInvalidInviteCode = errors.New("invalid invite code")

// ErrAlreadyMember is returned when joining a tenant the user already belongs to.
var ErrAlreadyMember = errors.New("user is already a member")

// Store is the remote tenant store. CreateTenant and JoinTenant are atomic:
// either the tenant and membership both exist afterwards or neither change is visible.
type Store interface {
	// GetUserTenants returns the user's memberships, most recently created first.
	GetUserTenants(ctx context.Context, userID uuid.UUID) ([]Membership, error)
	CheckNameAvailable(ctx context.Context, name string) (bool, error)
	// CreateTenant creates the tenant with a fresh invite code and grants the
	// creator the super_admin role.
	CreateTenant(ctx context.Context, params CreateParams) (*Tenant, error)
	// JoinTenant validates the invite code and adds a membership for the user.
	JoinTenant(ctx context.Context, params JoinParams) (*Tenant, error)
}
