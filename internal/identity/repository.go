package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrUserNotFound is returned when a user record is not found.
var ErrUserNotFound = errors.New("user not found")

// ErrEmailTaken is returned when registering an email that already has an account.
var ErrEmailTaken = errors.New("email already registered")

// ErrSessionNotFound is returned when a session record is not found.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionRevoked is returned when revoking a session that has already ended.
var ErrSessionRevoked = errors.New("session already revoked")

// UserRepository provides operations on the users table.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// SessionRepository provides operations on the sessions table.
type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)
	Revoke(ctx context.Context, id uuid.UUID) error
	// DeleteExpired removes sessions that expired before now and returns the
	// ones that had not been revoked.
	DeleteExpired(ctx context.Context, now time.Time) ([]Session, error)
}
