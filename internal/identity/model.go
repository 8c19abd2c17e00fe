package identity

import (
	"time"

	"github.com/google/uuid"
)

// Providers a user can sign in with.
const (
	ProviderEmail  = "email"
	ProviderGoogle = "google"
)

// User represents a row in the users table.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string // empty for users created through an OAuth provider
	Provider     string
	CreatedAt    time.Time
}

// Session represents a row in the sessions table. A browser holds a signed
// token naming the session; revoking the row invalidates the token.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Active reports whether the session can still authenticate requests at now.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// Principal is stored in the request context after the session gate admits a request.
type Principal struct {
	User      *User
	SessionID uuid.UUID
	Token     string
}
