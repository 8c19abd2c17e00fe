package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresUserRepository implements UserRepository using pgxpool.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository backed by the given connection pool.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create inserts a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (email, password_hash, provider)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query, u.Email, u.PasswordHash, u.Provider).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEmailTaken
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	return nil
}

// GetByID retrieves a single user by its UUID.
func (r *PostgresUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `
		SELECT id, email, password_hash, provider, created_at
		FROM users
		WHERE id = $1`

	return r.scanOne(ctx, query, id)
}

// GetByEmail retrieves a single user by email, ignoring case.
func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, email, password_hash, provider, created_at
		FROM users
		WHERE LOWER(email) = LOWER($1)`

	return r.scanOne(ctx, query, email)
}

func (r *PostgresUserRepository) scanOne(ctx context.Context, query string, arg any) (*User, error) {
	var u User
	err := r.pool.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Provider, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return &u, nil
}

// PostgresSessionRepository implements SessionRepository using pgxpool.
type PostgresSessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository backed by the given connection pool.
func NewSessionRepository(pool *pgxpool.Pool) SessionRepository {
	return &PostgresSessionRepository{pool: pool}
}

// Create inserts a new session record.
func (r *PostgresSessionRepository) Create(ctx context.Context, s *Session) error {
	query := `
		INSERT INTO sessions (user_id, expires_at)
		VALUES ($1, $2)
		RETURNING id, created_at`

	if err := r.pool.QueryRow(ctx, query, s.UserID, s.ExpiresAt).Scan(&s.ID, &s.CreatedAt); err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// GetByID retrieves a single session by its UUID.
func (r *PostgresSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	query := `
		SELECT id, user_id, created_at, expires_at, revoked_at
		FROM sessions
		WHERE id = $1`

	var s Session
	err := r.pool.QueryRow(ctx, query, id).Scan(&s.ID, &s.UserID, &s.CreatedAt, &s.ExpiresAt, &s.RevokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("querying session: %w", err)
	}
	return &s, nil
}

// Revoke sets revoked_at on a session. Returns ErrSessionNotFound if the session
// does not exist, and ErrSessionRevoked if it was already revoked.
func (r *PostgresSessionRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `UPDATE sessions SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("revoking session: %w", err)
	}

	if result.RowsAffected() == 0 {
		var exists bool
		err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM sessions WHERE id = $1)", id).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking session existence: %w", err)
		}
		if !exists {
			return ErrSessionNotFound
		}
		return ErrSessionRevoked
	}

	return nil
}

// DeleteExpired removes sessions whose expiry is at or before now.
func (r *PostgresSessionRepository) DeleteExpired(ctx context.Context, now time.Time) ([]Session, error) {
	query := `
		DELETE FROM sessions
		WHERE expires_at <= $1
		RETURNING id, user_id, created_at, expires_at, revoked_at`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("deleting expired sessions: %w", err)
	}
	defer rows.Close()

	var expired []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.CreatedAt, &s.ExpiresAt, &s.RevokedAt); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		if s.RevokedAt == nil {
			expired = append(expired, s)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session rows: %w", err)
	}

	return expired, nil
}
