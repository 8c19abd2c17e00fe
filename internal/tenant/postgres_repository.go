package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultJoinRole is the role granted to users who join with an invite code.
const DefaultJoinRole = RoleStaff

const maxInviteCodeAttempts = 5

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &PostgresStore{pool: pool}
}

// GetUserTenants returns the user's memberships joined with their tenants,
// most recently created first.
func (r *PostgresStore) GetUserTenants(ctx context.Context, userID uuid.UUID) ([]Membership, error) {
	query := `
		SELECT ut.id, ut.user_id, ut.tenant_id, ut.role, ut.created_at, ut.updated_at,
		       t.id, t.name, t.slug, t.code, t.created_at, t.updated_at
		FROM user_tenants ut
		JOIN tenants t ON t.id = ut.tenant_id
		WHERE ut.user_id = $1
		ORDER BY ut.created_at DESC, ut.id DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing user tenants: %w", err)
	}
	defer rows.Close()

	var memberships []Membership
	for rows.Next() {
		var m Membership
		var role string
		err := rows.Scan(
			&m.ID, &m.UserID, &m.TenantID, &role, &m.CreatedAt, &m.UpdatedAt,
			&m.Tenant.ID, &m.Tenant.Name, &m.Tenant.Slug, &m.Tenant.Code,
			&m.Tenant.CreatedAt, &m.Tenant.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning membership row: %w", err)
		}
		m.Role = Role(role)
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating membership rows: %w", err)
	}

	if memberships == nil {
		memberships = []Membership{}
	}

	return memberships, nil
}

// CheckNameAvailable reports whether no tenant already uses the name or the slug derived from it.
func (r *PostgresStore) CheckNameAvailable(ctx context.Context, name string) (bool, error) {
	query := `SELECT NOT EXISTS(SELECT 1 FROM tenants WHERE slug = $1 OR LOWER(name) = LOWER($2))`

	var available bool
	if err := r.pool.QueryRow(ctx, query, Slugify(name), name).Scan(&available); err != nil {
		return false, fmt.Errorf("checking tenant name: %w", err)
	}
	return available, nil
}

// CreateTenant inserts the tenant and the creator's super_admin membership in
// one transaction. Returns ErrNameConflict if the slug is taken.
func (r *PostgresStore) CreateTenant(ctx context.Context, params CreateParams) (*Tenant, error) {
	slug := params.Slug
	if slug == "" {
		slug = Slugify(params.Name)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO tenants (name, slug, code)
		VALUES ($1, $2, $3)
		ON CONFLICT (code) DO NOTHING
		RETURNING id, name, slug, code, created_at, updated_at`

	var t *Tenant
	for attempt := 0; attempt < maxInviteCodeAttempts && t == nil; attempt++ {
		code, err := GenerateInviteCode()
		if err != nil {
			return nil, err
		}

		var row Tenant
		err = tx.QueryRow(ctx, query, params.Name, slug, code).Scan(
			&row.ID, &row.Name, &row.Slug, &row.Code, &row.CreatedAt, &row.UpdatedAt,
		)
		switch {
		case err == nil:
			t = &row
		case errors.Is(err, pgx.ErrNoRows):
			// invite code collision, draw another
		default:
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return nil, ErrNameConflict
			}
			return nil, fmt.Errorf("inserting tenant: %w", err)
		}
	}
	if t == nil {
		return nil, fmt.Errorf("inserting tenant: no unique invite code after %d attempts", maxInviteCodeAttempts)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO user_tenants (user_id, tenant_id, role) VALUES ($1, $2, $3)`,
		params.UserID, t.ID, string(RoleSuperAdmin),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting creator membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing tenant creation: %w", err)
	}

	return t, nil
}

// JoinTenant looks the tenant up by invite code and adds a membership with
// DefaultJoinRole in one transaction.
func (r *PostgresStore) JoinTenant(ctx context.Context, params JoinParams) (*Tenant, error) {
	code := NormalizeInviteCode(params.InviteCode)
	if !ValidInviteCode(code) {
		return nil, ErrInvalidInviteCode
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var t Tenant
	err = tx.QueryRow(ctx, `
		SELECT id, name, slug, code, created_at, updated_at
		FROM tenants
		WHERE code = $1`, code,
	).Scan(&t.ID, &t.Name, &t.Slug, &t.Code, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidInviteCode
		}
		return nil, fmt.Errorf("looking up invite code: %w", err)
	}

	result, err := tx.Exec(ctx, `
		INSERT INTO user_tenants (user_id, tenant_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, tenant_id) DO NOTHING`,
		params.UserID, t.ID, string(DefaultJoinRole),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting membership: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, ErrAlreadyMember
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing tenant join: %w", err)
	}

	return &t, nil
}
