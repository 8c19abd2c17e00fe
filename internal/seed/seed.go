// Package seed loads development fixtures: users and the schools they own
// or belong to. Fixtures go through the same identity and tenant store
// operations as live traffic, and loading the same file twice is a no-op.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"sigs.k8s.io/yaml"

	"github.com/onescheduler/dashboard/internal/identity"
	"github.com/onescheduler/dashboard/internal/tenant"
)

// File is the fixture document.
type File struct {
	Users   []User   `json:"users"`
	Tenants []Tenant `json:"tenants"`
}

// User is an email/password account to create.
type User struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Tenant is a school owned by Owner. Members join it by its invite code.
type Tenant struct {
	Name    string   `json:"name"`
	Owner   string   `json:"owner"`
	Members []string `json:"members,omitempty"`
}

// Users creates accounts without starting sessions.
type Users interface {
	EnsureUser(ctx context.Context, email, password string) (*identity.User, bool, error)
}

// Result counts what a Load changed.
type Result struct {
	UsersCreated   int
	TenantsCreated int
	MembersJoined  int
}

// Parse decodes a YAML fixture document and checks its references.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}

	known := make(map[string]bool, len(f.Users))
	for i, u := range f.Users {
		email := normalize(u.Email)
		if email == "" || u.Password == "" {
			return nil, fmt.Errorf("seed user %d: email and password are required", i)
		}
		known[email] = true
	}

	for _, t := range f.Tenants {
		if err := tenant.ValidateName(t.Name); err != nil {
			return nil, fmt.Errorf("seed tenant %q: %w", t.Name, err)
		}
		for _, email := range append([]string{t.Owner}, t.Members...) {
			if !known[normalize(email)] {
				return nil, fmt.Errorf("seed tenant %q: unknown user %q", t.Name, email)
			}
		}
	}

	return &f, nil
}

// LoadFile reads and applies the fixture file at path.
func LoadFile(ctx context.Context, path string, users Users, store tenant.Store) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return Load(ctx, f, users, store)
}

// Load applies f. Tenants whose name is already taken are left alone.
func Load(ctx context.Context, f *File, users Users, store tenant.Store) (*Result, error) {
	var res Result
	ids := make(map[string]uuid.UUID, len(f.Users))

	for _, u := range f.Users {
		user, created, err := users.EnsureUser(ctx, u.Email, u.Password)
		if err != nil {
			return nil, fmt.Errorf("seeding user %s: %w", u.Email, err)
		}
		if created {
			res.UsersCreated++
		}
		ids[user.Email] = user.ID
	}

	for _, t := range f.Tenants {
		available, err := store.CheckNameAvailable(ctx, t.Name)
		if err != nil {
			return nil, fmt.Errorf("seeding tenant %s: %w", t.Name, err)
		}
		if !available {
			slog.Debug("seed tenant already exists", "name", t.Name)
			continue
		}

		created, err := store.CreateTenant(ctx, tenant.CreateParams{
			Name:   t.Name,
			UserID: ids[normalize(t.Owner)],
		})
		if err != nil {
			return nil, fmt.Errorf("seeding tenant %s: %w", t.Name, err)
		}
		res.TenantsCreated++
		slog.Info("seed tenant created", "name", created.Name, "slug", created.Slug, "inviteCode", created.Code)

		for _, email := range t.Members {
			_, err := store.JoinTenant(ctx, tenant.JoinParams{
				InviteCode: created.Code,
				UserID:     ids[normalize(email)],
			})
			if err != nil {
				if errors.Is(err, tenant.ErrAlreadyMember) {
					continue
				}
				return nil, fmt.Errorf("seeding member %s of %s: %w", email, t.Name, err)
			}
			res.MembersJoined++
		}
	}

	return &res, nil
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
