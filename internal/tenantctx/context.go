// Package tenantctx holds the per-session tenant state: the user's
// memberships and which one is current. All mutation goes through Refresh,
// SelectTenant and Clear so the current tenant and role always come from the
// same membership.
package tenantctx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/onescheduler/dashboard/internal/identity"
	"github.com/onescheduler/dashboard/internal/preference"
	"github.com/onescheduler/dashboard/internal/tenant"
)

// FetchErrorMessage is recorded in State.Error when memberships cannot be loaded.
const FetchErrorMessage = "Failed to load your schools. Please try again."

// UserSource resolves a session token to its user. A nil user means the
// session is gone.
type UserSource interface {
	CurrentUser(ctx context.Context, token string) (*identity.User, error)
}

// MembershipSource lists a user's memberships, most recently created first.
type MembershipSource interface {
	GetUserTenants(ctx context.Context, userID uuid.UUID) ([]tenant.Membership, error)
}

// Sources are the collaborators a Context reads from and writes to.
type Sources struct {
	Users       UserSource
	Memberships MembershipSource
	Preferences preference.Store
}

// State is a point-in-time copy of a Context. CurrentTenant and CurrentRole
// are both nil or both set from the same membership.
type State struct {
	CurrentTenant *tenant.Tenant
	CurrentRole   *tenant.Role
	Memberships   []tenant.Membership
	Loading       bool
	Error         string
}

// Context is the tenant state for one browser session.
type Context struct {
	src     Sources
	token   string
	prefKey string

	hintOnce sync.Once
	prefMu   sync.Mutex // serializes preference writes

	mu          sync.Mutex
	hint        string
	memberships []tenant.Membership
	current     *tenant.Membership
	loading     bool
	err         string
	seq         uint64 // last started refresh
	epoch       uint64 // bumped by Clear
}

// New creates an uninitialized Context for the session behind principal. It
// reports Loading until its first Refresh completes.
func New(src Sources, principal *identity.Principal) *Context {
	return &Context{
		src:         src,
		token:       principal.Token,
		prefKey:     preference.CurrentTenantKey(principal.SessionID),
		memberships: []tenant.Membership{},
		loading:     true,
	}
}

// Refresh reloads the user's memberships and resolves the current tenant. A
// persisted slug that matches a membership wins; otherwise the most recent
// membership is selected and persisted. When no user is signed in the
// Context is cleared. On failure the previous state is kept and State.Error
// is set. Only the most recently started Refresh applies its result.
func (c *Context) Refresh(ctx context.Context) error {
	c.loadHint(ctx)

	c.mu.Lock()
	c.seq++
	seq, epoch := c.seq, c.epoch
	c.loading = true
	c.mu.Unlock()

	user, err := c.src.Users.CurrentUser(ctx, c.token)
	if err != nil {
		c.fail(seq, epoch)
		return fmt.Errorf("loading current user: %w", err)
	}
	if user == nil {
		c.Clear(ctx)
		return nil
	}

	memberships, err := c.src.Memberships.GetUserTenants(ctx, user.ID)
	if err != nil {
		c.fail(seq, epoch)
		return fmt.Errorf("loading memberships: %w", err)
	}
	if memberships == nil {
		memberships = []tenant.Membership{}
	}

	c.mu.Lock()
	if seq != c.seq || epoch != c.epoch {
		c.mu.Unlock()
		slog.Debug("discarding superseded tenant refresh", "key", c.prefKey)
		return nil
	}

	c.memberships = memberships
	c.loading = false
	c.err = ""
	c.current = nil

	write := false
	if m := findSlug(memberships, c.hint); m != nil {
		c.current = m
	} else if len(memberships) > 0 {
		first := memberships[0]
		c.current = &first
		c.hint = first.Tenant.Slug
		write = true
	}
	c.mu.Unlock()

	if write {
		c.persist(ctx)
	}
	return nil
}

// SelectTenant makes the loaded membership for slug current and persists the
// choice. It reports false and changes nothing when slug is not among the
// loaded memberships.
func (c *Context) SelectTenant(ctx context.Context, slug string) bool {
	c.mu.Lock()
	m := findSlug(c.memberships, slug)
	if m == nil {
		c.mu.Unlock()
		return false
	}
	c.current = m
	c.hint = slug
	c.mu.Unlock()

	c.persist(ctx)
	return true
}

// Clear empties the memberships and the current tenant and deletes the
// persisted preference. Refreshes in flight when Clear runs are discarded.
func (c *Context) Clear(ctx context.Context) {
	c.mu.Lock()
	c.epoch++
	c.memberships = []tenant.Membership{}
	c.current = nil
	c.hint = ""
	c.loading = false
	c.err = ""
	c.mu.Unlock()

	c.persist(ctx)
}

// Snapshot returns a copy of the current state.
func (c *Context) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := State{
		Memberships: make([]tenant.Membership, len(c.memberships)),
		Loading:     c.loading,
		Error:       c.err,
	}
	copy(s.Memberships, c.memberships)
	if c.current != nil {
		t := c.current.Tenant
		r := c.current.Role
		s.CurrentTenant = &t
		s.CurrentRole = &r
	}
	return s
}

// loadHint reads the persisted slug the first time it is needed.
func (c *Context) loadHint(ctx context.Context) {
	c.hintOnce.Do(func() {
		v, err := c.src.Preferences.Get(ctx, c.prefKey)
		if err != nil {
			if !errors.Is(err, preference.ErrNotFound) {
				slog.Warn("failed to read tenant preference", "key", c.prefKey, "error", err)
			}
			return
		}

		c.mu.Lock()
		if c.epoch == 0 {
			c.hint = v
		}
		c.mu.Unlock()
	})
}

// beginRetry marks a failed, idle Context as loading and reports whether the
// caller should run Refresh. At most one caller wins per failure.
func (c *Context) beginRetry() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == "" || c.loading {
		return false
	}
	c.loading = true
	return true
}

func (c *Context) fail(seq, epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.seq || epoch != c.epoch {
		return
	}
	c.loading = false
	c.err = FetchErrorMessage
}

// persist writes the cached hint to the preference store, deleting the key
// when the hint is empty.
func (c *Context) persist(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	c.prefMu.Lock()
	defer c.prefMu.Unlock()

	c.mu.Lock()
	slug := c.hint
	c.mu.Unlock()

	var err error
	if slug == "" {
		err = c.src.Preferences.Delete(ctx, c.prefKey)
	} else {
		err = c.src.Preferences.Set(ctx, c.prefKey, slug)
	}
	if err != nil {
		slog.Warn("failed to persist tenant preference", "key", c.prefKey, "error", err)
	}
}

func findSlug(memberships []tenant.Membership, slug string) *tenant.Membership {
	if slug == "" {
		return nil
	}
	for i := range memberships {
		if memberships[i].Tenant.Slug == slug {
			m := memberships[i]
			return &m
		}
	}
	return nil
}
