package setup

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/onescheduler/dashboard/internal/identity"
	"github.com/onescheduler/dashboard/internal/resolver"
	"github.com/onescheduler/dashboard/internal/tenant"
	"github.com/onescheduler/dashboard/internal/tenantctx"
)

// ContextSource hands out the tenant context for a signed-in session.
type ContextSource interface {
	Acquire(ctx context.Context, principal *identity.Principal) *tenantctx.Context
}

// EventSource delivers identity session events.
type EventSource interface {
	Subscribe(fn identity.Listener) (unsubscribe func())
}

// Options tune a Service.
type Options struct {
	// NameCheckInterval is the minimum spacing between availability checks of one session.
	NameCheckInterval time.Duration
	// RedirectDelay is how long clients should show a new invite code before navigating.
	RedirectDelay time.Duration
}

// Outcome is the result of a successful create or join.
type Outcome struct {
	Tenant        *tenant.Tenant
	RedirectTo    string
	RedirectAfter time.Duration
}

// SwitcherView lists the tenants a session can switch between.
type SwitcherView struct {
	Visible     bool
	Current     *tenant.Tenant
	Role        *tenant.Role
	Memberships []tenant.Membership
}

// Landing is where the setup page sends a session.
type Landing struct {
	Target string
	Error  string
}

// Service runs the tenant setup and switch flows.
type Service struct {
	store         tenant.Store
	contexts      ContextSource
	names         *NameChecker
	guard         *Guard
	redirectDelay time.Duration
	unsubscribe   func()
}

// NewService creates a Service and subscribes it to events so per-session
// state is dropped on sign-out.
func NewService(store tenant.Store, contexts ContextSource, events EventSource, opts Options) *Service {
	s := &Service{
		store:         store,
		contexts:      contexts,
		names:         NewNameChecker(store.CheckNameAvailable, opts.NameCheckInterval),
		guard:         NewGuard(),
		redirectDelay: opts.RedirectDelay,
	}
	s.unsubscribe = events.Subscribe(func(e identity.Event) {
		if e.Type == identity.EventSignedOut {
			s.names.Forget(e.SessionID)
		}
	})
	return s
}

// Close stops listening for identity events.
func (s *Service) Close() {
	s.unsubscribe()
}

// CheckName reports whether name is free. Invalid names are rejected without a remote call.
func (s *Service) CheckName(ctx context.Context, p *identity.Principal, name string) (bool, error) {
	if p == nil {
		return false, Normalize(identity.ErrUnauthenticated)
	}
	if err := tenant.ValidateName(name); err != nil {
		return false, &Error{Kind: KindValidation, Message: err.Error(), Err: err}
	}

	available, err := s.names.Check(ctx, p.SessionID, normalizeName(name))
	if err != nil {
		e := Normalize(err)
		if e.Kind == KindGeneric {
			e.Message = MsgNameCheckFailed
		}
		return false, e
	}
	return available, nil
}

// Create creates a tenant with the caller as super_admin, then refreshes the
// session's tenant context and selects the new tenant.
func (s *Service) Create(ctx context.Context, p *identity.Principal, name string) (*Outcome, error) {
	if p == nil {
		return nil, Normalize(identity.ErrUnauthenticated)
	}
	if err := tenant.ValidateName(name); err != nil {
		return nil, &Error{Kind: KindValidation, Message: err.Error(), Err: err}
	}
	name = normalizeName(name)

	done, ok := s.guard.Begin(p.SessionID)
	if !ok {
		return nil, &Error{Kind: KindInFlight, Message: MsgInFlight}
	}
	defer done()

	available, err := s.store.CheckNameAvailable(ctx, name)
	if err != nil {
		return nil, &Error{Kind: KindGeneric, Message: MsgNameCheckFailed, Err: err}
	}
	if !available {
		return nil, Normalize(tenant.ErrNameConflict)
	}

	t, err := s.store.CreateTenant(ctx, tenant.CreateParams{Name: name, UserID: p.User.ID})
	if err != nil {
		return nil, Normalize(err)
	}

	slog.Info("tenant created", "tenantId", t.ID, "slug", t.Slug, "userId", p.User.ID)
	return s.land(ctx, p, t), nil
}

// Join adds the caller to the tenant behind inviteCode. Codes are normalized
// and shape-checked before any remote call.
func (s *Service) Join(ctx context.Context, p *identity.Principal, inviteCode string) (*Outcome, error) {
	if p == nil {
		return nil, Normalize(identity.ErrUnauthenticated)
	}
	code := tenant.NormalizeInviteCode(inviteCode)
	if !tenant.ValidInviteCode(code) {
		return nil, Normalize(tenant.ErrInvalidInviteCode)
	}

	done, ok := s.guard.Begin(p.SessionID)
	if !ok {
		return nil, &Error{Kind: KindInFlight, Message: MsgInFlight}
	}
	defer done()

	t, err := s.store.JoinTenant(ctx, tenant.JoinParams{InviteCode: code, UserID: p.User.ID})
	if err != nil {
		return nil, Normalize(err)
	}

	slog.Info("tenant joined", "tenantId", t.ID, "slug", t.Slug, "userId", p.User.ID)
	return s.land(ctx, p, t), nil
}

// Switch selects slug for the session and returns the canonical URL of the
// resulting current tenant. Unknown slugs leave the selection unchanged.
func (s *Service) Switch(ctx context.Context, p *identity.Principal, slug string) string {
	tc := s.contexts.Acquire(ctx, p)
	tc.SelectTenant(ctx, slug)
	return currentTarget(tc.Snapshot())
}

// Switcher describes the tenants the session can switch between. It is only
// visible with more than one membership.
func (s *Service) Switcher(ctx context.Context, p *identity.Principal) SwitcherView {
	st := s.contexts.Acquire(ctx, p).Snapshot()
	return SwitcherView{
		Visible:     len(st.Memberships) > 1,
		Current:     st.CurrentTenant,
		Role:        st.CurrentRole,
		Memberships: st.Memberships,
	}
}

// Landing reports where the setup page should send the session. Target is
// the current tenant's dashboard, or "" when the session has no tenant yet.
// Error carries the last failed tenant fetch when there is no tenant to show.
func (s *Service) Landing(ctx context.Context, p *identity.Principal) Landing {
	st := s.contexts.Acquire(ctx, p).Snapshot()
	if st.Loading {
		return Landing{}
	}
	if st.CurrentTenant == nil {
		return Landing{Error: st.Error}
	}
	return Landing{Target: resolver.CanonicalURL(st.CurrentTenant.Slug, "")}
}

// land re-syncs the tenant context after a membership change and makes t current.
func (s *Service) land(ctx context.Context, p *identity.Principal, t *tenant.Tenant) *Outcome {
	tc := s.contexts.Acquire(ctx, p)
	if err := tc.Refresh(ctx); err != nil {
		slog.Warn("tenant refresh after membership change failed", "slug", t.Slug, "error", err)
	}
	if !tc.SelectTenant(ctx, t.Slug) {
		slog.Warn("new tenant missing from refreshed memberships", "slug", t.Slug)
	}

	return &Outcome{
		Tenant:        t,
		RedirectTo:    resolver.CanonicalURL(t.Slug, ""),
		RedirectAfter: s.redirectDelay,
	}
}

func currentTarget(st tenantctx.State) string {
	if st.CurrentTenant == nil {
		return resolver.SetupPath
	}
	return resolver.CanonicalURL(st.CurrentTenant.Slug, "")
}

func normalizeName(name string) string {
	return strings.TrimSpace(name)
}
