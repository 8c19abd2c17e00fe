package tenantctx

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/onescheduler/dashboard/internal/identity"
	"github.com/onescheduler/dashboard/internal/preference"
)

const signOutTimeout = 5 * time.Second

// EventSource delivers identity session events.
type EventSource interface {
	Subscribe(fn identity.Listener) (unsubscribe func())
}

// Registry owns one Context per signed-in session. A Context is created on
// the session's first protected request and dropped when the session signs out.
type Registry struct {
	src         Sources
	unsubscribe func()

	mu       sync.Mutex
	contexts map[uuid.UUID]*Context
}

// NewRegistry creates a Registry and subscribes it to events.
func NewRegistry(src Sources, events EventSource) *Registry {
	r := &Registry{
		src:      src,
		contexts: make(map[uuid.UUID]*Context),
	}
	r.unsubscribe = events.Subscribe(r.handleEvent)
	return r
}

// Acquire returns the Context for principal's session, creating and
// refreshing it on first use. A Context whose last refresh failed is
// refreshed again by the next caller. Callers racing a refresh receive the
// same Context while it still reports Loading.
//
// Refreshes run detached from ctx's cancellation so a dropped client cannot
// leave the session with a failed fetch.
func (r *Registry) Acquire(ctx context.Context, principal *identity.Principal) *Context {
	ctx = context.WithoutCancel(ctx)

	r.mu.Lock()
	if c, ok := r.contexts[principal.SessionID]; ok {
		r.mu.Unlock()
		if c.beginRetry() {
			if err := c.Refresh(ctx); err != nil {
				slog.Warn("tenant refresh retry failed", "sessionId", principal.SessionID, "error", err)
			}
		}
		return c
	}
	c := New(r.src, principal)
	r.contexts[principal.SessionID] = c
	r.mu.Unlock()

	if err := c.Refresh(ctx); err != nil {
		slog.Error("initial tenant refresh failed", "sessionId", principal.SessionID, "error", err)
	}
	return c
}

// Lookup returns the live Context for a session, if any.
func (r *Registry) Lookup(sessionID uuid.UUID) (*Context, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contexts[sessionID]
	return c, ok
}

// Close stops listening for identity events.
func (r *Registry) Close() {
	r.unsubscribe()
}

func (r *Registry) handleEvent(e identity.Event) {
	if e.Type != identity.EventSignedOut {
		return
	}

	r.mu.Lock()
	c, ok := r.contexts[e.SessionID]
	delete(r.contexts, e.SessionID)
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), signOutTimeout)
	defer cancel()

	if ok {
		c.Clear(ctx)
		return
	}

	// No live Context, but a preference may survive from before a restart.
	key := preference.CurrentTenantKey(e.SessionID)
	if err := r.src.Preferences.Delete(ctx, key); err != nil {
		slog.Warn("failed to delete tenant preference on sign-out", "key", key, "error", err)
	}
}
