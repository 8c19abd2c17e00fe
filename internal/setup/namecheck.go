package setup

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// ErrSuperseded is returned to a name check replaced by a newer one from the same session.
var ErrSuperseded = errors.New("name check superseded")

// CheckFunc asks the remote store whether a tenant name is free.
type CheckFunc func(ctx context.Context, name string) (bool, error)

// NameChecker runs availability checks with one pending slot per session.
// Starting a check cancels the session's previous one, and remote calls from
// one session are spaced at least interval apart.
type NameChecker struct {
	check    CheckFunc
	interval time.Duration

	mu    sync.Mutex
	slots map[uuid.UUID]*checkSlot
}

type checkSlot struct {
	limiter *rate.Limiter
	cancel  context.CancelCauseFunc
	gen     uint64
}

// NewNameChecker creates a NameChecker calling check at most once per interval per session.
func NewNameChecker(check CheckFunc, interval time.Duration) *NameChecker {
	return &NameChecker{
		check:    check,
		interval: interval,
		slots:    make(map[uuid.UUID]*checkSlot),
	}
}

// Check reports whether name is available. It returns ErrSuperseded if a
// newer check from the same session replaced this one before it finished.
func (n *NameChecker) Check(ctx context.Context, sessionID uuid.UUID, name string) (bool, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	n.mu.Lock()
	s, ok := n.slots[sessionID]
	if !ok {
		s = &checkSlot{limiter: rate.NewLimiter(rate.Every(n.interval), 1)}
		n.slots[sessionID] = s
	}
	if s.cancel != nil {
		s.cancel(ErrSuperseded)
	}
	s.gen++
	gen := s.gen
	s.cancel = cancel
	limiter := s.limiter
	n.mu.Unlock()

	defer func() {
		n.mu.Lock()
		if s.gen == gen {
			s.cancel = nil
		}
		n.mu.Unlock()
	}()

	if err := limiter.Wait(ctx); err != nil {
		return false, n.cause(ctx, err)
	}

	available, err := n.check(ctx, name)
	if err != nil {
		return false, n.cause(ctx, err)
	}
	if errors.Is(context.Cause(ctx), ErrSuperseded) {
		return false, ErrSuperseded
	}
	return available, nil
}

// Forget cancels any pending check for sessionID and drops its slot.
func (n *NameChecker) Forget(sessionID uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if s, ok := n.slots[sessionID]; ok {
		if s.cancel != nil {
			s.cancel(context.Canceled)
		}
		delete(n.slots, sessionID)
	}
}

func (n *NameChecker) cause(ctx context.Context, err error) error {
	if errors.Is(context.Cause(ctx), ErrSuperseded) {
		return ErrSuperseded
	}
	return err
}
