package setup

import (
	"sync"

	"github.com/google/uuid"
)

// Guard allows one create or join at a time per session.
type Guard struct {
	mu       sync.Mutex
	inFlight map[uuid.UUID]struct{}
}

// NewGuard creates an empty Guard.
func NewGuard() *Guard {
	return &Guard{inFlight: make(map[uuid.UUID]struct{})}
}

// Begin marks sessionID busy. It returns false if a submission is already
// running; otherwise the returned func must be called when it finishes.
func (g *Guard) Begin(sessionID uuid.UUID) (done func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inFlight[sessionID]; busy {
		return nil, false
	}
	g.inFlight[sessionID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inFlight, sessionID)
			g.mu.Unlock()
		})
	}, true
}
