package identity

import (
	"sync"

	"github.com/google/uuid"
)

// EventType names a session change.
type EventType string

const (
	EventSignedIn  EventType = "SIGNED_IN"
	EventSignedOut EventType = "SIGNED_OUT"
)

// Event is delivered to subscribers whenever a session starts or ends. A
// SIGNED_OUT event is published for manual sign-out, expiry and revocation alike.
type Event struct {
	Type      EventType
	UserID    uuid.UUID
	SessionID uuid.UUID
}

// Listener receives session events.
type Listener func(Event)

// Broadcaster fans events out to subscribers synchronously, in subscription order.
type Broadcaster struct {
	mu        sync.RWMutex
	nextID    int
	order     []int
	listeners map[int]Listener
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{listeners: make(map[int]Listener)}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Broadcaster) Subscribe(fn Listener) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.order = append(b.order, id)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.listeners, id)
			for i, v := range b.order {
				if v == id {
					b.order = append(b.order[:i], b.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish delivers e to every current subscriber. Listeners run outside the lock.
func (b *Broadcaster) Publish(e Event) {
	b.mu.RLock()
	fns := make([]Listener, 0, len(b.order))
	for _, id := range b.order {
		fns = append(fns, b.listeners[id])
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(e)
	}
}
