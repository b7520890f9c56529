package registry

import (
	"sync"

	"github.com/danmuck/framefactor/internal/protocol/session"
)

// ActorAllocator hands out peer ids. Ids start at 1 and are never reused; 0 is the server.
type ActorAllocator struct {
	mu   sync.Mutex
	next session.ActorID
}

func NewActorAllocator() *ActorAllocator {
	return &ActorAllocator{next: session.ServerID + 1}
}

func (a *ActorAllocator) Next() session.ActorID {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.next
	a.next++
	return id
}

// Observe raises the floor so that ids learned from elsewhere are never handed out again.
func (a *ActorAllocator) Observe(id session.ActorID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if id >= a.next {
		a.next = id + 1
	}
}
