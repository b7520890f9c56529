package registry

import (
	"errors"
	"fmt"
	"sync"
)

var ErrDuplicateEntity = errors.New("registry: entity id already registered")

// EntityID is the cross-machine identity of one replicated object.
type EntityID uint64

func (id EntityID) String() string {
	return fmt.Sprintf("entity:%d", uint64(id))
}

// Entities maps replicated ids to local arena handles.
//
// Only the authority calls Generate; every process inserts the pairs it applies.
type Entities struct {
	mu      sync.RWMutex
	handles map[EntityID]Handle
	next    EntityID
}

func NewEntities() *Entities {
	return &Entities{
		handles: make(map[EntityID]Handle),
	}
}

// Generate allocates the next id. Ids are strictly increasing from 0.
func (e *Entities) Generate() EntityID {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.next
	e.next++
	return id
}

// Insert binds id to h. A second insert for the same id is rejected.
func (e *Entities) Insert(id EntityID, h Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.handles[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateEntity, id)
	}
	e.handles[id] = h
	return nil
}

// Add generates an id and binds it to h.
func (e *Entities) Add(h Handle) EntityID {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.next
	e.next++
	e.handles[id] = h
	return id
}

func (e *Entities) Get(id EntityID) (Handle, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	h, ok := e.handles[id]
	return h, ok
}

func (e *Entities) Contains(id EntityID) bool {
	_, ok := e.Get(id)
	return ok
}

func (e *Entities) Remove(id EntityID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.handles[id]; !ok {
		return false
	}
	delete(e.handles, id)
	return true
}

func (e *Entities) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handles)
}

// Range visits a snapshot of the bindings; fn may mutate the registry.
func (e *Entities) Range(fn func(EntityID, Handle) bool) {
	e.mu.RLock()
	snapshot := make(map[EntityID]Handle, len(e.handles))
	for id, h := range e.handles {
		snapshot[id] = h
	}
	e.mu.RUnlock()
	for id, h := range snapshot {
		if !fn(id, h) {
			return
		}
	}
}
