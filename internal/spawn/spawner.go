package spawn

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/danmuck/framefactor/internal/protocol/codec"
	"github.com/danmuck/framefactor/internal/protocol/frame"
	"github.com/danmuck/framefactor/internal/registry"
	"github.com/google/uuid"
)

var (
	ErrNotAuthority     = errors.New("spawn: only the authority may spawn")
	ErrUnknownSpawnable = errors.New("spawn: unknown spawnable tag")
	ErrDuplicateKind    = errors.New("spawn: spawnable tag already registered")
	ErrNilReplay        = errors.New("spawn: replay function required")
)

// Event is the wire body of one spawn.
type Event[T any] struct {
	Entity    registry.EntityID `json:"entity"`
	Spawnable T                 `json:"spawnable"`
}

// Replay constructs the local object for one spawn and returns its arena handle.
type Replay[T any] func(id registry.EntityID, v T) (registry.Handle, error)

type applier interface {
	decode(env frame.Envelope) (registry.EntityID, func() (registry.Handle, error), error)
}

type pending struct {
	tag   frame.Tag
	build func(id registry.EntityID) (frame.Envelope, error)
}

// Spawner holds the closed table of spawnable kinds and the pending spawn queue.
type Spawner struct {
	entities  *registry.Entities
	authority bool

	mu      sync.RWMutex
	kinds   map[frame.Tag]applier
	order   []frame.Tag
	pending []pending
}

func New(entities *registry.Entities, authority bool) *Spawner {
	if entities == nil {
		entities = registry.NewEntities()
	}
	return &Spawner{
		entities:  entities,
		authority: authority,
		kinds:     make(map[frame.Tag]applier),
	}
}

// Kind is the typed handle for one registered spawnable.
type Kind[T any] struct {
	tag    frame.Tag
	replay Replay[T]
	owner  *Spawner
}

// Register adds T under tag with its replay function.
func Register[T any](s *Spawner, tag frame.Tag, replay Replay[T]) (*Kind[T], error) {
	if tag == uuid.Nil {
		return nil, fmt.Errorf("%w: nil tag", ErrUnknownSpawnable)
	}
	if replay == nil {
		return nil, ErrNilReplay
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.kinds[tag]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateKind, tag)
	}
	k := &Kind[T]{tag: tag, replay: replay, owner: s}
	s.kinds[tag] = k
	s.order = append(s.order, tag)
	return k, nil
}

func (k *Kind[T]) Tag() frame.Tag {
	return k.tag
}

// Spawn queues v for the next Flush. Safe from any goroutine.
func (k *Kind[T]) Spawn(v T) error {
	s := k.owner
	if !s.authority {
		return ErrNotAuthority
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, pending{
		tag: k.tag,
		build: func(id registry.EntityID) (frame.Envelope, error) {
			return codec.Marshal(k.tag, Event[T]{Entity: id, Spawnable: v})
		},
	})
	return nil
}

func (k *Kind[T]) decode(env frame.Envelope) (registry.EntityID, func() (registry.Handle, error), error) {
	ev, err := codec.UnmarshalTagged[Event[T]](k.tag, env)
	if err != nil {
		return 0, nil, err
	}
	return ev.Entity, func() (registry.Handle, error) {
		return k.replay(ev.Entity, ev.Spawnable)
	}, nil
}

// Flush assigns ids to every pending spawn, applies each locally and returns the envelopes to
// broadcast. A spawn that fails to apply is reported and not broadcast.
func (s *Spawner) Flush() ([]frame.Envelope, []error) {
	s.mu.Lock()
	queued := s.pending
	s.pending = nil
	s.mu.Unlock()

	var (
		out  []frame.Envelope
		errs []error
	)
	for _, p := range queued {
		id := s.entities.Generate()
		env, err := p.build(id)
		if err != nil {
			errs = append(errs, fmt.Errorf("spawn %s: %w", id, err))
			continue
		}
		if _, err := s.Apply(env); err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, env)
	}
	return out, errs
}

// Apply decodes a spawn envelope, constructs the local object and binds it to the carried id.
// An id that is already bound is rejected before anything is constructed.
func (s *Spawner) Apply(env frame.Envelope) (registry.EntityID, error) {
	s.mu.RLock()
	k, ok := s.kinds[env.Tag]
	s.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownSpawnable, env.Tag)
	}
	id, construct, err := k.decode(env)
	if err != nil {
		return 0, err
	}
	if s.entities.Contains(id) {
		return id, fmt.Errorf("%w: %s", registry.ErrDuplicateEntity, id)
	}
	h, err := construct()
	if err != nil {
		return id, fmt.Errorf("spawn %s: replay: %w", id, err)
	}
	if err := s.entities.Insert(id, h); err != nil {
		return id, err
	}
	return id, nil
}

// Owns reports whether tag is a registered spawnable.
func (s *Spawner) Owns(tag frame.Tag) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.kinds[tag]
	return ok
}

func (s *Spawner) Pending() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}

func (s *Spawner) Authority() bool {
	return s.authority
}

func (s *Spawner) Entities() *registry.Entities {
	return s.entities
}

// Tags lists registered spawnable tags in registration order.
func (s *Spawner) Tags() []frame.Tag {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}
