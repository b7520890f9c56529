package events

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/danmuck/framefactor/internal/network"
	"github.com/danmuck/framefactor/internal/protocol/frame"
	"github.com/danmuck/framefactor/internal/protocol/session"
	"github.com/google/uuid"
)

var (
	ErrDuplicateTag = errors.New("events: type tag already registered")
	ErrNilTag       = errors.New("events: nil type tag")
)

// Inbound is one received value and the peer that sent it.
type Inbound[T any] struct {
	Sender session.ActorID
	Value  T
}

// Fault reports an envelope from Sender whose body could not be decoded.
type Fault struct {
	Sender session.ActorID
	Tag    frame.Tag
	Err    error
}

type route interface {
	reset()
	deliver(sender session.ActorID, env frame.Envelope) error
}

// Mux owns the registered type table, one inbound queue per type and the shared outbox.
type Mux struct {
	outbox *Outbox

	mu     sync.RWMutex
	routes map[frame.Tag]route
	order  []frame.Tag
}

// NewMux builds an empty table over outbox. A nil outbox gets a private one.
func NewMux(outbox *Outbox) *Mux {
	if outbox == nil {
		outbox = NewOutbox()
	}
	return &Mux{
		outbox: outbox,
		routes: make(map[frame.Tag]route),
	}
}

// Register adds T under tag and returns its channel.
func Register[T any](m *Mux, tag frame.Tag) (*Channel[T], error) {
	if tag == uuid.Nil {
		return nil, ErrNilTag
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.routes[tag]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateTag, tag)
	}
	ch := &Channel[T]{tag: tag, outbox: m.outbox}
	m.routes[tag] = ch
	m.order = append(m.order, tag)
	return ch, nil
}

// MustRegister is Register for startup tables; it panics on a duplicate tag.
func MustRegister[T any](m *Mux, tag frame.Tag) *Channel[T] {
	ch, err := Register[T](m, tag)
	if err != nil {
		panic(err)
	}
	return ch
}

// Dispatch clears every inbound queue and then routes msgs by tag, preserving receipt order.
// Messages with an unregistered tag are returned unrouted. Bodies that fail to decode are
// returned as faults.
func (m *Mux) Dispatch(msgs []network.Message) (unrouted []network.Message, faults []Fault) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.routes {
		r.reset()
	}
	for _, msg := range msgs {
		r, ok := m.routes[msg.Envelope.Tag]
		if !ok {
			unrouted = append(unrouted, msg)
			continue
		}
		if err := r.deliver(msg.Sender, msg.Envelope); err != nil {
			faults = append(faults, Fault{Sender: msg.Sender, Tag: msg.Envelope.Tag, Err: err})
		}
	}
	return unrouted, faults
}

// Flush drains the outbox.
func (m *Mux) Flush() []frame.Envelope {
	return m.outbox.Drain()
}

func (m *Mux) Outbox() *Outbox {
	return m.outbox
}

// Tags lists registered tags in registration order.
func (m *Mux) Tags() []frame.Tag {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.order)
}
