package events

import (
	"sync"

	"github.com/danmuck/framefactor/internal/protocol/codec"
	"github.com/danmuck/framefactor/internal/protocol/frame"
	"github.com/danmuck/framefactor/internal/protocol/session"
)

// Channel is the typed handle for one registered type.
type Channel[T any] struct {
	tag    frame.Tag
	outbox *Outbox

	mu    sync.Mutex
	queue []Inbound[T]
}

func (c *Channel[T]) Tag() frame.Tag {
	return c.tag
}

// Send serializes v and queues it for the next broadcast.
func (c *Channel[T]) Send(v T) error {
	env, err := codec.Marshal(c.tag, v)
	if err != nil {
		return err
	}
	c.outbox.Push(env)
	return nil
}

// Take empties the inbound queue and returns its entries in receipt order.
func (c *Channel[T]) Take() []Inbound[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.queue
	c.queue = nil
	return out
}

func (c *Channel[T]) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = nil
}

func (c *Channel[T]) deliver(sender session.ActorID, env frame.Envelope) error {
	v, err := codec.Unmarshal[T](env)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, Inbound[T]{Sender: sender, Value: v})
	return nil
}
