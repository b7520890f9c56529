package events

import (
	"sync"

	"github.com/danmuck/framefactor/internal/protocol/frame"
)

// Outbox buffers outbound envelopes between flushes. Push is safe from any goroutine.
type Outbox struct {
	mu    sync.Mutex
	items []frame.Envelope
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) Push(env frame.Envelope) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items = append(o.items, env)
}

// Drain returns every buffered envelope in push order and empties the buffer.
func (o *Outbox) Drain() []frame.Envelope {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.items
	o.items = nil
	return out
}

func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}
