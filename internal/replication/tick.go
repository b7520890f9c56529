package replication

import (
	"time"

	"github.com/danmuck/framefactor/internal/network"
)

// DefaultTickDelta is the delta reported for the first tick of a node.
const DefaultTickDelta = time.Second / DefaultTickRate

// Tick is the context handed to the Simulate phase.
type Tick struct {
	Seq    uint64
	Delta  time.Duration
	Events []network.Event

	node *Node
}

func (t *Tick) Node() *Node {
	return t.node
}

// Connected returns the peers admitted during this tick's Receive phase.
func (t *Tick) Connected() []network.Event {
	return t.filter(network.EventConnected)
}

// Disconnected returns peers that left since the previous Simulate phase.
func (t *Tick) Disconnected() []network.Event {
	return t.filter(network.EventDisconnected)
}

func (t *Tick) filter(kind network.EventKind) []network.Event {
	var out []network.Event
	for _, ev := range t.Events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}
