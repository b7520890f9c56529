package replication

import (
	"github.com/danmuck/framefactor/internal/network"
)

// DefaultTickRate is the server simulation rate in ticks per second.
const DefaultTickRate = 48

// Options configures one Node.
type Options struct {
	// Addr is the listen address on the server and the dial address on clients.
	Addr    string
	Network network.Config
}

func DefaultOptions() Options {
	return Options{
		Addr:    "127.0.0.1:7777",
		Network: network.DefaultConfig(),
	}
}
