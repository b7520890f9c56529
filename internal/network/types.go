package network

import (
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/framefactor/internal/protocol/frame"
	"github.com/danmuck/framefactor/internal/protocol/session"
)

var (
	ErrKicked         = errors.New("network: peer removed by server")
	ErrAtCapacity     = errors.New("network: peer capacity reached")
	ErrListenerClosed = errors.New("network: listener stopped accepting")
)

// Message is one received envelope tagged with the peer that sent it.
type Message struct {
	Sender   session.ActorID
	Envelope frame.Envelope
}

type EventKind string

const (
	EventConnected    EventKind = "connected"
	EventDisconnected EventKind = "disconnected"
)

// Event is a peer lifecycle transition surfaced to consumers.
type Event struct {
	Kind     EventKind
	Actor    session.ActorID
	Greeting frame.Envelope
	Err      error
}

func (e Event) String() string {
	if e.Kind == EventDisconnected {
		return fmt.Sprintf("%s %s: %v", e.Kind, e.Actor, e.Err)
	}
	return fmt.Sprintf("%s %s", e.Kind, e.Actor)
}

// PeerInfo is an observed snapshot of one active connection.
type PeerInfo struct {
	ID          session.ActorID `json:"id"`
	RemoteAddr  string          `json:"remote_addr"`
	ConnectedAt time.Time       `json:"connected_at"`
	FramesIn    uint64          `json:"frames_in"`
	FramesOut   uint64          `json:"frames_out"`
}

// Config configures a Directory.
type Config struct {
	Node     string
	Session  session.Config
	Limits   frame.Limits
	MaxPeers int
	Versions session.VersionPolicy
}

func DefaultConfig() Config {
	return Config{
		Node:    "server",
		Session: session.DefaultConfig(),
		Limits:  frame.DefaultLimits(),
	}
}

func (c Config) withDefaults() Config {
	if c.Node == "" {
		c.Node = DefaultConfig().Node
	}
	c.Session = c.Session.WithDefaults()
	if c.Limits.MaxFrameBytes == 0 {
		c.Limits = frame.DefaultLimits()
	}
	return c
}
