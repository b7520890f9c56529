package replication

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/framefactor/internal/events"
	"github.com/danmuck/framefactor/internal/network"
	"github.com/danmuck/framefactor/internal/observability"
	"github.com/danmuck/framefactor/internal/protocol/codec"
	"github.com/danmuck/framefactor/internal/protocol/frame"
	"github.com/danmuck/framefactor/internal/protocol/session"
	"github.com/danmuck/framefactor/internal/registry"
	"github.com/danmuck/framefactor/internal/spawn"
	"github.com/rs/zerolog"
)

var (
	ErrServerLost    = errors.New("replication: server connection lost")
	ErrInvalidRate   = errors.New("replication: tick rate must be positive")
	ErrSpawnFromPeer = errors.New("replication: spawn envelope from non-authority peer")
	ErrUnknownTag    = errors.New("replication: unknown type tag")
)

// Node composes the peer directory, the typed multiplexer, the spawner and the identity
// registry of one process.
type Node struct {
	name     string
	dir      *network.Directory
	mux      *events.Mux
	spawner  *spawn.Spawner
	entities *registry.Entities
	logger   zerolog.Logger

	ticks   atomic.Uint64
	running atomic.Bool
	last    time.Time

	mu       sync.Mutex
	deferred []network.Event
}

// NewServer binds opts.Addr and returns the authority node.
func NewServer(opts Options) (*Node, error) {
	cfg := opts.Network
	if cfg.Node == "" {
		cfg.Node = "server"
	}
	ln, err := network.Listen(opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("replication: listen %s: %w", opts.Addr, err)
	}
	return newNode(cfg.Node, network.NewServer(ln, cfg), true), nil
}

// NewClient dials opts.Addr, completes the handshake with greeting and returns a
// non-authority node.
func NewClient(ctx context.Context, opts Options, greeting frame.Envelope) (*Node, error) {
	cfg := opts.Network
	if cfg.Node == "" || cfg.Node == network.DefaultConfig().Node {
		cfg.Node = "client"
	}
	dir, err := network.Dial(ctx, opts.Addr, cfg, greeting)
	if err != nil {
		return nil, err
	}
	return newNode(cfg.Node, dir, false), nil
}

func newNode(name string, dir *network.Directory, authority bool) *Node {
	entities := registry.NewEntities()
	return &Node{
		name:     name,
		dir:      dir,
		mux:      events.NewMux(events.NewOutbox()),
		spawner:  spawn.New(entities, authority),
		entities: entities,
		logger:   observability.Component(name, "replication"),
	}
}

func (n *Node) Name() string                  { return n.name }
func (n *Node) Mux() *events.Mux              { return n.mux }
func (n *Node) Spawner() *spawn.Spawner       { return n.spawner }
func (n *Node) Entities() *registry.Entities  { return n.entities }
func (n *Node) LocalID() session.ActorID      { return n.dir.LocalID() }
func (n *Node) IsServer() bool                { return n.dir.IsServer() }
func (n *Node) Peers() []network.PeerInfo     { return n.dir.Peers() }
func (n *Node) Addr() string                  { return n.dir.Addr() }
func (n *Node) Ticks() uint64                 { return n.ticks.Load() }
func (n *Node) Directory() *network.Directory { return n.dir }

// Kick disconnects id. The Disconnected event is delivered with the next tick.
func (n *Node) Kick(id session.ActorID) bool {
	ev, ok := n.dir.Remove(id, network.ErrKicked)
	if ok {
		n.postpone(ev)
	}
	return ok
}

// Tick runs one Receive, Simulate, Send cycle. Errors from simulate are returned after the Send
// phase has run.
func (n *Node) Tick(simulate func(*Tick) error) error {
	start := time.Now()
	dt := DefaultTickDelta
	if !n.last.IsZero() {
		dt = start.Sub(n.last)
	}
	n.last = start

	t := &Tick{
		Seq:    n.ticks.Add(1),
		Delta:  dt,
		Events: n.receive(),
		node:   n,
	}

	var simErr error
	if simulate != nil {
		if err := simulate(t); err != nil {
			simErr = fmt.Errorf("replication: simulate tick %d: %w", t.Seq, err)
		}
	}

	n.send()
	observability.ObserveTick(n.name, time.Since(start))
	return simErr
}

func (n *Node) receive() []network.Event {
	n.mu.Lock()
	lifecycle := n.deferred
	n.deferred = nil
	n.mu.Unlock()

	lifecycle = append(lifecycle, n.dir.Poll()...)
	msgs, dropped := n.dir.Receive()
	lifecycle = append(lifecycle, dropped...)

	unrouted, faults := n.mux.Dispatch(msgs)
	for _, msg := range unrouted {
		if err := n.applyUnrouted(msg); err != nil {
			faults = append(faults, events.Fault{Sender: msg.Sender, Tag: msg.Envelope.Tag, Err: err})
		}
	}
	for _, f := range faults {
		if ev, ok := n.dir.Remove(f.Sender, f.Err); ok {
			lifecycle = append(lifecycle, ev)
		}
	}
	return lifecycle
}

// applyUnrouted handles envelopes that no typed channel claimed. Only malformed bodies are
// returned as errors; everything else is dropped and logged.
func (n *Node) applyUnrouted(msg network.Message) error {
	tag := msg.Envelope.Tag
	if !n.spawner.Owns(tag) {
		observability.RecordDropped(n.name, "unknown_tag")
		n.logger.Warn().
			Uint32("sender", uint32(msg.Sender)).
			Str("tag", tag.String()).
			Err(ErrUnknownTag).
			Msg("replication.Node.receive dropped envelope")
		return nil
	}
	if n.spawner.Authority() {
		observability.RecordDropped(n.name, "spawn_from_peer")
		n.logger.Warn().
			Uint32("sender", uint32(msg.Sender)).
			Str("tag", tag.String()).
			Err(ErrSpawnFromPeer).
			Msg("replication.Node.receive dropped envelope")
		return nil
	}
	id, err := n.spawner.Apply(msg.Envelope)
	switch {
	case err == nil:
		observability.RecordSpawn(n.name, "remote")
		n.logger.Debug().Uint64("entity", uint64(id)).Str("tag", tag.String()).Msg("replication.Node.receive spawned")
		return nil
	case errors.Is(err, codec.ErrMalformedBody):
		return err
	default:
		observability.RecordDropped(n.name, "spawn_rejected")
		n.logger.Warn().
			Uint64("entity", uint64(id)).
			Str("tag", tag.String()).
			Err(err).
			Msg("replication.Node.receive spawn rejected")
		return nil
	}
}

func (n *Node) send() {
	var out []frame.Envelope
	if n.spawner.Authority() {
		spawned, errs := n.spawner.Flush()
		for _, err := range errs {
			n.logger.Error().Err(err).Msg("replication.Node.send spawn failed")
		}
		for range spawned {
			observability.RecordSpawn(n.name, "loopback")
		}
		out = append(out, spawned...)
	}
	out = append(out, n.mux.Flush()...)
	for _, ev := range n.dir.Broadcast(out) {
		n.postpone(ev)
	}
}

func (n *Node) postpone(ev network.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deferred = append(n.deferred, ev)
}

// Run ticks at rate per second until ctx is cancelled. A client returns ErrServerLost once its
// server connection is gone; a server returns once its listener stops accepting.
func (n *Node) Run(ctx context.Context, rate int, simulate func(*Tick) error) error {
	if rate <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRate, rate)
	}
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()
	n.running.Store(true)
	defer n.running.Store(false)
	n.logger.Info().
		Int("rate", rate).
		Bool("server", n.IsServer()).
		Uint32("local_id", uint32(n.LocalID())).
		Msg("replication.Node.Run started")

	for {
		select {
		case <-ctx.Done():
			n.logger.Info().Uint64("ticks", n.Ticks()).Msg("replication.Node.Run stopped")
			return nil
		case <-ticker.C:
			if err := n.Tick(simulate); err != nil {
				n.logger.Error().Err(err).Msg("replication.Node.Run tick failed")
			}
			if !n.IsServer() && n.dir.Len() == 0 {
				return ErrServerLost
			}
			if err := n.dir.Err(); err != nil {
				n.logger.Error().Err(err).Msg("replication.Node.Run listener failed")
				return fmt.Errorf("replication: %w", err)
			}
		}
	}
}

// Status reports a snapshot for the admin API.
func (n *Node) Status() observability.Snapshot {
	role := "client"
	if n.IsServer() {
		role = "server"
	}
	peers := n.dir.Peers()
	snap := observability.Snapshot{
		Node:    n.name,
		Role:    role,
		LocalID: uint32(n.LocalID()),
		Ticks:   n.Ticks(),
		Running: n.running.Load(),
		Peers:   make([]observability.PeerStatus, 0, len(peers)),
	}
	for _, p := range peers {
		snap.Peers = append(snap.Peers, observability.PeerStatus{
			ID:          uint32(p.ID),
			RemoteAddr:  p.RemoteAddr,
			ConnectedAt: p.ConnectedAt,
			FramesIn:    p.FramesIn,
			FramesOut:   p.FramesOut,
		})
	}
	n.entities.Range(func(id registry.EntityID, _ registry.Handle) bool {
		snap.Entities = append(snap.Entities, uint64(id))
		return true
	})
	slices.Sort(snap.Entities)
	for _, tag := range n.mux.Tags() {
		snap.Types = append(snap.Types, tag.String())
	}
	for _, tag := range n.spawner.Tags() {
		snap.Types = append(snap.Types, tag.String())
	}
	return snap
}

func (n *Node) Close() error {
	return n.dir.Close()
}
