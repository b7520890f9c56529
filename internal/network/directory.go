package network

import (
	"fmt"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/danmuck/framefactor/internal/observability"
	"github.com/danmuck/framefactor/internal/protocol/frame"
	"github.com/danmuck/framefactor/internal/protocol/session"
	"github.com/danmuck/framefactor/internal/registry"
	"github.com/danmuck/framefactor/internal/transport"
	"github.com/rs/zerolog"
)

type peer struct {
	conn        *transport.Conn
	greeting    frame.Envelope
	connectedAt time.Time
}

// Directory owns the active connection set of one process.
//
// Poll, Receive, Broadcast and Remove belong to the tick goroutine. Peers may be called
// concurrently for observation.
type Directory struct {
	cfg      Config
	listener *Listener
	ids      *registry.ActorAllocator
	logger   zerolog.Logger

	localID  session.ActorID
	serverID session.ActorID

	mu    sync.RWMutex
	peers map[session.ActorID]*peer
	order []session.ActorID
}

func newDirectory(cfg Config) *Directory {
	cfg = cfg.withDefaults()
	return &Directory{
		cfg:      cfg,
		ids:      registry.NewActorAllocator(),
		logger:   observability.Component(cfg.Node, "network"),
		localID:  session.ServerID,
		serverID: session.ServerID,
		peers:    make(map[session.ActorID]*peer),
	}
}

// NewServer builds the server-role directory over an already bound listener.
func NewServer(ln *Listener, cfg Config) *Directory {
	d := newDirectory(cfg)
	d.listener = ln
	observability.SetActivePeers(d.cfg.Node, 0)
	return d
}

func (d *Directory) IsServer() bool {
	return d.listener != nil
}

func (d *Directory) LocalID() session.ActorID {
	return d.localID
}

func (d *Directory) ServerID() session.ActorID {
	return d.serverID
}

// Addr returns the bound listen address on the server, empty on clients.
func (d *Directory) Addr() string {
	if d.listener == nil {
		return ""
	}
	return d.listener.Addr()
}

// Err reports a server whose listener has stopped admitting peers.
func (d *Directory) Err() error {
	if d.listener == nil {
		return nil
	}
	if err := d.listener.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrListenerClosed, err)
	}
	return nil
}

// Poll admits sockets accepted since the last tick. Each admitted socket gets the next actor id,
// the greeting, and one blocking read of its own greeting envelope.
func (d *Directory) Poll() []Event {
	if d.listener == nil {
		return nil
	}
	var events []Event
	for _, raw := range d.listener.Pending() {
		ev, err := d.admit(raw)
		if err != nil {
			_ = raw.Close()
			observability.RecordLifecycle(d.cfg.Node, "rejected", string(transport.Classify(err)))
			d.logger.Warn().
				Str("remote", remoteAddr(raw)).
				Err(err).
				Msg("network.Directory.Poll handshake rejected")
			continue
		}
		events = append(events, ev)
	}
	return events
}

func (d *Directory) admit(raw net.Conn) (Event, error) {
	if d.cfg.MaxPeers > 0 && d.Len() >= d.cfg.MaxPeers {
		return Event{}, fmt.Errorf("%w: max_peers=%d", ErrAtCapacity, d.cfg.MaxPeers)
	}
	id := d.ids.Next()
	conn, err := transport.New(raw, transport.Options{
		Limits:       d.cfg.Limits,
		WriteTimeout: d.cfg.Session.WriteTimeout,
	})
	if err != nil {
		return Event{}, err
	}
	if err := raw.SetWriteDeadline(time.Now().Add(d.cfg.Session.HandshakeTimeout)); err != nil {
		return Event{}, err
	}
	if err := session.WriteGreeting(raw, session.Greeting{ClientID: id, ServerID: d.localID}); err != nil {
		return Event{}, fmt.Errorf("write greeting to %s: %w", id, err)
	}
	greeting, err := conn.ReceiveOneBlocking(d.cfg.Session.HandshakeTimeout)
	if err != nil {
		return Event{}, fmt.Errorf("read greeting from %s: %w", id, err)
	}
	if err := d.cfg.Versions.Admit(greeting); err != nil {
		return Event{}, fmt.Errorf("%s: %w", id, err)
	}

	d.insert(id, &peer{conn: conn, greeting: greeting, connectedAt: time.Now()})
	observability.RecordLifecycle(d.cfg.Node, string(EventConnected), string(transport.KindNone))
	d.logger.Info().
		Uint32("actor", uint32(id)).
		Str("remote", conn.RemoteAddr()).
		Str("greeting_tag", greeting.Tag.String()).
		Msg("network.Directory.Poll connected")
	return Event{Kind: EventConnected, Actor: id, Greeting: greeting}, nil
}

// Receive drains every active connection in ascending actor order. A connection that fails is
// removed and reported exactly once.
func (d *Directory) Receive() ([]Message, []Event) {
	var (
		msgs   []Message
		failed []Event
	)
	for _, id := range d.snapshotOrder() {
		p, ok := d.get(id)
		if !ok {
			continue
		}
		envs, err := p.conn.ReceiveAll()
		for _, env := range envs {
			msgs = append(msgs, Message{Sender: id, Envelope: env})
		}
		if err != nil {
			if ev, ok := d.remove(id, err); ok {
				failed = append(failed, ev)
			}
		}
	}
	observability.RecordFrames(d.cfg.Node, "in", len(msgs))
	return msgs, failed
}

// Broadcast sends every envelope to every active connection, in order.
func (d *Directory) Broadcast(envs []frame.Envelope) []Event {
	if len(envs) == 0 {
		return nil
	}
	var failed []Event
	sent := 0
	for _, id := range d.snapshotOrder() {
		p, ok := d.get(id)
		if !ok {
			continue
		}
		for _, env := range envs {
			if err := p.conn.Send(env); err != nil {
				if ev, ok := d.remove(id, err); ok {
					failed = append(failed, ev)
				}
				break
			}
			sent++
		}
	}
	observability.RecordFrames(d.cfg.Node, "out", sent)
	return failed
}

// Remove disconnects id on request. reason defaults to ErrKicked.
func (d *Directory) Remove(id session.ActorID, reason error) (Event, bool) {
	if reason == nil {
		reason = ErrKicked
	}
	return d.remove(id, reason)
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.peers)
}

// Greeting returns the greeting envelope an active peer sent during its handshake.
func (d *Directory) Greeting(id session.ActorID) (frame.Envelope, bool) {
	p, ok := d.get(id)
	if !ok {
		return frame.Envelope{}, false
	}
	return p.greeting, true
}

func (d *Directory) Peers() []PeerInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]PeerInfo, 0, len(d.order))
	for _, id := range d.order {
		p := d.peers[id]
		in, sent := p.conn.Stats()
		out = append(out, PeerInfo{
			ID:          id,
			RemoteAddr:  p.conn.RemoteAddr(),
			ConnectedAt: p.connectedAt,
			FramesIn:    in,
			FramesOut:   sent,
		})
	}
	return out
}

// Close tears down the listener and every connection without emitting events.
func (d *Directory) Close() error {
	var err error
	if d.listener != nil {
		err = d.listener.Close()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, p := range d.peers {
		_ = p.conn.Close()
		delete(d.peers, id)
	}
	d.order = nil
	observability.SetActivePeers(d.cfg.Node, 0)
	return err
}

func (d *Directory) insert(id session.ActorID, p *peer) {
	d.mu.Lock()
	d.peers[id] = p
	d.order = append(d.order, id)
	slices.Sort(d.order)
	n := len(d.peers)
	d.mu.Unlock()
	d.ids.Observe(id)
	observability.SetActivePeers(d.cfg.Node, n)
}

func (d *Directory) remove(id session.ActorID, err error) (Event, bool) {
	d.mu.Lock()
	p, ok := d.peers[id]
	if !ok {
		d.mu.Unlock()
		return Event{}, false
	}
	delete(d.peers, id)
	d.order = slices.DeleteFunc(d.order, func(v session.ActorID) bool { return v == id })
	n := len(d.peers)
	d.mu.Unlock()

	_ = p.conn.Close()
	kind := transport.Classify(err)
	observability.SetActivePeers(d.cfg.Node, n)
	observability.RecordLifecycle(d.cfg.Node, string(EventDisconnected), string(kind))
	d.logger.Warn().
		Uint32("actor", uint32(id)).
		Str("kind", string(kind)).
		Err(err).
		Msg("network.Directory disconnected")
	return Event{Kind: EventDisconnected, Actor: id, Err: err}, true
}

func (d *Directory) get(id session.ActorID) (*peer, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.peers[id]
	return p, ok
}

func (d *Directory) snapshotOrder() []session.ActorID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.order)
}

func remoteAddr(c net.Conn) string {
	if addr := c.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
