package network

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/danmuck/framefactor/internal/observability"
	"github.com/danmuck/framefactor/internal/protocol/frame"
	"github.com/danmuck/framefactor/internal/protocol/session"
	"github.com/danmuck/framefactor/internal/transport"
)

// Dial connects to a server, reads its greeting and answers with greeting. The returned
// directory holds exactly one connection, keyed by the server's actor id.
func Dial(ctx context.Context, addr string, cfg Config, greeting frame.Envelope) (*Directory, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, fmt.Errorf("network: dial address required")
	}
	if cfg.Node == "" {
		cfg.Node = "client"
	}
	d := newDirectory(cfg)
	raw, err := d.dialWithBackoff(ctx, addr)
	if err != nil {
		return nil, err
	}

	g, err := readGreeting(raw, d.cfg.Session.HandshakeTimeout)
	if err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("network: read greeting: %w", err)
	}
	conn, err := transport.New(raw, transport.Options{
		Limits:       d.cfg.Limits,
		WriteTimeout: d.cfg.Session.WriteTimeout,
	})
	if err != nil {
		_ = raw.Close()
		return nil, err
	}
	if err := conn.Send(greeting); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("network: send greeting: %w", err)
	}

	d.localID = g.ClientID
	d.serverID = g.ServerID
	d.insert(g.ServerID, &peer{conn: conn, greeting: frame.Envelope{}, connectedAt: time.Now()})
	observability.RecordLifecycle(d.cfg.Node, string(EventConnected), string(transport.KindNone))
	d.logger.Info().
		Str("addr", addr).
		Uint32("local_id", uint32(g.ClientID)).
		Uint32("server_id", uint32(g.ServerID)).
		Msg("network.Dial connected")
	return d, nil
}

func (d *Directory) dialWithBackoff(ctx context.Context, addr string) (net.Conn, error) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	dialer := net.Dialer{Timeout: d.cfg.Session.ConnectTimeout}
	for attempt := 1; ; attempt++ {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}
		d.logger.Warn().
			Int("attempt", attempt).
			Str("addr", addr).
			Err(err).
			Msg("network.Dial attempt failed")
		if attempt >= d.cfg.Session.ConnectAttempts {
			return nil, fmt.Errorf("network: dial %s after %d attempts: %w", addr, attempt, err)
		}
		if err := session.WaitBackoff(ctx, d.cfg.Session.Backoff, attempt, rng); err != nil {
			return nil, err
		}
	}
}

func readGreeting(raw net.Conn, timeout time.Duration) (session.Greeting, error) {
	if err := raw.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return session.Greeting{}, err
	}
	defer raw.SetReadDeadline(time.Time{})
	return session.ReadGreeting(raw)
}
