package game

import (
	"context"
	"testing"
	"time"

	"github.com/danmuck/framefactor/internal/protocol/session"
	"github.com/danmuck/framefactor/internal/registry"
	"github.com/danmuck/framefactor/internal/replication"
	"github.com/danmuck/framefactor/internal/testutil/testlog"
)

type peer struct {
	node *replication.Node
	game *Game
}

func (p *peer) tick(t *testing.T) {
	t.Helper()
	if err := p.node.Tick(p.game.Simulate); err != nil {
		t.Fatalf("tick %s: %v", p.node.Name(), err)
	}
}

func options() replication.Options {
	opts := replication.DefaultOptions()
	opts.Addr = "127.0.0.1:0"
	opts.Network.Session.HandshakeTimeout = 2 * time.Second
	opts.Network.Session.ConnectAttempts = 1
	return opts
}

func newServer(t *testing.T) *peer {
	t.Helper()
	n, err := replication.NewServer(options())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() { _ = n.Close() })
	g, err := New(n, DefaultConfig())
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	return &peer{node: n, game: g}
}

func join(t *testing.T, srv *peer, cfg Config) *peer {
	t.Helper()
	opts := options()
	opts.Addr = srv.node.Addr()
	greeting, err := session.Hello{Name: "player", Version: "0.1.0"}.Envelope()
	if err != nil {
		t.Fatalf("hello: %v", err)
	}
	done := make(chan *replication.Node, 1)
	go func() {
		n, err := replication.NewClient(context.Background(), opts, greeting)
		if err != nil {
			t.Errorf("new client: %v", err)
		}
		done <- n
	}()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		srv.tick(t)
		select {
		case n := <-done:
			if n == nil {
				t.FailNow()
			}
			t.Cleanup(func() { _ = n.Close() })
			g, err := New(n, cfg)
			if err != nil {
				t.Fatalf("new game: %v", err)
			}
			return &peer{node: n, game: g}
		default:
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("client did not connect")
	return nil
}

func waitFor(t *testing.T, what string, peers []*peer, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		for _, p := range peers {
			p.tick(t)
		}
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestLobbyFillSpawnsOnePlayerPerPeer(t *testing.T) {
	testlog.Start(t)
	srv := newServer(t)
	a := join(t, srv, DefaultConfig())
	if srv.game.Started() {
		t.Fatalf("game started with one player")
	}
	b := join(t, srv, DefaultConfig())
	all := []*peer{srv, a, b}

	waitFor(t, "players on every peer", all, func() bool {
		return srv.game.World().Len() == 2 && a.game.World().Len() == 2 && b.game.World().Len() == 2
	})
	waitFor(t, "settings", all, func() bool { return a.game.Started() && b.game.Started() })

	aID, ok := a.game.LocalPlayer()
	if !ok {
		t.Fatalf("client a has no local player")
	}
	bID, ok := b.game.LocalPlayer()
	if !ok || aID == bID {
		t.Fatalf("unexpected local players: a=%s b=%s ok=%v", aID, bID, ok)
	}
	for _, id := range []registry.EntityID{aID, bID} {
		sp, ok := srv.game.World().Player(id)
		if !ok {
			t.Fatalf("server missing %s", id)
		}
		cp, ok := b.game.World().Player(id)
		if !ok || cp.Owner != sp.Owner {
			t.Fatalf("ownership mismatch for %s", id)
		}
	}
	if p, _ := srv.game.World().Player(aID); p.Owner != a.node.LocalID() {
		t.Fatalf("a's player owned by %s", p.Owner)
	}
}

func TestInputMovesOwnPlayer(t *testing.T) {
	testlog.Start(t)
	srv := newServer(t)
	cfg := DefaultConfig()
	cfg.Input = func() Vec2 { return Vec2{X: 1} }
	a := join(t, srv, cfg)
	b := join(t, srv, DefaultConfig())
	all := []*peer{srv, a, b}

	waitFor(t, "local player", all, func() bool {
		_, ok := a.game.LocalPlayer()
		return ok
	})
	id, _ := a.game.LocalPlayer()
	start, _ := srv.game.World().Player(id)
	startX := start.Position.X

	waitFor(t, "replicated movement", all, func() bool {
		p, ok := b.game.World().Player(id)
		return ok && p.Position.X > startX && p.Movement.X == 1
	})
	other, _ := b.game.LocalPlayer()
	if p, _ := srv.game.World().Player(other); p.Movement != (Vec2{}) {
		t.Fatalf("idle player moved: %+v", p.Movement)
	}
}

func TestForeignInputIgnored(t *testing.T) {
	testlog.Start(t)
	srv := newServer(t)
	a := join(t, srv, DefaultConfig())
	b := join(t, srv, DefaultConfig())
	all := []*peer{srv, a, b}
	waitFor(t, "local players", all, func() bool {
		_, okA := a.game.LocalPlayer()
		_, okB := b.game.LocalPlayer()
		return okA && okB
	})
	victim, _ := b.game.LocalPlayer()
	if err := a.game.inputs.Send(PlayerInputEvent{Entity: victim, Movement: Vec2{Y: 1}}); err != nil {
		t.Fatalf("send: %v", err)
	}
	for i := 0; i < 10; i++ {
		for _, p := range all {
			p.tick(t)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if p, _ := srv.game.World().Player(victim); p.Movement != (Vec2{}) {
		t.Fatalf("foreign input applied: %+v", p.Movement)
	}
}

func TestThirdPlayerIsKicked(t *testing.T) {
	testlog.Start(t)
	srv := newServer(t)
	join(t, srv, DefaultConfig())
	join(t, srv, DefaultConfig())
	c := join(t, srv, DefaultConfig())

	waitFor(t, "third client kicked", []*peer{srv, c}, func() bool {
		return c.node.Directory().Len() == 0
	})
	if got := len(srv.game.Lobby()); got != 2 {
		t.Fatalf("unexpected lobby size: %d", got)
	}
}

func TestDisconnectDespawnsPlayers(t *testing.T) {
	testlog.Start(t)
	srv := newServer(t)
	a := join(t, srv, DefaultConfig())
	b := join(t, srv, DefaultConfig())
	waitFor(t, "players", []*peer{srv, a, b}, func() bool {
		return a.game.World().Len() == 2 && b.game.World().Len() == 2
	})
	gone, _ := b.game.LocalPlayer()
	_ = b.node.Close()

	waitFor(t, "despawn", []*peer{srv, a}, func() bool {
		return srv.game.World().Len() == 1 && a.game.World().Len() == 1
	})
	if srv.node.Entities().Contains(gone) || a.node.Entities().Contains(gone) {
		t.Fatalf("%s still registered after despawn", gone)
	}
	if got := srv.game.Lobby(); len(got) != 1 || got[0] != a.node.LocalID() {
		t.Fatalf("unexpected lobby: %v", got)
	}
}

func TestVecNormalize(t *testing.T) {
	if got := (Vec2{X: 3, Y: 4}).Normalize(); got.Length() < 0.999 || got.Length() > 1.001 {
		t.Fatalf("unexpected unit length: %v", got.Length())
	}
	if got := (Vec2{}).Normalize(); got != (Vec2{}) {
		t.Fatalf("zero vector normalized to %+v", got)
	}
	if a, b := spawnPoint(0, 2), spawnPoint(1, 2); a.X != -b.X || a.X == 0 {
		t.Fatalf("spawn points not symmetric: %+v %+v", a, b)
	}
}
