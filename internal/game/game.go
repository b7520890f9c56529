package game

import (
	"fmt"
	"slices"

	"github.com/danmuck/framefactor/internal/events"
	"github.com/danmuck/framefactor/internal/observability"
	"github.com/danmuck/framefactor/internal/protocol/session"
	"github.com/danmuck/framefactor/internal/registry"
	"github.com/danmuck/framefactor/internal/replication"
	"github.com/danmuck/framefactor/internal/spawn"
	"github.com/rs/zerolog"
)

// Config tunes the arena.
type Config struct {
	MaxPlayers int
	Speed      float32
	Frame      string
	// Input samples the local movement vector on clients. Nil means no input.
	Input func() Vec2
}

func DefaultConfig() Config {
	return Config{
		MaxPlayers: 2,
		Speed:      240,
		Frame:      "frames/knight.frame",
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxPlayers <= 0 {
		c.MaxPlayers = def.MaxPlayers
	}
	if c.Speed <= 0 {
		c.Speed = def.Speed
	}
	if c.Frame == "" {
		c.Frame = def.Frame
	}
	return c
}

// Game binds the arena's replicated types to one node.
type Game struct {
	cfg    Config
	node   *replication.Node
	world  *World
	logger zerolog.Logger

	spawner    *spawn.Kind[PlayerSpawner]
	transforms *events.Channel[TransformEvent]
	inputs     *events.Channel[PlayerInputEvent]
	players    *events.Channel[PlayerEvent]
	settings   *events.Channel[GameSettings]

	// server
	lobby   []session.ActorID
	started bool

	// client
	local     registry.EntityID
	hasLocal  bool
	lastInput Vec2
	mode      GameMode
}

// New registers every arena type on node. Call once before the node's first tick.
func New(node *replication.Node, cfg Config) (*Game, error) {
	g := &Game{
		cfg:    cfg.withDefaults(),
		node:   node,
		world:  NewWorld(node.Entities()),
		logger: observability.Component(node.Name(), "game"),
	}
	var err error
	if g.spawner, err = spawn.Register[PlayerSpawner](node.Spawner(), PlayerSpawnerTag, g.replayPlayer); err != nil {
		return nil, err
	}
	if g.transforms, err = events.Register[TransformEvent](node.Mux(), TransformEventTag); err != nil {
		return nil, err
	}
	if g.inputs, err = events.Register[PlayerInputEvent](node.Mux(), PlayerInputEventTag); err != nil {
		return nil, err
	}
	if g.players, err = events.Register[PlayerEvent](node.Mux(), PlayerEventTag); err != nil {
		return nil, err
	}
	if g.settings, err = events.Register[GameSettings](node.Mux(), GameSettingsTag); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Game) World() *World {
	return g.world
}

// LocalPlayer returns the id of the player this client controls.
func (g *Game) LocalPlayer() (registry.EntityID, bool) {
	return g.local, g.hasLocal
}

func (g *Game) Started() bool {
	return g.started || g.mode != ""
}

func (g *Game) Lobby() []session.ActorID {
	return slices.Clone(g.lobby)
}

// Simulate is the node's Simulate phase.
func (g *Game) Simulate(t *replication.Tick) error {
	if g.node.IsServer() {
		return g.serverTick(t)
	}
	return g.clientTick(t)
}

func (g *Game) replayPlayer(id registry.EntityID, s PlayerSpawner) (registry.Handle, error) {
	h := g.world.spawn(Player{
		Entity:   id,
		Frame:    s.Frame,
		Owner:    s.PlayerID,
		Position: s.Position,
	})
	if !g.node.IsServer() && s.PlayerID == g.node.LocalID() {
		g.local = id
		g.hasLocal = true
	}
	g.logger.Info().
		Uint64("entity", uint64(id)).
		Uint32("owner", uint32(s.PlayerID)).
		Msg("game.replayPlayer spawned")
	return h, nil
}

func (g *Game) serverTick(t *replication.Tick) error {
	for _, ev := range t.Disconnected() {
		g.leave(ev.Actor)
	}
	for _, ev := range t.Connected() {
		g.join(ev.Actor)
	}
	if !g.started && len(g.lobby) == g.cfg.MaxPlayers {
		if err := g.start(); err != nil {
			return err
		}
	}

	for _, in := range g.inputs.Take() {
		p, ok := g.world.Player(in.Value.Entity)
		if !ok {
			continue
		}
		if p.Owner != in.Sender {
			g.logger.Warn().
				Uint32("sender", uint32(in.Sender)).
				Uint32("owner", uint32(p.Owner)).
				Msg("game.serverTick foreign input ignored")
			continue
		}
		p.Movement = in.Value.Movement
		if err := g.players.Send(PlayerEvent{Kind: PlayerSetMovement, Entity: p.Entity, Movement: p.Movement}); err != nil {
			return err
		}
	}

	dt := float32(t.Delta.Seconds())
	for _, snapshot := range g.world.Players() {
		p, ok := g.world.Player(snapshot.Entity)
		if !ok {
			continue
		}
		p.Position = p.Position.Add(p.Movement.Normalize().Scale(g.cfg.Speed * dt))
		if err := g.transforms.Send(TransformEvent{Entity: p.Entity, Translation: p.Position}); err != nil {
			return err
		}
	}
	return nil
}

func (g *Game) join(actor session.ActorID) {
	if g.started || len(g.lobby) >= g.cfg.MaxPlayers {
		g.logger.Warn().Uint32("actor", uint32(actor)).Msg("game.join lobby full")
		g.node.Kick(actor)
		return
	}
	g.lobby = append(g.lobby, actor)
	g.logger.Info().
		Uint32("actor", uint32(actor)).
		Int("lobby", len(g.lobby)).
		Msg("game.join")
}

// leave removes a departed peer from the lobby and despawns its players on every peer.
func (g *Game) leave(actor session.ActorID) {
	g.lobby = slices.DeleteFunc(g.lobby, func(id session.ActorID) bool { return id == actor })
	for _, id := range g.world.OwnedBy(actor) {
		g.world.Despawn(id)
		if err := g.players.Send(PlayerEvent{Kind: PlayerDespawn, Entity: id}); err != nil {
			g.logger.Error().Err(err).Msg("game.leave despawn broadcast failed")
		}
	}
}

func (g *Game) start() error {
	g.started = true
	if err := g.settings.Send(GameSettings{Mode: OneVersusOne, Players: slices.Clone(g.lobby)}); err != nil {
		return err
	}
	for i, actor := range g.lobby {
		err := g.spawner.Spawn(PlayerSpawner{
			Frame:    g.cfg.Frame,
			PlayerID: actor,
			Position: spawnPoint(i, len(g.lobby)),
		})
		if err != nil {
			return fmt.Errorf("game: spawn player for %s: %w", actor, err)
		}
	}
	g.logger.Info().Int("players", len(g.lobby)).Msg("game.start")
	return nil
}

func spawnPoint(i, n int) Vec2 {
	const spacing = 200
	offset := float32(i) - float32(n-1)/2
	return Vec2{X: offset * spacing}
}

func (g *Game) clientTick(t *replication.Tick) error {
	for _, s := range g.settings.Take() {
		g.mode = s.Value.Mode
		g.logger.Info().Str("mode", string(g.mode)).Msg("game.clientTick settings")
	}
	for _, ev := range g.players.Take() {
		switch ev.Value.Kind {
		case PlayerDespawn:
			g.world.Despawn(ev.Value.Entity)
			if g.hasLocal && g.local == ev.Value.Entity {
				g.hasLocal = false
			}
		case PlayerSetMovement:
			if p, ok := g.world.Player(ev.Value.Entity); ok {
				p.Movement = ev.Value.Movement
			}
		}
	}
	for _, tr := range g.transforms.Take() {
		if p, ok := g.world.Player(tr.Value.Entity); ok {
			p.Position = tr.Value.Translation
		}
	}

	if !g.hasLocal || g.cfg.Input == nil {
		return nil
	}
	movement := g.cfg.Input()
	if movement == g.lastInput {
		return nil
	}
	g.lastInput = movement
	if p, ok := g.world.Player(g.local); ok {
		p.Movement = movement
	}
	return g.inputs.Send(PlayerInputEvent{Entity: g.local, Movement: movement})
}
