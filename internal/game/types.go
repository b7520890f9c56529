package game

import (
	"math"

	"github.com/danmuck/framefactor/internal/protocol/frame"
	"github.com/danmuck/framefactor/internal/protocol/session"
	"github.com/danmuck/framefactor/internal/registry"
)

var (
	PlayerSpawnerTag    = frame.MustTag("053c55fe-dcd8-4746-829f-51760445739e")
	TransformEventTag   = frame.MustTag("d4acd5da-0fdd-412c-9c6b-96ed1bca3595")
	PlayerInputEventTag = frame.MustTag("1f4df47b-58da-477b-9921-0ac53cefd889")
	PlayerEventTag      = frame.MustTag("1d042690-8b1a-45ec-94db-7fdccaab7090")
	GameSettingsTag     = frame.MustTag("4a559fd6-20c6-4d5e-85e8-3e5611b0987f")
)

type Vec2 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

func (v Vec2) Scale(s float32) Vec2 {
	return Vec2{X: v.X * s, Y: v.Y * s}
}

func (v Vec2) Length() float32 {
	return float32(math.Hypot(float64(v.X), float64(v.Y)))
}

// Normalize returns the unit vector of v, or the zero vector.
func (v Vec2) Normalize() Vec2 {
	l := v.Length()
	if l == 0 {
		return Vec2{}
	}
	return v.Scale(1 / l)
}

// PlayerSpawner is the spawnable that creates one player on every peer.
type PlayerSpawner struct {
	Frame    string          `json:"frame"`
	PlayerID session.ActorID `json:"player_id"`
	Position Vec2            `json:"position"`
}

// TransformEvent carries the authoritative position of one entity.
type TransformEvent struct {
	Entity      registry.EntityID `json:"entity"`
	Translation Vec2              `json:"translation"`
}

// PlayerInputEvent is a client's movement request for its own player.
type PlayerInputEvent struct {
	Entity   registry.EntityID `json:"entity"`
	Movement Vec2              `json:"movement"`
}

type PlayerEventKind string

const (
	PlayerSetMovement PlayerEventKind = "set_movement"
	PlayerDespawn     PlayerEventKind = "despawn"
)

// PlayerEvent is a server-side player state change.
type PlayerEvent struct {
	Kind     PlayerEventKind   `json:"kind"`
	Entity   registry.EntityID `json:"entity"`
	Movement Vec2              `json:"movement"`
}

type GameMode string

const OneVersusOne GameMode = "one_versus_one"

// GameSettings is broadcast once the lobby is full.
type GameSettings struct {
	Mode    GameMode          `json:"mode"`
	Players []session.ActorID `json:"players"`
}

// Player is the local simulation state of one replicated player.
type Player struct {
	Entity   registry.EntityID
	Frame    string
	Owner    session.ActorID
	Position Vec2
	Movement Vec2
}
