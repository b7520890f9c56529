package game

import (
	"sort"

	"github.com/danmuck/framefactor/internal/protocol/session"
	"github.com/danmuck/framefactor/internal/registry"
)

// World stores players in a generation-checked arena. Replicated ids resolve to handles through
// the node's identity registry.
type World struct {
	players  *registry.Arena[Player]
	entities *registry.Entities
}

func NewWorld(entities *registry.Entities) *World {
	return &World{
		players:  registry.NewArena[Player](),
		entities: entities,
	}
}

func (w *World) spawn(p Player) registry.Handle {
	return w.players.Insert(p)
}

// Player resolves a replicated id to the live player it names.
func (w *World) Player(id registry.EntityID) (*Player, bool) {
	h, ok := w.entities.Get(id)
	if !ok {
		return nil, false
	}
	p := w.players.Ptr(h)
	return p, p != nil
}

// Despawn removes a player from the arena and the identity registry.
func (w *World) Despawn(id registry.EntityID) bool {
	h, ok := w.entities.Get(id)
	if !ok {
		return false
	}
	w.entities.Remove(id)
	return w.players.Remove(h)
}

// OwnedBy lists the ids of players controlled by actor.
func (w *World) OwnedBy(actor session.ActorID) []registry.EntityID {
	var out []registry.EntityID
	w.players.Each(func(_ registry.Handle, p *Player) {
		if p.Owner == actor {
			out = append(out, p.Entity)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Players returns a copy of every live player ordered by entity id.
func (w *World) Players() []Player {
	out := make([]Player, 0, w.players.Len())
	w.players.Each(func(_ registry.Handle, p *Player) {
		out = append(out, *p)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Entity < out[j].Entity })
	return out
}

func (w *World) Len() int {
	return w.players.Len()
}
