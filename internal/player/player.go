// Package player is the ownership registry: which player owns which live
// units, per-player fog of war, resources and the out-of-game state.
package player

import (
	"fmt"
	"sort"

	"github.com/boson/simcore/internal/item"
)

// Player holds one participant's state.
// Accessed only from the simulation goroutine; no locks.
type Player struct {
	id        uint32
	name      string
	minerals  int64
	units     []item.ID // live units, ascending
	fog       []bool    // [y*width+x], true = fogged
	width     int
	height    int
	outOfGame bool
}

func (p *Player) ID() uint32      { return p.id }
func (p *Player) Name() string    { return p.name }
func (p *Player) Minerals() int64 { return p.minerals }
func (p *Player) OutOfGame() bool { return p.outOfGame }
func (p *Player) UnitCount() int  { return len(p.units) }

// AddMinerals credits (or, negative, debits) resources. It refuses to
// go below zero.
func (p *Player) AddMinerals(n int64) bool {
	if p.minerals+n < 0 {
		return false
	}
	p.minerals += n
	return true
}

// Units returns the player's live unit ids, ascending.
func (p *Player) Units() []item.ID {
	out := make([]item.ID, len(p.units))
	copy(out, p.units)
	return out
}

// HasUnit reports whether id is one of the player's live units.
func (p *Player) HasUnit(id item.ID) bool {
	i := sort.Search(len(p.units), func(i int) bool { return p.units[i] >= id })
	return i < len(p.units) && p.units[i] == id
}

// AddUnit records a new live unit.
func (p *Player) AddUnit(id item.ID) {
	i := sort.Search(len(p.units), func(i int) bool { return p.units[i] >= id })
	if i < len(p.units) && p.units[i] == id {
		return
	}
	p.units = append(p.units, 0)
	copy(p.units[i+1:], p.units[i:])
	p.units[i] = id
}

// UnitDestroyed removes a unit from the live set without deleting it; the
// engine still owns the wreck. It reports whether the unit was known.
func (p *Player) UnitDestroyed(id item.ID) bool {
	i := sort.Search(len(p.units), func(i int) bool { return p.units[i] >= id })
	if i == len(p.units) || p.units[i] != id {
		return false
	}
	p.units = append(p.units[:i], p.units[i+1:]...)
	return true
}

// CheckOutOfGame moves the player out of the game once it has no live
// units left. It reports true only on the transition.
func (p *Player) CheckOutOfGame() bool {
	if p.outOfGame || len(p.units) > 0 {
		return false
	}
	p.outOfGame = true
	return true
}

// InitFog fogs every tile of a width x height map.
func (p *Player) InitFog(width, height int) {
	p.width, p.height = width, height
	p.fog = make([]bool, width*height)
	for i := range p.fog {
		p.fog[i] = true
	}
}

// IsFogged reports whether the player cannot see tile (x, y). Tiles outside
// the map are always fogged.
func (p *Player) IsFogged(x, y int) bool {
	if x < 0 || y < 0 || x >= p.width || y >= p.height {
		return true
	}
	return p.fog[y*p.width+x]
}

// Unfog reveals tile (x, y) and reports whether it was fogged.
func (p *Player) Unfog(x, y int) bool {
	if !p.IsFogged(x, y) || x < 0 || y < 0 || x >= p.width || y >= p.height {
		return false
	}
	p.fog[y*p.width+x] = false
	return true
}

// FoggedCount returns the number of fogged tiles.
func (p *Player) FoggedCount() int {
	n := 0
	for _, f := range p.fog {
		if f {
			n++
		}
	}
	return n
}

// Registry owns all players of a session.
type Registry struct {
	players map[uint32]*Player
	order   []uint32
}

func NewRegistry() *Registry {
	return &Registry{players: make(map[uint32]*Player)}
}

// Add registers a player. Id 0 is reserved for "no owner".
func (r *Registry) Add(id uint32, name string, minerals int64) (*Player, error) {
	if id == 0 {
		return nil, fmt.Errorf("player id 0 is reserved")
	}
	if _, dup := r.players[id]; dup {
		return nil, fmt.Errorf("player %d: already registered", id)
	}
	p := &Player{id: id, name: name, minerals: minerals}
	r.players[id] = p
	r.order = append(r.order, id)
	sort.Slice(r.order, func(i, j int) bool { return r.order[i] < r.order[j] })
	return p, nil
}

// Get returns a player, or nil if not found.
func (r *Registry) Get(id uint32) *Player {
	return r.players[id]
}

// All returns every player in ascending id order.
func (r *Registry) All() []*Player {
	out := make([]*Player, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.players[id])
	}
	return out
}

// Count returns the number of players.
func (r *Registry) Count() int { return len(r.order) }

// InitFog fogs the whole map for every player.
func (r *Registry) InitFog(width, height int) {
	for _, p := range r.players {
		p.InitFog(width, height)
	}
}
