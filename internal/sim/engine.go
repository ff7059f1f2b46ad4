// Package sim is the simulation engine facade. It owns the canvas, the item
// registry, the work dispatcher and the destruction lifecycle, and exposes
// the deterministic entry points orders and combat logic call into.
//
// The engine is single-threaded: Advance and every mutating call must be
// serialized by the caller onto one goroutine. Read-only queries may run
// between ticks.
package sim

import (
	"errors"
	"fmt"
	"sort"

	"github.com/boson/simcore/internal/canvas"
	"github.com/boson/simcore/internal/core/ecs"
	"github.com/boson/simcore/internal/core/event"
	"github.com/boson/simcore/internal/data"
	"github.com/boson/simcore/internal/dispatch"
	"github.com/boson/simcore/internal/item"
	"github.com/boson/simcore/internal/lifecycle"
	"github.com/boson/simcore/internal/player"
	"go.uber.org/zap"
)

// Order validation errors. A rejected order never mutates state.
var (
	ErrUnknownItem       = errors.New("unknown item")
	ErrUnknownType       = errors.New("unknown unit type")
	ErrUnknownPlayer     = errors.New("unknown player")
	ErrNotOwner          = errors.New("unit not owned by player")
	ErrNotMobile         = errors.New("unit cannot move")
	ErrNotArmed          = errors.New("unit has no weapon")
	ErrNotFacility       = errors.New("unit is not a facility")
	ErrNotHarvester      = errors.New("unit is not a harvester")
	ErrCannotProduce     = errors.New("facility cannot produce this type")
	ErrCannotPlace       = errors.New("cannot place unit there")
	ErrDestroyed         = errors.New("unit is destroyed")
	ErrUnderConstruction = errors.New("facility under construction")
	ErrInvalidOrder      = errors.New("invalid order")
	ErrStopped           = errors.New("engine stopped")
)

// Engine is the simulation facade.
// Accessed only from the simulation goroutine; no locks.
type Engine struct {
	opts     Options
	formulas Formulas
	units    *data.UnitTable
	grid     *canvas.Grid
	world    *ecs.World
	items    *item.Registry
	disp     *dispatch.Dispatcher
	life     *lifecycle.Lifecycle
	players  *player.Registry
	bus      *event.Bus
	log      *zap.Logger
	plugins  plugins

	animated []item.ID // ascending
	moved    map[item.ID]struct{}
	tick     uint64
	stopped  bool
}

// NewEngine builds an engine on map m. formulas and bus may be nil.
func NewEngine(opts Options, m *data.MapData, units *data.UnitTable, players *player.Registry,
	formulas Formulas, bus *event.Bus, log *zap.Logger) (*Engine, error) {
	if m == nil {
		return nil, fmt.Errorf("new engine: no map")
	}
	if units == nil || players == nil {
		return nil, fmt.Errorf("new engine: unit table and player registry are required")
	}
	if formulas == nil {
		formulas = builtinFormulas{}
	}
	if bus == nil {
		bus = event.NewBus()
	}

	world := ecs.NewWorld()
	e := &Engine{
		opts:     opts,
		formulas: formulas,
		units:    units,
		grid:     canvas.NewGrid(m, log),
		world:    world,
		items:    item.NewRegistry(world),
		disp:     dispatch.New(opts.Periods, opts.CleanupPeriod, log),
		players:  players,
		bus:      bus,
		log:      log,
		plugins:  newPlugins(world.Registry()),
		moved:    make(map[item.ID]struct{}, 32),
	}
	e.life = lifecycle.New(opts.WreckageTicks, e.grid, e.items, e.disp, players, bus, e.explode, log)

	e.disp.Handle(item.WorkNone, e.advanceIdle)
	e.disp.Handle(item.WorkProduce, e.advanceProduce)
	e.disp.Handle(item.WorkMove, e.advanceMove)
	e.disp.Handle(item.WorkMine, e.advanceMine)
	e.disp.Handle(item.WorkRefine, e.advanceRefine)
	e.disp.Handle(item.WorkAttack, e.advanceAttack)
	e.disp.Handle(item.WorkUnderConstruction, e.advanceConstruction)

	players.InitFog(m.Width(), m.Height())
	event.Emit(bus, event.TilesLoaded{Width: m.Width(), Height: m.Height()})
	log.Info("engine ready",
		zap.String("map", m.Name()), zap.Int("width", m.Width()), zap.Int("height", m.Height()),
		zap.Int("players", players.Count()), zap.Int("unit_types", units.Count()))
	return e, nil
}

func (e *Engine) Grid() *canvas.Grid               { return e.grid }
func (e *Engine) Items() *item.Registry            { return e.items }
func (e *Engine) Players() *player.Registry        { return e.players }
func (e *Engine) Dispatcher() *dispatch.Dispatcher { return e.disp }
func (e *Engine) Lifecycle() *lifecycle.Lifecycle  { return e.life }
func (e *Engine) UnitTable() *data.UnitTable       { return e.units }
func (e *Engine) Bus() *event.Bus                  { return e.bus }
func (e *Engine) Options() Options                 { return e.opts }
func (e *Engine) Tick() uint64                     { return e.tick }

// Unit returns a unit by id.
func (e *Engine) Unit(id item.ID) (*item.Unit, bool) {
	return e.items.Unit(id)
}

// Plugin state accessors, for inspection between ticks.
func (e *Engine) MovePlan(id item.ID) (*MovePlan, bool)     { return e.plugins.moves.Get(id) }
func (e *Engine) Production(id item.ID) (*Production, bool) { return e.plugins.production.Get(id) }
func (e *Engine) Mining(id item.ID) (*Mining, bool)         { return e.plugins.mining.Get(id) }
func (e *Engine) AttackOf(id item.ID) (*Attack, bool)       { return e.plugins.attacks.Get(id) }
func (e *Engine) Construction(id item.ID) (*Construction, bool) {
	return e.plugins.construction.Get(id)
}

// Advance runs one simulation tick. Rendering is not triggered from here;
// hosts refresh views on their own timer.
func (e *Engine) Advance(tick uint64) {
	if e.stopped {
		e.log.Error("advance after quit", zap.Uint64("tick", tick))
		return
	}
	e.tick = tick
	e.disp.Advance(tick, hooks{e})
	for id := range e.moved {
		delete(e.moved, id)
	}
}

// SetWorkType reclassifies a unit. During a tick the bucket change takes
// effect after the tick; between ticks it is immediate. Destroyed goes
// through Destroy.
func (e *Engine) SetWorkType(id item.ID, w item.WorkType) error {
	u, ok := e.items.Unit(id)
	if !ok {
		return ErrUnknownItem
	}
	if u.IsDestroyed() {
		return ErrDestroyed
	}
	if w == item.WorkDestroyed {
		e.destroy(u)
		return nil
	}
	e.setWork(u, w)
	return nil
}

func (e *Engine) setWork(u *item.Unit, w item.WorkType) {
	if !w.Valid() {
		e.log.Warn("unknown work type, using none",
			zap.Uint64("unit", uint64(u.ID())), zap.Uint8("work", uint8(w)))
		w = item.WorkNone
	}
	if u.SetWorkType(w) {
		e.disp.Request(u.ID(), w)
	}
}

// Quit tears the session down without simulating wreckage aging. The
// engine refuses further ticks afterwards.
func (e *Engine) Quit() {
	e.life.Clear()
	e.disp.Clear()
	e.plugins.clear()
	e.grid.Reset()
	e.items.Clear()
	e.animated = nil
	for id := range e.moved {
		delete(e.moved, id)
	}
	e.stopped = true
	e.log.Info("engine stopped", zap.Uint64("tick", e.tick))
}

// animate adds id to the lightweight bookkeeping set.
func (e *Engine) animate(id item.ID) {
	i := sort.Search(len(e.animated), func(i int) bool { return e.animated[i] >= id })
	if i < len(e.animated) && e.animated[i] == id {
		return
	}
	e.animated = append(e.animated, 0)
	copy(e.animated[i+1:], e.animated[i:])
	e.animated[i] = id
}

func (e *Engine) unanimate(id item.ID) {
	i := sort.Search(len(e.animated), func(i int) bool { return e.animated[i] >= id })
	if i < len(e.animated) && e.animated[i] == id {
		e.animated = append(e.animated[:i], e.animated[i+1:]...)
	}
}

// refreshAnimated keeps a unit in the animated set while it is armed or
// moving.
func (e *Engine) refreshAnimated(u *item.Unit) {
	if !u.IsDestroyed() && (u.Props().CanShoot() || u.IsMoving()) {
		e.animate(u.ID())
		return
	}
	e.unanimate(u.ID())
}

// hooks adapts the engine to dispatch.Hooks without exporting the hook
// methods on Engine.
type hooks struct{ e *Engine }

func (h hooks) Animated() []item.ID {
	out := make([]item.ID, len(h.e.animated))
	copy(out, h.e.animated)
	return out
}

func (h hooks) Live(id item.ID) bool {
	it, ok := h.e.items.Get(id)
	return ok && !it.IsDestroyed()
}

func (h hooks) PreAdvance(id item.ID, tick uint64) {
	it, ok := h.e.items.Get(id)
	if !ok {
		return
	}
	switch v := it.(type) {
	case *item.Unit:
		v.TickReload()
	case *item.Effect:
		if v.Tick() {
			h.e.unanimate(id)
			h.e.items.Remove(id)
		}
	}
}

func (h hooks) PostAdvance(id item.ID, tick uint64) {
	if _, moved := h.e.moved[id]; !moved {
		return
	}
	if u, ok := h.e.items.Unit(id); ok && !u.IsDestroyed() {
		h.e.updateSight(u)
	}
}

func (h hooks) Housekeeping(tick uint64) {
	h.e.life.Cleanup(tick)
	// Expired effects queued by PreAdvance.
	h.e.items.Flush()
}
