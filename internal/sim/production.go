package sim

import (
	"github.com/boson/simcore/internal/core/event"
	"github.com/boson/simcore/internal/item"
	"github.com/boson/simcore/internal/scripting"
	"go.uber.org/zap"
)

// spawnRadius bounds the ring scan for a produced unit, in tiles beyond
// the facility's own size.
const spawnRadius = 4

// ProduceUnit appends typeID to a facility's production queue.
func (e *Engine) ProduceUnit(facility item.ID, typeID int32) error {
	if e.stopped {
		return ErrStopped
	}
	f, ok := e.items.Unit(facility)
	if !ok {
		return ErrUnknownItem
	}
	if f.IsDestroyed() {
		return ErrDestroyed
	}
	if !f.IsFacility() {
		return ErrNotFacility
	}
	if f.WorkType() == item.WorkUnderConstruction {
		return ErrUnderConstruction
	}
	if e.units.Get(typeID) == nil {
		return ErrUnknownType
	}
	if !f.Props().CanProduce(typeID) {
		return ErrCannotProduce
	}

	p, ok := e.plugins.production.Get(facility)
	if !ok {
		p = &Production{}
		e.plugins.production.Set(facility, p)
	}
	p.Queue = append(p.Queue, typeID)
	if f.WorkType() != item.WorkProduce {
		e.setWork(f, item.WorkProduce)
	}
	return nil
}

// advanceProduce moves the front of the queue forward by one tick and
// places the finished unit next to the facility.
func (e *Engine) advanceProduce(id item.ID, tick uint64) {
	f, ok := e.items.Unit(id)
	if !ok || f.WorkType() != item.WorkProduce {
		return
	}
	p, ok := e.plugins.production.Get(id)
	if !ok {
		e.log.Warn("producing facility without production plugin", zap.Uint64("unit", uint64(id)))
		e.setWork(f, item.WorkNone)
		return
	}
	if len(p.Queue) == 0 {
		e.setWork(f, item.WorkNone)
		return
	}
	props := e.units.Get(p.Queue[0])
	if props == nil {
		e.log.Error("production of unknown unit type dropped",
			zap.Uint64("unit", uint64(id)), zap.Int32("type", p.Queue[0]))
		p.Queue = p.Queue[1:]
		p.Progress, p.Total = 0, 0
		return
	}
	if p.Total == 0 {
		p.Total = e.formulas.ProductionTicks(scripting.ProductionContext{
			FacilityType: f.TypeID(),
			UnitType:     props.TypeID,
			BuildTicks:   props.BuildTicks,
			Queued:       len(p.Queue) - 1,
		})
	}
	if p.Progress < p.Total {
		p.Progress++
	}
	if p.Progress < p.Total {
		return
	}

	cx, cy := centerTile(f)
	fp := f.Props()
	maxRadius := int(max(fp.Width, fp.Height)) + spawnRadius
	x, y, found := e.findFreeTile(props, nil, cx, cy, maxRadius, nil)
	if !found {
		// Stay finished and retry next tick.
		e.log.Debug("no room to place produced unit", zap.Uint64("facility", uint64(id)), zap.Uint64("tick", tick))
		return
	}
	u := e.spawn(f.Owner(), props, canvasRect(x, y, props), false)
	p.Queue = p.Queue[1:]
	p.Progress, p.Total = 0, 0
	event.Emit(e.bus, event.UnitProduced{ID: u.ID(), Facility: id, TypeID: props.TypeID, Tick: tick})
	if e.opts.Effects != nil {
		e.opts.Effects.Sound("unit_ready")
	}
	e.log.Debug("unit produced",
		zap.Uint64("facility", uint64(id)), zap.Uint64("unit", uint64(u.ID())), zap.Int32("type", props.TypeID))
	if len(p.Queue) == 0 {
		e.setWork(f, item.WorkNone)
	}
}

// advanceConstruction adds one construction step; health grows in
// proportion to the steps done.
func (e *Engine) advanceConstruction(id item.ID, tick uint64) {
	f, ok := e.items.Unit(id)
	if !ok || f.WorkType() != item.WorkUnderConstruction {
		return
	}
	c, ok := e.plugins.construction.Get(id)
	if !ok {
		e.log.Warn("construction site without construction plugin", zap.Uint64("unit", uint64(id)))
		e.setWork(f, item.WorkNone)
		return
	}
	if c.Step < c.Steps {
		c.Step++
	}
	if c.Steps > 0 && c.Step < c.Steps {
		h := int64(f.MaxHealth()) * int64(c.Step) / int64(c.Steps)
		if h < 1 {
			h = 1
		}
		f.SetHealth(int32(h))
		return
	}
	f.SetHealth(f.MaxHealth())
	e.plugins.construction.Remove(id)
	e.setWork(f, item.WorkNone)
	event.Emit(e.bus, event.ConstructionCompleted{ID: id, Tick: tick})
	if e.opts.Effects != nil {
		e.opts.Effects.Sound("construction_complete")
	}
}

// StopUnit cancels whatever a unit is doing: moves, attacks, harvesting or
// a facility's production queue.
func (e *Engine) StopUnit(id item.ID) error {
	if e.stopped {
		return ErrStopped
	}
	u, ok := e.items.Unit(id)
	if !ok {
		return ErrUnknownItem
	}
	if u.IsDestroyed() {
		return ErrDestroyed
	}
	if u.WorkType() == item.WorkUnderConstruction {
		return ErrUnderConstruction
	}
	e.plugins.moves.Remove(id)
	e.plugins.attacks.Remove(id)
	e.plugins.mining.Remove(id)
	e.plugins.production.Remove(id)
	e.grid.ReleaseAll(id)
	u.SetMoving(false)
	e.setWork(u, item.WorkNone)
	e.refreshAnimated(u)
	return nil
}
