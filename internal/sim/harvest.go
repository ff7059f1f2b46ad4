package sim

import (
	"github.com/boson/simcore/internal/canvas"
	"github.com/boson/simcore/internal/item"
	"github.com/boson/simcore/internal/scripting"
	"go.uber.org/zap"
)

// MineAt sends a harvester to mine the field at tile (x, y). It keeps
// shuttling between the field and the nearest own refinery until stopped.
func (e *Engine) MineAt(id item.ID, x, y int) error {
	u, err := e.mobileUnit(id)
	if err != nil {
		return err
	}
	props := u.Props()
	if !props.Harvester || props.Capacity <= 0 {
		return ErrNotHarvester
	}
	if !e.grid.CanTraverse(props.Movement(), canvas.FootprintRect(x, y, props.Width, props.Height)) {
		return ErrCannotPlace
	}
	m, ok := e.plugins.mining.Get(id)
	if !ok {
		m = &Mining{}
		e.plugins.mining.Set(id, m)
	}
	m.FieldX, m.FieldY = x, y
	e.plugins.attacks.Remove(id)
	if tx, ty := tileOfUnit(u); tx == x && ty == y && !u.IsMoving() {
		e.setWork(u, item.WorkMine)
		return nil
	}
	if err := e.moveTo(u, x, y, item.WorkMine); err != nil {
		e.plugins.mining.Remove(id)
		return err
	}
	return nil
}

// advanceMine loads minerals while standing on the field. A full load is
// carried to the nearest refinery.
func (e *Engine) advanceMine(id item.ID, tick uint64) {
	u, ok := e.items.Unit(id)
	if !ok || u.WorkType() != item.WorkMine {
		return
	}
	m, ok := e.plugins.mining.Get(id)
	if !ok {
		e.log.Warn("mining unit without mining plugin", zap.Uint64("unit", uint64(id)))
		e.setWork(u, item.WorkNone)
		return
	}
	props := u.Props()
	if tx, ty := tileOfUnit(u); tx != m.FieldX || ty != m.FieldY {
		if err := e.moveTo(u, m.FieldX, m.FieldY, item.WorkMine); err != nil {
			e.log.Debug("field unreachable", zap.Uint64("unit", uint64(id)), zap.Error(err))
		}
		return
	}
	if m.Carried < props.Capacity {
		m.Carried += e.formulas.MineAmount(scripting.HarvestContext{
			UnitType: props.TypeID, Carried: m.Carried, Capacity: props.Capacity,
		})
	}
	if m.Carried < props.Capacity {
		return
	}
	ref := e.nearestRefinery(u)
	if ref == nil {
		e.log.Debug("harvester full, no refinery", zap.Uint64("unit", uint64(id)), zap.Uint64("tick", tick))
		return
	}
	e.approach(u, ref, item.WorkRefine)
}

// advanceRefine unloads at a refinery in range, then returns to the field.
func (e *Engine) advanceRefine(id item.ID, tick uint64) {
	u, ok := e.items.Unit(id)
	if !ok || u.WorkType() != item.WorkRefine {
		return
	}
	m, ok := e.plugins.mining.Get(id)
	if !ok {
		e.log.Warn("refining unit without mining plugin", zap.Uint64("unit", uint64(id)))
		e.setWork(u, item.WorkNone)
		return
	}
	ref := e.nearestRefinery(u)
	if ref == nil {
		e.setWork(u, item.WorkNone)
		return
	}
	reach := int64(e.opts.RefineRangeTiles) * int64(canvas.CellSize)
	if !inRange(u, ref, reach*reach) {
		e.approach(u, ref, item.WorkRefine)
		return
	}
	if m.Carried > 0 {
		amount := e.formulas.RefineAmount(scripting.HarvestContext{
			UnitType: u.TypeID(), Carried: m.Carried, Capacity: u.Props().Capacity,
		})
		m.Carried -= amount
		if p := e.players.Get(u.Owner()); p != nil {
			p.AddMinerals(int64(amount))
		}
	}
	if m.Carried > 0 {
		return
	}
	if err := e.moveTo(u, m.FieldX, m.FieldY, item.WorkMine); err != nil {
		e.log.Debug("field unreachable", zap.Uint64("unit", uint64(id)), zap.Error(err))
		e.setWork(u, item.WorkNone)
	}
}

// approach moves u to the first free tile within refine range of target.
func (e *Engine) approach(u, target *item.Unit, next item.WorkType) {
	tx, ty := centerTile(target)
	radius := int(max(target.Props().Width, target.Props().Height)) + int(e.opts.RefineRangeTiles)
	reach := int64(e.opts.RefineRangeTiles) * int64(canvas.CellSize)
	rx, ry := target.Footprint().Center()
	within := func(r item.Rect) bool {
		x, y := r.Center()
		return item.DistSq(x, y, rx, ry) <= reach*reach
	}
	x, y, found := e.findFreeTile(u.Props(), u, tx, ty, radius, within)
	if !found {
		e.log.Debug("no free tile near target",
			zap.Uint64("unit", uint64(u.ID())), zap.Uint64("target", uint64(target.ID())))
		return
	}
	if err := e.moveTo(u, x, y, next); err != nil {
		e.log.Debug("approach failed", zap.Uint64("unit", uint64(u.ID())), zap.Error(err))
	}
}

// nearestRefinery returns the closest finished refinery of u's owner, ties
// to the lowest id.
func (e *Engine) nearestRefinery(u *item.Unit) *item.Unit {
	ux, uy := u.Footprint().Center()
	var best *item.Unit
	var bestDist int64
	for _, r := range e.items.Units() {
		if r.Owner() != u.Owner() || !r.Props().Refinery || r.IsDestroyed() ||
			r.WorkType() == item.WorkUnderConstruction {
			continue
		}
		rx, ry := r.Footprint().Center()
		d := item.DistSq(ux, uy, rx, ry)
		if best == nil || d < bestDist {
			best, bestDist = r, d
		}
	}
	return best
}
