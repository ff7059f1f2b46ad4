package sim

import (
	"github.com/boson/simcore/internal/canvas"
	"github.com/boson/simcore/internal/core/event"
	"github.com/boson/simcore/internal/data"
	"github.com/boson/simcore/internal/item"
	"go.uber.org/zap"
)

// placementMovement is the terrain class a unit type is placed on.
// Facilities without movement flags stand on land.
func placementMovement(props *data.UnitProps) data.Movement {
	mv := props.Movement()
	if mv == 0 && props.Facility {
		mv = data.MoveLand
	}
	return mv
}

// CanPlaceUnitAt reports whether a unit of type props may be placed with its
// top-left tile at (x, y). With a builder, the target center must also lie
// within build range: of the builder itself when it is mobile, otherwise of
// any live facility of the builder's owner. Distances are center to center
// and compared squared.
func (e *Engine) CanPlaceUnitAt(props *data.UnitProps, x, y int, builder *item.Unit) bool {
	if props == nil || props.Width <= 0 || props.Height <= 0 {
		e.log.Error("unit type with empty footprint", zap.Int32("type", typeIDOf(props)))
		return false
	}
	r := canvas.FootprintRect(x, y, props.Width, props.Height)
	if !e.grid.CanTraverse(placementMovement(props), r) {
		return false
	}
	if !e.footprintFree(props, r, nil) {
		return false
	}
	if builder == nil {
		return true
	}
	return e.inBuildRange(r, builder)
}

// footprintFree reports whether no blocking item and no foreign reservation
// covers r. Flying units only check reservations.
func (e *Engine) footprintFree(props *data.UnitProps, r item.Rect, self *item.Unit) bool {
	x0, y0, x1, y1, ok := canvas.CellRange(r)
	if !ok {
		return false
	}
	var selfID item.ID
	var forItem item.Item
	if self != nil {
		selfID = self.ID()
		forItem = self
	}
	for ty := y0; ty <= y1; ty++ {
		for tx := x0; tx <= x1; tx++ {
			c := e.grid.CellAt(tx, ty)
			if c == nil {
				return false
			}
			if res := c.ReservedBy(); res != 0 && res != selfID {
				return false
			}
			if !props.Air && e.grid.IsOccupied(tx, ty, forItem, false) {
				return false
			}
		}
	}
	return true
}

func (e *Engine) inBuildRange(target item.Rect, builder *item.Unit) bool {
	radius := int64(e.opts.BuildRangeTiles) * int64(canvas.CellSize)
	limit := radius * radius
	cx, cy := target.Center()
	if builder.IsMobile() {
		bx, by := builder.Footprint().Center()
		return item.DistSq(cx, cy, bx, by) <= limit
	}
	for _, u := range e.items.Units() {
		if u.Owner() != builder.Owner() || !u.IsFacility() || u.IsDestroyed() {
			continue
		}
		fx, fy := u.Footprint().Center()
		if item.DistSq(cx, cy, fx, fy) <= limit {
			return true
		}
	}
	return false
}

func typeIDOf(props *data.UnitProps) int32 {
	if props == nil {
		return 0
	}
	return props.TypeID
}

// PlaceUnit puts a new, finished unit of typeID for owner at tile (x, y).
// It is the setup entry point for scenarios and tests.
func (e *Engine) PlaceUnit(owner uint32, typeID int32, x, y int) (item.ID, error) {
	return e.place(owner, typeID, x, y, nil, false)
}

// PlaceConstruction puts a facility in the UnderConstruction state without
// a builder.
func (e *Engine) PlaceConstruction(owner uint32, typeID int32, x, y int) (item.ID, error) {
	return e.place(owner, typeID, x, y, nil, true)
}

// PlaceFacility starts construction of a facility at tile (x, y) on behalf
// of builder. The site must be within build range of the builder.
func (e *Engine) PlaceFacility(builder item.ID, typeID int32, x, y int) (item.ID, error) {
	b, ok := e.items.Unit(builder)
	if !ok {
		return 0, ErrUnknownItem
	}
	if b.IsDestroyed() {
		return 0, ErrDestroyed
	}
	if b.WorkType() == item.WorkUnderConstruction {
		return 0, ErrUnderConstruction
	}
	return e.place(b.Owner(), typeID, x, y, b, true)
}

func (e *Engine) place(owner uint32, typeID int32, x, y int, builder *item.Unit, constructing bool) (item.ID, error) {
	if e.stopped {
		return 0, ErrStopped
	}
	props := e.units.Get(typeID)
	if props == nil {
		return 0, ErrUnknownType
	}
	if e.players.Get(owner) == nil {
		return 0, ErrUnknownPlayer
	}
	if constructing && !props.Facility {
		return 0, ErrNotFacility
	}
	if !e.CanPlaceUnitAt(props, x, y, builder) {
		return 0, ErrCannotPlace
	}
	u := e.spawn(owner, props, canvas.FootprintRect(x, y, props.Width, props.Height), constructing)
	return u.ID(), nil
}

// spawn creates and registers a unit on a footprint already validated.
func (e *Engine) spawn(owner uint32, props *data.UnitProps, r item.Rect, constructing bool) *item.Unit {
	id := e.items.NewID()
	u := item.NewUnit(id, props, owner, r)
	if err := e.items.Add(u); err != nil {
		// NewID never hands out a registered id.
		e.log.Error("register unit", zap.Error(err))
		return u
	}
	e.grid.AddToCells(u)
	e.players.Get(owner).AddUnit(id)

	work := item.WorkNone
	if constructing {
		work = item.WorkUnderConstruction
		e.plugins.construction.Set(id, &Construction{Steps: props.Steps})
		u.SetHealth(1)
	}
	u.SetWorkType(work)
	e.disp.Request(id, work)
	e.refreshAnimated(u)
	e.updateSight(u)
	return u
}

// findFreeTile scans rings of growing Chebyshev radius around (cx, cy) for
// the first top-left tile where props fits and accept, if set, agrees.
// Rings are walked row by row, so the result is deterministic.
func (e *Engine) findFreeTile(props *data.UnitProps, self *item.Unit, cx, cy, maxRadius int,
	accept func(item.Rect) bool) (int, int, bool) {
	mv := placementMovement(props)
	for radius := 0; radius <= maxRadius; radius++ {
		for y := cy - radius; y <= cy+radius; y++ {
			for x := cx - radius; x <= cx+radius; x++ {
				if radius > 0 && y != cy-radius && y != cy+radius && x != cx-radius && x != cx+radius {
					continue
				}
				r := canvas.FootprintRect(x, y, props.Width, props.Height)
				if !e.grid.CanTraverse(mv, r) || !e.footprintFree(props, r, self) {
					continue
				}
				if accept != nil && !accept(r) {
					continue
				}
				return x, y, true
			}
		}
	}
	return 0, 0, false
}

// tileOfUnit returns the tile of a unit's top-left corner.
func tileOfUnit(u *item.Unit) (int, int) {
	r := u.Footprint()
	return canvas.TileOf(r.X), canvas.TileOf(r.Y)
}

// centerTile returns the tile under a unit's center.
func centerTile(u *item.Unit) (int, int) {
	cx, cy := u.Footprint().Center()
	return canvas.TileOf(cx), canvas.TileOf(cy)
}

// updateSight unfogs, for the owner, every tile whose squared distance from
// the unit's center tile is within its sight range. Tiles leaving range
// stay unfogged.
func (e *Engine) updateSight(u *item.Unit) {
	p := e.players.Get(u.Owner())
	if p == nil {
		return
	}
	s := int(u.Props().SightRange)
	if s <= 0 {
		return
	}
	cx, cy := centerTile(u)
	limit := s * s
	for dy := -s; dy <= s; dy++ {
		for dx := -s; dx <= s; dx++ {
			if dx*dx+dy*dy > limit {
				continue
			}
			p.Unfog(cx+dx, cy+dy)
		}
	}
}

// emitMoved publishes a committed footprint change.
func (e *Engine) emitMoved(u *item.Unit, from item.Rect, tick uint64) {
	to := u.Footprint()
	event.Emit(e.bus, event.UnitMoved{
		ID: u.ID(), FromX: from.X, FromY: from.Y, ToX: to.X, ToY: to.Y, Tick: tick,
	})
}

func canvasRect(x, y int, props *data.UnitProps) item.Rect {
	return canvas.FootprintRect(x, y, props.Width, props.Height)
}
