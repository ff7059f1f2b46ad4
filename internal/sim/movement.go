package sim

import (
	"github.com/boson/simcore/internal/canvas"
	"github.com/boson/simcore/internal/item"
	"go.uber.org/zap"
)

// MoveUnit orders a mobile unit to move its top-left tile to (x, y). The
// destination tile is reserved until the unit arrives or gives up.
func (e *Engine) MoveUnit(id item.ID, x, y int) error {
	u, err := e.mobileUnit(id)
	if err != nil {
		return err
	}
	e.plugins.attacks.Remove(id)
	e.plugins.mining.Remove(id)
	return e.moveTo(u, x, y, item.WorkNone)
}

func (e *Engine) mobileUnit(id item.ID) (*item.Unit, error) {
	if e.stopped {
		return nil, ErrStopped
	}
	u, ok := e.items.Unit(id)
	if !ok {
		return nil, ErrUnknownItem
	}
	if u.IsDestroyed() {
		return nil, ErrDestroyed
	}
	if !u.IsMobile() || !u.Props().IsMobile() {
		return nil, ErrNotMobile
	}
	return u, nil
}

// moveTo validates the destination, reserves it and puts u into the Move
// bucket. next is the work type taken on arrival.
func (e *Engine) moveTo(u *item.Unit, x, y int, next item.WorkType) error {
	props := u.Props()
	dest := canvas.FootprintRect(x, y, props.Width, props.Height)
	if !e.grid.CanTraverse(props.Movement(), dest) {
		return ErrCannotPlace
	}
	if c := e.grid.CellAt(x, y); c == nil || (c.ReservedBy() != 0 && c.ReservedBy() != u.ID()) {
		return ErrCannotPlace
	}
	e.grid.ReleaseAll(u.ID())
	e.grid.Reserve(x, y, u.ID())
	e.plugins.moves.Set(u.ID(), &MovePlan{
		DestX: dest.X, DestY: dest.Y,
		TileX: x, TileY: y,
		Next: next,
	})
	u.SetMoving(true)
	e.setWork(u, item.WorkMove)
	e.refreshAnimated(u)
	return nil
}

// finishMove ends a move and reclassifies u.
func (e *Engine) finishMove(u *item.Unit, next item.WorkType) {
	e.plugins.moves.Remove(u.ID())
	e.grid.ReleaseAll(u.ID())
	u.SetMoving(false)
	e.setWork(u, next)
	e.refreshAnimated(u)
}

// clampStep limits a signed distance to at most speed.
func clampStep(d, speed int32) int32 {
	if d > speed {
		return speed
	}
	if d < -speed {
		return -speed
	}
	return d
}

// advanceMove steps a unit toward its destination, then runs the move
// check.
func (e *Engine) advanceMove(id item.ID, tick uint64) {
	u, ok := e.items.Unit(id)
	if !ok || u.WorkType() != item.WorkMove {
		return
	}
	plan, ok := e.plugins.moves.Get(id)
	if !ok {
		e.log.Warn("moving unit without move plan", zap.Uint64("unit", uint64(id)))
		u.SetMoving(false)
		e.setWork(u, item.WorkNone)
		e.refreshAnimated(u)
		return
	}

	from := u.Footprint()
	speed := u.Props().Speed
	dx := clampStep(plan.DestX-from.X, speed)
	dy := clampStep(plan.DestY-from.Y, speed)
	if dx != 0 || dy != 0 {
		if e.tryStep(u, dx, dy) || (dx != 0 && dy != 0 && (e.tryStep(u, dx, 0) || e.tryStep(u, 0, dy))) {
			plan.Blocked = 0
			e.moved[id] = struct{}{}
			e.emitMoved(u, from, tick)
		} else {
			plan.Blocked++
		}
	}
	e.moveCheck(u, plan, tick)
}

// tryStep moves u by (dx, dy) when the new footprint is traversable and
// not covered by a blocking unit at rest.
func (e *Engine) tryStep(u *item.Unit, dx, dy int32) bool {
	r := u.Footprint()
	next := r.Moved(r.X+dx, r.Y+dy)
	if !e.grid.CanTraverse(u.Props().Movement(), next) {
		return false
	}
	if e.grid.RectOccupied(next, u, true) {
		return false
	}
	e.grid.MoveItem(u, next)
	return true
}

// moveCheck handles arrival and gives up after too many blocked steps.
func (e *Engine) moveCheck(u *item.Unit, plan *MovePlan, tick uint64) {
	r := u.Footprint()
	if r.X == plan.DestX && r.Y == plan.DestY {
		e.log.Debug("unit arrived",
			zap.Uint64("unit", uint64(u.ID())), zap.Int("x", plan.TileX), zap.Int("y", plan.TileY),
			zap.Uint64("tick", tick))
		e.finishMove(u, plan.Next)
		return
	}
	if e.opts.MoveBlockedLimit > 0 && plan.Blocked > e.opts.MoveBlockedLimit {
		e.log.Debug("move blocked, giving up",
			zap.Uint64("unit", uint64(u.ID())), zap.Int("blocked", plan.Blocked), zap.Uint64("tick", tick))
		e.finishMove(u, item.WorkNone)
	}
}
