// Package lifecycle moves units from "destroyed" to "permanently removed".
// A destroyed unit stays on the canvas as wreckage until it has aged past
// the wreckage threshold; removal only ever happens from Cleanup, which the
// dispatcher runs at its housekeeping point.
package lifecycle

import (
	"github.com/boson/simcore/internal/canvas"
	"github.com/boson/simcore/internal/core/ecs"
	"github.com/boson/simcore/internal/core/event"
	"github.com/boson/simcore/internal/dispatch"
	"github.com/boson/simcore/internal/item"
	"github.com/boson/simcore/internal/player"
	"go.uber.org/zap"
)

// ExplosionFunc is the destruction side effect (explosion, sound).
type ExplosionFunc func(u *item.Unit, tick uint64)

// Lifecycle tracks wreckage. Accessed only from the simulation goroutine.
type Lifecycle struct {
	threshold uint64
	wrecks    map[item.ID]uint64 // id -> tick of destruction

	grid    *canvas.Grid
	items   *item.Registry
	disp    *dispatch.Dispatcher
	players *player.Registry
	bus     *event.Bus
	explode ExplosionFunc
	log     *zap.Logger
}

// New creates a lifecycle removing wrecks threshold ticks after destruction.
// bus and explode may be nil.
func New(threshold uint64, grid *canvas.Grid, items *item.Registry, disp *dispatch.Dispatcher,
	players *player.Registry, bus *event.Bus, explode ExplosionFunc, log *zap.Logger) *Lifecycle {
	return &Lifecycle{
		threshold: threshold,
		wrecks:    make(map[item.ID]uint64, 32),
		grid:      grid,
		items:     items,
		disp:      disp,
		players:   players,
		bus:       bus,
		explode:   explode,
		log:       log,
	}
}

// Threshold returns the wreckage-removal age in ticks.
func (l *Lifecycle) Threshold() uint64 { return l.threshold }

// Destroy turns u into wreckage. It is idempotent: a unit already tracked
// is left untouched and false is returned.
func (l *Lifecycle) Destroy(u *item.Unit, tick uint64) bool {
	id := u.ID()
	if _, tracked := l.wrecks[id]; tracked {
		l.log.Debug("destroy: already wreckage", zap.Uint64("unit", uint64(id)))
		return false
	}
	u.MarkDestroyed()
	l.disp.Request(id, item.WorkDestroyed)
	l.grid.ReleaseAll(id)

	owner := l.players.Get(u.Owner())
	if owner != nil {
		owner.UnitDestroyed(id)
	} else {
		l.log.Warn("destroyed unit has no registered owner",
			zap.Uint64("unit", uint64(id)), zap.Uint32("owner", u.Owner()))
	}
	if l.explode != nil {
		l.explode(u, tick)
	}
	l.wrecks[id] = tick
	if l.bus != nil {
		event.Emit(l.bus, event.UnitDestroyed{ID: id, Owner: u.Owner(), Tick: tick})
	}

	if owner != nil && owner.CheckOutOfGame() {
		l.log.Info("player out of game", zap.Uint32("player", owner.ID()), zap.Uint64("tick", tick))
		if l.bus != nil {
			event.Emit(l.bus, event.PlayerOutOfGame{Player: owner.ID(), Tick: tick})
		}
	}
	return true
}

// Contains reports whether id is tracked wreckage.
func (l *Lifecycle) Contains(id item.ID) bool {
	_, ok := l.wrecks[id]
	return ok
}

// Age returns the number of ticks since id was destroyed.
func (l *Lifecycle) Age(id item.ID, tick uint64) (uint64, bool) {
	at, ok := l.wrecks[id]
	if !ok {
		return 0, false
	}
	if tick < at {
		return 0, true
	}
	return tick - at, true
}

// Len returns the number of tracked wrecks.
func (l *Lifecycle) Len() int { return len(l.wrecks) }

// IDs returns the tracked wrecks in ascending id order.
func (l *Lifecycle) IDs() []item.ID {
	ids := make([]item.ID, 0, len(l.wrecks))
	for id := range l.wrecks {
		ids = append(ids, id)
	}
	ecs.SortIDs(ids)
	return ids
}

// Cleanup removes every wreck whose age reached the threshold from the
// canvas, the dispatcher and the item registry. It must only be called at
// the housekeeping point of a tick. Removed ids are returned ascending.
func (l *Lifecycle) Cleanup(tick uint64) []item.ID {
	var expired []item.ID
	for _, id := range l.IDs() {
		if age, _ := l.Age(id, tick); age >= l.threshold {
			expired = append(expired, id)
		}
	}
	if len(expired) == 0 {
		return nil
	}

	for _, id := range expired {
		delete(l.wrecks, id)
		if it, ok := l.items.Get(id); ok {
			l.grid.RemoveFromCells(it)
		}
		l.grid.ReleaseAll(id)
		l.disp.Forget(id)
		l.items.Remove(id)
	}
	l.items.Flush()

	for _, id := range expired {
		if l.bus != nil {
			event.Emit(l.bus, event.WreckageRemoved{ID: id, Tick: tick})
		}
	}
	l.log.Debug("wreckage removed", zap.Int("count", len(expired)), zap.Uint64("tick", tick))
	return expired
}

// Clear forgets every wreck without aging or removing anything. Used for
// session teardown.
func (l *Lifecycle) Clear() {
	for id := range l.wrecks {
		delete(l.wrecks, id)
	}
}
