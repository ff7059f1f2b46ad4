package sim

import (
	"github.com/boson/simcore/internal/canvas"
	"github.com/boson/simcore/internal/item"
	"github.com/boson/simcore/internal/scripting"
	"go.uber.org/zap"
)

// ShootAt applies damage to target; negative damage heals up to full
// health. A hit that leaves zero health destroys the target, any other hit
// spawns a short-lived impact effect.
func (e *Engine) ShootAt(target, attacker item.ID, damage int32) error {
	if e.stopped {
		return ErrStopped
	}
	t, ok := e.items.Unit(target)
	if !ok {
		return ErrUnknownItem
	}
	if t.IsDestroyed() {
		return ErrDestroyed
	}

	h := int64(t.Health()) - int64(damage)
	if h < 0 {
		h = 0
	}
	if h > int64(t.MaxHealth()) {
		h = int64(t.MaxHealth())
	}
	t.SetHealth(int32(h))

	if t.Health() == 0 {
		e.destroy(t)
		return nil
	}

	x, y := t.Footprint().Center()
	id := e.items.NewID()
	fx := item.NewEffect(id, x, y, target, attacker, e.opts.ImpactTicks)
	if err := e.items.Add(fx); err != nil {
		e.log.Error("register impact effect", zap.Error(err))
		return nil
	}
	e.animate(id)
	if e.opts.Effects != nil {
		e.opts.Effects.Impact(target, attacker, x, y, e.tick)
	}
	return nil
}

// Destroy turns a unit into wreckage. Destroying a wreck again is a no-op.
func (e *Engine) Destroy(id item.ID) error {
	u, ok := e.items.Unit(id)
	if !ok {
		return ErrUnknownItem
	}
	e.destroy(u)
	return nil
}

func (e *Engine) destroy(u *item.Unit) {
	if !e.life.Destroy(u, e.tick) {
		return
	}
	e.unanimate(u.ID())
	e.plugins.moves.Remove(u.ID())
	e.plugins.attacks.Remove(u.ID())
}

// explode is the lifecycle's destruction side effect.
func (e *Engine) explode(u *item.Unit, tick uint64) {
	if e.opts.Effects == nil {
		return
	}
	x, y := u.Footprint().Center()
	e.opts.Effects.Explosion(u.ID(), x, y, tick)
}

// AttackUnit orders an armed unit to attack target.
func (e *Engine) AttackUnit(id, target item.ID) error {
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
	if !u.Props().CanShoot() {
		return ErrNotArmed
	}
	if u.WorkType() == item.WorkUnderConstruction {
		return ErrUnderConstruction
	}
	t, ok := e.items.Unit(target)
	if !ok || target == id {
		return ErrUnknownItem
	}
	if t.IsDestroyed() {
		return ErrDestroyed
	}
	if u.IsMoving() {
		e.plugins.moves.Remove(id)
		e.grid.ReleaseAll(id)
		u.SetMoving(false)
	}
	e.plugins.mining.Remove(id)
	e.plugins.attacks.Set(id, &Attack{Target: target})
	e.setWork(u, item.WorkAttack)
	e.refreshAnimated(u)
	return nil
}

// weaponRangeSq is the squared weapon range in canvas pixels.
func weaponRangeSq(u *item.Unit) int64 {
	w := u.Props().Weapon
	if w == nil {
		return 0
	}
	r := int64(w.RangeTiles) * int64(canvas.CellSize)
	return r * r
}

func inRange(u, t *item.Unit, rangeSq int64) bool {
	ax, ay := u.Footprint().Center()
	bx, by := t.Footprint().Center()
	return item.DistSq(ax, ay, bx, by) <= rangeSq
}

// advanceAttack fires at the current target once the weapon reloaded.
// A lost target ends the attack; a target out of range is chased by mobile
// units.
func (e *Engine) advanceAttack(id item.ID, tick uint64) {
	u, ok := e.items.Unit(id)
	if !ok || u.WorkType() != item.WorkAttack {
		return
	}
	a, ok := e.plugins.attacks.Get(id)
	if !ok {
		e.log.Warn("attacking unit without target", zap.Uint64("unit", uint64(id)))
		e.setWork(u, item.WorkNone)
		return
	}
	t, ok := e.items.Unit(a.Target)
	if !ok || t.IsDestroyed() {
		e.plugins.attacks.Remove(id)
		e.setWork(u, item.WorkNone)
		return
	}
	if !inRange(u, t, weaponRangeSq(u)) {
		if u.IsMobile() && u.Props().IsMobile() {
			tx, ty := centerTile(t)
			tcx, tcy := t.Footprint().Center()
			rangeSq := weaponRangeSq(u)
			within := func(r item.Rect) bool {
				x, y := r.Center()
				return item.DistSq(x, y, tcx, tcy) <= rangeSq
			}
			if x, y, found := e.findFreeTile(u.Props(), u, tx, ty, int(u.Props().Weapon.RangeTiles), within); found {
				if err := e.moveTo(u, x, y, item.WorkAttack); err == nil {
					return
				}
			}
		}
		e.plugins.attacks.Remove(id)
		e.setWork(u, item.WorkNone)
		return
	}
	if !u.Reloaded() {
		return
	}
	dmg := e.formulas.AttackDamage(scripting.AttackContext{
		AttackerType:   u.TypeID(),
		TargetType:     t.TypeID(),
		BaseDamage:     u.Props().Weapon.Damage,
		TargetHealth:   t.Health(),
		TargetMax:      t.MaxHealth(),
		TargetFlying:   t.IsFlying(),
		TargetBuilding: t.IsFacility(),
	})
	u.ResetReload()
	if err := e.ShootAt(t.ID(), id, dmg); err != nil {
		e.log.Warn("shot rejected", zap.Uint64("unit", uint64(id)), zap.Error(err))
	}
}

// advanceIdle lets armed idle units pick the nearest enemy in weapon range.
// Ties go to the lowest id.
func (e *Engine) advanceIdle(id item.ID, tick uint64) {
	u, ok := e.items.Unit(id)
	if !ok || u.WorkType() != item.WorkNone || !u.Props().CanShoot() {
		return
	}
	if t := e.nearestEnemy(u); t != nil {
		e.plugins.attacks.Set(id, &Attack{Target: t.ID()})
		e.setWork(u, item.WorkAttack)
	}
}

func (e *Engine) nearestEnemy(u *item.Unit) *item.Unit {
	rangeSq := weaponRangeSq(u)
	reach := u.Props().Weapon.RangeTiles * canvas.CellSize
	fp := u.Footprint()
	area := item.Rect{X: fp.X - reach, Y: fp.Y - reach, W: fp.W + 2*reach, H: fp.H + 2*reach}

	ux, uy := fp.Center()
	var best *item.Unit
	var bestDist int64
	for _, it := range e.grid.Collisions(canvas.RectRegion(area), u.ID(), false) {
		t, ok := it.(*item.Unit)
		if !ok || t.IsDestroyed() || t.Owner() == u.Owner() {
			continue
		}
		tx, ty := t.Footprint().Center()
		d := item.DistSq(ux, uy, tx, ty)
		if d > rangeSq {
			continue
		}
		// Collisions are sorted by id, so strict less keeps the lowest id.
		if best == nil || d < bestDist {
			best, bestDist = t, d
		}
	}
	return best
}
