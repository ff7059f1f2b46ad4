package item

import "github.com/boson/simcore/internal/data"

// Unit is a mobile unit or a facility. The owner is a player id, not a
// reference: ownership bookkeeping belongs to the player registry.
// Accessed only from the simulation goroutine; no locks.
type Unit struct {
	id        ID
	kind      Kind
	props     *data.UnitProps
	owner     uint32
	rect      Rect
	health    int32
	work      WorkType
	destroyed bool
	moving    bool
	reload    uint32
}

// NewUnit creates a live unit with full health and work type None.
// kind is derived from the catalog entry.
func NewUnit(id ID, props *data.UnitProps, owner uint32, rect Rect) *Unit {
	kind := KindMobile
	if props.Facility {
		kind = KindFacility
	}
	return &Unit{
		id:     id,
		kind:   kind,
		props:  props,
		owner:  owner,
		rect:   rect,
		health: props.Health,
	}
}

func (u *Unit) ID() ID                 { return u.id }
func (u *Unit) Kind() Kind             { return u.kind }
func (u *Unit) HasFootprint() bool     { return true }
func (u *Unit) Footprint() Rect        { return u.rect }
func (u *Unit) CanAdvance() bool       { return !u.destroyed }
func (u *Unit) IsFlying() bool         { return u.props.Air }
func (u *Unit) IsMoving() bool         { return u.moving }
func (u *Unit) IsDestroyed() bool      { return u.destroyed }
func (u *Unit) Props() *data.UnitProps { return u.props }
func (u *Unit) TypeID() int32          { return u.props.TypeID }
func (u *Unit) Owner() uint32          { return u.owner }
func (u *Unit) Health() int32          { return u.health }
func (u *Unit) MaxHealth() int32       { return u.props.Health }
func (u *Unit) WorkType() WorkType     { return u.work }
func (u *Unit) IsMobile() bool         { return u.kind == KindMobile }
func (u *Unit) IsFacility() bool       { return u.kind == KindFacility }
func (u *Unit) Reload() uint32         { return u.reload }
func (u *Unit) SetFootprint(r Rect)    { u.rect = r }
func (u *Unit) SetMoving(moving bool)  { u.moving = moving && !u.destroyed }

// SetHealth stores h clamped to [0, MaxHealth]. It does not destroy the
// unit; reaching zero is handled by the engine.
func (u *Unit) SetHealth(h int32) {
	if h < 0 {
		h = 0
	}
	if h > u.props.Health {
		h = u.props.Health
	}
	u.health = h
}

// SetWorkType records a new work type. Destroyed is terminal: once set,
// every further change is refused.
func (u *Unit) SetWorkType(w WorkType) bool {
	if u.destroyed || !w.Valid() {
		return false
	}
	if w == WorkDestroyed {
		return u.MarkDestroyed()
	}
	u.work = w
	return true
}

// MarkDestroyed performs the one-way transition to wreckage. It reports
// false when the unit already was destroyed.
func (u *Unit) MarkDestroyed() bool {
	if u.destroyed {
		return false
	}
	u.destroyed = true
	u.work = WorkDestroyed
	u.health = 0
	u.moving = false
	return true
}

// TickReload advances the weapon reload counter, saturating at the
// weapon's reload time.
func (u *Unit) TickReload() {
	w := u.props.Weapon
	if w == nil || u.reload >= w.ReloadTicks {
		return
	}
	u.reload++
}

// Reloaded reports whether the weapon may fire.
func (u *Unit) Reloaded() bool {
	w := u.props.Weapon
	return w != nil && u.reload >= w.ReloadTicks
}

func (u *Unit) ResetReload() { u.reload = 0 }
