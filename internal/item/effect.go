package item

// Effect is a transient impact/explosion marker. It has no footprint and is
// removed once its lifetime has elapsed.
type Effect struct {
	id       ID
	x, y     int32
	target   ID
	attacker ID
	lifetime uint64
	age      uint64
	expired  bool
}

// NewEffect creates an effect at canvas pixel (x, y) that lives for
// lifetime ticks.
func NewEffect(id ID, x, y int32, target, attacker ID, lifetime uint64) *Effect {
	return &Effect{id: id, x: x, y: y, target: target, attacker: attacker, lifetime: lifetime}
}

func (e *Effect) ID() ID             { return e.id }
func (e *Effect) Kind() Kind         { return KindEffect }
func (e *Effect) HasFootprint() bool { return false }
func (e *Effect) Footprint() Rect    { return Rect{X: e.x, Y: e.y} }
func (e *Effect) CanAdvance() bool   { return !e.expired }
func (e *Effect) IsFlying() bool     { return false }
func (e *Effect) IsMoving() bool     { return false }
func (e *Effect) IsDestroyed() bool  { return e.expired }
func (e *Effect) Target() ID         { return e.target }
func (e *Effect) Attacker() ID       { return e.attacker }
func (e *Effect) Age() uint64        { return e.age }

// Tick ages the effect and reports whether it has just expired.
func (e *Effect) Tick() bool {
	if e.expired {
		return false
	}
	e.age++
	if e.age >= e.lifetime {
		e.expired = true
		return true
	}
	return false
}
