// Package item defines the simulation items (units and transient effects),
// their work-type state machine and the registry that owns them.
package item

import "github.com/boson/simcore/internal/core/ecs"

// ID identifies an item for its whole life. Ids are never reused while the
// item is registered.
type ID = ecs.EntityID

// Kind is the closed set of item variants.
type Kind uint8

const (
	KindMobile Kind = iota + 1
	KindFacility
	KindEffect
)

func (k Kind) String() string {
	switch k {
	case KindMobile:
		return "mobile"
	case KindFacility:
		return "facility"
	case KindEffect:
		return "effect"
	}
	return "unknown"
}

// WorkType classifies what a unit does each tick.
type WorkType uint8

const (
	WorkNone WorkType = iota
	WorkProduce
	WorkMove
	WorkMine
	WorkRefine
	WorkAttack
	WorkUnderConstruction
	WorkDestroyed

	WorkTypeCount
)

var workNames = [WorkTypeCount]string{
	"none", "produce", "move", "mine", "refine", "attack", "under-construction", "destroyed",
}

func (w WorkType) String() string {
	if w < WorkTypeCount {
		return workNames[w]
	}
	return "invalid"
}

// Valid reports whether w is a known work type.
func (w WorkType) Valid() bool { return w < WorkTypeCount }

// Item is the capability set every simulation item exposes.
type Item interface {
	ID() ID
	Kind() Kind
	// HasFootprint reports whether the item occupies canvas cells.
	HasFootprint() bool
	Footprint() Rect
	// CanAdvance reports whether the item takes part in the tick at all.
	CanAdvance() bool
	IsFlying() bool
	IsMoving() bool
	IsDestroyed() bool
}

// Placeable items can have their footprint changed by the canvas.
type Placeable interface {
	Item
	SetFootprint(r Rect)
}
