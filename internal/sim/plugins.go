package sim

import (
	"github.com/boson/simcore/internal/core/ecs"
	"github.com/boson/simcore/internal/item"
)

// Per-work-type auxiliary state. Each lives in its own component store on
// the item registry's world, so final removal of an item drops it.

// Production is a facility's build queue.
type Production struct {
	Queue    []int32 // unit type ids, front is in progress
	Progress uint32
	Total    uint32 // 0 until the front entry started
}

// MovePlan is the destination of a moving unit.
type MovePlan struct {
	DestX, DestY int32 // canvas pixel of the footprint's top-left corner
	TileX, TileY int   // reserved destination tile
	Next         item.WorkType
	Blocked      int
}

// Mining is a harvester's field and load.
type Mining struct {
	FieldX, FieldY int
	Carried        int32
}

// Attack is an armed unit's current target.
type Attack struct {
	Target item.ID
}

// Construction is the build progress of a facility.
type Construction struct {
	Step  uint32
	Steps uint32
}

type plugins struct {
	reg          *ecs.Registry
	production   *ecs.PtrComponentStore[Production]
	moves        *ecs.PtrComponentStore[MovePlan]
	mining       *ecs.PtrComponentStore[Mining]
	attacks      *ecs.PtrComponentStore[Attack]
	construction *ecs.PtrComponentStore[Construction]
}

func newPlugins(reg *ecs.Registry) plugins {
	p := plugins{
		reg:          reg,
		production:   ecs.NewPtrComponentStore[Production](),
		moves:        ecs.NewPtrComponentStore[MovePlan](),
		mining:       ecs.NewPtrComponentStore[Mining](),
		attacks:      ecs.NewPtrComponentStore[Attack](),
		construction: ecs.NewPtrComponentStore[Construction](),
	}
	reg.Register(p.production)
	reg.Register(p.moves)
	reg.Register(p.mining)
	reg.Register(p.attacks)
	reg.Register(p.construction)
	return p
}

func (p plugins) clear() { p.reg.Clear() }
