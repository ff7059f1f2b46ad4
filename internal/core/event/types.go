package event

import "github.com/boson/simcore/internal/core/ecs"

// Notifications published by the simulation engine. Subscribers are
// renderers, minimaps and the host; none of them may mutate the engine from
// a handler while a tick is running.

// TilesLoaded fires once after a map has been installed on the canvas.
type TilesLoaded struct {
	Width  int
	Height int
}

// UnitMoved fires after a unit's footprint and cell membership changed.
type UnitMoved struct {
	ID    ecs.EntityID
	FromX int32
	FromY int32
	ToX   int32
	ToY   int32
	Tick  uint64
}

// UnitDestroyed fires after a unit became wreckage.
type UnitDestroyed struct {
	ID    ecs.EntityID
	Owner uint32
	Tick  uint64
}

// WreckageRemoved fires after a wreck left every index for good.
type WreckageRemoved struct {
	ID   ecs.EntityID
	Tick uint64
}

// UnitProduced fires when a facility finished producing a unit.
type UnitProduced struct {
	ID       ecs.EntityID
	Facility ecs.EntityID
	TypeID   int32
	Tick     uint64
}

// ConstructionCompleted fires when a facility left the UnderConstruction state.
type ConstructionCompleted struct {
	ID   ecs.EntityID
	Tick uint64
}

// PlayerOutOfGame fires when a player lost its last live unit.
type PlayerOutOfGame struct {
	Player uint32
	Tick   uint64
}
