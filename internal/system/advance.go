package system

import (
	coresys "github.com/boson/simcore/internal/core/system"
	"github.com/boson/simcore/internal/sim"
)

// AdvanceSystem runs one engine tick. Phase 1 (Update).
type AdvanceSystem struct {
	engine *sim.Engine
}

func NewAdvanceSystem(engine *sim.Engine) *AdvanceSystem {
	return &AdvanceSystem{engine: engine}
}

func (s *AdvanceSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *AdvanceSystem) Update(tick uint64) {
	s.engine.Advance(tick)
}
