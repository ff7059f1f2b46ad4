package system

import (
	"github.com/boson/simcore/internal/core/event"
	coresys "github.com/boson/simcore/internal/core/system"
	"go.uber.org/zap"
)

// NotifySystem delivers the events of the tick that just committed.
// Phase 2 (PostUpdate).
type NotifySystem struct {
	bus       *event.Bus
	delivered uint64
	log       *zap.Logger
}

func NewNotifySystem(bus *event.Bus, log *zap.Logger) *NotifySystem {
	return &NotifySystem{bus: bus, log: log}
}

func (s *NotifySystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *NotifySystem) Update(tick uint64) {
	s.bus.SwapBuffers()
	if n := s.bus.DispatchAll(); n > 0 {
		s.delivered += uint64(n)
		s.log.Debug("events delivered", zap.Uint64("tick", tick), zap.Int("count", n))
	}
}

// Delivered is the total number of events dispatched.
func (s *NotifySystem) Delivered() uint64 { return s.delivered }
