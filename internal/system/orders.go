package system

import (
	"context"
	"sort"
	"time"

	coresys "github.com/boson/simcore/internal/core/system"
	"github.com/boson/simcore/internal/persist"
	"github.com/boson/simcore/internal/sim"
	"go.uber.org/zap"
)

// OrderJournal receives every order handed to the engine, accepted or not.
type OrderJournal interface {
	Append(ctx context.Context, session int64, records []persist.OrderRecord) error
}

// OrderSystem applies the orders due at each tick before the engine advances.
// Phase 0 (Input).
type OrderSystem struct {
	engine   *sim.Engine
	pending  []sim.Order // ascending Tick, stable
	next     int
	seq      int32
	rejected int
	journals []OrderJournal
	session  int64
	log      *zap.Logger
}

func NewOrderSystem(engine *sim.Engine, orders []sim.Order, log *zap.Logger) *OrderSystem {
	pending := append([]sim.Order(nil), orders...)
	sort.SliceStable(pending, func(i, j int) bool { return pending[i].Tick < pending[j].Tick })
	return &OrderSystem{engine: engine, pending: pending, log: log}
}

// WithJournal adds a journal that records every order under session.
func (s *OrderSystem) WithJournal(j OrderJournal, session int64) *OrderSystem {
	s.journals = append(s.journals, j)
	s.session = session
	return s
}

func (s *OrderSystem) Phase() coresys.Phase { return coresys.PhaseInput }

// Enqueue schedules o after every pending order with the same tick.
func (s *OrderSystem) Enqueue(o sim.Order) {
	rest := s.pending[s.next:]
	i := s.next + sort.Search(len(rest), func(i int) bool { return rest[i].Tick > o.Tick })
	s.pending = append(s.pending, sim.Order{})
	copy(s.pending[i+1:], s.pending[i:])
	s.pending[i] = o
}

func (s *OrderSystem) Update(tick uint64) {
	var batch []persist.OrderRecord
	for s.next < len(s.pending) && s.pending[s.next].Tick <= tick {
		o := s.pending[s.next]
		s.next++
		if o.Tick < tick {
			s.log.Warn("late order applied",
				zap.Uint64("due", o.Tick), zap.Uint64("tick", tick), zap.Stringer("kind", o.Kind))
		}
		if err := s.engine.Apply(o); err != nil {
			s.rejected++
			s.log.Info("order rejected",
				zap.Uint64("tick", tick), zap.Stringer("kind", o.Kind),
				zap.Uint64("unit", uint64(o.Unit)), zap.Error(err))
		}
		if len(s.journals) == 0 {
			continue
		}
		payload, err := o.MarshalBinary()
		if err != nil {
			s.log.Error("encode order", zap.Error(err))
			continue
		}
		batch = append(batch, persist.OrderRecord{Seq: s.seq, Tick: tick, Payload: payload})
		s.seq++
	}
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, j := range s.journals {
		if err := j.Append(ctx, s.session, batch); err != nil {
			s.log.Error("order journal append", zap.Int64("session", s.session), zap.Error(err))
		}
	}
}

// Remaining is the number of orders not yet applied.
func (s *OrderSystem) Remaining() int { return len(s.pending) - s.next }

// Rejected is the number of orders the engine refused so far.
func (s *OrderSystem) Rejected() int { return s.rejected }
