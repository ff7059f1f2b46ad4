package system

import (
	"context"
	"time"

	coresys "github.com/boson/simcore/internal/core/system"
	"github.com/boson/simcore/internal/persist"
	"github.com/boson/simcore/internal/sim"
	"go.uber.org/zap"
)

// DigestStore persists sampled state digests.
type DigestStore interface {
	RecordBatch(ctx context.Context, session int64, rows []persist.DigestRow) error
}

// DigestSystem samples the engine's state digest every interval ticks,
// records it, and in verify mode compares it against a reference run.
// Phase 3 (Persist).
type DigestSystem struct {
	engine    *sim.Engine
	interval  uint64
	batchSize int
	store     DigestStore
	session   int64
	reference map[uint64]string
	buffer    []persist.DigestRow
	last      string

	diverged   bool
	divergedAt uint64

	log *zap.Logger
}

func NewDigestSystem(engine *sim.Engine, interval uint64, log *zap.Logger) *DigestSystem {
	return &DigestSystem{engine: engine, interval: interval, batchSize: 16, log: log}
}

// WithStore records sampled digests under session.
func (s *DigestSystem) WithStore(store DigestStore, session int64) *DigestSystem {
	s.store = store
	s.session = session
	return s
}

// Verify compares samples against reference, keyed by tick.
func (s *DigestSystem) Verify(reference map[uint64]string) *DigestSystem {
	s.reference = reference
	return s
}

func (s *DigestSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *DigestSystem) Update(tick uint64) {
	if s.interval == 0 || tick%s.interval != 0 {
		return
	}
	d := s.engine.StateDigest()
	s.last = d

	if want, ok := s.reference[tick]; ok && want != d && !s.diverged {
		s.diverged = true
		s.divergedAt = tick
		s.log.Error("state diverged from reference run",
			zap.Uint64("tick", tick), zap.String("want", want), zap.String("got", d))
	}

	if s.store == nil {
		return
	}
	s.buffer = append(s.buffer, persist.DigestRow{Tick: tick, Digest: d})
	if len(s.buffer) >= s.batchSize {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Flush(ctx); err != nil {
			s.log.Error("digest flush", zap.Int64("session", s.session), zap.Error(err))
		}
	}
}

// Flush writes buffered samples. Called on shutdown so no sample is lost.
func (s *DigestSystem) Flush(ctx context.Context) error {
	if s.store == nil || len(s.buffer) == 0 {
		return nil
	}
	if err := s.store.RecordBatch(ctx, s.session, s.buffer); err != nil {
		return err
	}
	s.buffer = s.buffer[:0]
	return nil
}

// Last is the most recent sampled digest.
func (s *DigestSystem) Last() string { return s.last }

// Divergence reports the first sampled tick that differed from the reference.
func (s *DigestSystem) Divergence() (uint64, bool) { return s.divergedAt, s.diverged }
