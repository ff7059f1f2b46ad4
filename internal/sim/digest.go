package sim

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/boson/simcore/internal/item"
	"github.com/boson/simcore/internal/wire"
)

// StateDigest hashes the simulation state in canonical order: the tick,
// every item by ascending id, then every player by ascending id. Two
// engines in lock-step produce the same digest after every tick.
func (e *Engine) StateDigest() string {
	w := wire.NewWriter()
	w.WriteQ(e.tick)
	w.WriteDU(uint32(e.items.Len()))
	e.items.Each(func(it item.Item) {
		w.WriteQ(uint64(it.ID()))
		w.WriteC(byte(it.Kind()))
		w.WriteBool(it.IsDestroyed())
		switch v := it.(type) {
		case *item.Unit:
			e.digestUnit(w, v)
		case *item.Effect:
			w.WriteQ(uint64(v.Target()))
			w.WriteQ(uint64(v.Attacker()))
			w.WriteQ(v.Age())
		}
	})
	for _, p := range e.players.All() {
		w.WriteDU(p.ID())
		w.WriteQ(uint64(p.Minerals()))
		w.WriteDU(uint32(p.UnitCount()))
		w.WriteDU(uint32(p.FoggedCount()))
		w.WriteBool(p.OutOfGame())
	}
	sum := sha256.Sum256(w.Bytes())
	return hex.EncodeToString(sum[:])
}

func (e *Engine) digestUnit(w *wire.Writer, u *item.Unit) {
	r := u.Footprint()
	w.WriteD(u.TypeID())
	w.WriteDU(u.Owner())
	w.WriteD(r.X)
	w.WriteD(r.Y)
	w.WriteD(r.W)
	w.WriteD(r.H)
	w.WriteD(u.Health())
	w.WriteC(byte(u.WorkType()))
	w.WriteBool(u.IsMoving())
	w.WriteDU(u.Reload())

	id := u.ID()
	if m, ok := e.plugins.moves.Get(id); ok {
		w.WriteC('m')
		w.WriteD(m.DestX)
		w.WriteD(m.DestY)
		w.WriteC(byte(m.Next))
		w.WriteD(int32(m.Blocked))
	}
	if a, ok := e.plugins.attacks.Get(id); ok {
		w.WriteC('a')
		w.WriteQ(uint64(a.Target))
	}
	if m, ok := e.plugins.mining.Get(id); ok {
		w.WriteC('h')
		w.WriteD(int32(m.FieldX))
		w.WriteD(int32(m.FieldY))
		w.WriteD(m.Carried)
	}
	if p, ok := e.plugins.production.Get(id); ok {
		w.WriteC('p')
		w.WriteDU(uint32(len(p.Queue)))
		for _, t := range p.Queue {
			w.WriteD(t)
		}
		w.WriteDU(p.Progress)
		w.WriteDU(p.Total)
	}
	if c, ok := e.plugins.construction.Get(id); ok {
		w.WriteC('c')
		w.WriteDU(c.Step)
	}
}
