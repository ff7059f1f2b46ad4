// Package dispatch runs the per-tick work of every unit: it keeps one bucket
// of item ids per work type and iterates each bucket at its own throttle
// period.
//
// Reclassification is deferred. Request only records the new work type;
// buckets change at exactly one point per tick (after every bucket pass and
// both hook passes), so iterating a bucket is never invalidated by a change
// raised from inside that same tick.
package dispatch

import (
	"sort"

	"github.com/boson/simcore/internal/item"
	"github.com/kamstrup/intmap"
	"go.uber.org/zap"
)

// forget is the pending marker for "drop from every bucket".
const forget = item.WorkTypeCount

// Handler is the type-specific advance operation of one bucket.
type Handler func(id item.ID, tick uint64)

// Periods holds the throttle period of each work type, in ticks. A zero
// period disables the bucket.
type Periods [item.WorkTypeCount]uint64

// Hooks connects the dispatcher to the engine that owns the items.
type Hooks interface {
	// Animated returns the lightweight bookkeeping set in ascending id order.
	Animated() []item.ID
	PreAdvance(id item.ID, tick uint64)
	PostAdvance(id item.ID, tick uint64)
	// Live reports whether the item exists and is not destroyed.
	Live(id item.ID) bool
	// Housekeeping runs at the cleanup boundary after reclassification.
	Housekeeping(tick uint64)
}

// Dispatcher is the enum-indexed table of work buckets.
// Accessed only from the simulation goroutine; no locks.
type Dispatcher struct {
	periods       Periods
	cleanupPeriod uint64
	handlers      [item.WorkTypeCount]Handler
	buckets       [item.WorkTypeCount][]item.ID // each sorted ascending
	current       *intmap.Map[item.ID, item.WorkType]
	pending       map[item.ID]item.WorkType
	inTick        bool
	log           *zap.Logger
}

// New creates a dispatcher. cleanupPeriod is the housekeeping boundary:
// Hooks.Housekeeping runs on ticks divisible by it.
func New(periods Periods, cleanupPeriod uint64, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		periods:       periods,
		cleanupPeriod: cleanupPeriod,
		current:       intmap.New[item.ID, item.WorkType](256),
		pending:       make(map[item.ID]item.WorkType, 64),
		log:           log,
	}
}

// Handle installs the advance operation of a work type.
func (d *Dispatcher) Handle(w item.WorkType, h Handler) {
	if w.Valid() && w != item.WorkDestroyed {
		d.handlers[w] = h
	}
}

// Period returns the throttle period of a work type.
func (d *Dispatcher) Period(w item.WorkType) uint64 {
	if !w.Valid() {
		return 0
	}
	return d.periods[w]
}

// InTick reports whether Advance is running.
func (d *Dispatcher) InTick() bool { return d.inTick }

// Request records that id now has work type w. Inside a tick the change is
// applied at the end of the tick; between ticks it is applied immediately so
// that bucket membership always matches the item's work type between ticks.
func (d *Dispatcher) Request(id item.ID, w item.WorkType) {
	if !w.Valid() {
		d.log.Warn("unknown work type requested, using none",
			zap.Uint64("item", uint64(id)), zap.Uint8("work", uint8(w)))
		w = item.WorkNone
	}
	d.pending[id] = w
	if !d.inTick {
		d.flush()
	}
}

// Forget drops id from every bucket, deferred like Request.
func (d *Dispatcher) Forget(id item.ID) {
	d.pending[id] = forget
	if !d.inTick {
		d.flush()
	}
}

// Flush applies all pending reclassifications. It refuses to run while a
// tick is in progress; the tick flushes on its own.
func (d *Dispatcher) Flush() {
	if d.inTick {
		d.log.Warn("flush requested during a tick, deferred to the end of the tick")
		return
	}
	d.flush()
}

// flush applies pending reclassifications in ascending id order.
func (d *Dispatcher) flush() {
	if len(d.pending) == 0 {
		return
	}
	ids := make([]item.ID, 0, len(d.pending))
	for id := range d.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		next := d.pending[id]
		delete(d.pending, id)
		if old, ok := d.current.Get(id); ok {
			d.buckets[old] = removeSorted(d.buckets[old], id)
			d.current.Del(id)
		}
		if next == forget || next == item.WorkDestroyed {
			continue
		}
		d.buckets[next] = insertSorted(d.buckets[next], id)
		d.current.Put(id, next)
	}
}

// Bucket returns a copy of the members of a work type's bucket.
func (d *Dispatcher) Bucket(w item.WorkType) []item.ID {
	if !w.Valid() {
		return nil
	}
	out := make([]item.ID, len(d.buckets[w]))
	copy(out, d.buckets[w])
	return out
}

// Len returns the size of a bucket.
func (d *Dispatcher) Len(w item.WorkType) int {
	if !w.Valid() {
		return 0
	}
	return len(d.buckets[w])
}

// BucketOf returns the committed bucket of id.
func (d *Dispatcher) BucketOf(id item.ID) (item.WorkType, bool) {
	return d.current.Get(id)
}

// PendingOf returns an uncommitted reclassification of id.
func (d *Dispatcher) PendingOf(id item.ID) (item.WorkType, bool) {
	w, ok := d.pending[id]
	if w == forget {
		return 0, false
	}
	return w, ok
}

// Clear drops every bucket and pending request.
func (d *Dispatcher) Clear() {
	for w := range d.buckets {
		d.buckets[w] = nil
	}
	d.current.Clear()
	for id := range d.pending {
		delete(d.pending, id)
	}
}

// Advance runs one tick:
//  1. pre-advance hook of every animated item,
//  2. each bucket whose period divides tick, skipping destroyed members,
//  3. post-advance hook of every item that got the pre hook,
//  4. the deferred reclassifications,
//  5. housekeeping at the cleanup boundary.
func (d *Dispatcher) Advance(tick uint64, hooks Hooks) {
	if d.inTick {
		d.log.Error("advance called re-entrantly", zap.Uint64("tick", tick))
		return
	}
	d.inTick = true

	animated := hooks.Animated()
	hooked := animated[:0:0]
	for _, id := range animated {
		if hooks.Live(id) {
			hooks.PreAdvance(id, tick)
			hooked = append(hooked, id)
		}
	}

	for w := item.WorkNone; w < item.WorkDestroyed; w++ {
		p := d.periods[w]
		if p == 0 || tick%p != 0 {
			continue
		}
		members := d.buckets[w]
		if len(members) == 0 {
			continue
		}
		h := d.handlers[w]
		if h == nil {
			d.log.Warn("no handler for work type", zap.Stringer("work", w), zap.Int("members", len(members)))
			continue
		}
		// Buckets cannot change before Flush, so members is stable here.
		for _, id := range members {
			if !hooks.Live(id) {
				continue
			}
			h(id, tick)
		}
	}

	for _, id := range hooked {
		hooks.PostAdvance(id, tick)
	}

	d.flush()
	d.inTick = false

	if d.cleanupPeriod > 0 && tick%d.cleanupPeriod == 0 {
		hooks.Housekeeping(tick)
	}
}

func insertSorted(ids []item.ID, id item.ID) []item.ID {
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	if i < len(ids) && ids[i] == id {
		return ids
	}
	ids = append(ids, 0)
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}

func removeSorted(ids []item.ID, id item.ID) []item.ID {
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	if i == len(ids) || ids[i] != id {
		return ids
	}
	return append(ids[:i], ids[i+1:]...)
}
