package dispatch

import (
	"fmt"
	"testing"

	"github.com/boson/simcore/internal/item"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeHooks struct {
	animated  []item.ID
	dead      map[item.ID]bool
	calls     []string
	housekeep []uint64
}

func newFakeHooks() *fakeHooks { return &fakeHooks{dead: map[item.ID]bool{}} }

func (f *fakeHooks) Animated() []item.ID { return f.animated }
func (f *fakeHooks) PreAdvance(id item.ID, tick uint64) {
	f.calls = append(f.calls, fmt.Sprintf("pre:%d", id))
}
func (f *fakeHooks) PostAdvance(id item.ID, tick uint64) {
	f.calls = append(f.calls, fmt.Sprintf("post:%d", id))
}
func (f *fakeHooks) Live(id item.ID) bool     { return !f.dead[id] }
func (f *fakeHooks) Housekeeping(tick uint64) { f.housekeep = append(f.housekeep, tick) }

func defaultPeriods() Periods {
	var p Periods
	p[item.WorkNone] = 10
	p[item.WorkProduce] = 1
	p[item.WorkMove] = 1
	p[item.WorkMine] = 40
	p[item.WorkRefine] = 40
	p[item.WorkAttack] = 5
	p[item.WorkUnderConstruction] = 30
	return p
}

func newDispatcher() *Dispatcher {
	return New(defaultPeriods(), 20, zap.NewNop())
}

func TestThrottle(t *testing.T) {
	for _, c := range []struct {
		work item.WorkType
		want []uint64
	}{
		{item.WorkMine, []uint64{0, 40, 80}},
		{item.WorkRefine, []uint64{0, 40, 80}},
		{item.WorkUnderConstruction, []uint64{0, 30, 60, 90}},
		{item.WorkNone, []uint64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100, 110}},
	} {
		t.Run(c.work.String(), func(t *testing.T) {
			d := newDispatcher()
			var fired []uint64
			d.Handle(c.work, func(id item.ID, tick uint64) { fired = append(fired, tick) })
			d.Request(1, c.work)
			hooks := newFakeHooks()
			for tick := uint64(0); tick < 120; tick++ {
				d.Advance(tick, hooks)
			}
			assert.Equal(t, c.want, fired)
		})
	}

	d := newDispatcher()
	n := 0
	d.Handle(item.WorkMove, func(item.ID, uint64) { n++ })
	d.Request(1, item.WorkMove)
	for tick := uint64(1); tick <= 37; tick++ {
		d.Advance(tick, newFakeHooks())
	}
	assert.Equal(t, 37, n, "period-1 buckets run every tick")
}

func TestReclassificationIsDeferred(t *testing.T) {
	d := newDispatcher()
	var log []string
	d.Handle(item.WorkMove, func(id item.ID, tick uint64) {
		log = append(log, fmt.Sprintf("move:%d@%d", id, tick))
		if id == 1 {
			d.Request(1, item.WorkProduce)
			d.Request(2, item.WorkProduce)
		}
	})
	d.Handle(item.WorkProduce, func(id item.ID, tick uint64) {
		log = append(log, fmt.Sprintf("produce:%d@%d", id, tick))
	})
	d.Request(1, item.WorkMove)
	d.Request(2, item.WorkMove)

	d.Advance(1, newFakeHooks())
	assert.Equal(t, []string{"move:1@1", "move:2@1"}, log,
		"the changed items still run with the bucket they started the tick in")
	assert.Equal(t, []item.ID{1, 2}, d.Bucket(item.WorkProduce))
	assert.Empty(t, d.Bucket(item.WorkMove))

	log = nil
	d.Advance(2, newFakeHooks())
	assert.Equal(t, []string{"produce:1@2", "produce:2@2"}, log)
}

func TestRequestBetweenTicksAppliesImmediately(t *testing.T) {
	d := newDispatcher()
	d.Request(3, item.WorkAttack)
	w, ok := d.BucketOf(3)
	require.True(t, ok)
	assert.Equal(t, item.WorkAttack, w)
	_, pending := d.PendingOf(3)
	assert.False(t, pending)
}

func TestPartitionInvariant(t *testing.T) {
	d := newDispatcher()
	work := map[item.ID]item.WorkType{}
	types := []item.WorkType{item.WorkNone, item.WorkMove, item.WorkAttack, item.WorkMine, item.WorkProduce}
	for id := item.ID(1); id <= 30; id++ {
		w := types[int(id)%len(types)]
		work[id] = w
		d.Request(id, w)
	}
	for _, w := range types {
		w := w
		d.Handle(w, func(id item.ID, tick uint64) {
			next := types[(int(id)+int(tick))%len(types)]
			work[id] = next
			d.Request(id, next)
		})
	}
	for tick := uint64(0); tick < 50; tick++ {
		d.Advance(tick, newFakeHooks())
		for id, w := range work {
			count := 0
			for b := item.WorkNone; b < item.WorkTypeCount; b++ {
				for _, m := range d.Bucket(b) {
					if m == id {
						count++
						assert.Equal(t, w, b, "item %d at tick %d", id, tick)
					}
				}
			}
			assert.Equal(t, 1, count, "item %d at tick %d", id, tick)
		}
	}
}

func TestDestroyedMembersAreSkippedAndDropped(t *testing.T) {
	d := newDispatcher()
	hooks := newFakeHooks()
	var ran []item.ID
	d.Handle(item.WorkMove, func(id item.ID, tick uint64) {
		ran = append(ran, id)
		if id == 1 {
			hooks.dead[2] = true
			d.Request(2, item.WorkDestroyed)
		}
	})
	d.Request(1, item.WorkMove)
	d.Request(2, item.WorkMove)

	d.Advance(1, hooks)
	assert.Equal(t, []item.ID{1}, ran)
	_, ok := d.BucketOf(2)
	assert.False(t, ok, "destroyed items join no bucket")
	assert.Equal(t, []item.ID{1}, d.Bucket(item.WorkMove))
}

func TestHooksRunTwicePerTick(t *testing.T) {
	d := newDispatcher()
	hooks := newFakeHooks()
	hooks.animated = []item.ID{4, 7}
	hooks.dead[7] = true
	d.Handle(item.WorkMove, func(id item.ID, tick uint64) {
		hooks.calls = append(hooks.calls, fmt.Sprintf("move:%d", id))
	})
	d.Request(4, item.WorkMove)

	d.Advance(3, hooks)
	assert.Equal(t, []string{"pre:4", "move:4", "post:4"}, hooks.calls)
}

func TestHousekeepingAtBoundary(t *testing.T) {
	d := newDispatcher()
	hooks := newFakeHooks()
	for tick := uint64(0); tick <= 60; tick++ {
		d.Advance(tick, hooks)
	}
	assert.Equal(t, []uint64{0, 20, 40, 60}, hooks.housekeep)
}

func TestForget(t *testing.T) {
	d := newDispatcher()
	d.Request(1, item.WorkNone)
	d.Forget(1)
	_, ok := d.BucketOf(1)
	assert.False(t, ok)
	assert.Zero(t, d.Len(item.WorkNone))
}

func TestInvalidWorkTypeFallsBackToNone(t *testing.T) {
	d := newDispatcher()
	d.Request(1, item.WorkType(200))
	w, ok := d.BucketOf(1)
	require.True(t, ok)
	assert.Equal(t, item.WorkNone, w)
}
