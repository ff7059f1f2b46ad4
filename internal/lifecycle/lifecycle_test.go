package lifecycle

import (
	"testing"

	"github.com/boson/simcore/internal/canvas"
	"github.com/boson/simcore/internal/core/ecs"
	"github.com/boson/simcore/internal/core/event"
	"github.com/boson/simcore/internal/data"
	"github.com/boson/simcore/internal/dispatch"
	"github.com/boson/simcore/internal/item"
	"github.com/boson/simcore/internal/player"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var tank = &data.UnitProps{TypeID: 1, Width: 1, Height: 1, Health: 20, Speed: 4, Land: true}

type fixture struct {
	grid    *canvas.Grid
	items   *item.Registry
	disp    *dispatch.Dispatcher
	players *player.Registry
	bus     *event.Bus
	lc      *Lifecycle
	booms   int
}

func newFixture(t *testing.T, threshold uint64) *fixture {
	t.Helper()
	f := &fixture{
		grid:    canvas.NewGrid(data.NewMapData("t", 8, 8, data.GroundGrass), zap.NewNop()),
		items:   item.NewRegistry(ecs.NewWorld()),
		disp:    dispatch.New(dispatch.Periods{1, 1, 1, 1, 1, 1, 1}, 1, zap.NewNop()),
		players: player.NewRegistry(),
		bus:     event.NewBus(),
	}
	_, err := f.players.Add(1, "red", 0)
	require.NoError(t, err)
	f.lc = New(threshold, f.grid, f.items, f.disp, f.players, f.bus,
		func(*item.Unit, uint64) { f.booms++ }, zap.NewNop())
	return f
}

func (f *fixture) spawn(t *testing.T, tx, ty int) *item.Unit {
	t.Helper()
	u := item.NewUnit(f.items.NewID(), tank, 1, canvas.FootprintRect(tx, ty, 1, 1))
	require.NoError(t, f.items.Add(u))
	f.grid.AddToCells(u)
	f.disp.Request(u.ID(), item.WorkNone)
	f.players.Get(1).AddUnit(u.ID())
	return u
}

func TestDestroyIsIdempotent(t *testing.T) {
	f := newFixture(t, 10)
	u := f.spawn(t, 2, 2)
	f.spawn(t, 4, 4)

	assert.True(t, f.lc.Destroy(u, 3))
	assert.False(t, f.lc.Destroy(u, 4))

	assert.Equal(t, 1, f.booms)
	assert.True(t, u.IsDestroyed())
	assert.Equal(t, int32(0), u.Health())
	assert.Equal(t, item.WorkDestroyed, u.WorkType())
	assert.Equal(t, 1, f.players.Get(1).UnitCount())
	_, inBucket := f.disp.BucketOf(u.ID())
	assert.False(t, inBucket)

	var destroyed []event.UnitDestroyed
	event.Subscribe(f.bus, func(e event.UnitDestroyed) { destroyed = append(destroyed, e) })
	f.bus.SwapBuffers()
	f.bus.DispatchAll()
	require.Len(t, destroyed, 1)
	assert.Equal(t, uint64(3), destroyed[0].Tick)
}

func TestWreckageAgingBoundary(t *testing.T) {
	const threshold = 5
	f := newFixture(t, threshold)
	u := f.spawn(t, 2, 2)
	id := u.ID()
	f.lc.Destroy(u, 10)

	for tick := uint64(10); tick < 10+threshold; tick++ {
		assert.Empty(t, f.lc.Cleanup(tick), "tick %d", tick)
		assert.True(t, f.lc.Contains(id))
		assert.True(t, f.grid.CellAt(2, 2).Has(id), "wreck still queryable at tick %d", tick)
		_, ok := f.items.Get(id)
		assert.True(t, ok)
	}

	assert.Equal(t, []item.ID{id}, f.lc.Cleanup(10+threshold))
	assert.False(t, f.lc.Contains(id))
	assert.False(t, f.grid.CellAt(2, 2).Has(id))
	assert.False(t, f.grid.Registered(id))
	_, ok := f.items.Get(id)
	assert.False(t, ok)
	assert.Empty(t, f.lc.Cleanup(11+threshold))
}

func TestWreckDoesNotBlock(t *testing.T) {
	f := newFixture(t, 100)
	u := f.spawn(t, 3, 3)
	assert.True(t, f.grid.IsOccupied(3, 3, nil, false))
	f.lc.Destroy(u, 0)
	assert.False(t, f.grid.IsOccupied(3, 3, nil, false))
	assert.True(t, f.grid.CellAt(3, 3).Has(u.ID()))
}

func TestLastUnitPutsOwnerOutOfGame(t *testing.T) {
	f := newFixture(t, 10)
	a := f.spawn(t, 1, 1)
	b := f.spawn(t, 2, 1)

	var out []event.PlayerOutOfGame
	event.Subscribe(f.bus, func(e event.PlayerOutOfGame) { out = append(out, e) })

	f.lc.Destroy(a, 1)
	assert.False(t, f.players.Get(1).OutOfGame())
	f.lc.Destroy(b, 2)
	assert.True(t, f.players.Get(1).OutOfGame())

	f.bus.SwapBuffers()
	f.bus.DispatchAll()
	require.Len(t, out, 1)
	assert.Equal(t, uint32(1), out[0].Player)
}

func TestClearSkipsAging(t *testing.T) {
	f := newFixture(t, 1)
	u := f.spawn(t, 1, 1)
	f.lc.Destroy(u, 0)
	f.lc.Clear()
	assert.Equal(t, 0, f.lc.Len())
	assert.Empty(t, f.lc.Cleanup(50))
	_, ok := f.items.Get(u.ID())
	assert.True(t, ok, "teardown does not run removal")
}
