package sim

import (
	"testing"

	"github.com/boson/simcore/internal/canvas"
	"github.com/boson/simcore/internal/core/event"
	"github.com/boson/simcore/internal/data"
	"github.com/boson/simcore/internal/dispatch"
	"github.com/boson/simcore/internal/item"
	"github.com/boson/simcore/internal/player"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	typeTank      int32 = 1
	typeHarvester int32 = 2
	typeFactory   int32 = 3
	typeRefinery  int32 = 4
	typeScout     int32 = 5
	typeFlat      int32 = 6
)

func testUnits(t *testing.T) *data.UnitTable {
	t.Helper()
	tbl := data.NewUnitTable()
	for _, p := range []data.UnitProps{
		{TypeID: typeTank, Name: "tank", Width: 1, Height: 1, Health: 100, SightRange: 3, Speed: 8, Land: true,
			BuildTicks: 4, Weapon: &data.WeaponProps{Damage: 10, RangeTiles: 3, ReloadTicks: 5}},
		{TypeID: typeHarvester, Name: "harvester", Width: 1, Height: 1, Health: 80, SightRange: 2, Speed: 6,
			Land: true, BuildTicks: 6, Harvester: true, Capacity: 100},
		{TypeID: typeFactory, Name: "factory", Width: 2, Height: 2, Health: 500, SightRange: 4, Facility: true,
			Land: true, Produces: []int32{typeTank, typeHarvester}, Steps: 3},
		{TypeID: typeRefinery, Name: "refinery", Width: 2, Height: 2, Health: 300, SightRange: 2, Facility: true,
			Land: true, Refinery: true, Steps: 2},
		{TypeID: typeScout, Name: "scout", Width: 1, Height: 1, Health: 40, SightRange: 5, Speed: 12, Land: true},
		{TypeID: typeFlat, Name: "flat", Width: 0, Height: 1, Health: 1, Land: true},
	} {
		require.NoError(t, tbl.Add(p))
	}
	return tbl
}

func testOptions(fx Effects) Options {
	var p dispatch.Periods
	for w := item.WorkNone; w < item.WorkDestroyed; w++ {
		p[w] = 1
	}
	return Options{
		Periods:          p,
		CleanupPeriod:    1,
		BuildRangeTiles:  5,
		WreckageTicks:    10,
		ImpactTicks:      2,
		MoveBlockedLimit: 5,
		RefineRangeTiles: 2,
		Effects:          fx,
	}
}

type recorder struct {
	explosions int
	impacts    int
	sounds     []string
}

func (r *recorder) Explosion(item.ID, int32, int32, uint64)       { r.explosions++ }
func (r *recorder) Impact(item.ID, item.ID, int32, int32, uint64) { r.impacts++ }
func (r *recorder) Sound(name string)                             { r.sounds = append(r.sounds, name) }

func newTestEngine(t *testing.T, w, h int, fx Effects) *Engine {
	t.Helper()
	players := player.NewRegistry()
	_, err := players.Add(1, "red", 0)
	require.NoError(t, err)
	_, err = players.Add(2, "blue", 0)
	require.NoError(t, err)
	e, err := NewEngine(testOptions(fx), data.NewMapData("test", w, h, data.GroundGrass),
		testUnits(t), players, nil, nil, zap.NewNop())
	require.NoError(t, err)
	return e
}

func mustPlace(t *testing.T, e *Engine, owner uint32, typeID int32, x, y int) *item.Unit {
	t.Helper()
	id, err := e.PlaceUnit(owner, typeID, x, y)
	require.NoError(t, err)
	u, ok := e.Unit(id)
	require.True(t, ok)
	return u
}

// deliver flushes the event bus the way the host does after each tick.
func deliver(e *Engine) {
	e.Bus().SwapBuffers()
	e.Bus().DispatchAll()
}

func assertPartition(t *testing.T, e *Engine) {
	t.Helper()
	for _, u := range e.Items().Units() {
		w, ok := e.Dispatcher().BucketOf(u.ID())
		if u.IsDestroyed() {
			assert.False(t, ok, "wreck %d still in a bucket", u.ID())
			continue
		}
		if assert.True(t, ok, "unit %d in no bucket", u.ID()) {
			assert.Equal(t, u.WorkType(), w, "unit %d", u.ID())
		}
	}
}

func TestNewEngineRequiresMap(t *testing.T) {
	_, err := NewEngine(testOptions(nil), nil, testUnits(t), player.NewRegistry(), nil, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestPlacementBoundary(t *testing.T) {
	e := newTestEngine(t, 16, 16, nil)
	tank := e.UnitTable().Get(typeTank)
	mustPlace(t, e, 1, typeTank, 5, 5)

	assert.False(t, e.CanPlaceUnitAt(tank, 5, 5, nil))
	assert.True(t, e.CanPlaceUnitAt(tank, 6, 5, nil))

	factory := mustPlace(t, e, 1, typeFactory, 0, 0)
	assert.True(t, e.CanPlaceUnitAt(tank, 10, 0, nil))
	assert.False(t, e.CanPlaceUnitAt(tank, 10, 0, factory), "target center out of build range")
	assert.True(t, e.CanPlaceUnitAt(tank, 3, 3, factory))
}

func TestPlacementBuildRangeOfMobileBuilder(t *testing.T) {
	e := newTestEngine(t, 16, 16, nil)
	builder := mustPlace(t, e, 1, typeTank, 5, 5)
	refinery := e.UnitTable().Get(typeRefinery)

	assert.True(t, e.CanPlaceUnitAt(refinery, 8, 5, builder))
	assert.False(t, e.CanPlaceUnitAt(refinery, 12, 5, builder))
}

func TestPlacementRejects(t *testing.T) {
	e := newTestEngine(t, 16, 16, nil)
	tank := e.UnitTable().Get(typeTank)

	assert.False(t, e.CanPlaceUnitAt(e.UnitTable().Get(typeFlat), 1, 1, nil), "empty footprint")
	assert.False(t, e.CanPlaceUnitAt(tank, 15, 16, nil), "off map")
	assert.False(t, e.CanPlaceUnitAt(e.UnitTable().Get(typeFactory), 15, 0, nil), "footprint crosses map edge")

	e.Grid().SetGround(9, 9, data.GroundWater)
	assert.False(t, e.CanPlaceUnitAt(tank, 9, 9, nil), "impassable ground")

	require.True(t, e.Grid().Reserve(7, 7, 999))
	assert.False(t, e.CanPlaceUnitAt(tank, 7, 7, nil), "reserved destination")

	_, err := e.PlaceUnit(1, 42, 2, 2)
	assert.ErrorIs(t, err, ErrUnknownType)
	_, err = e.PlaceUnit(9, typeTank, 2, 2)
	assert.ErrorIs(t, err, ErrUnknownPlayer)
	_, err = e.PlaceUnit(1, typeTank, 9, 9)
	assert.ErrorIs(t, err, ErrCannotPlace)
}

func TestShootAt(t *testing.T) {
	fx := &recorder{}
	e := newTestEngine(t, 16, 16, fx)
	a := mustPlace(t, e, 1, typeTank, 1, 1)
	b := mustPlace(t, e, 2, typeTank, 3, 1)

	require.NoError(t, e.ShootAt(b.ID(), a.ID(), 30))
	assert.Equal(t, int32(70), b.Health())
	assert.Equal(t, 1, fx.impacts)
	assert.Equal(t, 3, e.Items().Len(), "impact effect registered")

	require.NoError(t, e.ShootAt(b.ID(), a.ID(), -50))
	assert.Equal(t, int32(100), b.Health(), "healing capped at max health")

	require.NoError(t, e.ShootAt(b.ID(), a.ID(), 500))
	assert.True(t, b.IsDestroyed())
	assert.Equal(t, int32(0), b.Health())
	assert.Equal(t, 1, fx.explosions)
	assert.Equal(t, 2, fx.impacts, "lethal hit spawns no impact")
	assert.True(t, e.Players().Get(2).OutOfGame())

	assert.ErrorIs(t, e.ShootAt(b.ID(), a.ID(), 1), ErrDestroyed)
	assert.ErrorIs(t, e.ShootAt(12345, a.ID(), 1), ErrUnknownItem)
}

func TestDestroyIsIdempotent(t *testing.T) {
	fx := &recorder{}
	e := newTestEngine(t, 16, 16, fx)
	a := mustPlace(t, e, 1, typeTank, 1, 1)
	mustPlace(t, e, 1, typeTank, 3, 3)

	var destroyed int
	event.Subscribe(e.Bus(), func(event.UnitDestroyed) { destroyed++ })

	require.NoError(t, e.Destroy(a.ID()))
	require.NoError(t, e.Destroy(a.ID()))
	deliver(e)

	assert.Equal(t, 1, fx.explosions)
	assert.Equal(t, 1, destroyed)
	assert.Equal(t, 1, e.Players().Get(1).UnitCount())
	assert.False(t, e.Players().Get(1).OutOfGame())
	assert.ErrorIs(t, e.SetWorkType(a.ID(), item.WorkMove), ErrDestroyed)
	assertPartition(t, e)
}

func TestWreckageAging(t *testing.T) {
	e := newTestEngine(t, 16, 16, nil)
	a := mustPlace(t, e, 1, typeScout, 1, 1)
	mustPlace(t, e, 1, typeScout, 4, 4)
	id := a.ID()

	e.Advance(0)
	require.NoError(t, e.Destroy(id))
	for tick := uint64(1); tick < 10; tick++ {
		e.Advance(tick)
		_, ok := e.Items().Get(id)
		require.True(t, ok, "tick %d", tick)
		assert.True(t, e.Grid().CellAt(1, 1).Has(id))
		assert.True(t, e.Lifecycle().Contains(id))
	}
	e.Advance(10)
	_, ok := e.Items().Get(id)
	assert.False(t, ok)
	assert.False(t, e.Grid().CellAt(1, 1).Has(id))
	assert.False(t, e.Lifecycle().Contains(id))
}

func TestWreckageRemovalWaitsForHousekeeping(t *testing.T) {
	players := player.NewRegistry()
	_, err := players.Add(1, "red", 0)
	require.NoError(t, err)
	opts := DefaultOptions()
	require.Equal(t, uint64(400), opts.WreckageTicks)
	require.Equal(t, uint64(20), opts.CleanupPeriod)
	e, err := NewEngine(opts, data.NewMapData("test", 16, 16, data.GroundGrass),
		testUnits(t), players, nil, nil, zap.NewNop())
	require.NoError(t, err)

	a := mustPlace(t, e, 1, typeScout, 1, 1)
	mustPlace(t, e, 1, typeScout, 4, 4)
	for tick := uint64(0); tick <= 3; tick++ {
		e.Advance(tick)
	}
	require.NoError(t, e.Destroy(a.ID()))

	// Age 400 is reached at tick 403; the next housekeeping tick is 420.
	for tick := uint64(4); tick < 420; tick++ {
		e.Advance(tick)
		require.True(t, e.Lifecycle().Contains(a.ID()), "tick %d", tick)
	}
	e.Advance(420)
	assert.False(t, e.Lifecycle().Contains(a.ID()))
	_, ok := e.Items().Get(a.ID())
	assert.False(t, ok)
	assert.False(t, e.Grid().CellAt(1, 1).Has(a.ID()))
}

func TestMoveEndToEnd(t *testing.T) {
	e := newTestEngine(t, 16, 16, nil)
	u := mustPlace(t, e, 1, typeScout, 0, 0)
	require.NoError(t, e.MoveUnit(u.ID(), 10, 10))
	assert.Equal(t, u.ID(), e.Grid().CellAt(10, 10).ReservedBy())

	var moves int
	event.Subscribe(e.Bus(), func(event.UnitMoved) { moves++ })

	arrived := uint64(0)
	for tick := uint64(0); tick < 100; tick++ {
		w, _ := e.Dispatcher().BucketOf(u.ID())
		require.Equal(t, item.WorkMove, w, "tick %d", tick)
		e.Advance(tick)
		deliver(e)
		if u.WorkType() == item.WorkNone {
			arrived = tick
			break
		}
	}

	// 480 pixels per axis at 12 pixels per tick.
	assert.Equal(t, uint64(39), arrived)
	assert.Equal(t, 40, moves)
	assert.Equal(t, canvas.FootprintRect(10, 10, 1, 1), u.Footprint())
	assert.False(t, u.IsMoving())
	w, _ := e.Dispatcher().BucketOf(u.ID())
	assert.Equal(t, item.WorkNone, w)
	assert.Equal(t, 0, e.Dispatcher().Len(item.WorkMove))
	assert.Equal(t, item.ID(0), e.Grid().CellAt(10, 10).ReservedBy())
	_, hasPlan := e.MovePlan(u.ID())
	assert.False(t, hasPlan)
	require.NoError(t, e.Grid().VerifyMembership(u))
}

func TestMoveGivesUpWhenBlocked(t *testing.T) {
	e := newTestEngine(t, 16, 16, nil)
	u := mustPlace(t, e, 1, typeScout, 0, 0)
	mustPlace(t, e, 1, typeScout, 2, 0)
	require.NoError(t, e.MoveUnit(u.ID(), 4, 0))

	for tick := uint64(0); tick < 10; tick++ {
		e.Advance(tick)
	}
	assert.Equal(t, item.WorkNone, u.WorkType())
	assert.Equal(t, int32(48), u.Footprint().X)
	assert.Equal(t, item.ID(0), e.Grid().CellAt(4, 0).ReservedBy())
}

func TestMoveRejects(t *testing.T) {
	e := newTestEngine(t, 16, 16, nil)
	scout := mustPlace(t, e, 1, typeScout, 0, 0)
	other := mustPlace(t, e, 1, typeScout, 5, 5)
	factory := mustPlace(t, e, 1, typeFactory, 8, 8)

	assert.ErrorIs(t, e.MoveUnit(factory.ID(), 1, 1), ErrNotMobile)
	assert.ErrorIs(t, e.MoveUnit(scout.ID(), 20, 1), ErrCannotPlace)
	require.NoError(t, e.MoveUnit(other.ID(), 3, 3))
	assert.ErrorIs(t, e.MoveUnit(scout.ID(), 3, 3), ErrCannotPlace, "destination reserved by another unit")
	assert.ErrorIs(t, e.MoveUnit(777, 1, 1), ErrUnknownItem)
}

func TestFogOnlyClears(t *testing.T) {
	e := newTestEngine(t, 30, 30, nil)
	p := e.Players().Get(1)
	u := mustPlace(t, e, 1, typeScout, 0, 0)

	assert.False(t, p.IsFogged(0, 0))
	assert.False(t, p.IsFogged(3, 4), "inside radius 5")
	assert.True(t, p.IsFogged(4, 4), "outside radius 5")
	before := p.FoggedCount()

	require.NoError(t, e.MoveUnit(u.ID(), 20, 0))
	for tick := uint64(0); u.WorkType() == item.WorkMove && tick < 200; tick++ {
		e.Advance(tick)
	}
	assert.False(t, p.IsFogged(20, 0))
	assert.False(t, p.IsFogged(0, 0), "tiles left behind stay visible")
	assert.True(t, p.IsFogged(29, 29))
	assert.Less(t, p.FoggedCount(), before)
	assert.True(t, e.Players().Get(2).IsFogged(20, 0), "other players unaffected")
}

func TestCombatUntilDestroyed(t *testing.T) {
	fx := &recorder{}
	e := newTestEngine(t, 16, 16, fx)
	a := mustPlace(t, e, 1, typeTank, 2, 2)
	b := mustPlace(t, e, 2, typeTank, 4, 2)

	var out []event.PlayerOutOfGame
	event.Subscribe(e.Bus(), func(ev event.PlayerOutOfGame) { out = append(out, ev) })

	e.Advance(0)
	assert.Equal(t, item.WorkAttack, a.WorkType())
	assert.Equal(t, item.WorkAttack, b.WorkType())
	for tick := uint64(1); tick <= 49; tick++ {
		e.Advance(tick)
		deliver(e)
		assertPartition(t, e)
	}

	assert.True(t, b.IsDestroyed())
	assert.Equal(t, int32(10), a.Health(), "the lower id fires first each volley")
	assert.Equal(t, 18, fx.impacts)
	require.Len(t, out, 1)
	assert.Equal(t, uint32(2), out[0].Player)

	e.Advance(50)
	assert.Equal(t, item.WorkNone, a.WorkType())
	_, hasTarget := e.AttackOf(a.ID())
	assert.False(t, hasTarget)

	for tick := uint64(51); tick <= 59; tick++ {
		e.Advance(tick)
	}
	_, ok := e.Items().Get(b.ID())
	assert.False(t, ok, "wreck removed ten ticks after destruction")
}

func TestIdleAcquiresNearestLowestID(t *testing.T) {
	e := newTestEngine(t, 16, 16, nil)
	a := mustPlace(t, e, 1, typeTank, 5, 5)
	d := mustPlace(t, e, 2, typeScout, 3, 5)
	mustPlace(t, e, 2, typeScout, 7, 5)
	mustPlace(t, e, 2, typeScout, 5, 9) // out of range

	e.Advance(0)
	at, ok := e.AttackOf(a.ID())
	require.True(t, ok)
	assert.Equal(t, d.ID(), at.Target)
}

func TestAttackOrder(t *testing.T) {
	e := newTestEngine(t, 16, 16, nil)
	a := mustPlace(t, e, 1, typeTank, 1, 1)
	s := mustPlace(t, e, 1, typeScout, 2, 1)
	b := mustPlace(t, e, 2, typeScout, 12, 1)

	assert.ErrorIs(t, e.AttackUnit(s.ID(), b.ID()), ErrNotArmed)
	assert.ErrorIs(t, e.AttackUnit(a.ID(), a.ID()), ErrUnknownItem)
	require.NoError(t, e.AttackUnit(a.ID(), b.ID()))
	assert.Equal(t, item.WorkAttack, a.WorkType())

	// Out of range: the attacker closes in and resumes the attack.
	e.Advance(0)
	assert.Equal(t, item.WorkMove, a.WorkType())
	plan, ok := e.MovePlan(a.ID())
	require.True(t, ok)
	assert.Equal(t, item.WorkAttack, plan.Next)

	for tick := uint64(1); tick < 200 && !b.IsDestroyed(); tick++ {
		e.Advance(tick)
	}
	assert.True(t, b.IsDestroyed())
}

func TestProduction(t *testing.T) {
	fx := &recorder{}
	e := newTestEngine(t, 16, 16, fx)
	factory := mustPlace(t, e, 1, typeFactory, 1, 1)
	tank := mustPlace(t, e, 1, typeTank, 8, 8)

	assert.ErrorIs(t, e.ProduceUnit(factory.ID(), typeScout), ErrCannotProduce)
	assert.ErrorIs(t, e.ProduceUnit(tank.ID(), typeTank), ErrNotFacility)
	assert.ErrorIs(t, e.ProduceUnit(factory.ID(), 99), ErrUnknownType)
	require.NoError(t, e.ProduceUnit(factory.ID(), typeTank))
	assert.Equal(t, item.WorkProduce, factory.WorkType())

	var produced []event.UnitProduced
	event.Subscribe(e.Bus(), func(ev event.UnitProduced) { produced = append(produced, ev) })

	for tick := uint64(0); tick < 3; tick++ {
		e.Advance(tick)
		deliver(e)
	}
	assert.Empty(t, produced)
	e.Advance(3)
	deliver(e)

	require.Len(t, produced, 1)
	assert.Equal(t, factory.ID(), produced[0].Facility)
	u, ok := e.Unit(produced[0].ID)
	require.True(t, ok)
	assert.Equal(t, canvas.FootprintRect(3, 1, 1, 1), u.Footprint(), "first free tile of the ring around the facility")
	assert.Equal(t, uint32(1), u.Owner())
	assert.Equal(t, 3, e.Players().Get(1).UnitCount())
	assert.Equal(t, item.WorkNone, factory.WorkType())
	assert.Equal(t, []string{"unit_ready"}, fx.sounds)
	assertPartition(t, e)
}

func TestProduceMissingPluginFallsBackToNone(t *testing.T) {
	e := newTestEngine(t, 16, 16, nil)
	factory := mustPlace(t, e, 1, typeFactory, 1, 1)
	require.NoError(t, e.SetWorkType(factory.ID(), item.WorkProduce))

	e.Advance(0)
	assert.Equal(t, item.WorkNone, factory.WorkType())
	assertPartition(t, e)
}

func TestConstruction(t *testing.T) {
	e := newTestEngine(t, 16, 16, nil)
	builder := mustPlace(t, e, 1, typeTank, 5, 5)

	_, err := e.PlaceFacility(builder.ID(), typeRefinery, 12, 5)
	assert.ErrorIs(t, err, ErrCannotPlace, "out of build range")
	_, err = e.PlaceFacility(builder.ID(), typeTank, 7, 5)
	assert.ErrorIs(t, err, ErrNotFacility)

	id, err := e.PlaceFacility(builder.ID(), typeRefinery, 7, 5)
	require.NoError(t, err)
	site, _ := e.Unit(id)
	assert.Equal(t, item.WorkUnderConstruction, site.WorkType())
	assert.Equal(t, int32(1), site.Health())

	var done int
	event.Subscribe(e.Bus(), func(event.ConstructionCompleted) { done++ })

	e.Advance(0)
	assert.Equal(t, int32(150), site.Health())
	e.Advance(1)
	deliver(e)
	assert.Equal(t, int32(300), site.Health())
	assert.Equal(t, item.WorkNone, site.WorkType())
	assert.Equal(t, 1, done)
	_, building := e.Construction(id)
	assert.False(t, building)
}

func TestHarvestLoop(t *testing.T) {
	e := newTestEngine(t, 16, 16, nil)
	mustPlace(t, e, 1, typeRefinery, 1, 5)
	h := mustPlace(t, e, 1, typeHarvester, 4, 5)
	p := e.Players().Get(1)

	require.NoError(t, e.MineAt(h.ID(), 8, 5))
	assert.ErrorIs(t, e.MineAt(e.Items().IDs()[0], 8, 5), ErrNotMobile)

	delivered := uint64(0)
	for tick := uint64(0); tick < 200; tick++ {
		e.Advance(tick)
		if p.Minerals() > 0 {
			delivered = tick
			break
		}
	}
	require.NotZero(t, delivered, "no load delivered")
	assert.Equal(t, int64(100), p.Minerals())
	m, ok := e.Mining(h.ID())
	require.True(t, ok)
	assert.Equal(t, int32(0), m.Carried)
	assert.Equal(t, item.WorkMove, h.WorkType(), "heading back to the field")
	plan, _ := e.MovePlan(h.ID())
	assert.Equal(t, item.WorkMine, plan.Next)
}

func TestStopUnit(t *testing.T) {
	e := newTestEngine(t, 16, 16, nil)
	u := mustPlace(t, e, 1, typeScout, 0, 0)
	require.NoError(t, e.MoveUnit(u.ID(), 9, 9))
	e.Advance(0)
	require.NoError(t, e.StopUnit(u.ID()))

	assert.Equal(t, item.WorkNone, u.WorkType())
	assert.False(t, u.IsMoving())
	assert.Equal(t, item.ID(0), e.Grid().CellAt(9, 9).ReservedBy())
	assertPartition(t, e)
}

func TestQuit(t *testing.T) {
	e := newTestEngine(t, 16, 16, nil)
	u := mustPlace(t, e, 1, typeScout, 0, 0)
	require.NoError(t, e.Destroy(u.ID()))
	e.Advance(3)
	e.Quit()

	assert.Equal(t, 0, e.Items().Len())
	assert.Equal(t, 0, e.Lifecycle().Len())
	e.Advance(4)
	assert.Equal(t, uint64(3), e.Tick())
	assert.ErrorIs(t, e.MoveUnit(u.ID(), 1, 1), ErrStopped)
}
