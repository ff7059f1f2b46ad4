package item

import (
	"testing"

	"github.com/boson/simcore/internal/core/ecs"
	"github.com/boson/simcore/internal/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tank = &data.UnitProps{
	TypeID: 1, Name: "tank", Width: 1, Height: 1, Health: 100, Speed: 4, Land: true,
	Weapon: &data.WeaponProps{Damage: 10, RangeTiles: 4, ReloadTicks: 3},
}

func TestRectIntersects(t *testing.T) {
	a := Rect{X: 0, Y: 0, W: 48, H: 48}
	assert.True(t, a.Intersects(Rect{X: 47, Y: 47, W: 1, H: 1}))
	assert.False(t, a.Intersects(Rect{X: 48, Y: 0, W: 48, H: 48}), "edges are exclusive")
	assert.False(t, a.Intersects(Rect{X: 10, Y: 10}), "empty rects never intersect")
	assert.True(t, a.Contains(0, 47))
	assert.False(t, a.Contains(48, 0))
	assert.Equal(t, int64(25), DistSq(0, 0, 3, 4))
}

func TestUnitDestroyedIsTerminal(t *testing.T) {
	u := NewUnit(1, tank, 1, Rect{W: 48, H: 48})
	assert.Equal(t, KindMobile, u.Kind())
	require.True(t, u.SetWorkType(WorkMove))
	u.SetMoving(true)

	require.True(t, u.MarkDestroyed())
	assert.False(t, u.MarkDestroyed())
	assert.Equal(t, WorkDestroyed, u.WorkType())
	assert.Zero(t, u.Health())
	assert.False(t, u.IsMoving())
	assert.False(t, u.SetWorkType(WorkNone))
	assert.Equal(t, WorkDestroyed, u.WorkType())
}

func TestUnitHealthClamp(t *testing.T) {
	u := NewUnit(1, tank, 1, Rect{W: 48, H: 48})
	u.SetHealth(-5)
	assert.Zero(t, u.Health())
	u.SetHealth(1000)
	assert.Equal(t, int32(100), u.Health())
}

func TestUnitReloadSaturates(t *testing.T) {
	u := NewUnit(1, tank, 1, Rect{W: 48, H: 48})
	for i := 0; i < 10; i++ {
		u.TickReload()
	}
	assert.Equal(t, uint32(3), u.Reload())
	assert.True(t, u.Reloaded())
	u.ResetReload()
	assert.False(t, u.Reloaded())
}

func TestEffectExpires(t *testing.T) {
	e := NewEffect(5, 10, 10, 1, 2, 2)
	assert.False(t, e.HasFootprint())
	assert.False(t, e.Tick())
	assert.True(t, e.Tick())
	assert.True(t, e.IsDestroyed())
	assert.False(t, e.Tick(), "expiry is reported once")
}

func TestRegistryDeferredRemoval(t *testing.T) {
	r := NewRegistry(ecs.NewWorld())
	var ids []ID
	for i := 0; i < 3; i++ {
		id := r.NewID()
		require.NoError(t, r.Add(NewUnit(id, tank, 1, Rect{W: 48, H: 48})))
		ids = append(ids, id)
	}
	assert.Error(t, r.Add(NewUnit(ids[0], tank, 1, Rect{})), "duplicate")
	assert.Error(t, r.Add(NewUnit(999, tank, 1, Rect{})), "foreign id")

	r.Remove(ids[1])
	_, ok := r.Get(ids[1])
	assert.True(t, ok, "still registered until flush")
	assert.True(t, r.RemovalPending(ids[1]))
	assert.Equal(t, ids, r.IDs())

	assert.Equal(t, []ID{ids[1]}, r.Flush())
	_, ok = r.Get(ids[1])
	assert.False(t, ok)
	assert.Equal(t, []ID{ids[0], ids[2]}, r.IDs())
	assert.Len(t, r.Units(), 2)
}
