package canvas

import (
	"fmt"

	"github.com/boson/simcore/internal/data"
	"github.com/boson/simcore/internal/item"
	"go.uber.org/zap"
)

// Grid is the spatial index: a fixed array of cells plus, per item, the
// cells it is currently registered on. Removal uses that record rather than
// the item's current footprint, so an item is always unregistered from
// exactly the cells it was added to.
// Accessed only from the simulation goroutine; no locks.
type Grid struct {
	width, height int
	cells         []Cell
	terrain       *data.MapData
	membership    map[item.ID][]int // item → cell indices
	log           *zap.Logger
}

// NewGrid creates the cell array for a map. Cells live as long as the grid.
func NewGrid(m *data.MapData, log *zap.Logger) *Grid {
	g := &Grid{
		width:      m.Width(),
		height:     m.Height(),
		cells:      make([]Cell, m.Width()*m.Height()),
		terrain:    m,
		membership: make(map[item.ID][]int, 256),
		log:        log,
	}
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			ground, _ := m.GroundAt(x, y)
			g.cells[y*g.width+x] = Cell{x: x, y: y, ground: ground}
		}
	}
	return g
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }

// SetGround changes the terrain of tile (x, y) in the map and its cell.
// Off-map tiles are ignored.
func (g *Grid) SetGround(x, y int, gr data.Ground) {
	c := g.CellAt(x, y)
	if c == nil || !gr.Valid() {
		return
	}
	g.terrain.SetGround(x, y, gr)
	c.ground = gr
}

// CanvasRect returns the whole map in canvas pixels.
func (g *Grid) CanvasRect() item.Rect {
	return item.Rect{W: int32(g.width) * CellSize, H: int32(g.height) * CellSize}
}

// CellAt returns the cell at tile (x, y), or nil outside the map.
func (g *Grid) CellAt(x, y int) *Cell {
	if x < 0 || y < 0 || x >= g.width || y >= g.height {
		return nil
	}
	return &g.cells[y*g.width+x]
}

// CellAtPoint returns the cell containing canvas pixel (x, y).
func (g *Grid) CellAtPoint(x, y int32) *Cell {
	return g.CellAt(TileOf(x), TileOf(y))
}

// AddToCells registers an item on every in-map cell its footprint overlaps.
// Calling it for an already registered item re-registers it.
func (g *Grid) AddToCells(it item.Item) {
	if !it.HasFootprint() {
		return
	}
	id := it.ID()
	if _, ok := g.membership[id]; ok {
		g.RemoveFromCells(it)
	}
	x0, y0, x1, y1, ok := CellRange(it.Footprint())
	if !ok {
		g.log.Error("item with empty footprint not added to cells", zap.Uint64("item", uint64(id)))
		return
	}
	idx := make([]int, 0, (x1-x0+1)*(y1-y0+1))
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			c := g.CellAt(x, y)
			if c == nil {
				continue
			}
			c.add(it)
			idx = append(idx, y*g.width+x)
		}
	}
	g.membership[id] = idx
}

// RemoveFromCells unregisters an item from every cell it was added to.
func (g *Grid) RemoveFromCells(it item.Item) {
	id := it.ID()
	idx, ok := g.membership[id]
	if !ok {
		return
	}
	for _, i := range idx {
		g.cells[i].remove(id)
	}
	delete(g.membership, id)
}

// MoveItem changes an item's footprint and keeps cell membership in sync.
func (g *Grid) MoveItem(it item.Placeable, r item.Rect) {
	g.RemoveFromCells(it)
	it.SetFootprint(r)
	g.AddToCells(it)
}

// Registered reports whether the item is on the grid.
func (g *Grid) Registered(id item.ID) bool {
	_, ok := g.membership[id]
	return ok
}

// CellsOf returns the tiles an item is registered on, in row-major order.
func (g *Grid) CellsOf(id item.ID) []TilePoint {
	idx := g.membership[id]
	out := make([]TilePoint, len(idx))
	for n, i := range idx {
		out[n] = TilePoint{X: i % g.width, Y: i / g.width}
	}
	return out
}

// VerifyMembership checks that the item is registered on exactly the
// in-map cells its footprint overlaps.
func (g *Grid) VerifyMembership(it item.Item) error {
	want := make(map[int]bool)
	if x0, y0, x1, y1, ok := CellRange(it.Footprint()); ok && it.HasFootprint() {
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				if g.CellAt(x, y) != nil {
					want[y*g.width+x] = true
				}
			}
		}
	}
	for i := range g.cells {
		c := &g.cells[i]
		if has := c.Has(it.ID()); has != want[i] {
			return fmt.Errorf("item %d: cell (%d,%d) membership %t, footprint overlap %t",
				it.ID(), c.x, c.y, has, want[i])
		}
	}
	return nil
}

// Reserve marks tile (x, y) as the destination of a pending move by id.
// It fails when another item holds the reservation or the tile is off-map.
func (g *Grid) Reserve(x, y int, id item.ID) bool {
	c := g.CellAt(x, y)
	if c == nil || (c.reservedBy != 0 && c.reservedBy != id) {
		return false
	}
	c.reservedBy = id
	return true
}

// Release drops a reservation held by id.
func (g *Grid) Release(x, y int, id item.ID) {
	if c := g.CellAt(x, y); c != nil && c.reservedBy == id {
		c.reservedBy = 0
	}
}

// ReleaseAll drops every reservation held by id.
func (g *Grid) ReleaseAll(id item.ID) {
	for i := range g.cells {
		if g.cells[i].reservedBy == id {
			g.cells[i].reservedBy = 0
		}
	}
}

// Reset unregisters every item and clears all reservations.
func (g *Grid) Reset() {
	for i := range g.cells {
		g.cells[i].items = nil
		g.cells[i].reservedBy = 0
	}
	for id := range g.membership {
		delete(g.membership, id)
	}
}
