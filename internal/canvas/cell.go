// Package canvas maintains the map cell grid and the item-to-cell membership
// used by collision, placement and range queries.
package canvas

import (
	"github.com/boson/simcore/internal/data"
	"github.com/boson/simcore/internal/item"
)

// CellSize is the edge length of one tile in canvas pixels.
const CellSize int32 = 48

// Flags summarize a cell's occupancy.
type Flags uint8

const (
	FlagBuilding Flags = 1 << iota // a facility overlaps the cell
	FlagMoving                     // a moving unit overlaps the cell
	FlagReserved                   // reserved as the destination of a pending move
)

// TilePoint is a tile coordinate.
type TilePoint struct {
	X, Y int
}

// Cell is a single map tile. Its item list holds exactly the items whose
// footprint overlaps the tile; only Grid mutates it.
type Cell struct {
	x, y       int
	ground     data.Ground
	items      []item.Item // registration order
	reservedBy item.ID
}

func (c *Cell) X() int              { return c.x }
func (c *Cell) Y() int              { return c.y }
func (c *Cell) Ground() data.Ground { return c.ground }
func (c *Cell) Len() int            { return len(c.items) }
func (c *Cell) ReservedBy() item.ID { return c.reservedBy }

// Items returns a copy of the registered items.
func (c *Cell) Items() []item.Item {
	out := make([]item.Item, len(c.items))
	copy(out, c.items)
	return out
}

// Has reports whether the item is registered on this cell.
func (c *Cell) Has(id item.ID) bool {
	for _, it := range c.items {
		if it.ID() == id {
			return true
		}
	}
	return false
}

// Flags computes the occupancy summary of the cell.
func (c *Cell) Flags() Flags {
	var f Flags
	for _, it := range c.items {
		if it.IsDestroyed() {
			continue
		}
		if it.Kind() == item.KindFacility {
			f |= FlagBuilding
		}
		if it.IsMoving() {
			f |= FlagMoving
		}
	}
	if c.reservedBy != 0 {
		f |= FlagReserved
	}
	return f
}

// Rect returns the canvas rectangle covered by the cell.
func (c *Cell) Rect() item.Rect {
	return TileRect(c.x, c.y)
}

func (c *Cell) add(it item.Item) {
	c.items = append(c.items, it)
}

func (c *Cell) remove(id item.ID) {
	for i, it := range c.items {
		if it.ID() == id {
			// keep registration order so that iteration stays reproducible
			c.items = append(c.items[:i], c.items[i+1:]...)
			return
		}
	}
}

// blocks reports whether it prevents ground units from entering a cell.
func blocks(it item.Item) bool {
	return it.HasFootprint() && !it.IsDestroyed() && !it.IsFlying()
}

// TileRect returns the canvas rectangle of tile (x, y).
func TileRect(x, y int) item.Rect {
	return item.Rect{X: int32(x) * CellSize, Y: int32(y) * CellSize, W: CellSize, H: CellSize}
}

// TileOf converts a canvas pixel coordinate to a tile coordinate, rounding
// toward negative infinity.
func TileOf(v int32) int {
	return int(floorDiv(v, CellSize))
}

// FootprintRect returns the canvas rectangle of a w x h tile footprint whose
// top-left tile is (x, y).
func FootprintRect(x, y int, w, h int32) item.Rect {
	return item.Rect{X: int32(x) * CellSize, Y: int32(y) * CellSize, W: w * CellSize, H: h * CellSize}
}

func floorDiv(a, b int32) int32 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// CellRange converts a rect to the inclusive tile range it overlaps: floor
// for the minimum, the tile of the last covered pixel for the maximum, so a
// rect that touches a tile by a single pixel includes it. ok is false for an
// empty rect.
func CellRange(r item.Rect) (x0, y0, x1, y1 int, ok bool) {
	if r.Empty() {
		return 0, 0, 0, 0, false
	}
	x0 = TileOf(r.X)
	y0 = TileOf(r.Y)
	x1 = TileOf(r.Right() - 1)
	y1 = TileOf(r.Bottom() - 1)
	return x0, y0, x1, y1, true
}
