package canvas

import (
	"sort"

	"github.com/boson/simcore/internal/data"
	"github.com/boson/simcore/internal/item"
)

type regionKind uint8

const (
	regionPoint regionKind = iota
	regionRect
	regionCells
)

// Region is the area of a collision query: a canvas point, a canvas rect
// or an explicit list of tiles.
type Region struct {
	kind  regionKind
	x, y  int32
	rect  item.Rect
	tiles []TilePoint
}

func PointRegion(x, y int32) Region     { return Region{kind: regionPoint, x: x, y: y} }
func RectRegion(r item.Rect) Region     { return Region{kind: regionRect, rect: r} }
func CellsRegion(t ...TilePoint) Region { return Region{kind: regionCells, tiles: t} }

// visitCells calls fn for every in-map cell the region touches.
func (g *Grid) visitCells(r Region, fn func(*Cell)) {
	switch r.kind {
	case regionPoint:
		if c := g.CellAtPoint(r.x, r.y); c != nil {
			fn(c)
		}
	case regionRect:
		x0, y0, x1, y1, ok := CellRange(r.rect)
		if !ok {
			return
		}
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				if c := g.CellAt(x, y); c != nil {
					fn(c)
				}
			}
		}
	case regionCells:
		for _, t := range r.tiles {
			if c := g.CellAt(t.X, t.Y); c != nil {
				fn(c)
			}
		}
	}
}

// overlaps is the exact per-item test against the region.
func (r Region) overlaps(fp item.Rect) bool {
	switch r.kind {
	case regionPoint:
		return fp.Contains(r.x, r.y)
	case regionRect:
		return fp.Intersects(r.rect)
	case regionCells:
		for _, t := range r.tiles {
			if fp.Intersects(TileRect(t.X, t.Y)) {
				return true
			}
		}
	}
	return false
}

// Collisions returns the items registered on the cells the region touches,
// each at most once, sorted by id. exclude (0 for none) is never reported.
// With exact=false the result is a conservative superset; exact=true keeps
// only items whose footprint really overlaps the region.
func (g *Grid) Collisions(r Region, exclude item.ID, exact bool) []item.Item {
	seen := make(map[item.ID]struct{})
	var out []item.Item
	g.visitCells(r, func(c *Cell) {
		for _, it := range c.items {
			id := it.ID()
			if id == exclude {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if exact && !r.overlaps(it.Footprint()) {
				continue
			}
			out = append(out, it)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// CanTraverse reports whether a unit with movement mv may occupy rect. It
// fails closed: any tile outside the map or impassable for mv rejects it.
func (g *Grid) CanTraverse(mv data.Movement, r item.Rect) bool {
	x0, y0, x1, y1, ok := CellRange(r)
	if !ok {
		return false
	}
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			c := g.CellAt(x, y)
			if c == nil {
				return false
			}
			if !g.terrain.Passable(c.ground, mv) {
				return false
			}
		}
	}
	return true
}

// IsOccupied reports whether tile (x, y) holds a blocking item. Flying
// items never block and forItem, if flying, is never blocked. forItem itself
// is ignored, and with excludeMoving so are moving occupants. Off-map tiles
// are reported unoccupied; callers validate them with CanTraverse.
func (g *Grid) IsOccupied(x, y int, forItem item.Item, excludeMoving bool) bool {
	c := g.CellAt(x, y)
	if c == nil {
		return false
	}
	var self item.ID
	if forItem != nil {
		if forItem.IsFlying() {
			return false
		}
		self = forItem.ID()
	}
	for _, it := range c.items {
		if it.ID() == self || !blocks(it) {
			continue
		}
		if excludeMoving && it.IsMoving() {
			continue
		}
		return true
	}
	return false
}

// RectOccupied reports whether any tile under r is occupied for forItem.
func (g *Grid) RectOccupied(r item.Rect, forItem item.Item, excludeMoving bool) bool {
	x0, y0, x1, y1, ok := CellRange(r)
	if !ok {
		return false
	}
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			if g.IsOccupied(x, y, forItem, excludeMoving) {
				return true
			}
		}
	}
	return false
}
