package item

// Rect is a half-open canvas-pixel rectangle [X, X+W) x [Y, Y+H).
type Rect struct {
	X, Y, W, H int32
}

// Empty reports whether the rect covers no pixel.
func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// Right and Bottom are exclusive edges.
func (r Rect) Right() int32  { return r.X + r.W }
func (r Rect) Bottom() int32 { return r.Y + r.H }

// Intersects reports whether r and o share at least one pixel.
func (r Rect) Intersects(o Rect) bool {
	if r.Empty() || o.Empty() {
		return false
	}
	return r.X < o.Right() && o.X < r.Right() && r.Y < o.Bottom() && o.Y < r.Bottom()
}

// Contains reports whether pixel (x, y) lies inside r.
func (r Rect) Contains(x, y int32) bool {
	return x >= r.X && x < r.Right() && y >= r.Y && y < r.Bottom()
}

// Center returns the integer center pixel.
func (r Rect) Center() (int32, int32) {
	return r.X + r.W/2, r.Y + r.H/2
}

// Moved returns r translated to top-left (x, y).
func (r Rect) Moved(x, y int32) Rect {
	return Rect{X: x, Y: y, W: r.W, H: r.H}
}

// DistSq returns the squared distance between two points, in int64 so that
// map-sized coordinates cannot overflow.
func DistSq(ax, ay, bx, by int32) int64 {
	dx := int64(ax) - int64(bx)
	dy := int64(ay) - int64(by)
	return dx*dx + dy*dy
}
