// Package lattice provides the integer voxel-lattice primitives shared by the
// octree builder, the strip codec and the software renderer: lattice points
// and the fixed table of the 26 unit-step neighbor directions.
package lattice

// Point is a position on the integer voxel lattice.
type Point struct {
	X, Y, Z int32
}

// Add returns p offset by q.
func (p Point) Add(q Point) Point {
	return Point{p.X + q.X, p.Y + q.Y, p.Z + q.Z}
}

// Sub returns the per-axis difference p - q.
func (p Point) Sub(q Point) Point {
	return Point{p.X - q.X, p.Y - q.Y, p.Z - q.Z}
}

// Direction is a single step to one of the 26 lattice neighbors of a point.
// Each component is in {-1, 0, 1} and at least one is non-zero.
type Direction struct {
	X, Y, Z int8
}

// NumDirections is the number of distinct neighbor directions on the lattice.
const NumDirections = 26

// Directions enumerates every neighbor direction. The order is part of the
// compressed stream format: the numeric index of a direction is what a
// relative record stores, so entries must never be reordered. Corner
// diagonals come first, then the 6 face-axis steps, then the 12 edge
// diagonals.
var Directions = [NumDirections]Direction{
	{-1, -1, -1}, {1, -1, -1}, {-1, 1, -1}, {1, 1, -1},
	{-1, -1, 1}, {1, -1, 1}, {-1, 1, 1}, {1, 1, 1},

	{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1},

	{1, 1, 0}, {1, -1, 0}, {-1, 1, 0}, {-1, -1, 0},
	{1, 0, 1}, {1, 0, -1}, {-1, 0, 1}, {-1, 0, -1},
	{0, 1, 1}, {0, 1, -1}, {0, -1, 1}, {0, -1, -1},
}

// reverse maps a packed offset (dx+1)*9 + (dy+1)*3 + (dz+1) back to its
// direction index, or -1 for offsets that are not unit steps (the zero
// offset).
var reverse [27]int8

func init() {
	for i := range reverse {
		reverse[i] = -1
	}
	for i, d := range Directions {
		reverse[pack(int32(d.X), int32(d.Y), int32(d.Z))] = int8(i)
	}
}

func pack(dx, dy, dz int32) int32 {
	return (dx+1)*9 + (dy+1)*3 + (dz + 1)
}

// Index returns the direction index for the given offset. ok is false when
// the offset is not one of the 26 unit steps, including the zero offset.
func Index(dx, dy, dz int32) (int, bool) {
	if dx < -1 || dx > 1 || dy < -1 || dy > 1 || dz < -1 || dz > 1 {
		return 0, false
	}
	i := reverse[pack(dx, dy, dz)]
	if i < 0 {
		return 0, false
	}
	return int(i), true
}
