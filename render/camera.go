package render

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/voxelray/voxelray/lattice"
)

// FracBits is the fixed-point shift used for all per-frame arithmetic. The
// camera folds the float transform into integer deltas once; everything the
// traversal accumulates afterwards stays in this representation so long
// relative chains cannot drift.
const FracBits = 16

type vec struct {
	x, y, z int64
}

func (v vec) add(u vec) vec {
	return vec{v.x + u.x, v.y + u.y, v.z + u.z}
}

// Camera is an affine model-to-screen transform pre-applied to the lattice
// basis and the 26 neighbor directions. Screen x grows right, screen y grows
// down, and depth grows away from the viewer (smaller is nearer).
type Camera struct {
	bx, by, bz vec                        // transformed lattice axes
	dirs       [lattice.NumDirections]vec // transformed direction deltas
	tx, ty, tz int64                      // screen-space position of the tree root
	orderKey   int
}

// NewCamera builds a camera looking at the tree root from the given yaw and
// pitch (radians), with scale screen pixels per voxel at the finest level.
// The root projects to the center of a width x height frame.
func NewCamera(width, height int, yaw, pitch, scale float64) *Camera {
	q := quat.Mul(rotationAbout(pitch, r3.Vector{X: 1}), rotationAbout(yaw, r3.Vector{Y: 1}))

	cam := &Camera{
		bx: fixVec(rotate(q, r3.Vector{X: scale})),
		by: fixVec(rotate(q, r3.Vector{Y: scale})),
		bz: fixVec(rotate(q, r3.Vector{Z: scale})),
		tx: int64(width) << (FracBits - 1),
		ty: int64(height) << (FracBits - 1),
	}
	for i, d := range lattice.Directions {
		cam.dirs[i] = vec{
			int64(d.X)*cam.bx.x + int64(d.Y)*cam.by.x + int64(d.Z)*cam.bz.x,
			int64(d.X)*cam.bx.y + int64(d.Y)*cam.by.y + int64(d.Z)*cam.bz.y,
			int64(d.X)*cam.bx.z + int64(d.Y)*cam.by.z + int64(d.Z)*cam.bz.z,
		}
	}
	cam.orderKey = orderKeyFor(cam.bx, cam.by, cam.bz)
	return cam
}

// OrderKey returns the view-dependent octant visitation key for this camera.
func (c *Camera) OrderKey() int {
	return c.orderKey
}

func rotationAbout(angle float64, axis r3.Vector) quat.Number {
	s, c := math.Sincos(angle / 2)
	return quat.Number{Real: c, Imag: s * axis.X, Jmag: s * axis.Y, Kmag: s * axis.Z}
}

func rotate(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

func fixVec(v r3.Vector) vec {
	// Screen y points down.
	return vec{fix(v.X), fix(-v.Y), fix(v.Z)}
}

func fix(v float64) int64 {
	return int64(math.Round(v * (1 << FracBits)))
}
