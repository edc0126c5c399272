package render

import (
	"image/color"
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"

	"github.com/voxelray/voxelray/lattice"
	"github.com/voxelray/voxelray/octree"
	"github.com/voxelray/voxelray/palette"
)

var (
	testRed   = color.NRGBA{255, 0, 0, 255}
	testGreen = color.NRGBA{0, 255, 0, 255}
)

func testPalette(t *testing.T) *palette.Palette {
	t.Helper()
	pal, err := palette.New([]color.NRGBA{testRed, testGreen})
	test.That(t, err, test.ShouldBeNil)
	return pal
}

func buildTree(t *testing.T, points []octree.PointRecord, opts octree.Options) (*octree.Linear, *palette.Palette) {
	t.Helper()
	pal := testPalette(t)
	lin, err := octree.Build(points, pal, opts, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return lin, pal
}

func setPixels(f *Frame) map[[2]int]uint32 {
	out := map[[2]int]uint32{}
	for y := 0; y < f.Height(); y++ {
		for x := 0; x < f.Width(); x++ {
			if f.DepthAt(x, y) != FarDepth {
				out[[2]int{x, y}] = f.ColorAt(x, y)
			}
		}
	}
	return out
}

func TestFrameGeometry(t *testing.T) {
	_, err := NewFrame(100, 64)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewFrame(64, 0)
	test.That(t, err, test.ShouldNotBeNil)

	f, err := NewFrame(64, 32)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f.Width(), test.ShouldEqual, 64)
	test.That(t, f.Height(), test.ShouldEqual, 32)
	test.That(t, f.DepthAt(0, 0), test.ShouldEqual, int32(FarDepth))
	test.That(t, f.DepthAt(-1, 5), test.ShouldEqual, int32(FarDepth))

	f.Clear(PackColor(1, 2, 3, 4))
	test.That(t, f.ColorAt(10, 10), test.ShouldEqual, PackColor(1, 2, 3, 4))
}

func TestDrawSinglePointAtCenter(t *testing.T) {
	// One voxel at the root center projects to the frame center under a
	// straight-on unit-scale view.
	lin, pal := buildTree(t,
		[]octree.PointRecord{{P: lattice.Point{4, 4, 4}, C: testRed}},
		octree.Options{Levels: 3})

	f, err := NewFrame(64, 64)
	test.That(t, err, test.ShouldBeNil)
	cam := NewCamera(64, 64, 0, 0, 1)

	NewRenderer().Draw(f, cam, lin, pal, cam.OrderKey(), 0)

	px := setPixels(f)
	test.That(t, len(px), test.ShouldEqual, 1)
	test.That(t, px[[2]int{32, 32}], test.ShouldEqual, PackColor(255, 0, 0, 255))
	test.That(t, f.DepthAt(32, 32), test.ShouldEqual, int32(0))
}

func TestDepthTestKeepsNearest(t *testing.T) {
	// Two voxels stacked along the view axis land on the same pixel; the
	// nearer (smaller depth) one must win regardless of traversal order.
	lin, pal := buildTree(t, []octree.PointRecord{
		{P: lattice.Point{4, 4, 3}, C: testRed},
		{P: lattice.Point{4, 4, 5}, C: testGreen},
	}, octree.Options{Levels: 3})

	f, err := NewFrame(64, 64)
	test.That(t, err, test.ShouldBeNil)
	cam := NewCamera(64, 64, 0, 0, 1)

	NewRenderer().Draw(f, cam, lin, pal, cam.OrderKey(), 0)

	px := setPixels(f)
	test.That(t, len(px), test.ShouldEqual, 1)
	test.That(t, px[[2]int{32, 32}], test.ShouldEqual, PackColor(255, 0, 0, 255))
	test.That(t, f.DepthAt(32, 32), test.ShouldEqual, int32(-1))
}

func TestDrawProjectsLatticeOffsets(t *testing.T) {
	// Straight-on view: +x is one pixel right per voxel, +y one pixel up
	// (screen y points down).
	lin, pal := buildTree(t, []octree.PointRecord{
		{P: lattice.Point{4, 4, 4}, C: testRed},
		{P: lattice.Point{6, 4, 4}, C: testGreen},
		{P: lattice.Point{4, 6, 4}, C: testGreen},
	}, octree.Options{Levels: 3})

	f, err := NewFrame(64, 64)
	test.That(t, err, test.ShouldBeNil)
	cam := NewCamera(64, 64, 0, 0, 1)

	NewRenderer().Draw(f, cam, lin, pal, cam.OrderKey(), 0)

	px := setPixels(f)
	test.That(t, len(px), test.ShouldEqual, 3)
	test.That(t, px[[2]int{32, 32}], test.ShouldEqual, PackColor(255, 0, 0, 255))
	test.That(t, px[[2]int{34, 32}], test.ShouldEqual, PackColor(0, 255, 0, 255))
	test.That(t, px[[2]int{32, 30}], test.ShouldEqual, PackColor(0, 255, 0, 255))
}

func TestCoarserLODDrawsSamePoints(t *testing.T) {
	// Aggregation copies exact points upward, so decoding a coarser level
	// must light the same pixels as the finest one.
	points := []octree.PointRecord{
		{P: lattice.Point{1, 2, 3}, C: testRed},
		{P: lattice.Point{2, 2, 3}, C: testRed},
		{P: lattice.Point{6, 1, 4}, C: testGreen},
		{P: lattice.Point{5, 6, 2}, C: testGreen},
	}
	lin, pal := buildTree(t, points, octree.Options{Levels: 3, AggregationPasses: 2})

	cam := NewCamera(64, 64, 0.4, 0.3, 2)
	r := NewRenderer()

	fine, err := NewFrame(64, 64)
	test.That(t, err, test.ShouldBeNil)
	r.Draw(fine, cam, lin, pal, cam.OrderKey(), 0)

	coarse, err := NewFrame(64, 64)
	test.That(t, err, test.ShouldBeNil)
	r.Draw(coarse, cam, lin, pal, cam.OrderKey(), -2)

	test.That(t, setPixels(coarse), test.ShouldResemble, setPixels(fine))
}

func TestLODBiasClampsToCoarsest(t *testing.T) {
	lin, pal := buildTree(t, []octree.PointRecord{
		{P: lattice.Point{4, 4, 4}, C: testRed},
		{P: lattice.Point{1, 1, 1}, C: testGreen},
	}, octree.Options{Levels: 3, AggregationPasses: 1})

	f, err := NewFrame(64, 64)
	test.That(t, err, test.ShouldBeNil)
	cam := NewCamera(64, 64, 0, 0, 1)

	// Far beyond the coarsest available level: must clamp and complete.
	NewRenderer().Draw(f, cam, lin, pal, cam.OrderKey(), -100)
	test.That(t, len(setPixels(f)), test.ShouldEqual, 2)

	// A positive bias clamps to the finest level.
	f.Clear(0)
	NewRenderer().Draw(f, cam, lin, pal, cam.OrderKey(), 5)
	test.That(t, len(setPixels(f)), test.ShouldEqual, 2)
}

func TestDrawOffscreenPointsAreClipped(t *testing.T) {
	lin, pal := buildTree(t, []octree.PointRecord{
		{P: lattice.Point{0, 0, 0}, C: testRed},
		{P: lattice.Point{7, 7, 7}, C: testGreen},
	}, octree.Options{Levels: 3})

	f, err := NewFrame(32, 32)
	test.That(t, err, test.ShouldBeNil)
	// Huge scale pushes everything except near-center geometry off frame;
	// the draw must clip, not fault.
	cam := NewCamera(32, 32, 0.7, 0.2, 500)
	NewRenderer().Draw(f, cam, lin, pal, cam.OrderKey(), 0)
}

func TestDrawEmptyTree(t *testing.T) {
	lin, pal := buildTree(t, nil, octree.Options{Levels: 3, AggregationPasses: 1})

	f, err := NewFrame(32, 32)
	test.That(t, err, test.ShouldBeNil)
	cam := NewCamera(32, 32, 0, 0, 1)
	NewRenderer().Draw(f, cam, lin, pal, cam.OrderKey(), 0)
	test.That(t, setPixels(f), test.ShouldResemble, map[[2]int]uint32{})
}

func TestRendererReuseAcrossFrames(t *testing.T) {
	lin, pal := buildTree(t, []octree.PointRecord{
		{P: lattice.Point{4, 4, 4}, C: testRed},
	}, octree.Options{Levels: 3})

	r := NewRenderer()
	cam := NewCamera(64, 64, 0, 0, 1)
	for i := 0; i < 3; i++ {
		f, err := NewFrame(64, 64)
		test.That(t, err, test.ShouldBeNil)
		r.Draw(f, cam, lin, pal, cam.OrderKey(), 0)
		test.That(t, len(setPixels(f)), test.ShouldEqual, 1)
	}
}
