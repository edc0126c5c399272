package voxelray

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/voxelray/voxelray/lattice"
	"github.com/voxelray/voxelray/octree"
	"github.com/voxelray/voxelray/palette"
	"github.com/voxelray/voxelray/render"
)

func testSource(t *testing.T, calls *int) BuildSource {
	t.Helper()
	return func() ([]octree.PointRecord, *palette.Palette, error) {
		*calls++
		pal, err := palette.New([]color.NRGBA{
			{255, 0, 0, 255},
			{0, 0, 255, 255},
		})
		test.That(t, err, test.ShouldBeNil)
		return []octree.PointRecord{
			{P: lattice.Point{2, 3, 4}, C: color.NRGBA{255, 0, 0, 255}},
			{P: lattice.Point{3, 3, 4}, C: color.NRGBA{255, 0, 0, 255}},
			{P: lattice.Point{7, 0, 1}, C: color.NRGBA{0, 0, 255, 255}},
		}, pal, nil
	}
}

func writeSourceFile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "points.txt")
	test.That(t, os.WriteFile(path, []byte("stand-in asset"), 0o600), test.ShouldBeNil)
	return path
}

func TestLoadOrBuildCachesAndReloads(t *testing.T) {
	logger := golog.NewTestLogger(t)
	dir := t.TempDir()
	source := writeSourceFile(t, dir)
	cache := filepath.Join(dir, "points.vxc")
	opts := octree.Options{Levels: 3, AggregationPasses: 2}

	calls := 0
	built, err := LoadOrBuild(source, cache, opts, testSource(t, &calls), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, calls, test.ShouldEqual, 1)

	// A second call must load the fresh cache, not rebuild, and the loaded
	// tree must be identical to the built one.
	loaded, err := LoadOrBuild(source, cache, opts, testSource(t, &calls), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, calls, test.ShouldEqual, 1)
	test.That(t, loaded.Tree, test.ShouldResemble, built.Tree)
	test.That(t, loaded.Palette, test.ShouldResemble, built.Palette)
}

func TestLoadOrBuildRebuildsStaleCache(t *testing.T) {
	logger := golog.NewTestLogger(t)
	dir := t.TempDir()
	source := writeSourceFile(t, dir)
	cache := filepath.Join(dir, "points.vxc")
	opts := octree.Options{Levels: 3}

	calls := 0
	_, err := LoadOrBuild(source, cache, opts, testSource(t, &calls), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, calls, test.ShouldEqual, 1)

	// Backdate the cache behind the source: the next call must rebuild.
	old := time.Now().Add(-time.Hour)
	test.That(t, os.Chtimes(cache, old, old), test.ShouldBeNil)

	_, err = LoadOrBuild(source, cache, opts, testSource(t, &calls), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, calls, test.ShouldEqual, 2)
}

func TestLoadOrBuildRecoversFromCorruptCache(t *testing.T) {
	logger := golog.NewTestLogger(t)
	dir := t.TempDir()
	source := writeSourceFile(t, dir)
	cache := filepath.Join(dir, "points.vxc")

	// Fresh but garbage: must fall through to a rebuild, not fail.
	test.That(t, os.WriteFile(cache, []byte("junk"), 0o600), test.ShouldBeNil)

	calls := 0
	cloud, err := LoadOrBuild(source, cache, octree.Options{Levels: 3}, testSource(t, &calls), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, calls, test.ShouldEqual, 1)
	test.That(t, cloud.Tree.NodeCount(), test.ShouldBeGreaterThan, 1)
}

func TestLoadOrBuildSurfacesSourceErrors(t *testing.T) {
	logger := golog.NewTestLogger(t)
	dir := t.TempDir()
	source := writeSourceFile(t, dir)

	failing := func() ([]octree.PointRecord, *palette.Palette, error) {
		return nil, nil, errors.New("sensor offline")
	}
	_, err := LoadOrBuild(source, filepath.Join(dir, "points.vxc"), octree.Options{Levels: 3}, failing, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "sensor offline")
}

func TestCloudRender(t *testing.T) {
	logger := golog.NewTestLogger(t)
	calls := 0
	points, pal, err := testSource(t, &calls)()
	test.That(t, err, test.ShouldBeNil)

	cloud, err := Build(points, pal, octree.Options{Levels: 3, AggregationPasses: 1}, logger)
	test.That(t, err, test.ShouldBeNil)

	f, err := render.NewFrame(64, 64)
	test.That(t, err, test.ShouldBeNil)
	cam := render.NewCamera(64, 64, 0.3, 0.2, 2)
	cloud.Render(f, cam, 0)

	drawn := 0
	for y := 0; y < f.Height(); y++ {
		for x := 0; x < f.Width(); x++ {
			if f.DepthAt(x, y) != render.FarDepth {
				drawn++
			}
		}
	}
	test.That(t, drawn, test.ShouldBeGreaterThan, 0)
}
