// Package voxelray ties the compressed point-cloud pipeline together: build
// a level-of-detail octree from voxelized points, persist it to a cache file
// keyed by the source asset's modification time, and rasterize it into
// depth-tested frames on the CPU.
package voxelray

import (
	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/voxelray/voxelray/octree"
	"github.com/voxelray/voxelray/palette"
	"github.com/voxelray/voxelray/render"
)

// Cloud is a built (or cache-loaded) compressed point cloud. The tree and
// palette are immutable after construction, so a Cloud may be shared across
// goroutines; the embedded renderer is not, so concurrent draws must go
// through separate render.Renderer instances instead of Cloud.Render.
type Cloud struct {
	Tree    *octree.Linear
	Palette *palette.Palette

	renderer *render.Renderer
}

// BuildSource produces the build inputs for a cloud: the voxelized points
// and their quantized palette. It is only invoked when no fresh cache
// exists.
type BuildSource func() ([]octree.PointRecord, *palette.Palette, error)

// Build constructs a cloud directly from points, bypassing any cache.
func Build(points []octree.PointRecord, pal *palette.Palette, opts octree.Options, logger golog.Logger) (*Cloud, error) {
	lin, err := octree.Build(points, pal, opts, logger)
	if err != nil {
		return nil, err
	}
	return &Cloud{Tree: lin, Palette: pal, renderer: render.NewRenderer()}, nil
}

// Load reads a cloud from a cache file without any freshness check.
func Load(cachePath string) (*Cloud, error) {
	lin, pal, err := octree.ReadCache(cachePath)
	if err != nil {
		return nil, err
	}
	return &Cloud{Tree: lin, Palette: pal, renderer: render.NewRenderer()}, nil
}

// LoadOrBuild returns the cloud for a source asset. If the cache file is at
// least as new as the source and decodes cleanly it is used as is; otherwise
// the source is rebuilt through load and the cache rewritten. A corrupt or
// unreadable cache falls through to a rebuild; build and cache-write
// failures are returned.
func LoadOrBuild(
	sourcePath, cachePath string,
	opts octree.Options,
	load BuildSource,
	logger golog.Logger,
) (*Cloud, error) {
	if octree.CacheFresh(sourcePath, cachePath) {
		cloud, err := Load(cachePath)
		if err == nil {
			logger.Debugf("loaded point cloud cache %q", cachePath)
			return cloud, nil
		}
		logger.Warnf("cache %q unreadable, rebuilding: %v", cachePath, err)
	}

	points, pal, err := load()
	if err != nil {
		return nil, errors.Wrapf(err, "loading source %q", sourcePath)
	}
	cloud, err := Build(points, pal, opts, logger)
	if err != nil {
		return nil, errors.Wrapf(err, "building point cloud from %q", sourcePath)
	}
	if err := octree.WriteCache(cachePath, cloud.Tree, cloud.Palette); err != nil {
		return nil, errors.Wrapf(err, "writing cache %q", cachePath)
	}
	return cloud, nil
}

// Render draws the cloud into the frame with the camera's own visitation
// order. Renders into the same frame must be serialized by the caller.
func (c *Cloud) Render(f *render.Frame, cam *render.Camera, lodBias int) {
	c.renderer.Draw(f, cam, c.Tree, c.Palette, cam.OrderKey(), lodBias)
}
