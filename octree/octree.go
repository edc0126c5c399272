// Package octree builds the compressed level-of-detail octree over a
// voxelized point cloud and flattens it into the linear form the renderer
// traverses. Points are inserted into a sparse tree keyed by lattice
// coordinate, coarser LOD point sets are aggregated bottom-up for a
// configurable number of passes, every node owning points gets a strip-coded
// payload, and the tree is linearized into parallel children/payload arrays
// with a per-node presence mask.
package octree

import (
	"image/color"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/voxelray/voxelray/lattice"
	"github.com/voxelray/voxelray/palette"
	"github.com/voxelray/voxelray/strip"
)

// PointRecord is one voxelized input point. It exists only during the build;
// after encoding, positions live in the per-node payloads and colors live in
// the palette.
type PointRecord struct {
	P lattice.Point
	C color.NRGBA
}

// MaxAggregationPasses caps how many bottom-up LOD passes may run. A node at
// level 5 spans 32 voxels per axis, the widest extent whose displacements
// still fit an absolute record.
const MaxAggregationPasses = 5

// maxLevels keeps lattice extents within int32.
const maxLevels = 30

// Options configure a build.
type Options struct {
	// Levels is the subdivision depth: lattice coordinates must lie in
	// [0, 2^Levels) per axis, and the root node sits at level Levels.
	Levels int
	// AggregationPasses is the number of bottom-up LOD passes; 0 leaves
	// payloads at the finest level only.
	AggregationPasses int
}

func (o Options) validate() error {
	if o.Levels < 1 || o.Levels > maxLevels {
		return errors.Errorf("levels must be in [1,%d], got %d", maxLevels, o.Levels)
	}
	if o.AggregationPasses < 0 || o.AggregationPasses > MaxAggregationPasses {
		return errors.Errorf("aggregation passes must be in [0,%d], got %d", MaxAggregationPasses, o.AggregationPasses)
	}
	if o.AggregationPasses > o.Levels {
		return errors.Errorf("aggregation passes (%d) exceed tree levels (%d)", o.AggregationPasses, o.Levels)
	}
	return nil
}

// node is a sparse tree node during the build. Its center is in lattice
// coordinates; at level 0 the node is a single voxel and the center is the
// voxel itself.
type node struct {
	center   lattice.Point
	level    int
	children [8]*node
	points   []PointRecord
	payload  []byte
}

// octant returns which child of n the point falls in: bit 0 set iff
// x >= center.x, bit 1 for y, bit 2 for z.
func (n *node) octant(p lattice.Point) int {
	oct := 0
	if p.X >= n.center.X {
		oct |= 1
	}
	if p.Y >= n.center.Y {
		oct |= 2
	}
	if p.Z >= n.center.Z {
		oct |= 4
	}
	return oct
}

// childCenter computes the center of the given octant one level down. At
// level 1 the children are single voxels and the split is asymmetric around
// the integer center.
func (n *node) childCenter(oct int) lattice.Point {
	c := n.center
	if n.level == 1 {
		return lattice.Point{
			X: c.X - 1 + int32(oct&1),
			Y: c.Y - 1 + int32(oct>>1&1),
			Z: c.Z - 1 + int32(oct>>2&1),
		}
	}
	q := int32(1) << (n.level - 2)
	if oct&1 == 0 {
		c.X -= q
	} else {
		c.X += q
	}
	if oct&2 == 0 {
		c.Y -= q
	} else {
		c.Y += q
	}
	if oct&4 == 0 {
		c.Z -= q
	} else {
		c.Z += q
	}
	return c
}

// Build constructs the linearized compressed tree from voxelized points and
// an externally quantized palette.
func Build(points []PointRecord, pal *palette.Palette, opts Options, logger golog.Logger) (*Linear, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if pal == nil {
		return nil, errors.New("palette is required")
	}

	extent := int32(1) << opts.Levels
	half := extent >> 1
	root := &node{
		center: lattice.Point{half, half, half},
		level:  opts.Levels,
	}

	for _, rec := range points {
		if rec.P.X < 0 || rec.P.X >= extent ||
			rec.P.Y < 0 || rec.P.Y >= extent ||
			rec.P.Z < 0 || rec.P.Z >= extent {
			return nil, errors.Errorf("point (%d,%d,%d) outside octree bounds [0,%d)", rec.P.X, rec.P.Y, rec.P.Z, extent)
		}
		insert(root, rec)
	}

	for pass := 1; pass <= opts.AggregationPasses; pass++ {
		aggregate(root, pass)
	}

	var payloadBytes, payloadNodes int
	if err := encodePayloads(root, pal, &payloadNodes, &payloadBytes); err != nil {
		return nil, err
	}

	lin := linearize(root, opts)
	logger.Debugf("octree build: %d points, %d nodes, %d payloads, %d payload bytes",
		len(points), lin.NodeCount(), payloadNodes, payloadBytes)
	return lin, nil
}

func insert(n *node, rec PointRecord) {
	for n.level > 0 {
		oct := n.octant(rec.P)
		child := n.children[oct]
		if child == nil {
			child = &node{center: n.childCenter(oct), level: n.level - 1}
			n.children[oct] = child
		}
		n = child
	}
	// No deduplication: colliding points stay in the same leaf list.
	n.points = append(n.points, rec)
}

// aggregate pulls the concatenation of child point lists up into every node
// at the given level that does not already own points. Children keep their
// lists; each level is its own LOD point set.
func aggregate(n *node, level int) {
	if n == nil || n.level < level {
		return
	}
	if n.level > level {
		for _, c := range n.children {
			aggregate(c, level)
		}
		return
	}
	if len(n.points) > 0 {
		return
	}
	for _, c := range n.children {
		if c != nil {
			n.points = append(n.points, c.points...)
		}
	}
}

func encodePayloads(n *node, pal *palette.Palette, nodes, bytes *int) error {
	if n == nil {
		return nil
	}
	if len(n.points) > 0 {
		pts := make([]strip.Point, len(n.points))
		for i, rec := range n.points {
			pts[i] = strip.Point{P: rec.P, Index: uint8(pal.Nearest(rec.C))}
		}
		payload, err := strip.Encode(n.center, pts)
		if err != nil {
			return errors.Wrapf(err, "encoding node at level %d", n.level)
		}
		n.payload = payload
		n.points = nil
		*nodes++
		*bytes += len(payload)
	}
	for _, c := range n.children {
		if err := encodePayloads(c, pal, nodes, bytes); err != nil {
			return err
		}
	}
	return nil
}
