package render

import (
	"github.com/voxelray/voxelray/octree"
	"github.com/voxelray/voxelray/palette"
	"github.com/voxelray/voxelray/strip"
)

// workItem is one pending subtree visit: a node id, its level, and its
// origin already transformed into fixed-point screen space.
type workItem struct {
	id    int32
	level int32
	ox    int64
	oy    int64
	oz    int64
}

// Renderer owns the traversal scratch state: an index-addressed work stack
// and per-level child offset tables, all reused across frames so a draw call
// does not allocate. A Renderer is single-threaded; concurrent draws need
// one Renderer each, though they may share the tree and palette freely.
type Renderer struct {
	stack  []workItem
	offs   [][8]vec
	colors [256]uint32
}

// NewRenderer returns a renderer with a preallocated work stack.
func NewRenderer() *Renderer {
	return &Renderer{stack: make([]workItem, 0, 256)}
}

// Draw rasterizes the tree into the frame. orderKey selects the octant
// visitation order (normally cam.OrderKey()) and lodBias selects detail:
// 0 draws the finest level, negative values draw coarser aggregated levels,
// clamped to the coarsest the tree carries.
//
// The whole call runs on the calling goroutine; there is no error channel.
// Malformed payloads cannot occur in trees produced by the builder, so the
// decode loop checks framing only by construction.
func (r *Renderer) Draw(f *Frame, cam *Camera, tree *octree.Linear, pal *palette.Palette, orderKey, lodBias int) {
	minVis := int32(-lodBias)
	if minVis < 0 {
		minVis = 0
	}
	if minVis > tree.DefaultLevel {
		minVis = tree.DefaultLevel
	}

	for i := 0; i < pal.Len(); i++ {
		c := pal.At(i)
		r.colors[i] = PackColor(c.R, c.G, c.B, c.A)
	}

	r.prepareOffsets(cam, int(tree.Levels))
	order := VisitOrder(orderKey)

	// Screen-space half-extent of a unit cube around a node origin, per
	// axis; a level-L node's box is this shifted up by L-1.
	absX := abs64(cam.bx.x) + abs64(cam.by.x) + abs64(cam.bz.x)
	absY := abs64(cam.bx.y) + abs64(cam.by.y) + abs64(cam.bz.y)
	absZ := abs64(cam.bx.z) + abs64(cam.by.z) + abs64(cam.bz.z)

	width, height := int32(f.width), int32(f.height)

	r.stack = r.stack[:0]
	r.stack = append(r.stack, workItem{id: 0, level: tree.Levels, ox: cam.tx, oy: cam.ty, oz: cam.tz})

	for len(r.stack) > 0 {
		e := r.stack[len(r.stack)-1]
		r.stack = r.stack[:len(r.stack)-1]

		if e.level > minVis {
			s := uint(e.level - 1)

			x0 := int32((e.ox - absX<<s) >> FracBits)
			x1 := int32((e.ox + absX<<s) >> FracBits)
			y0 := int32((e.oy - absY<<s) >> FracBits)
			y1 := int32((e.oy + absY<<s) >> FracBits)
			if x0 < 0 {
				x0 = 0
			}
			if y0 < 0 {
				y0 = 0
			}
			if x1 >= width {
				x1 = width - 1
			}
			if y1 >= height {
				y1 = height - 1
			}
			if x0 > x1 || y0 > y1 {
				continue
			}

			// If no pixel in the footprint is farther than the node's
			// nearest possible depth, nothing below can win a depth test.
			nearZ := int32((e.oz - absZ<<s) >> FracBits)
			visible := false
			for y := y0; y <= y1 && !visible; y++ {
				row := y << f.shift
				for x := x0; x <= x1; x++ {
					if f.Depth[row+x] > nearZ {
						visible = true
						break
					}
				}
			}
			if !visible {
				continue
			}

			// Children pushed back-to-front so the front-most pops first.
			mask := tree.Masks[e.id]
			offs := &r.offs[e.level-1]
			for i := 7; i >= 0; i-- {
				oct := int(order >> (4 * uint(i)) & 7)
				if mask&(1<<oct) == 0 {
					continue
				}
				off := offs[oct]
				r.stack = append(r.stack, workItem{
					id:    tree.Child(e.id, oct),
					level: e.level - 1,
					ox:    e.ox + off.x,
					oy:    e.oy + off.y,
					oz:    e.oz + off.z,
				})
			}
			continue
		}

		payload := tree.Payloads[e.id]
		if payload == nil {
			continue
		}
		r.drawLeaf(f, cam, e, payload)
	}
}

// drawLeaf decodes a strip payload, accumulating the running transformed
// position, and depth-tests every point into the frame.
func (r *Renderer) drawLeaf(f *Frame, cam *Camera, e workItem, payload []byte) {
	px, py, pz := e.ox, e.oy, e.oz
	for i := 0; i < len(payload); {
		var ci uint8
		if b := payload[i]; b >= strip.AbsMarker {
			v := uint16(b&0x7f)<<8 | uint16(payload[i+1])
			dx := int64(v>>10&0x1f) - 16
			dy := int64(v>>5&0x1f) - 16
			dz := int64(v&0x1f) - 16
			px = e.ox + dx*cam.bx.x + dy*cam.by.x + dz*cam.bz.x
			py = e.oy + dx*cam.bx.y + dy*cam.by.y + dz*cam.bz.y
			pz = e.oz + dx*cam.bx.z + dy*cam.by.z + dz*cam.bz.z
			ci = payload[i+2]
			i += strip.AbsoluteRecordSize
		} else {
			d := cam.dirs[b]
			px += d.x
			py += d.y
			pz += d.z
			ci = payload[i+1]
			i += strip.RelativeRecordSize
		}

		sx := int32(px >> FracBits)
		sy := int32(py >> FracBits)
		if sx&f.xCheck != 0 || sy&f.yCheck != 0 {
			continue
		}
		idx := sy<<f.shift + sx
		z := int32(pz >> FracBits)
		if z < f.Depth[idx] {
			f.Depth[idx] = z
			f.Color[idx] = r.colors[ci]
		}
	}
}

// prepareOffsets fills the per-level child origin offsets. A child at level
// l sits a quarter of its parent's extent from the parent origin along each
// axis, which in the transformed basis is the corner direction scaled by
// 2^(l-1); level-0 children split asymmetrically around the integer center,
// handled by the biased corner term.
func (r *Renderer) prepareOffsets(cam *Camera, levels int) {
	if cap(r.offs) < levels {
		r.offs = make([][8]vec, levels)
	}
	r.offs = r.offs[:levels]

	sum := cam.bx.add(cam.by).add(cam.bz)
	for oct := 0; oct < 8; oct++ {
		corner := cam.dirs[oct]
		r.offs[0][oct] = vec{
			(corner.x - sum.x) >> 1,
			(corner.y - sum.y) >> 1,
			(corner.z - sum.z) >> 1,
		}
		for l := 1; l < levels; l++ {
			r.offs[l][oct] = vec{
				corner.x << uint(l-1),
				corner.y << uint(l-1),
				corner.z << uint(l-1),
			}
		}
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
