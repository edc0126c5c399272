// Package strip implements the per-node point-strip codec. A node's points
// are ordered into chains of lattice-adjacent steps and serialized as a byte
// stream of two record kinds: a 3-byte absolute record carrying a signed
// 5-bit-per-axis displacement from the node origin, and a 2-byte relative
// record carrying only a direction index for a single unit step from the
// previously decoded point. The first byte of a record discriminates the two:
// absolute records set the top bit.
package strip

import (
	"github.com/pkg/errors"

	"github.com/voxelray/voxelray/lattice"
)

// Point is one encodable point: a lattice position and its palette index.
type Point struct {
	P     lattice.Point
	Index uint8
}

// AbsMarker is the top bit of an absolute record's first byte. Relative
// records start with a direction index, which is always below it.
const AbsMarker = 0x80

// Displacement bounds for an absolute record: each axis is stored in 5 bits
// with a +16 bias, so a node's points must lie within this range of its
// origin.
const (
	DisplacementMin = -16
	DisplacementMax = 15
)

// AbsoluteRecordSize and RelativeRecordSize are the framed sizes of the two
// record kinds.
const (
	AbsoluteRecordSize = 3
	RelativeRecordSize = 2
)

// Encode orders pts to maximize consecutive unit-step moves and serializes
// them. Isolated points come first as standalone absolute records; the
// remainder is covered by greedy chains, each opened by an absolute record
// and continued by relative records. Decoding the stream reconstructs the
// exact point set; only the visitation order is heuristic.
//
// An error is returned if any point lies outside the absolute-displacement
// range of origin; the octree builder sizes encode leaves so that this never
// happens for well-formed input.
func Encode(origin lattice.Point, pts []Point) ([]byte, error) {
	n := len(pts)
	if n == 0 {
		return nil, nil
	}

	// Adjacency graph: two points are adjacent iff their difference is one
	// of the 26 unit directions. Coincident points are not adjacent and each
	// costs an extra absolute record. Quadratic on purpose; N is small per
	// leaf after LOD aggregation.
	adj := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := pts[j].P.Sub(pts[i].P)
			if _, ok := lattice.Index(d.X, d.Y, d.Z); ok {
				adj[i] = append(adj[i], j)
				adj[j] = append(adj[j], i)
			}
		}
	}

	degree := make([]int, n)
	for i := range adj {
		degree[i] = len(adj[i])
	}

	out := make([]byte, 0, n*AbsoluteRecordSize)
	consumed := make([]bool, n)
	remaining := n

	consume := func(i int) {
		consumed[i] = true
		remaining--
		for _, j := range adj[i] {
			if !consumed[j] {
				degree[j]--
			}
		}
	}

	var err error

	// Isolated points first, each its own absolute record.
	for i := 0; i < n; i++ {
		if len(adj[i]) == 0 {
			if out, err = appendAbsolute(out, origin, pts[i]); err != nil {
				return nil, err
			}
			consume(i)
		}
	}

	// Chains: seed with the globally fewest-neighbors point, then walk to
	// the fewest-neighbors unconsumed neighbor until stuck.
	for remaining > 0 {
		head := -1
		for i := 0; i < n; i++ {
			if consumed[i] {
				continue
			}
			if head < 0 || degree[i] < degree[head] {
				head = i
			}
		}
		if out, err = appendAbsolute(out, origin, pts[head]); err != nil {
			return nil, err
		}
		consume(head)

		cur := head
		for {
			next := -1
			for _, j := range adj[cur] {
				if consumed[j] {
					continue
				}
				if next < 0 || degree[j] < degree[next] {
					next = j
				}
			}
			if next < 0 {
				break
			}
			d := pts[next].P.Sub(pts[cur].P)
			idx, _ := lattice.Index(d.X, d.Y, d.Z)
			out = append(out, byte(idx), pts[next].Index)
			consume(next)
			cur = next
		}
	}

	return out, nil
}

func appendAbsolute(dst []byte, origin lattice.Point, p Point) ([]byte, error) {
	d := p.P.Sub(origin)
	if d.X < DisplacementMin || d.X > DisplacementMax ||
		d.Y < DisplacementMin || d.Y > DisplacementMax ||
		d.Z < DisplacementMin || d.Z > DisplacementMax {
		return nil, errors.Errorf("point displacement (%d,%d,%d) exceeds absolute record range", d.X, d.Y, d.Z)
	}
	v := uint16(d.X+16)<<10 | uint16(d.Y+16)<<5 | uint16(d.Z+16)
	return append(dst, AbsMarker|byte(v>>8), byte(v), p.Index), nil
}

// Decode scans a stream left to right, maintaining the running position
// accumulator, and calls emit for every decoded point. It returns an error
// only on truncated framing; well-formed streams produced by Encode never
// trigger it.
func Decode(origin lattice.Point, stream []byte, emit func(p lattice.Point, index uint8)) error {
	pos := origin
	for i := 0; i < len(stream); {
		b := stream[i]
		if b >= AbsMarker {
			if i+AbsoluteRecordSize > len(stream) {
				return errors.New("truncated absolute record")
			}
			v := uint16(b&0x7f)<<8 | uint16(stream[i+1])
			pos = origin.Add(lattice.Point{
				X: int32(v>>10&0x1f) - 16,
				Y: int32(v>>5&0x1f) - 16,
				Z: int32(v&0x1f) - 16,
			})
			emit(pos, stream[i+2])
			i += AbsoluteRecordSize
		} else {
			if int(b) >= lattice.NumDirections {
				return errors.Errorf("invalid direction index %d", b)
			}
			if i+RelativeRecordSize > len(stream) {
				return errors.New("truncated relative record")
			}
			d := lattice.Directions[b]
			pos = pos.Add(lattice.Point{X: int32(d.X), Y: int32(d.Y), Z: int32(d.Z)})
			emit(pos, stream[i+1])
			i += RelativeRecordSize
		}
	}
	return nil
}
