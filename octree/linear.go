package octree

import (
	"github.com/voxelray/voxelray/lattice"
)

// Linear is the flattened, immutable form of the compressed tree: a child
// index array with 8 slots per node (-1 for absent), a payload byte stream
// per node (nil for structural nodes), and a presence bitmask derived from
// the children slots. Node ids are assigned breadth-first from the root,
// which always has id 0. Nothing mutates a Linear after Build or ReadCache
// returns it, so any number of renderers may share one.
type Linear struct {
	// Levels is the root node's level; lattice coordinates span
	// [0, 2^Levels) per axis.
	Levels int32
	// DefaultLevel is the coarsest level holding payloads (the aggregation
	// pass count at build time). It bounds how coarse a render may go.
	DefaultLevel int32

	Children []int32
	Masks    []uint8
	Payloads [][]byte
}

// NodeCount returns the number of linearized nodes.
func (l *Linear) NodeCount() int {
	return len(l.Masks)
}

// RootCenter returns the root node's origin in lattice coordinates.
func (l *Linear) RootCenter() lattice.Point {
	h := int32(1) << (l.Levels - 1)
	return lattice.Point{h, h, h}
}

// Child returns the id of the given octant of a node, or -1.
func (l *Linear) Child(id int32, oct int) int32 {
	return l.Children[int(id)*8+oct]
}

func linearize(root *node, opts Options) *Linear {
	lin := &Linear{
		Levels:       int32(opts.Levels),
		DefaultLevel: int32(opts.AggregationPasses),
	}

	// Ids are assigned in push order, which for a FIFO queue is also pop
	// order, so row i of Children/Masks/Payloads belongs to node id i.
	queue := []*node{root}
	next := int32(1)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		var mask uint8
		for oct, c := range n.children {
			if c == nil {
				lin.Children = append(lin.Children, -1)
				continue
			}
			lin.Children = append(lin.Children, next)
			mask |= 1 << oct
			next++
			queue = append(queue, c)
		}
		lin.Masks = append(lin.Masks, mask)
		lin.Payloads = append(lin.Payloads, n.payload)
	}
	return lin
}
