package render

// Octant visitation orders. A node's 8 children must be visited
// front-to-back for the occlusion test to cull correctly, and the correct
// sequence depends only on the view direction: which side of each axis faces
// the viewer (a 3-bit sign key) and how the axes rank by depth contribution
// (one of 6 permutations). All 48 sequences are computed once at startup
// into an immutable table of packed nibbles, first-visited octant in the low
// nibble.

// NumOrderKeys is the number of distinct visitation orders.
const NumOrderKeys = 48

// axisPerms lists the permutations of the three axes; entry 2 is the most
// significant (slowest-varying) axis of the sequence.
var axisPerms = [6][3]int{
	{0, 1, 2}, {0, 2, 1},
	{1, 0, 2}, {1, 2, 0},
	{2, 0, 1}, {2, 1, 0},
}

var orders [NumOrderKeys]uint32

func init() {
	for p, perm := range axisPerms {
		for sign := 0; sign < 8; sign++ {
			var packed uint32
			for i := 0; i < 8; i++ {
				oct := (i&1)<<perm[0] | (i>>1&1)<<perm[1] | (i>>2&1)<<perm[2]
				oct ^= sign
				packed |= uint32(oct) << (4 * i)
			}
			orders[p*8+sign] = packed
		}
	}
}

// VisitOrder returns the packed visitation sequence for a key. Keys outside
// [0, NumOrderKeys) fall back to key 0 rather than faulting; the render path
// has no error channel.
func VisitOrder(key int) uint32 {
	if uint(key) >= NumOrderKeys {
		key = 0
	}
	return orders[key]
}

// orderKeyFor derives the key for a camera basis: the sign key picks, per
// axis, the child half nearer the viewer (basis depth decreasing), and the
// permutation ranks axes by absolute depth contribution.
func orderKeyFor(bx, by, bz vec) int {
	depth := [3]int64{bx.z, by.z, bz.z}

	sign := 0
	for a, d := range depth {
		if d < 0 {
			sign |= 1 << a
		}
	}

	abs := func(v int64) int64 {
		if v < 0 {
			return -v
		}
		return v
	}
	// perm[2] gets the largest |depth| axis.
	perm := [3]int{0, 1, 2}
	if abs(depth[perm[0]]) > abs(depth[perm[1]]) {
		perm[0], perm[1] = perm[1], perm[0]
	}
	if abs(depth[perm[1]]) > abs(depth[perm[2]]) {
		perm[1], perm[2] = perm[2], perm[1]
	}
	if abs(depth[perm[0]]) > abs(depth[perm[1]]) {
		perm[0], perm[1] = perm[1], perm[0]
	}

	for p, candidate := range axisPerms {
		if candidate == perm {
			return p*8 + sign
		}
	}
	return sign
}
