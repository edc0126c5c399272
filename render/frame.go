// Package render implements the CPU rasterizer for compressed octree point
// clouds: a depth-tested pixel buffer, an affine camera folded into
// fixed-point per-direction deltas, and the stack-driven tree traversal that
// decodes strip payloads straight into pixels.
package render

import (
	"image"
	"math"

	"github.com/pkg/errors"
)

// FarDepth is the cleared depth value; any drawn point is nearer.
const FarDepth = math.MaxInt32

// Frame is a caller-owned color+depth buffer. Width and height must be
// powers of two so the renderer's mask-based bounds check is valid; NewFrame
// enforces this once so the per-point hot path never has to.
//
// A Frame is not safe for concurrent writers. Renders into the same Frame
// must be serialized by the caller.
type Frame struct {
	width  int
	height int
	shift  uint  // log2(width), row stride shift
	xCheck int32 // ^(width-1): non-zero bits mean out of bounds
	yCheck int32

	Color []uint32 // packed R<<24|G<<16|B<<8|A
	Depth []int32
}

// NewFrame allocates a cleared frame. Width and height must be powers of two.
func NewFrame(width, height int) (*Frame, error) {
	if width <= 0 || width&(width-1) != 0 {
		return nil, errors.Errorf("frame width %d is not a power of two", width)
	}
	if height <= 0 || height&(height-1) != 0 {
		return nil, errors.Errorf("frame height %d is not a power of two", height)
	}
	shift := uint(0)
	for 1<<shift != width {
		shift++
	}
	f := &Frame{
		width:  width,
		height: height,
		shift:  shift,
		xCheck: ^int32(width - 1),
		yCheck: ^int32(height - 1),
		Color:  make([]uint32, width*height),
		Depth:  make([]int32, width*height),
	}
	f.Clear(0)
	return f, nil
}

// Width returns the frame width in pixels.
func (f *Frame) Width() int {
	return f.width
}

// Height returns the frame height in pixels.
func (f *Frame) Height() int {
	return f.height
}

// Clear fills the color plane with background and resets every depth to
// FarDepth.
func (f *Frame) Clear(background uint32) {
	for i := range f.Color {
		f.Color[i] = background
		f.Depth[i] = FarDepth
	}
}

// DepthAt returns the depth at a pixel; out-of-bounds reads return FarDepth.
func (f *Frame) DepthAt(x, y int) int32 {
	if x < 0 || y < 0 || x >= f.width || y >= f.height {
		return FarDepth
	}
	return f.Depth[y<<f.shift+x]
}

// ColorAt returns the packed color at a pixel.
func (f *Frame) ColorAt(x, y int) uint32 {
	return f.Color[y<<f.shift+x]
}

// Image copies the color plane into a standard RGBA image.
func (f *Frame) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.width, f.height))
	for y := 0; y < f.height; y++ {
		for x := 0; x < f.width; x++ {
			c := f.Color[y<<f.shift+x]
			o := img.PixOffset(x, y)
			img.Pix[o] = uint8(c >> 24)
			img.Pix[o+1] = uint8(c >> 16)
			img.Pix[o+2] = uint8(c >> 8)
			img.Pix[o+3] = uint8(c)
		}
	}
	return img
}

// PackColor packs RGBA components into the frame's color format.
func PackColor(r, g, b, a uint8) uint32 {
	return uint32(r)<<24 | uint32(g)<<16 | uint32(b)<<8 | uint32(a)
}
