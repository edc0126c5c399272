// Package palette implements the ordered color palette shared read-only by
// the strip encoder and the renderer. Palette construction (quantization of
// arbitrary colors down to a small set) happens upstream; this package only
// stores the result, answers nearest-index queries at build time and frames
// the palette for the cache file.
package palette

import (
	"encoding/binary"
	"image/color"
	"io"

	"github.com/pkg/errors"
)

// MaxColors is the largest palette a compressed stream can reference, since
// records store the palette index in a single byte.
const MaxColors = 256

// Palette is an immutable, index-addressable sequence of colors.
type Palette struct {
	colors []color.NRGBA
}

// New returns a palette over the given colors. The slice is copied.
func New(colors []color.NRGBA) (*Palette, error) {
	if len(colors) == 0 {
		return nil, errors.New("palette must contain at least one color")
	}
	if len(colors) > MaxColors {
		return nil, errors.Errorf("palette has %d colors, max is %d", len(colors), MaxColors)
	}
	p := &Palette{colors: make([]color.NRGBA, len(colors))}
	copy(p.colors, colors)
	return p, nil
}

// Len returns the number of colors in the palette.
func (p *Palette) Len() int {
	return len(p.colors)
}

// At returns the color at the given index.
func (p *Palette) At(i int) color.NRGBA {
	return p.colors[i]
}

// Nearest returns the index of the palette color closest to c by squared
// distance in RGB space. Alpha does not participate; the upstream quantizer
// treats it as carried, not matched.
func (p *Palette) Nearest(c color.NRGBA) int {
	best := 0
	bestDist := int64(1) << 62
	for i, pc := range p.colors {
		dr := int64(pc.R) - int64(c.R)
		dg := int64(pc.G) - int64(c.G)
		db := int64(pc.B) - int64(c.B)
		d := dr*dr + dg*dg + db*db
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// Write frames the palette as an int32 count followed by count RGBA byte
// quads, little-endian, matching the cache file layout.
func (p *Palette) Write(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, int32(len(p.colors))); err != nil {
		return errors.Wrap(err, "writing palette count")
	}
	buf := make([]byte, 0, len(p.colors)*4)
	for _, c := range p.colors {
		buf = append(buf, c.R, c.G, c.B, c.A)
	}
	if _, err := w.Write(buf); err != nil {
		return errors.Wrap(err, "writing palette colors")
	}
	return nil
}

// Read decodes a palette framed by Write.
func Read(r io.Reader) (*Palette, error) {
	var n int32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, errors.Wrap(err, "reading palette count")
	}
	if n <= 0 || n > MaxColors {
		return nil, errors.Errorf("invalid palette count %d", n)
	}
	buf := make([]byte, int(n)*4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.Wrap(err, "reading palette colors")
	}
	colors := make([]color.NRGBA, n)
	for i := range colors {
		colors[i] = color.NRGBA{buf[i*4], buf[i*4+1], buf[i*4+2], buf[i*4+3]}
	}
	return &Palette{colors: colors}, nil
}
