package main

import (
	"bufio"
	"image/color"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/voxelray/voxelray/lattice"
	"github.com/voxelray/voxelray/octree"
	"github.com/voxelray/voxelray/palette"
)

// readPoints parses the simple voxelized text format, one point per line:
// "x y z r g b" with integer lattice coordinates and 8-bit color components.
// Lines starting with '#' are comments. It also derives a palette of at most
// paletteSize colors by frequency; real quantization happens upstream of
// this tool, this stand-in just keeps the most common exact colors.
func readPoints(path string, paletteSize int) ([]octree.PointRecord, *palette.Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening points file")
	}
	defer utils.UncheckedErrorFunc(f.Close)

	var points []octree.PointRecord
	freq := map[color.NRGBA]int{}

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 6 {
			return nil, nil, errors.Errorf("line %d: expected 6 fields, got %d", line, len(fields))
		}
		var nums [6]int64
		for i, field := range fields {
			nums[i], err = strconv.ParseInt(field, 10, 32)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "line %d field %d", line, i+1)
			}
		}
		c := color.NRGBA{uint8(nums[3]), uint8(nums[4]), uint8(nums[5]), 255}
		points = append(points, octree.PointRecord{
			P: lattice.Point{int32(nums[0]), int32(nums[1]), int32(nums[2])},
			C: c,
		})
		freq[c]++
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, errors.Wrap(err, "reading points file")
	}
	if len(points) == 0 {
		return nil, nil, errors.New("points file contains no points")
	}

	pal, err := frequencyPalette(freq, paletteSize)
	if err != nil {
		return nil, nil, err
	}
	return points, pal, nil
}

func frequencyPalette(freq map[color.NRGBA]int, size int) (*palette.Palette, error) {
	if size < 1 || size > palette.MaxColors {
		return nil, errors.Errorf("palette size must be in [1,%d], got %d", palette.MaxColors, size)
	}
	colors := make([]color.NRGBA, 0, len(freq))
	for c := range freq {
		colors = append(colors, c)
	}
	sort.Slice(colors, func(i, j int) bool {
		if freq[colors[i]] != freq[colors[j]] {
			return freq[colors[i]] > freq[colors[j]]
		}
		return lessColor(colors[i], colors[j])
	})
	if len(colors) > size {
		colors = colors[:size]
	}
	return palette.New(colors)
}

func lessColor(a, b color.NRGBA) bool {
	if a.R != b.R {
		return a.R < b.R
	}
	if a.G != b.G {
		return a.G < b.G
	}
	return a.B < b.B
}
