package motion

import "github.com/dj-oyu/motionglyph/pkg/types"

// DefaultRegionSize is the edge length of a grid cell in pixels.
const DefaultRegionSize = 20

// ActiveRegions scans the mask in row-major order with step size in both
// axes and returns the cells whose top-left (anchor) pixel changed.
// Only the anchor is sampled; the rest of the cell is not inspected.
func ActiveRegions(m *Mask, size int) []types.Region {
	if size < 1 {
		size = DefaultRegionSize
	}
	var regions []types.Region
	for y := 0; y < m.Height; y += size {
		for x := 0; x < m.Width; x += size {
			if !m.At(x, y) {
				continue
			}
			regions = append(regions, types.Region{
				X:      x,
				Y:      y,
				Width:  min(size, m.Width-x),
				Height: min(size, m.Height-y),
			})
		}
	}
	return regions
}

// GridCells returns the number of cells, partial ones included, that a
// width x height frame is split into.
func GridCells(width, height, size int) int {
	if size < 1 || width <= 0 || height <= 0 {
		return 0
	}
	return ceilDiv(width, size) * ceilDiv(height, size)
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
