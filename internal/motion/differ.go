package motion

import (
	"fmt"

	"github.com/dj-oyu/motionglyph/pkg/types"
)

// MaxPixelDelta is the largest possible per-pixel difference (3 channels x 255).
const MaxPixelDelta = 3 * 255

// Mask is a per-pixel "changed since previous frame" map.
type Mask struct {
	Width   int
	Height  int
	Changed []bool // row-major, Width*Height entries
}

// NewMask allocates an all-unchanged mask.
func NewMask(width, height int) *Mask {
	return &Mask{
		Width:   width,
		Height:  height,
		Changed: make([]bool, width*height),
	}
}

// At reports whether pixel (x, y) changed.
func (m *Mask) At(x, y int) bool {
	return m.Changed[y*m.Width+x]
}

// Count returns the number of changed pixels.
func (m *Mask) Count() int {
	n := 0
	for _, c := range m.Changed {
		if c {
			n++
		}
	}
	return n
}

// Diff computes the motion mask between two frames of identical dimensions.
// A pixel is changed iff the sum of the absolute differences of its first
// three channels is strictly greater than threshold.
func Diff(prev, cur *types.Frame, threshold int) *Mask {
	return DiffInto(nil, prev, cur, threshold)
}

// DiffInto is Diff reusing dst when its dimensions match.
// Mismatched frame dimensions are a caller bug and panic.
func DiffInto(dst *Mask, prev, cur *types.Frame, threshold int) *Mask {
	if !prev.SameSize(cur) {
		panic(fmt.Sprintf("motion: frame size changed from %dx%d to %dx%d",
			prev.Width, prev.Height, cur.Width, cur.Height))
	}
	if dst == nil || dst.Width != cur.Width || dst.Height != cur.Height {
		dst = NewMask(cur.Width, cur.Height)
	}

	for y := 0; y < cur.Height; y++ {
		po := y * prev.Stride
		co := y * cur.Stride
		row := dst.Changed[y*cur.Width : (y+1)*cur.Width]
		for x := range row {
			p := prev.Pix[po : po+3]
			c := cur.Pix[co : co+3]
			sum := absDiff(p[0], c[0]) + absDiff(p[1], c[1]) + absDiff(p[2], c[2])
			row[x] = sum > threshold
			po += prev.Channels
			co += cur.Channels
		}
	}
	return dst
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
