package source

import (
	"context"
	"time"

	"github.com/dj-oyu/motionglyph/internal/motion"
	"github.com/dj-oyu/motionglyph/pkg/types"
)

const (
	defaultSyntheticWidth  = 320
	defaultSyntheticHeight = 240
)

// SyntheticSource generates black frames with a white block that steps one
// grid cell per frame along the middle row of the default region grid. After
// the last cell comes one empty frame, then the sweep restarts. The block
// always fills whole cells, so every pair of consecutive frames changes the
// anchor pixel of at least one cell for motion.DefaultRegionSize and for any
// region size that divides it.
type SyntheticSource struct {
	width    int
	height   int
	cell     int
	cols     int
	row      int // top of the block
	frameNum uint64
}

// NewSyntheticSource returns a generator for width x height frames
// (320x240 when either is zero).
func NewSyntheticSource(width, height int) *SyntheticSource {
	if width <= 0 || height <= 0 {
		width, height = defaultSyntheticWidth, defaultSyntheticHeight
	}
	cell := motion.DefaultRegionSize
	rows := (height + cell - 1) / cell
	return &SyntheticSource{
		width:  width,
		height: height,
		cell:   cell,
		cols:   (width + cell - 1) / cell,
		row:    (rows - 1) / 2 * cell,
	}
}

// Next renders the next frame. It never runs out.
func (s *SyntheticSource) Next(ctx context.Context) (*types.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := types.NewFrame(s.width, s.height)
	f.Fill(0, 0, 0)

	// Slot cols is the empty frame between sweeps.
	if col := int(s.frameNum % uint64(s.cols+1)); col < s.cols {
		x0 := col * s.cell
		for y := s.row; y < min(s.row+s.cell, s.height); y++ {
			for x := x0; x < min(x0+s.cell, s.width); x++ {
				f.SetRGB(x, y, 255, 255, 255)
			}
		}
	}

	f.FrameNum = s.frameNum
	f.Timestamp = time.Now()
	s.frameNum++
	return f, nil
}

// Close implements Source.
func (s *SyntheticSource) Close() error {
	return nil
}
