package source

import (
	"image"
	"sync"

	"github.com/dj-oyu/motionglyph/internal/logger"
	"github.com/dj-oyu/motionglyph/pkg/types"
	xdraw "golang.org/x/image/draw"
)

// Normalizer scales every frame to one fixed resolution so consecutive frames
// can always be diffed. The resolution is either configured up front or taken
// from the first frame seen.
type Normalizer struct {
	mu     sync.Mutex
	width  int
	height int
	scaled uint64
}

// NewNormalizer returns a normalizer for width x height. Zero values lock the
// resolution to the first frame.
func NewNormalizer(width, height int) *Normalizer {
	if width <= 0 || height <= 0 {
		width, height = 0, 0
	}
	return &Normalizer{width: width, height: height}
}

// Size returns the locked resolution, or zeros if none is locked yet.
func (n *Normalizer) Size() (int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.width, n.height
}

// Scaled returns how many frames had to be resized.
func (n *Normalizer) Scaled() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.scaled
}

// Image converts img into a frame at the locked resolution.
func (n *Normalizer) Image(img image.Image) *types.Frame {
	b := img.Bounds()
	w, h, ok := n.target(b.Dx(), b.Dy())
	if ok {
		return types.FromImage(img)
	}
	return types.FromImage(scale(img, w, h))
}

// Frame returns f unchanged when it already has the locked resolution and a
// resized copy otherwise. Frame number and timestamp are preserved.
func (n *Normalizer) Frame(f *types.Frame) *types.Frame {
	w, h, ok := n.target(f.Width, f.Height)
	if ok {
		return f
	}
	out := types.FromImage(scale(f.Image(), w, h))
	out.FrameNum = f.FrameNum
	out.Timestamp = f.Timestamp
	return out
}

// target locks the resolution on first use and reports whether a frame of
// size w x h already matches it.
func (n *Normalizer) target(w, h int) (int, int, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.width == 0 {
		n.width, n.height = w, h
		logger.Info("Normalizer", "Resolution locked to %dx%d", w, h)
		return w, h, true
	}
	if w == n.width && h == n.height {
		return w, h, true
	}
	n.scaled++
	if n.scaled == 1 || n.scaled%100 == 0 {
		logger.Debug("Normalizer", "Scaling %dx%d -> %dx%d (count=%d)", w, h, n.width, n.height, n.scaled)
	}
	return n.width, n.height, false
}

func scale(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}
