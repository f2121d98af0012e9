package types

import (
	"fmt"
	"image"
	"image/draw"
	"time"
)

// RGBAChannels is the channel count of frames built by NewFrame and FromImage.
const RGBAChannels = 4

// Frame represents one captured image as an interleaved 8-bit pixel grid.
// Only the first three channels of each pixel take part in motion detection.
// A frame must not be modified after it has been handed to a pipeline.
type Frame struct {
	Width     int       // Frame width in pixels
	Height    int       // Frame height in pixels
	Channels  int       // Bytes per pixel (>= 3)
	Stride    int       // Bytes per row
	Pix       []byte    // Pixel data, row-major
	Timestamp time.Time // Frame capture timestamp
	FrameNum  uint64    // Sequential frame number assigned by the source
}

// NewFrame allocates a zeroed RGBA frame.
func NewFrame(width, height int) *Frame {
	return &Frame{
		Width:    width,
		Height:   height,
		Channels: RGBAChannels,
		Stride:   width * RGBAChannels,
		Pix:      make([]byte, width*height*RGBAChannels),
	}
}

// FromImage converts any image into an RGBA frame anchored at (0,0).
// *image.RGBA inputs with a zero origin share their pixel buffer.
func FromImage(img image.Image) *Frame {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || b.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}
	return &Frame{
		Width:    rgba.Rect.Dx(),
		Height:   rgba.Rect.Dy(),
		Channels: RGBAChannels,
		Stride:   rgba.Stride,
		Pix:      rgba.Pix,
	}
}

// Image returns an *image.RGBA view of the frame. Frames with a channel
// count other than four are converted into a new buffer.
func (f *Frame) Image() *image.RGBA {
	if f.Channels == RGBAChannels {
		return &image.RGBA{Pix: f.Pix, Stride: f.Stride, Rect: image.Rect(0, 0, f.Width, f.Height)}
	}
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			i := f.Offset(x, y)
			j := img.PixOffset(x, y)
			img.Pix[j] = f.Pix[i]
			img.Pix[j+1] = f.Pix[i+1]
			img.Pix[j+2] = f.Pix[i+2]
			img.Pix[j+3] = 255
		}
	}
	return img
}

// Offset returns the index of the first channel of pixel (x, y).
func (f *Frame) Offset(x, y int) int {
	return y*f.Stride + x*f.Channels
}

// SetRGB writes the first three channels of pixel (x, y). Extra channels are
// set to 255 so RGBA frames stay opaque.
func (f *Frame) SetRGB(x, y int, r, g, b uint8) {
	i := f.Offset(x, y)
	f.Pix[i] = r
	f.Pix[i+1] = g
	f.Pix[i+2] = b
	for c := 3; c < f.Channels; c++ {
		f.Pix[i+c] = 255
	}
}

// Fill sets every pixel of the frame to the given color.
func (f *Frame) Fill(r, g, b uint8) {
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			f.SetRGB(x, y, r, g, b)
		}
	}
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	c := *f
	c.Pix = append([]byte(nil), f.Pix...)
	return &c
}

// SameSize reports whether two frames have identical dimensions.
func (f *Frame) SameSize(o *Frame) bool {
	return f.Width == o.Width && f.Height == o.Height
}

// Validate checks that the pixel buffer is large enough for the declared geometry.
func (f *Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", f.Width, f.Height)
	}
	if f.Channels < 3 {
		return fmt.Errorf("frame needs at least 3 channels, got %d", f.Channels)
	}
	if f.Stride < f.Width*f.Channels {
		return fmt.Errorf("stride %d too small for width %d", f.Stride, f.Width)
	}
	if need := (f.Height-1)*f.Stride + f.Width*f.Channels; len(f.Pix) < need {
		return fmt.Errorf("pixel buffer too short: %d < %d", len(f.Pix), need)
	}
	return nil
}

// Region is one cell of the motion grid, identified by its top-left corner.
// Width and Height are clipped to the frame for trailing partial cells.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}
