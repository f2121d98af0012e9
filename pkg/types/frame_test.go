package types

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromImageSharesRGBABuffer(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	f := FromImage(img)

	assert.Equal(t, 4, f.Width)
	assert.Equal(t, 3, f.Height)
	f.SetRGB(1, 1, 10, 20, 30)
	assert.Equal(t, color.RGBA{10, 20, 30, 255}, img.RGBAAt(1, 1))
}

func TestFromImageConvertsOffsetAndGray(t *testing.T) {
	gray := image.NewGray(image.Rect(2, 2, 6, 5))
	gray.SetGray(2, 2, color.Gray{Y: 200})

	f := FromImage(gray)
	require.NoError(t, f.Validate())
	assert.Equal(t, 4, f.Width)
	assert.Equal(t, 3, f.Height)
	i := f.Offset(0, 0)
	assert.Equal(t, []byte{200, 200, 200, 255}, f.Pix[i:i+4])
}

func TestImageRoundTrip(t *testing.T) {
	f := NewFrame(3, 2)
	f.Fill(1, 2, 3)
	img := f.Image()
	assert.Equal(t, color.RGBA{1, 2, 3, 255}, img.RGBAAt(2, 1))

	// Three-channel frames are copied.
	rgb := &Frame{Width: 2, Height: 1, Channels: 3, Stride: 6, Pix: []byte{9, 8, 7, 6, 5, 4}}
	out := rgb.Image()
	assert.Equal(t, color.RGBA{6, 5, 4, 255}, out.RGBAAt(1, 0))
	out.Pix[0] = 0
	assert.Equal(t, byte(9), rgb.Pix[0])
}

func TestClone(t *testing.T) {
	f := NewFrame(2, 2)
	f.FrameNum = 7
	c := f.Clone()
	c.SetRGB(0, 0, 255, 255, 255)

	assert.Equal(t, uint64(7), c.FrameNum)
	assert.Equal(t, byte(0), f.Pix[0])
	assert.True(t, f.SameSize(c))
	assert.False(t, f.SameSize(NewFrame(2, 3)))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		frame *Frame
		ok    bool
	}{
		{"rgba", NewFrame(4, 4), true},
		{"zero size", &Frame{Channels: 4}, false},
		{"two channels", &Frame{Width: 1, Height: 1, Channels: 2, Stride: 2, Pix: make([]byte, 2)}, false},
		{"short stride", &Frame{Width: 2, Height: 1, Channels: 3, Stride: 3, Pix: make([]byte, 6)}, false},
		{"short buffer", &Frame{Width: 2, Height: 2, Channels: 3, Stride: 6, Pix: make([]byte, 8)}, false},
		{"padded stride", &Frame{Width: 2, Height: 2, Channels: 3, Stride: 8, Pix: make([]byte, 14)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.frame.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
