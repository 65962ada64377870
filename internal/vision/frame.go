// Package vision implements the presence detector: an adaptive background
// model over grayscale frames, morphological cleanup, blob extraction, and
// per-zone object counting.
package vision

import (
	"fmt"
	"image"
	"image/color"
)

// Frame is a BGR video frame, 3 bytes per pixel, row-major. BGR ordering
// matches what camera sources deliver.
type Frame struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewFrame allocates a zeroed frame.
func NewFrame(width, height int) *Frame {
	return &Frame{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*3),
	}
}

// SetBGR writes one pixel. Out-of-bounds coordinates are ignored.
func (f *Frame) SetBGR(x, y int, b, g, r uint8) {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return
	}
	i := (y*f.Width + x) * 3
	f.Pix[i] = b
	f.Pix[i+1] = g
	f.Pix[i+2] = r
}

// BGR reads one pixel.
func (f *Frame) BGR(x, y int) (b, g, r uint8) {
	i := (y*f.Width + x) * 3
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

// Gray converts the frame to 8-bit luma using the BT.601 weights.
func (f *Frame) Gray() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, f.Width, f.Height))
	for i, j := 0, 0; i < len(f.Pix); i, j = i+3, j+1 {
		b := int(f.Pix[i])
		gr := int(f.Pix[i+1])
		r := int(f.Pix[i+2])
		// (299r + 587g + 114b) / 1000, integer approximation
		g.Pix[j] = uint8((299*r + 587*gr + 114*b) / 1000)
	}
	return g
}

// Validate checks the pixel buffer matches the declared dimensions.
func (f *Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("frame dimensions %dx%d invalid", f.Width, f.Height)
	}
	if len(f.Pix) != f.Width*f.Height*3 {
		return fmt.Errorf("frame buffer %d bytes, want %d", len(f.Pix), f.Width*f.Height*3)
	}
	return nil
}

// FrameFromImage converts any image.Image into a BGR frame.
func FrameFromImage(img image.Image) *Frame {
	bounds := img.Bounds()
	f := NewFrame(bounds.Dx(), bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			f.SetBGR(x-bounds.Min.X, y-bounds.Min.Y, c.B, c.G, c.R)
		}
	}
	return f
}
