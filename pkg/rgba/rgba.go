package rgba

import (
	"fmt"
	"image"
)

// Package rgba holds decoded images in the layout that our tensor normalizer consumes.

// NChan is the number of bytes per pixel in a RawPixelBuffer
const NChan = 4

// RawPixelBuffer is an uncompressed image, with 4 bytes per pixel, in R,G,B,A order.
// Rows are tightly packed, so the stride is always Width*4.
type RawPixelBuffer struct {
	Width  int
	Height int
	Pixels []byte
}

// Allocate a zeroed buffer of the given size
func NewRawPixelBuffer(width, height int) RawPixelBuffer {
	return RawPixelBuffer{
		Width:  width,
		Height: height,
		Pixels: make([]byte, width*height*NChan),
	}
}

func (b RawPixelBuffer) Stride() int {
	return b.Width * NChan
}

// Return an error if the length of Pixels does not match the declared dimensions
func (b RawPixelBuffer) Validate() error {
	if b.Width < 0 || b.Height < 0 {
		return fmt.Errorf("Invalid buffer dimensions %vx%v", b.Width, b.Height)
	}
	if len(b.Pixels) != b.Width*b.Height*NChan {
		return fmt.Errorf("Buffer length %v does not match %vx%v RGBA (expected %v)", len(b.Pixels), b.Width, b.Height, b.Width*b.Height*NChan)
	}
	return nil
}

// Return the four channels of the pixel at (x,y).
// Panics if x or y is out of bounds.
func (b RawPixelBuffer) At(x, y int) (r, g, bl, a byte) {
	i := y*b.Stride() + x*NChan
	return b.Pixels[i], b.Pixels[i+1], b.Pixels[i+2], b.Pixels[i+3]
}

// Set the pixel at (x,y)
func (b RawPixelBuffer) Set(x, y int, r, g, bl, a byte) {
	i := y*b.Stride() + x*NChan
	b.Pixels[i] = r
	b.Pixels[i+1] = g
	b.Pixels[i+2] = bl
	b.Pixels[i+3] = a
}

// Fill every pixel with the same color
func (b RawPixelBuffer) Fill(r, g, bl, a byte) {
	for i := 0; i+3 < len(b.Pixels); i += NChan {
		b.Pixels[i] = r
		b.Pixels[i+1] = g
		b.Pixels[i+2] = bl
		b.Pixels[i+3] = a
	}
}

// Wrap the buffer as an image.NRGBA, without copying.
// JPEG sources are opaque, so there is no difference between NRGBA and RGBA for them.
func (b RawPixelBuffer) ToImage() *image.NRGBA {
	return &image.NRGBA{
		Pix:    b.Pixels,
		Stride: b.Stride(),
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}
}
