// Package tesseract runs Tesseract OCR (github.com/otiai10/gosseract) as an nn.Engine.
// The model file is a Tesseract .traineddata file, such as yor.traineddata for Yoruba.
//
// The engine needs cgo and libtesseract, so it is only built with the 'tesseract' build tag.
// The conversions in this file are always built.
package tesseract

import (
	"image"
	"image/color"
	"strings"

	"github.com/cyclopcam/yorubaocr/pkg/nn"
	"github.com/disintegration/imaging"
)

// Tesseract wants glyphs to be at least 20 pixels tall, so we scale the 32x32 tensor up by this much
const Upscale = 4

// TensorImage turns a normalized input tensor back into an image, scaled up by 'scale'
func TensorImage(t nn.InputTensor, scale int) (*image.NRGBA, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	img := image.NewNRGBA(image.Rect(0, 0, nn.InputWidth, nn.InputHeight))
	for y := 0; y < nn.InputHeight; y++ {
		for x := 0; x < nn.InputWidth; x++ {
			r, g, b := t.Pixel(x, y)
			img.SetNRGBA(x, y, color.NRGBA{toByte(r), toByte(g), toByte(b), 255})
		}
	}
	if scale <= 1 {
		return img, nil
	}
	return imaging.Resize(img, nn.InputWidth*scale, nn.InputHeight*scale, imaging.Lanczos), nil
}

func toByte(v float32) uint8 {
	return uint8(v*255 + 0.5)
}

// Lines splits OCR output into trimmed, non-empty lines.
// The first line is the top prediction.
func Lines(text string) []string {
	lines := []string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
