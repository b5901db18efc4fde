package rgba

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// DecodeError is returned when encoded image data cannot be turned into pixels
type DecodeError struct {
	Message string
	Cause   error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// Decoder turns an encoded image into raw RGBA pixels
type Decoder interface {
	// DecodeBase64 decodes a base64-encoded JPEG (or PNG) byte stream.
	// Failures are always of type *DecodeError.
	DecodeBase64(encoded string) (RawPixelBuffer, error)
}

// ImageDecoder is the standard Decoder. It is stateless, so the zero value is ready to use.
type ImageDecoder struct{}

func (ImageDecoder) DecodeBase64(encoded string) (RawPixelBuffer, error) {
	return DecodeBase64(encoded)
}

// DecodeBase64 decodes a base64 JPEG into a RawPixelBuffer
func DecodeBase64(encoded string) (RawPixelBuffer, error) {
	if encoded == "" {
		return RawPixelBuffer{}, &DecodeError{Message: "Empty image data"}
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return RawPixelBuffer{}, &DecodeError{Message: "Invalid base64 image data", Cause: err}
	}
	return Decode(raw)
}

// Decode decodes JPEG (or any other format registered with imaging) into a RawPixelBuffer
func Decode(raw []byte) (RawPixelBuffer, error) {
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return RawPixelBuffer{}, &DecodeError{Message: "Malformed image data", Cause: err}
	}
	return FromImage(img), nil
}

// FromImage copies any image.Image into a tightly packed RawPixelBuffer
func FromImage(img image.Image) RawPixelBuffer {
	// imaging.Clone gives us non-premultiplied RGBA with an origin of (0,0)
	src := imaging.Clone(img)
	w := src.Rect.Dx()
	h := src.Rect.Dy()
	buf := NewRawPixelBuffer(w, h)
	rowBytes := w * NChan
	for y := 0; y < h; y++ {
		copy(buf.Pixels[y*rowBytes:(y+1)*rowBytes], src.Pix[y*src.Stride:y*src.Stride+rowBytes])
	}
	return buf
}
