package nn

import (
	"errors"
	"fmt"

	"github.com/cyclopcam/yorubaocr/pkg/rgba"
)

// ErrDimensionMismatch is matched by every DimensionMismatchError (via errors.Is).
var ErrDimensionMismatch = errors.New("Unexpected image dimensions")

// DimensionMismatchError means the normalizer was given something other than a 32x32 RGBA buffer.
// This is an integration bug (the resize step was skipped or misconfigured), not a transient condition.
type DimensionMismatchError struct {
	Width     int
	Height    int
	BufferLen int
}

func (e *DimensionMismatchError) Error() string {
	if e.Width == InputWidth && e.Height == InputHeight {
		return fmt.Sprintf("Unexpected image buffer length %v. Expected %v", e.BufferLen, InputWidth*InputHeight*rgba.NChan)
	}
	return fmt.Sprintf("Unexpected image dimensions %vx%v. Expected %vx%v", e.Width, e.Height, InputWidth, InputHeight)
}

func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// Normalize converts a 32x32 RGBA buffer into the model's input tensor.
// Alpha is discarded, and every channel is divided by 255.
// The normalizer never resamples. Any other size is rejected, and no partial tensor is returned.
func Normalize(pixels rgba.RawPixelBuffer) (InputTensor, error) {
	if pixels.Width != InputWidth || pixels.Height != InputHeight || len(pixels.Pixels) != InputWidth*InputHeight*rgba.NChan {
		return nil, &DimensionMismatchError{
			Width:     pixels.Width,
			Height:    pixels.Height,
			BufferLen: len(pixels.Pixels),
		}
	}

	tensor := make(InputTensor, InputTensorSize)
	src := pixels.Pixels
	for i, j := 0, 0; i < len(src); i, j = i+rgba.NChan, j+InputChannels {
		tensor[j] = float32(src[i]) / 255
		tensor[j+1] = float32(src[i+1]) / 255
		tensor[j+2] = float32(src[i+2]) / 255
	}
	return tensor, nil
}
