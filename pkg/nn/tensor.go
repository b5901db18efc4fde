package nn

import (
	"fmt"

	"github.com/chewxy/math32"
)

// The model's input resolution is fixed. Upstream resizing is mandatory.
const (
	InputWidth      = 32
	InputHeight     = 32
	InputChannels   = 3
	InputTensorSize = InputWidth * InputHeight * InputChannels // 3072
)

// InputTensor is the flattened model input, with logical shape [1, 32, 32, 3] (NHWC).
// Element 3*(y*32+x)+c holds channel c (0=R, 1=G, 2=B) of pixel (x,y), scaled to [0,1].
type InputTensor []float32

// Shape returns the logical shape of the tensor
func (t InputTensor) Shape() []int64 {
	return []int64{1, InputHeight, InputWidth, InputChannels}
}

// Return an error if the tensor has the wrong length, or contains values outside of [0,1]
func (t InputTensor) Validate() error {
	if len(t) != InputTensorSize {
		return fmt.Errorf("Input tensor has %v elements, expected %v", len(t), InputTensorSize)
	}
	for i, v := range t {
		if math32.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("Input tensor element %v is out of range: %v", i, v)
		}
	}
	return nil
}

// Return the R,G,B values of pixel (x,y)
func (t InputTensor) Pixel(x, y int) (r, g, b float32) {
	i := (y*InputWidth + x) * InputChannels
	return t[i], t[i+1], t[i+2]
}
