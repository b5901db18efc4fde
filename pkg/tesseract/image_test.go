package tesseract

import (
	"testing"

	"github.com/cyclopcam/yorubaocr/pkg/nn"
	"github.com/stretchr/testify/require"
)

func solidTensor(r, g, b float32) nn.InputTensor {
	t := make(nn.InputTensor, nn.InputTensorSize)
	for i := 0; i < len(t); i += 3 {
		t[i] = r
		t[i+1] = g
		t[i+2] = b
	}
	return t
}

func TestTensorImage(t *testing.T) {
	img, err := TensorImage(solidTensor(1, 0, 0.5), 1)
	require.NoError(t, err)
	require.Equal(t, nn.InputWidth, img.Bounds().Dx())
	c := img.NRGBAAt(5, 7)
	require.EqualValues(t, 255, c.R)
	require.EqualValues(t, 0, c.G)
	require.EqualValues(t, 128, c.B)
	require.EqualValues(t, 255, c.A)

	big, err := TensorImage(solidTensor(1, 0, 0.5), Upscale)
	require.NoError(t, err)
	require.Equal(t, nn.InputWidth*Upscale, big.Bounds().Dx())
	require.Equal(t, nn.InputHeight*Upscale, big.Bounds().Dy())
	c = big.NRGBAAt(50, 60)
	require.InDelta(t, 255, int(c.R), 1)
	require.InDelta(t, 0, int(c.G), 1)

	_, err = TensorImage(make(nn.InputTensor, 10), 1)
	require.Error(t, err)
}

func TestLines(t *testing.T) {
	require.Equal(t, []string{"Ìjèmí", "ọjọ́ àìkú"}, Lines("  Ìjèmí \n\n ọjọ́ àìkú\n"))
	require.Equal(t, []string{}, Lines(" \n "))
}
