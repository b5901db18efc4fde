package rgba

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	return imaging.New(w, h, c)
}

func encode(t *testing.T, img image.Image, format imaging.Format) string {
	var b bytes.Buffer
	require.NoError(t, imaging.Encode(&b, img, format, imaging.JPEGQuality(100)))
	return base64.StdEncoding.EncodeToString(b.Bytes())
}

func TestDecodeJPEG(t *testing.T) {
	enc := encode(t, solidImage(32, 32, color.NRGBA{R: 255, A: 255}), imaging.JPEG)
	buf, err := ImageDecoder{}.DecodeBase64(enc)
	require.NoError(t, err)
	require.NoError(t, buf.Validate())
	require.Equal(t, 32, buf.Width)
	require.Equal(t, 32, buf.Height)
	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			r, g, b, a := buf.At(x, y)
			// JPEG is lossy, even at quality 100, due to the YCbCr round trip
			require.InDelta(t, 255, int(r), 2)
			require.InDelta(t, 0, int(g), 2)
			require.InDelta(t, 0, int(b), 2)
			require.Equal(t, byte(255), a)
		}
	}
}

func TestDecodePNGIsExact(t *testing.T) {
	src := solidImage(4, 3, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	src.SetNRGBA(1, 2, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
	buf, err := DecodeBase64(encode(t, src, imaging.PNG))
	require.NoError(t, err)
	require.Equal(t, 4, buf.Width)
	require.Equal(t, 3, buf.Height)
	r, g, b, a := buf.At(0, 0)
	require.Equal(t, []byte{10, 20, 30, 255}, []byte{r, g, b, a})
	r, g, b, a = buf.At(1, 2)
	require.Equal(t, []byte{200, 100, 50, 255}, []byte{r, g, b, a})
}

func TestDecodeErrors(t *testing.T) {
	var derr *DecodeError

	_, err := DecodeBase64("")
	require.True(t, errors.As(err, &derr))

	_, err = DecodeBase64("!!! not base64 !!!")
	require.True(t, errors.As(err, &derr))

	_, err = DecodeBase64(base64.StdEncoding.EncodeToString([]byte("\xff\xd8\xff garbage")))
	require.True(t, errors.As(err, &derr))
	require.Error(t, derr.Unwrap())
}

func TestFromImageSubImage(t *testing.T) {
	src := solidImage(8, 8, color.NRGBA{G: 255, A: 255})
	sub := src.SubImage(image.Rect(2, 2, 6, 5))
	buf := FromImage(sub)
	require.Equal(t, 4, buf.Width)
	require.Equal(t, 3, buf.Height)
	require.NoError(t, buf.Validate())
	_, g, _, _ := buf.At(3, 2)
	require.Equal(t, byte(255), g)
}

func TestValidate(t *testing.T) {
	buf := NewRawPixelBuffer(2, 2)
	require.NoError(t, buf.Validate())
	buf.Pixels = buf.Pixels[:15]
	require.Error(t, buf.Validate())
}
