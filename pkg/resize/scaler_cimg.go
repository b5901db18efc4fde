//go:build cimg

package resize

import (
	"image"

	"github.com/bmharper/cimg/v2"
)

// The cimg backend uses stb_image_resize via cgo. It's only built with "-tags cimg",
// because it needs libjpeg-turbo on the build machine.

func init() {
	RegisterScaler("cimg", scaleCImg)
}

func toCImg(src image.Image) *cimg.Image {
	b := src.Bounds()
	dst := cimg.NewImage(b.Dx(), b.Dy(), cimg.PixelFormatRGB)
	for y := 0; y < b.Dy(); y++ {
		row := dst.Pixels[y*dst.Stride:]
		for x := 0; x < b.Dx(); x++ {
			r, g, bl, _ := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
			row[x*3] = byte(r >> 8)
			row[x*3+1] = byte(g >> 8)
			row[x*3+2] = byte(bl >> 8)
		}
	}
	return dst
}

func fromCImg(src *cimg.Image) image.Image {
	dst := image.NewNRGBA(image.Rect(0, 0, src.Width, src.Height))
	for y := 0; y < src.Height; y++ {
		row := src.Pixels[y*src.Stride:]
		out := dst.Pix[y*dst.Stride:]
		for x := 0; x < src.Width; x++ {
			out[x*4] = row[x*3]
			out[x*4+1] = row[x*3+1]
			out[x*4+2] = row[x*3+2]
			out[x*4+3] = 255
		}
	}
	return dst
}

func scaleCImg(src image.Image, width, height int) (image.Image, error) {
	rgb := toCImg(src)
	params := cimg.ResizeParams{CheapSRGBFilter: true}
	if width < rgb.Width && height < rgb.Height {
		// Box filter for downsampling, in case we have a massive ratio
		params.Filter = cimg.ResizeFilterBox
	} else {
		// Of all the stbir filters, CatmullRom seems to be the sharpest
		params.Filter = cimg.ResizeFilterCatmullRom
	}
	return fromCImg(cimg.ResizeNew(rgb, width, height, &params)), nil
}
