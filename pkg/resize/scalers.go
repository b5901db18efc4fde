package resize

import (
	"image"

	"github.com/disintegration/imaging"
	nfnt "github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

const DefaultBackend = "linear"

func init() {
	RegisterScaler("linear", scaleLinear)
	RegisterScaler("lanczos", scaleLanczos)
	RegisterScaler("catmullrom", scaleCatmullRom)
}

// Bilinear. This is the cheapest filter that still looks reasonable when downsizing photos of text.
func scaleLinear(src image.Image, width, height int) (image.Image, error) {
	return imaging.Resize(src, width, height, imaging.Linear), nil
}

// Lanczos3 is sharper, at roughly 3x the cost of linear
func scaleLanczos(src image.Image, width, height int) (image.Image, error) {
	return nfnt.Resize(uint(width), uint(height), src, nfnt.Lanczos3), nil
}

func scaleCatmullRom(src image.Image, width, height int) (image.Image, error) {
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Rect, src, src.Bounds(), draw.Src, nil)
	return dst, nil
}
