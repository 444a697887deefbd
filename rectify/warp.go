package rectify

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// WarpPerspective samples width x height image from src. Every destination pixel is mapped
// into src through dstToSrc and interpolated bilinearly. Pixels outside src are opaque black.
func WarpPerspective(src image.Image, dstToSrc Homography, width, height int) *image.NRGBA {
	in := imaging.Clone(src)
	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			sx, sy, ok := dstToSrc.Apply(float64(x), float64(y))
			off := out.PixOffset(x, y)
			if !ok {
				out.Pix[off+3] = 255
				continue
			}
			sampleBilinear(in, sx, sy, out.Pix[off:off+4])
		}
	}
	return out
}

func sampleBilinear(img *image.NRGBA, x, y float64, dst []uint8) {
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)
	weights := [4]float64{(1 - fx) * (1 - fy), fx * (1 - fy), (1 - fx) * fy, fx * fy}
	points := [4]image.Point{{X: x0, Y: y0}, {X: x0 + 1, Y: y0}, {X: x0, Y: y0 + 1}, {X: x0 + 1, Y: y0 + 1}}

	var acc [3]float64
	for i, pt := range points {
		if weights[i] == 0 || !pt.In(img.Rect) {
			continue
		}
		off := img.PixOffset(pt.X, pt.Y)
		for c := 0; c < 3; c++ {
			acc[c] += weights[i] * float64(img.Pix[off+c])
		}
	}
	for c := 0; c < 3; c++ {
		dst[c] = uint8(math.Max(0, math.Min(255, math.Round(acc[c]))))
	}
	dst[3] = 255
}
