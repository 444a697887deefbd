package rectify

import (
	"image"
	"image/draw"

	"github.com/LdDl/tcg-scanner/mot"
	"golang.org/x/image/vector"
)

// Foreground level of a binary mask. Pixels with intensity below it are background
const maskLevel = 128

// MaskFromPolygon rasterizes closed polygon into binary mask of width x height pixels.
// Foreground pixels are 255, background pixels are 0.
func MaskFromPolygon(poly mot.Polygon, width, height int) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, width, height))
	if len(poly) < 3 || width <= 0 || height <= 0 {
		return mask
	}
	z := vector.NewRasterizer(width, height)
	z.DrawOp = draw.Src
	z.MoveTo(float32(poly[0].X), float32(poly[0].Y))
	for _, pt := range poly[1:] {
		z.LineTo(float32(pt.X), float32(pt.Y))
	}
	z.ClosePath()

	coverage := image.NewAlpha(mask.Bounds())
	z.Draw(coverage, coverage.Bounds(), image.Opaque, image.Point{})
	for i, a := range coverage.Pix {
		if a >= maskLevel {
			mask.Pix[i] = 255
		}
	}
	return mask
}

func isForeground(mask *image.Gray, x, y int) bool {
	if !(image.Point{X: x, Y: y}).In(mask.Rect) {
		return false
	}
	return mask.GrayAt(x, y).Y >= maskLevel
}
