// Package rectify turns a card silhouette into a canonical, perspective-corrected card image.
package rectify

import (
	"image"
	"math"

	"github.com/LdDl/tcg-scanner/mot"
	"github.com/disintegration/imaging"
)

const (
	// DefaultWidth is width of canonical card image
	DefaultWidth = 320
	// DefaultHeight is height of canonical card image
	DefaultHeight = 444
	// DefaultEpsilonRatio is polygon approximation tolerance relative to contour perimeter
	DefaultEpsilonRatio = 0.1
)

// Rectifier extracts quadrilateral card outline from instance mask and warps the card to canonical size
type Rectifier struct {
	Width  int
	Height int
	// Mirror flips the result horizontally, for frames from a mirrored camera
	Mirror bool
	// EpsilonRatio is approximation tolerance as a fraction of contour perimeter
	EpsilonRatio float64
}

// New creates Rectifier producing width x height cards.
// Non-positive dimensions fall back to 320x444.
func New(width, height int, mirror bool) *Rectifier {
	if width <= 0 || height <= 0 {
		width, height = DefaultWidth, DefaultHeight
	}
	return &Rectifier{
		Width:        width,
		Height:       height,
		Mirror:       mirror,
		EpsilonRatio: DefaultEpsilonRatio,
	}
}

// Quad finds the first external contour (largest first) which approximates to exactly four points.
// Corners are returned ordered by OrderCorners.
func (r *Rectifier) Quad(mask *image.Gray) ([4]mot.Point, bool) {
	for _, contour := range ExternalContours(mask) {
		poly := contour.Polygon()
		approx := ApproxPolygon(poly, r.EpsilonRatio*ArcLength(poly, true))
		if len(approx) != 4 {
			continue
		}
		return OrderCorners([4]mot.Point{approx[0], approx[1], approx[2], approx[3]}), true
	}
	return [4]mot.Point{}, false
}

// Rectify produces canonical card image from the frame and binary mask of the same geometry.
// Returns false when the mask has no clean quadrilateral outline.
func (r *Rectifier) Rectify(img image.Image, mask *image.Gray) (*image.NRGBA, bool) {
	corners, ok := r.Quad(mask)
	if !ok {
		return nil, false
	}
	return r.Warp(img, corners)
}

// Warp rectifies the card given its ordered corners
func (r *Rectifier) Warp(img image.Image, corners [4]mot.Point) (*image.NRGBA, bool) {
	width := math.Hypot(corners[1].X-corners[0].X, corners[1].Y-corners[0].Y)
	height := math.Hypot(corners[2].X-corners[1].X, corners[2].Y-corners[1].Y)
	if width < 1 || height < 1 {
		return nil, false
	}
	dst := [4]mot.Point{
		{X: 0, Y: 0},
		{X: width - 1, Y: 0},
		{X: width - 1, Y: height - 1},
		{X: 0, Y: height - 1},
	}
	dstToSrc, err := PerspectiveTransform(dst, shiftCorners(corners, img.Bounds().Min))
	if err != nil {
		return nil, false
	}
	card := WarpPerspective(img, dstToSrc, int(width), int(height))
	if width > height {
		// 90 degrees clockwise
		card = imaging.Rotate270(card)
	}
	card = imaging.Resize(card, r.Width, r.Height, imaging.Linear)
	if r.Mirror {
		card = imaging.FlipH(card)
	}
	return card, true
}

// Corners come in frame coordinates while warp samples image rebased to the origin
func shiftCorners(corners [4]mot.Point, min image.Point) [4]mot.Point {
	for i := range corners {
		corners[i].X -= float64(min.X)
		corners[i].Y -= float64(min.Y)
	}
	return corners
}
