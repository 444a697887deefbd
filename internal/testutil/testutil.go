// Package testutil builds synthetic frames, card silhouettes and fingerprints for tests.
package testutil

import (
	"image"
	"image/color"
	"math"
	"math/rand"
	"strings"

	"github.com/LdDl/tcg-scanner/mot"
	"github.com/disintegration/imaging"
)

const hexDigits = "0123456789abcdef"

// CardTexture paints deterministic blocky pattern which differs for every seed
func CardTexture(width, height int, seed int64) *image.NRGBA {
	rng := rand.New(rand.NewSource(seed))
	const cell = 20
	cols := width/cell + 1
	rows := height/cell + 1
	palette := make([]color.NRGBA, cols*rows)
	for i := range palette {
		palette[i] = color.NRGBA{R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256)), A: 255}
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, palette[(y/cell)*cols+x/cell])
		}
	}
	return img
}

// Frame returns size x size gray frame with every card pasted at its position
func Frame(size int, cards map[image.Point]image.Image) *image.NRGBA {
	frame := imaging.New(size, size, color.NRGBA{R: 90, G: 90, B: 90, A: 255})
	for at, card := range cards {
		frame = imaging.Paste(frame, card, at)
	}
	return frame
}

// RectPolygon returns corners of rectangle in clockwise order starting from top-left
func RectPolygon(r image.Rectangle) mot.Polygon {
	return mot.Polygon{
		mot.NewPoint(float64(r.Min.X), float64(r.Min.Y)),
		mot.NewPoint(float64(r.Max.X), float64(r.Min.Y)),
		mot.NewPoint(float64(r.Max.X), float64(r.Max.Y)),
		mot.NewPoint(float64(r.Min.X), float64(r.Max.Y)),
	}
}

// RegularPolygon returns n vertices on a circle, first one pointing up
func RegularPolygon(cx, cy, radius float64, n int) mot.Polygon {
	poly := make(mot.Polygon, n)
	for i := 0; i < n; i++ {
		angle := -math.Pi/2 + 2*math.Pi*float64(i)/float64(n)
		poly[i] = mot.NewPoint(cx+radius*math.Cos(angle), cy+radius*math.Sin(angle))
	}
	return poly
}

// RandomHash returns random lowercase hex string
func RandomHash(rng *rand.Rand, length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = hexDigits[rng.Intn(16)]
	}
	return string(b)
}

// MutateHash changes exactly n characters of hex string
func MutateHash(rng *rand.Rand, hash string, n int) string {
	b := []byte(hash)
	for _, pos := range rng.Perm(len(b))[:n] {
		v := strings.IndexByte(hexDigits, b[pos])
		b[pos] = hexDigits[(v+1+rng.Intn(15))%16]
	}
	return string(b)
}
