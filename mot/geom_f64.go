package mot

import (
	"image"
	"math"
)

// Rectangle is an axis-aligned box in top-left form (pixels of the processed frame)
type Rectangle struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func NewRect(x, y, width, height float64) Rectangle {
	return Rectangle{
		X:      x,
		Y:      y,
		Width:  width,
		Height: height,
	}
}

// NewRectFromCenter converts detector box (center x, center y, width, height) to top-left form
func NewRectFromCenter(cx, cy, width, height float64) Rectangle {
	return Rectangle{
		X:      cx - width/2.0,
		Y:      cy - height/2.0,
		Width:  width,
		Height: height,
	}
}

func NewRectFrom(rect image.Rectangle) Rectangle {
	return Rectangle{
		X:      float64(rect.Min.X),
		Y:      float64(rect.Min.Y),
		Width:  float64(rect.Dx()),
		Height: float64(rect.Dy()),
	}
}

// Center returns center of the box
func (r Rectangle) Center() Point {
	return Point{
		X: r.X + r.Width/2.0,
		Y: r.Y + r.Height/2.0,
	}
}

// Area returns area of the box. Degenerate boxes have zero area
func (r Rectangle) Area() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	return r.Width * r.Height
}

// Corners returns box in corner form: x1, y1, x2, y2
func (r Rectangle) Corners() (float64, float64, float64, float64) {
	return r.X, r.Y, r.X + r.Width, r.Y + r.Height
}

// Diagonal returns length of the box diagonal
func (r Rectangle) Diagonal() float64 {
	return math.Sqrt(math.Pow(r.Width, 2) + math.Pow(r.Height, 2))
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func NewPoint(x, y float64) Point {
	return Point{
		X: x,
		Y: y,
	}
}

func NewPointFrom(point image.Point) Point {
	return Point{
		X: float64(point.X),
		Y: float64(point.Y),
	}
}

// Polygon is a closed silhouette outline. The last point connects back to the first one
type Polygon []Point

// Clone returns deep copy of the polygon
func (p Polygon) Clone() Polygon {
	if p == nil {
		return nil
	}
	cp := make(Polygon, len(p))
	copy(cp, p)
	return cp
}

// Bounds returns the smallest box containing every vertex
func (p Polygon) Bounds() Rectangle {
	if len(p) == 0 {
		return Rectangle{}
	}
	minX, minY := p[0].X, p[0].Y
	maxX, maxY := p[0].X, p[0].Y
	for _, pt := range p[1:] {
		minX = minFloat64(minX, pt.X)
		minY = minFloat64(minY, pt.Y)
		maxX = maxFloat64(maxX, pt.X)
		maxY = maxFloat64(maxY, pt.Y)
	}
	return Rectangle{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

func euclideanDistance(p1, p2 Point) float64 {
	return math.Sqrt(math.Pow(float64(p1.X-p2.X), 2) + math.Pow(float64(p1.Y-p2.Y), 2))
}
