package rectify

import (
	"image"
	"math"
	"sort"

	"github.com/LdDl/tcg-scanner/mot"
)

// Contour is an outer border of 8-connected mask component in tracing order
type Contour []image.Point

// Area returns area enclosed by the contour (shoelace formula)
func (c Contour) Area() float64 {
	if len(c) < 3 {
		return 0
	}
	sum := 0
	for i := range c {
		j := (i + 1) % len(c)
		sum += c[i].X*c[j].Y - c[j].X*c[i].Y
	}
	return math.Abs(float64(sum)) / 2.0
}

// Polygon converts contour into floating point polygon
func (c Contour) Polygon() mot.Polygon {
	poly := make(mot.Polygon, len(c))
	for i, pt := range c {
		poly[i] = mot.NewPointFrom(pt)
	}
	return poly
}

// Moore neighbourhood in clockwise order (y axis points down): W, NW, N, NE, E, SE, S, SW
var neighbours = [8]image.Point{
	{X: -1, Y: 0}, {X: -1, Y: -1}, {X: 0, Y: -1}, {X: 1, Y: -1},
	{X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}, {X: -1, Y: 1},
}

func neighbourIndex(offset image.Point) int {
	for i, n := range neighbours {
		if n == offset {
			return i
		}
	}
	return 0
}

// ExternalContours returns outer borders of every 8-connected foreground component of the mask.
// Holes are ignored. Contours are sorted by enclosed area, largest first.
func ExternalContours(mask *image.Gray) []Contour {
	bounds := mask.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	visited := make([]bool, w*h)
	contours := make([]Contour, 0)
	stack := make([]image.Point, 0, 64)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			idx := (y-bounds.Min.Y)*w + (x - bounds.Min.X)
			if visited[idx] || !isForeground(mask, x, y) {
				continue
			}
			// First pixel of the component in raster order: its west neighbour is background
			start := image.Point{X: x, Y: y}
			contours = append(contours, traceBorder(mask, start))

			// Flood fill the component so it is traced only once
			visited[idx] = true
			stack = append(stack[:0], start)
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				for _, n := range neighbours {
					q := p.Add(n)
					if !isForeground(mask, q.X, q.Y) {
						continue
					}
					qIdx := (q.Y-bounds.Min.Y)*w + (q.X - bounds.Min.X)
					if visited[qIdx] {
						continue
					}
					visited[qIdx] = true
					stack = append(stack, q)
				}
			}
		}
	}

	sort.SliceStable(contours, func(i, j int) bool {
		return contours[i].Area() > contours[j].Area()
	})
	return contours
}

// traceBorder walks around the component clockwise (Moore-neighbour tracing).
// Tracing stops when the start pixel is left in the same direction as the first time.
func traceBorder(mask *image.Gray, start image.Point) Contour {
	contour := Contour{start}
	p := start
	back := 0 // west of the start pixel is background
	limit := 4*mask.Bounds().Dx()*mask.Bounds().Dy() + 8
	for step := 0; step < limit; step++ {
		found := false
		var next image.Point
		nextBack := 0
		for k := 1; k <= 8; k++ {
			d := (back + k) % 8
			q := p.Add(neighbours[d])
			if isForeground(mask, q.X, q.Y) {
				prev := p.Add(neighbours[(d+7)%8])
				next = q
				nextBack = neighbourIndex(prev.Sub(q))
				found = true
				break
			}
		}
		if !found {
			// Isolated pixel
			return contour
		}
		if p == start && len(contour) > 1 && next == contour[1] {
			break
		}
		contour = append(contour, next)
		p = next
		back = nextBack
	}
	if len(contour) > 1 && contour[len(contour)-1] == start {
		contour = contour[:len(contour)-1]
	}
	return contour
}
