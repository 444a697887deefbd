package rectify

import (
	"math"

	"github.com/LdDl/tcg-scanner/mot"
)

// ArcLength returns perimeter of the curve. Closed curves include segment from the last point to the first one
func ArcLength(pts mot.Polygon, closed bool) float64 {
	if len(pts) < 2 {
		return 0
	}
	length := 0.0
	for i := 1; i < len(pts); i++ {
		length += math.Hypot(pts[i].X-pts[i-1].X, pts[i].Y-pts[i-1].Y)
	}
	if closed {
		last := pts[len(pts)-1]
		length += math.Hypot(pts[0].X-last.X, pts[0].Y-last.Y)
	}
	return length
}

// ApproxPolygon simplifies closed curve with Douglas-Peucker algorithm.
// Curve is split at the pair of points farthest from each other and both chains are simplified independently.
func ApproxPolygon(pts mot.Polygon, epsilon float64) mot.Polygon {
	n := len(pts)
	if n < 3 {
		return pts.Clone()
	}
	a := farthestFrom(pts, pts[0])
	b := farthestFrom(pts, pts[a])
	if a == b {
		return mot.Polygon{pts[a]}
	}

	chain := func(from, to int) mot.Polygon {
		out := make(mot.Polygon, 0)
		for i := from; ; i = (i + 1) % n {
			out = append(out, pts[i])
			if i == to {
				break
			}
		}
		return out
	}
	first := simplifyOpen(chain(a, b), epsilon)
	second := simplifyOpen(chain(b, a), epsilon)

	// Endpoints are shared by both chains
	result := make(mot.Polygon, 0, len(first)+len(second)-2)
	result = append(result, first...)
	result = append(result, second[1:len(second)-1]...)
	return result
}

func farthestFrom(pts mot.Polygon, origin mot.Point) int {
	best := 0
	bestDist := -1.0
	for i, pt := range pts {
		d := math.Hypot(pt.X-origin.X, pt.Y-origin.Y)
		if d > bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// simplifyOpen keeps endpoints of the chain and every point needed to stay within epsilon of it
func simplifyOpen(chain mot.Polygon, epsilon float64) mot.Polygon {
	n := len(chain)
	if n <= 2 {
		return chain.Clone()
	}
	keep := make([]bool, n)
	keep[0] = true
	keep[n-1] = true

	type span struct{ from, to int }
	stack := []span{{0, n - 1}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		maxDist := -1.0
		maxIdx := -1
		for i := s.from + 1; i < s.to; i++ {
			d := segmentDistance(chain[i], chain[s.from], chain[s.to])
			if d > maxDist {
				maxDist = d
				maxIdx = i
			}
		}
		if maxIdx < 0 || maxDist <= epsilon {
			continue
		}
		keep[maxIdx] = true
		stack = append(stack, span{s.from, maxIdx}, span{maxIdx, s.to})
	}

	out := make(mot.Polygon, 0)
	for i, k := range keep {
		if k {
			out = append(out, chain[i])
		}
	}
	return out
}

func segmentDistance(p, a, b mot.Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	lengthSq := dx*dx + dy*dy
	if lengthSq == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lengthSq
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(p.X-(a.X+t*dx), p.Y-(a.Y+t*dy))
}
