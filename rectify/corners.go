package rectify

import (
	"math"
	"sort"

	"github.com/LdDl/tcg-scanner/mot"
)

// OrderCorners sorts quadrilateral corners by angle around their centroid.
// In image coordinates (y axis points down) the result is top-left, top-right, bottom-right, bottom-left
// regardless of the order the corners were given in.
func OrderCorners(pts [4]mot.Point) [4]mot.Point {
	cx, cy := 0.0, 0.0
	for _, pt := range pts {
		cx += pt.X
		cy += pt.Y
	}
	cx /= 4
	cy /= 4

	ordered := pts
	sort.SliceStable(ordered[:], func(i, j int) bool {
		return math.Atan2(ordered[i].Y-cy, ordered[i].X-cx) < math.Atan2(ordered[j].Y-cy, ordered[j].X-cx)
	})
	return ordered
}
