package rectify

import (
	"math"

	"github.com/LdDl/tcg-scanner/mot"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrDegenerate is returned when four points do not define a projective transform
var ErrDegenerate = errors.New("degenerate quadrilateral")

// Homography is 3x3 projective transform in row-major order
type Homography [9]float64

// PerspectiveTransform computes the transform mapping every src corner onto the matching dst corner
func PerspectiveTransform(src, dst [4]mot.Point) (Homography, error) {
	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := 0; i < 4; i++ {
		x, y := src[i].X, src[i].Y
		u, v := dst[i].X, dst[i].Y
		a.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -x * u, -y * u})
		a.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -x * v, -y * v})
		b.SetVec(2*i, u)
		b.SetVec(2*i+1, v)
	}
	var solution mat.VecDense
	if err := solution.SolveVec(a, b); err != nil {
		return Homography{}, errors.Wrap(ErrDegenerate, err.Error())
	}
	h := Homography{}
	for i := 0; i < 8; i++ {
		h[i] = solution.AtVec(i)
		if math.IsNaN(h[i]) || math.IsInf(h[i], 0) {
			return Homography{}, ErrDegenerate
		}
	}
	h[8] = 1
	return h, nil
}

// Apply maps point through the transform. Returns false for points mapped to infinity
func (h Homography) Apply(x, y float64) (float64, float64, bool) {
	w := h[6]*x + h[7]*y + h[8]
	if math.Abs(w) < 1e-12 {
		return 0, 0, false
	}
	return (h[0]*x + h[1]*y + h[2]) / w, (h[3]*x + h[4]*y + h[5]) / w, true
}
