package detector

import (
	"github.com/LdDl/tcg-scanner/mot"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// wireDetection is detection as returned by inference service: box is center x, center y, width, height
type wireDetection struct {
	Box        [4]float64   `json:"box"`
	Polygon    [][2]float64 `json:"polygon"`
	Confidence float64      `json:"confidence"`
}

type wireResponse struct {
	Frame      string          `json:"frame,omitempty"`
	Detections []wireDetection `json:"detections"`
}

func (w wireDetection) toDetection() Detection {
	poly := make(mot.Polygon, len(w.Polygon))
	for i, pt := range w.Polygon {
		poly[i] = mot.NewPoint(pt[0], pt[1])
	}
	bbox := mot.NewRectFromCenter(w.Box[0], w.Box[1], w.Box[2], w.Box[3])
	if bbox.Area() == 0 {
		bbox = poly.Bounds()
	}
	return Detection{
		BBox:       bbox,
		Polygon:    poly,
		Confidence: w.Confidence,
	}
}

func fromWire(wire []wireDetection) []Detection {
	dets := make([]Detection, len(wire))
	for i := range wire {
		dets[i] = wire[i].toDetection()
	}
	return dets
}

func toWire(dets []Detection) []wireDetection {
	wire := make([]wireDetection, len(dets))
	for i, d := range dets {
		center := d.BBox.Center()
		wire[i].Box = [4]float64{center.X, center.Y, d.BBox.Width, d.BBox.Height}
		wire[i].Confidence = d.Confidence
		wire[i].Polygon = make([][2]float64, len(d.Polygon))
		for j, pt := range d.Polygon {
			wire[i].Polygon[j] = [2]float64{pt.X, pt.Y}
		}
	}
	return wire
}
