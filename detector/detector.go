// Package detector is the boundary to the external instance segmentation model.
package detector

import (
	"context"
	"image"
	"sort"

	"github.com/LdDl/tcg-scanner/mot"
)

// Detection is one card instance found in a frame
type Detection struct {
	// Axis-aligned box in pixels of the processed frame
	BBox mot.Rectangle
	// Closed silhouette outline
	Polygon mot.Polygon
	// Binary mask of the frame size. Optional: when nil, mask is rasterized from Polygon
	Mask       *image.Gray
	Confidence float64
}

// Detector finds card instances in an image
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
}

// Params are thresholds applied at the detector boundary
type Params struct {
	// Minimum confidence of kept detection
	Confidence float64
	// Overlap above which less confident detection is suppressed
	IoU float64
	// Processing frame size the model expects
	Size int
}

// Filter drops detections below confidence threshold and suppresses overlapping ones (NMS).
// Result is sorted by confidence, most confident first.
func Filter(dets []Detection, confidence, iou float64) []Detection {
	candidates := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if d.Confidence >= confidence {
			candidates = append(candidates, d)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	kept := make([]Detection, 0, len(candidates))
	for _, d := range candidates {
		suppressed := false
		for _, k := range kept {
			if mot.IoU(d.BBox, k.BBox) > iou {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, d)
		}
	}
	return kept
}

// Static returns the same detections for every frame
type Static []Detection

// Detect implements Detector
func (s Static) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Detection, len(s))
	copy(out, s)
	return out, nil
}
