package mot

import (
	kalman_filter "github.com/LdDl/kalman-filter"
	"github.com/pkg/errors"
)

// TrackState is lifecycle state of a tracked card
type TrackState uint8

const (
	// TrackTentative - track exists but no catalogue identity has been attached yet
	TrackTentative TrackState = iota
	// TrackConfirmed - track has catalogue identity
	TrackConfirmed
	// TrackStale - track was not associated in the latest frame, but it is still inside grace period
	TrackStale
	// TrackEvicted - track has been missing longer than grace period and is removed from the table
	TrackEvicted
)

func (s TrackState) String() string {
	switch s {
	case TrackTentative:
		return "tentative"
	case TrackConfirmed:
		return "confirmed"
	case TrackStale:
		return "stale"
	case TrackEvicted:
		return "evicted"
	default:
		return "unknown"
	}
}

// Observation is a single per-frame detection as seen by the Track Manager
type Observation struct {
	BBox    Rectangle
	Polygon Polygon
}

// Track is an identity-bearing record of a physical card.
// M is the type of resolved identity (catalogue match) attached to the track.
// Box dynamics are smoothed by 8-D Kalman filter: [cx, cy, w, h, vx, vy, vw, vh].
// Filter is used only to predict where a stale track could be found again.
type Track[M any] struct {
	id            int64
	state         TrackState
	currentBBox   Rectangle
	predictedBBox Rectangle
	polygon       Polygon
	match         *M
	track         []Point
	maxTrackLen   int
	hits          int
	noMatchTimes  int
	tracker       *kalman_filter.KalmanBBox
}

func newTrack[M any](id int64, obs Observation) *Track[M] {
	center := obs.BBox.Center()

	// Kalman filter props. Cards are mostly static, so no control input
	uCx := 0.0
	uCy := 0.0
	uW := 0.0
	uH := 0.0
	stdDevA := 2.0
	stdDevMCx := 0.1
	stdDevMCy := 0.1
	stdDevMW := 0.1
	stdDevMH := 0.1
	kf := kalman_filter.NewKalmanBBox(
		1.0, uCx, uCy, uW, uH,
		stdDevA, stdDevMCx, stdDevMCy, stdDevMW, stdDevMH,
		kalman_filter.WithStateBBox(center.X, center.Y, obs.BBox.Width, obs.BBox.Height),
	)

	t := Track[M]{
		id:            id,
		state:         TrackTentative,
		currentBBox:   obs.BBox,
		predictedBBox: obs.BBox,
		polygon:       obs.Polygon.Clone(),
		track:         make([]Point, 0, 32),
		maxTrackLen:   32,
		hits:          1,
		noMatchTimes:  0,
		tracker:       kf,
	}
	t.track = append(t.track, center)
	return &t
}

// GetID returns track's identifier
func (t *Track[M]) GetID() int64 {
	return t.id
}

// GetState returns track's lifecycle state
func (t *Track[M]) GetState() TrackState {
	return t.state
}

// GetBBox returns last observed bounding box
func (t *Track[M]) GetBBox() Rectangle {
	return t.currentBBox
}

// GetPredictedBBox returns bounding box estimated by Kalman filter
func (t *Track[M]) GetPredictedBBox() Rectangle {
	return t.predictedBBox
}

// GetPolygon returns last observed silhouette. Be careful: this is not copy of polygon, but reference to it
func (t *Track[M]) GetPolygon() Polygon {
	return t.polygon
}

// GetMatch returns attached identity or nil when track is not identified yet
func (t *Track[M]) GetMatch() *M {
	return t.match
}

// IsIdentified returns true when identity has been attached
func (t *Track[M]) IsIdentified() bool {
	return t.match != nil
}

// SetMatch attaches identity to the track and confirms it
func (t *Track[M]) SetMatch(match M) {
	t.match = &match
	if t.state == TrackTentative {
		t.state = TrackConfirmed
	}
}

// GetHits returns number of frames the track has been observed in
func (t *Track[M]) GetHits() int {
	return t.hits
}

// GetNoMatchTimes returns number of consecutive frames the track has been missing
func (t *Track[M]) GetNoMatchTimes() int {
	return t.noMatchTimes
}

// GetTrack returns history of box centers. Be careful: this is not copy of track, but reference to it
func (t *Track[M]) GetTrack() []Point {
	return t.track
}

// SetMaxTrackLen sets max length of centers history
func (t *Track[M]) SetMaxTrackLen(newMaxTrackLen int) {
	t.maxTrackLen = newMaxTrackLen
}

// associationIoU returns best overlap between observation and either observed or predicted box
func (t *Track[M]) associationIoU(bbox Rectangle) float64 {
	iou := IoU(t.currentBBox, bbox)
	if t.noMatchTimes == 0 {
		return iou
	}
	return maxFloat64(iou, IoU(t.predictedBBox, bbox))
}

// update refreshes box and polygon with the new observation and executes Kalman filter predict + update steps
func (t *Track[M]) update(obs Observation) error {
	t.tracker.Predict()
	center := obs.BBox.Center()
	err := t.tracker.Update(center.X, center.Y, obs.BBox.Width, obs.BBox.Height)
	if err != nil {
		return errors.Wrap(err, "Can't update track's Kalman filter")
	}
	cx, cy, w, h := t.tracker.GetState()
	t.predictedBBox = NewRectFromCenter(cx, cy, w, h)
	t.currentBBox = obs.BBox
	t.polygon = obs.Polygon.Clone()
	t.hits++
	t.noMatchTimes = 0
	if t.match != nil {
		t.state = TrackConfirmed
	} else {
		t.state = TrackTentative
	}
	t.track = append(t.track, center)
	if len(t.track) > t.maxTrackLen {
		t.track = t.track[1:]
	}
	return nil
}

// markMissed advances Kalman filter without measurement and moves track into stale state
func (t *Track[M]) markMissed(maxNoMatch int) {
	t.tracker.Predict()
	cx, cy, w, h := t.tracker.GetState()
	t.predictedBBox = NewRectFromCenter(cx, cy, w, h)
	t.noMatchTimes++
	if t.noMatchTimes > maxNoMatch {
		t.state = TrackEvicted
		return
	}
	t.state = TrackStale
}

// TrackSnapshot is a value copy of a track which is safe to hand over to renderer
type TrackSnapshot[M any] struct {
	ID           int64
	State        TrackState
	BBox         Rectangle
	Polygon      Polygon
	Match        *M
	Hits         int
	NoMatchTimes int
}

func (t *Track[M]) snapshot() TrackSnapshot[M] {
	snap := TrackSnapshot[M]{
		ID:           t.id,
		State:        t.state,
		BBox:         t.currentBBox,
		Polygon:      t.polygon.Clone(),
		Hits:         t.hits,
		NoMatchTimes: t.noMatchTimes,
	}
	if t.match != nil {
		m := *t.match
		snap.Match = &m
	}
	return snap
}
