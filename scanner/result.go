package scanner

import (
	"time"

	"github.com/LdDl/tcg-scanner/catalogue"
	"github.com/LdDl/tcg-scanner/mot"
)

// MatchView is catalogue identity of a track as published to sinks
type MatchView struct {
	ID          string `json:"id"`
	LocalID     string `json:"local_id,omitempty"`
	SetID       string `json:"set_id,omitempty"`
	Description string `json:"description"`
	Distance    int    `json:"distance"`
	Rotated     bool   `json:"rotated"`
}

func newMatchView(m catalogue.MatchResult) *MatchView {
	return &MatchView{
		ID:          m.Entry.ID,
		LocalID:     m.Entry.LocalID,
		SetID:       m.Entry.SetID,
		Description: m.Description(),
		Distance:    m.Distance,
		Rotated:     m.Rotated,
	}
}

// TrackResult is state of one track after a frame
type TrackResult struct {
	ID      int64         `json:"id"`
	State   string        `json:"state"`
	Box     mot.Rectangle `json:"box"`
	Polygon mot.Polygon   `json:"polygon"`
	Hits    int           `json:"hits"`
	Match   *MatchView    `json:"match,omitempty"`
}

func newTrackResult(snap mot.TrackSnapshot[catalogue.MatchResult]) TrackResult {
	res := TrackResult{
		ID:      snap.ID,
		State:   snap.State.String(),
		Box:     snap.BBox,
		Polygon: snap.Polygon,
		Hits:    snap.Hits,
	}
	if snap.Match != nil && snap.Match.Found {
		res.Match = newMatchView(*snap.Match)
	}
	return res
}

// FrameResult is the outcome of processing one frame
type FrameResult struct {
	SessionID string        `json:"session_id,omitempty"`
	Seq       uint64        `json:"seq"`
	Frame     string        `json:"frame,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Tracks    []TrackResult `json:"tracks"`
	// Number of detections in the frame
	Detections int `json:"detections"`
	// Identifiers of tracks created in this frame
	NewTracks []int64 `json:"new_tracks,omitempty"`
	// Identifiers of tracks which got catalogue identity in this frame
	Identified []int64 `json:"identified,omitempty"`
	// Number of detections which went through identification but whose silhouette was not a quadrilateral
	Unrecognized int `json:"unrecognized"`
}

// Track returns track result by identifier
func (r *FrameResult) Track(id int64) (TrackResult, bool) {
	for _, t := range r.Tracks {
		if t.ID == id {
			return t, true
		}
	}
	return TrackResult{}, false
}
