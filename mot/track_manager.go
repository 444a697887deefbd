package mot

import (
	"github.com/pkg/errors"
)

// AssignmentStatus tells orchestrator what to do with an observation
type AssignmentStatus uint8

const (
	// AssignmentNew - observation started a new track and needs full identification
	AssignmentNew AssignmentStatus = iota
	// AssignmentContinuing - observation continues existing track, no re-identification needed
	AssignmentContinuing
	// AssignmentRetry - observation continues existing track which is still not identified
	AssignmentRetry
)

func (s AssignmentStatus) String() string {
	switch s {
	case AssignmentNew:
		return "new"
	case AssignmentContinuing:
		return "continuing"
	case AssignmentRetry:
		return "retry"
	default:
		return "unknown"
	}
}

// NeedsIdentification returns true when observation must go through rectify/fingerprint/match stages
func (s AssignmentStatus) NeedsIdentification() bool {
	return s == AssignmentNew || s == AssignmentRetry
}

// Assignment links observation (by index in the input slice) to track
type Assignment struct {
	Observation int
	TrackID     int64
	Status      AssignmentStatus
}

// Manager is IoU-based Track Manager.
// It does not store tracks itself: table is passed into Step and returned back.
type Manager[M any] struct {
	// IoU threshold for association. Observation continues a track only when IoU is strictly above it
	iouThreshold float64
	// Max no match (max number of frames when track could not be found again). Zero means drop on the first miss
	maxNoMatch int
	// Algorithm to use for matching
	algorithm AssociationAlgorithm
	// Hungarian algorithm is used only when both tracks and observations count do not exceed this limit
	hungarianLimit int
	// Re-identify continuing tracks which have no identity yet
	retryUnidentified bool
}

// NewDefaultManager creates a default instance of Manager.
// Default values: iouThreshold=0.5, maxNoMatch=5, algorithm=Hungarian, hungarianLimit=64, retryUnidentified=false
func NewDefaultManager[M any]() *Manager[M] {
	return &Manager[M]{
		iouThreshold:      0.5,
		maxNoMatch:        5,
		algorithm:         AssociationHungarian,
		hungarianLimit:    64,
		retryUnidentified: false,
	}
}

// NewManager creates a new instance of Manager with specified parameters.
func NewManager[M any](iouThreshold float64, maxNoMatch int, algorithm AssociationAlgorithm, retryUnidentified bool) *Manager[M] {
	if maxNoMatch < 0 {
		maxNoMatch = 0
	}
	return &Manager[M]{
		iouThreshold:      iouThreshold,
		maxNoMatch:        maxNoMatch,
		algorithm:         algorithm,
		hungarianLimit:    64,
		retryUnidentified: retryUnidentified,
	}
}

// SetHungarianLimit sets max matrix dimension for the Hungarian algorithm
func (manager *Manager[M]) SetHungarianLimit(limit int) {
	manager.hungarianLimit = limit
}

// IoUThreshold returns association threshold
func (manager *Manager[M]) IoUThreshold() float64 {
	return manager.iouThreshold
}

// Step associates current frame observations with tracks from the previous table.
// Returns new table and one assignment per observation (in the same order as observations).
// Previous table is consumed: its tracks are moved into the returned table.
func (manager *Manager[M]) Step(prev *Table[M], observations []Observation) (*Table[M], []Assignment, error) {
	if prev == nil {
		prev = NewTable[M]()
	}
	next := &Table[M]{
		tracks: make([]*Track[M], 0, len(prev.tracks)+len(observations)),
		nextID: prev.nextID,
	}

	iouMatrix := createIoUMatrix(prev.tracks, observations)
	matches := manager.associate(iouMatrix, len(prev.tracks), len(observations))

	trackForObservation := make(map[int]int, len(matches))
	matchedTracks := make(map[int]struct{}, len(matches))
	for _, match := range matches {
		trackForObservation[match[1]] = match[0]
		matchedTracks[match[0]] = struct{}{}
	}

	assignments := make([]Assignment, len(observations))
	for j, obs := range observations {
		if trackIdx, ok := trackForObservation[j]; ok {
			trk := prev.tracks[trackIdx]
			if err := trk.update(obs); err != nil {
				return nil, nil, errors.Wrapf(err, "Can't update track with id %d", trk.id)
			}
			status := AssignmentContinuing
			if manager.retryUnidentified && !trk.IsIdentified() {
				status = AssignmentRetry
			}
			next.tracks = append(next.tracks, trk)
			assignments[j] = Assignment{Observation: j, TrackID: trk.id, Status: status}
			continue
		}
		// Otherwise register observation as a new track
		trk := newTrack[M](next.allocateID(), obs)
		next.tracks = append(next.tracks, trk)
		assignments[j] = Assignment{Observation: j, TrackID: trk.id, Status: AssignmentNew}
	}

	// Handle unmatched tracks: keep them while they are inside grace period
	for i, trk := range prev.tracks {
		if _, ok := matchedTracks[i]; ok {
			continue
		}
		trk.markMissed(manager.maxNoMatch)
		if trk.state == TrackEvicted {
			continue
		}
		next.tracks = append(next.tracks, trk)
	}

	next.sortByID()
	return next, assignments, nil
}

func (manager *Manager[M]) associate(iouMatrix [][]float64, numTracks, numObservations int) [][2]int {
	if numTracks == 0 || numObservations == 0 {
		return [][2]int{}
	}
	switch manager.algorithm {
	case AssociationHungarian:
		if numTracks <= manager.hungarianLimit && numObservations <= manager.hungarianLimit {
			return matchHungarian(iouMatrix, numObservations, manager.iouThreshold)
		}
		return matchBestFirst(iouMatrix, manager.iouThreshold)
	case AssociationBestFirst:
		return matchBestFirst(iouMatrix, manager.iouThreshold)
	case AssociationGreedy:
		return matchFirst(iouMatrix, numObservations, manager.iouThreshold)
	default:
		return matchFirst(iouMatrix, numObservations, manager.iouThreshold)
	}
}
