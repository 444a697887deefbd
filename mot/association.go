package mot

import (
	"sort"
)

// AssociationAlgorithm is for algorithm type for matching observations to tracks
type AssociationAlgorithm uint16

const (
	// AssociationHungarian uses the Hungarian algorithm (Kuhn-Munkres) for optimal assignment:
	// the most pairs above threshold, then the highest total IoU.
	// Falls back to AssociationBestFirst when number of tracks or observations exceeds the limit
	AssociationHungarian AssociationAlgorithm = iota
	// AssociationBestFirst greedily takes pairs with the highest IoU first
	AssociationBestFirst
	// AssociationGreedy takes for every observation (in detector order) the first track exceeding threshold
	AssociationGreedy
)

func (a AssociationAlgorithm) String() string {
	switch a {
	case AssociationHungarian:
		return "hungarian"
	case AssociationBestFirst:
		return "best-first"
	case AssociationGreedy:
		return "greedy"
	default:
		return "unknown"
	}
}

// ParseAssociationAlgorithm converts textual name to AssociationAlgorithm
func ParseAssociationAlgorithm(name string) (AssociationAlgorithm, bool) {
	switch name {
	case "hungarian":
		return AssociationHungarian, true
	case "best-first", "best_first":
		return AssociationBestFirst, true
	case "greedy", "first-match":
		return AssociationGreedy, true
	default:
		return AssociationHungarian, false
	}
}

// createIoUMatrix is helper function to create IoU matrix: rows = tracks, columns = observations
func createIoUMatrix[M any](tracks []*Track[M], observations []Observation) [][]float64 {
	iouMatrix := make([][]float64, len(tracks))
	for i, trk := range tracks {
		row := make([]float64, len(observations))
		for j := range observations {
			row[j] = trk.associationIoU(observations[j].BBox)
		}
		iouMatrix[i] = row
	}
	return iouMatrix
}

// matchFirst walks observations in order and takes the first free track with IoU above threshold.
// Returns: a slice of [2]int, where each element is {trackIndex, observationIndex}.
func matchFirst(iouMatrix [][]float64, numObservations int, threshold float64) [][2]int {
	matches := make([][2]int, 0)
	reservedTracks := make(map[int]struct{})
	for j := 0; j < numObservations; j++ {
		for i := range iouMatrix {
			if _, ok := reservedTracks[i]; ok {
				continue
			}
			if iouMatrix[i][j] > threshold {
				matches = append(matches, [2]int{i, j})
				reservedTracks[i] = struct{}{}
				break
			}
		}
	}
	return matches
}

// matchBestFirst takes candidate pairs from the highest IoU to the lowest one
func matchBestFirst(iouMatrix [][]float64, threshold float64) [][2]int {
	priorityQueue := make(iouHeap, 0)
	for i, row := range iouMatrix {
		for j, iouVal := range row {
			if iouVal > threshold {
				priorityQueue.Push(iouPair{track: i, detection: j, iou: iouVal})
			}
		}
	}
	matches := make([][2]int, 0)
	reservedTracks := make(map[int]struct{})
	reservedObservations := make(map[int]struct{})
	for priorityQueue.Len() > 0 {
		pair := priorityQueue.Pop()
		if _, ok := reservedTracks[pair.track]; ok {
			continue
		}
		if _, ok := reservedObservations[pair.detection]; ok {
			continue
		}
		matches = append(matches, [2]int{pair.track, pair.detection})
		reservedTracks[pair.track] = struct{}{}
		reservedObservations[pair.detection] = struct{}{}
	}
	return matches
}

// matchHungarian solves assignment problem: it maximizes number of pairs above threshold first and total IoU of those pairs second.
// Pairs not exceeding threshold are never matched.
func matchHungarian(iouMatrix [][]float64, numObservations int, threshold float64) [][2]int {
	numTracks := len(iouMatrix)
	if numTracks == 0 || numObservations == 0 {
		return [][2]int{}
	}
	// Every valid pair gets bonus bigger than any possible sum of IoU values,
	// so a matching with more pairs always outweighs a matching with fewer ones
	bonus := float64(minInt(numTracks, numObservations) + 1)
	// Rectangular matrix - pad to make it square. Padding and invalid pairs get zero weight
	paddedSize := maxInt(numTracks, numObservations)
	weights := make([][]float64, paddedSize)
	for i := 0; i < paddedSize; i++ {
		weights[i] = make([]float64, paddedSize)
	}
	for i := 0; i < numTracks; i++ {
		for j := 0; j < numObservations; j++ {
			if iouMatrix[i][j] > threshold {
				weights[i][j] = bonus + iouMatrix[i][j]
			}
		}
	}
	rowToCol := solveAssignment(weights)
	matches := make([][2]int, 0)
	for trackIndex := 0; trackIndex < numTracks; trackIndex++ {
		observationIndex := rowToCol[trackIndex]
		if observationIndex < numObservations && iouMatrix[trackIndex][observationIndex] > threshold {
			matches = append(matches, [2]int{trackIndex, observationIndex})
		}
	}
	sort.Slice(matches, func(a, b int) bool {
		return matches[a][1] < matches[b][1]
	})
	return matches
}
