package mot

import (
	"math"
	"math/rand"
	"testing"
)

type testMatch struct {
	name string
}

func obsFromRect(rect Rectangle) Observation {
	x1, y1, x2, y2 := rect.Corners()
	return Observation{
		BBox:    rect,
		Polygon: Polygon{{X: x1, Y: y1}, {X: x2, Y: y1}, {X: x2, Y: y2}, {X: x1, Y: y2}},
	}
}

func TestNewManager(t *testing.T) {
	manager := NewManager[testMatch](0.3, 10, AssociationGreedy, true)
	if manager.iouThreshold != 0.3 {
		t.Errorf("Expected iouThreshold 0.3, got %f", manager.iouThreshold)
	}
	if manager.maxNoMatch != 10 {
		t.Errorf("Expected maxNoMatch 10, got %d", manager.maxNoMatch)
	}
	if manager.algorithm != AssociationGreedy {
		t.Errorf("Expected greedy algorithm, got %s", manager.algorithm)
	}
	if !manager.retryUnidentified {
		t.Error("Expected retryUnidentified to be enabled")
	}

	defaultManager := NewDefaultManager[testMatch]()
	if defaultManager.iouThreshold != 0.5 || defaultManager.maxNoMatch != 5 || defaultManager.algorithm != AssociationHungarian {
		t.Errorf("Unexpected default manager: %+v", defaultManager)
	}
}

func TestManagerReusesIdentity(t *testing.T) {
	manager := NewDefaultManager[testMatch]()

	table, assignments, err := manager.Step(nil, []Observation{obsFromRect(NewRect(100, 100, 200, 280))})
	if err != nil {
		t.Fatalf("Frame 1 failed: %v", err)
	}
	if table.Len() != 1 {
		t.Fatalf("Expected 1 track after frame 1, got %d", table.Len())
	}
	if assignments[0].Status != AssignmentNew {
		t.Errorf("Expected new assignment, got %s", assignments[0].Status)
	}
	firstID := assignments[0].TrackID

	// Slightly moved card
	table, assignments, err = manager.Step(table, []Observation{obsFromRect(NewRect(104, 98, 200, 282))})
	if err != nil {
		t.Fatalf("Frame 2 failed: %v", err)
	}
	if table.Len() != 1 {
		t.Fatalf("Expected 1 track after frame 2, got %d", table.Len())
	}
	if assignments[0].TrackID != firstID {
		t.Errorf("Expected identity %d to be reused, got %d", firstID, assignments[0].TrackID)
	}
	if assignments[0].Status != AssignmentContinuing {
		t.Errorf("Expected continuing assignment, got %s", assignments[0].Status)
	}
	trk, ok := table.Get(firstID)
	if !ok {
		t.Fatalf("Track %d should be in the table", firstID)
	}
	if trk.GetBBox() != NewRect(104, 98, 200, 282) {
		t.Errorf("Track box should be refreshed, got %v", trk.GetBBox())
	}
	if trk.GetHits() != 2 {
		t.Errorf("Expected 2 hits, got %d", trk.GetHits())
	}
	if len(trk.GetTrack()) != 2 {
		t.Errorf("Expected 2 centers in history, got %d", len(trk.GetTrack()))
	}
}

func TestManagerFreshIdentity(t *testing.T) {
	manager := NewManager[testMatch](0.5, 5, AssociationHungarian, false)

	table, assignments, err := manager.Step(nil, []Observation{obsFromRect(NewRect(0, 0, 100, 140))})
	if err != nil {
		t.Fatalf("Frame 1 failed: %v", err)
	}
	firstID := assignments[0].TrackID

	// Far away card: IoU is zero against every track
	table, assignments, err = manager.Step(table, []Observation{obsFromRect(NewRect(400, 300, 100, 140))})
	if err != nil {
		t.Fatalf("Frame 2 failed: %v", err)
	}
	if assignments[0].Status != AssignmentNew {
		t.Errorf("Expected new assignment, got %s", assignments[0].Status)
	}
	if assignments[0].TrackID <= firstID {
		t.Errorf("Expected fresh identity greater than %d, got %d", firstID, assignments[0].TrackID)
	}
	// First card is kept as stale while inside grace period
	if table.Len() != 2 {
		t.Fatalf("Expected 2 tracks, got %d", table.Len())
	}
	stale, ok := table.Get(firstID)
	if !ok {
		t.Fatalf("Track %d should be kept", firstID)
	}
	if stale.GetState() != TrackStale {
		t.Errorf("Expected stale state, got %s", stale.GetState())
	}
	if stale.GetNoMatchTimes() != 1 {
		t.Errorf("Expected NoMatchTimes 1, got %d", stale.GetNoMatchTimes())
	}
}

func TestManagerDropsOnFirstMissWithoutGrace(t *testing.T) {
	manager := NewManager[testMatch](0.5, 0, AssociationGreedy, false)

	table, _, err := manager.Step(nil, []Observation{obsFromRect(NewRect(0, 0, 100, 140))})
	if err != nil {
		t.Fatalf("Frame 1 failed: %v", err)
	}
	table, _, err = manager.Step(table, []Observation{})
	if err != nil {
		t.Fatalf("Frame 2 failed: %v", err)
	}
	if table.Len() != 0 {
		t.Errorf("Expected track to be dropped, got %d tracks", table.Len())
	}

	// Identities are never reused
	table, assignments, err := manager.Step(table, []Observation{obsFromRect(NewRect(0, 0, 100, 140))})
	if err != nil {
		t.Fatalf("Frame 3 failed: %v", err)
	}
	if assignments[0].TrackID != 2 {
		t.Errorf("Expected identity 2, got %d", assignments[0].TrackID)
	}
	if table.NextID() != 3 {
		t.Errorf("Expected next identity 3, got %d", table.NextID())
	}
}

func TestManagerGracePeriod(t *testing.T) {
	manager := NewManager[testMatch](0.5, 2, AssociationHungarian, false)
	card := obsFromRect(NewRect(50, 50, 120, 170))

	table, assignments, err := manager.Step(nil, []Observation{card})
	if err != nil {
		t.Fatalf("Frame 1 failed: %v", err)
	}
	id := assignments[0].TrackID
	trk, _ := table.Get(id)
	trk.SetMatch(testMatch{name: "Pikachu"})

	// Two occluded frames
	for i := 0; i < 2; i++ {
		table, _, err = manager.Step(table, nil)
		if err != nil {
			t.Fatalf("Occluded frame %d failed: %v", i, err)
		}
		if table.Len() != 1 {
			t.Fatalf("Expected track to survive occluded frame %d", i)
		}
	}

	// Card is back: identity and match are preserved
	table, assignments, err = manager.Step(table, []Observation{card})
	if err != nil {
		t.Fatalf("Frame 4 failed: %v", err)
	}
	if assignments[0].TrackID != id {
		t.Errorf("Expected identity %d after occlusion, got %d", id, assignments[0].TrackID)
	}
	if assignments[0].Status != AssignmentContinuing {
		t.Errorf("Expected continuing assignment, got %s", assignments[0].Status)
	}
	trk, _ = table.Get(id)
	if trk.GetState() != TrackConfirmed {
		t.Errorf("Expected confirmed state, got %s", trk.GetState())
	}
	if trk.GetMatch() == nil || trk.GetMatch().name != "Pikachu" {
		t.Errorf("Match should survive occlusion, got %v", trk.GetMatch())
	}

	// Three missed frames evict it
	for i := 0; i < 3; i++ {
		table, _, err = manager.Step(table, nil)
		if err != nil {
			t.Fatalf("Missed frame %d failed: %v", i, err)
		}
	}
	if table.Len() != 0 {
		t.Errorf("Expected track to be evicted, got %d tracks", table.Len())
	}
}

func TestManagerRetryUnidentified(t *testing.T) {
	manager := NewManager[testMatch](0.5, 5, AssociationHungarian, true)
	card := obsFromRect(NewRect(10, 10, 100, 140))

	table, _, err := manager.Step(nil, []Observation{card})
	if err != nil {
		t.Fatalf("Frame 1 failed: %v", err)
	}
	table, assignments, err := manager.Step(table, []Observation{card})
	if err != nil {
		t.Fatalf("Frame 2 failed: %v", err)
	}
	if assignments[0].Status != AssignmentRetry {
		t.Errorf("Expected retry assignment for unidentified track, got %s", assignments[0].Status)
	}
	if !assignments[0].Status.NeedsIdentification() {
		t.Error("Retry assignment should need identification")
	}

	trk, _ := table.Get(assignments[0].TrackID)
	trk.SetMatch(testMatch{name: "Charmander"})

	_, assignments, err = manager.Step(table, []Observation{card})
	if err != nil {
		t.Fatalf("Frame 3 failed: %v", err)
	}
	if assignments[0].Status != AssignmentContinuing {
		t.Errorf("Expected continuing assignment for identified track, got %s", assignments[0].Status)
	}
}

func TestManagerAssociationAlgorithms(t *testing.T) {
	boxOne := NewRect(0, 0, 10, 10)
	boxTwo := NewRect(3, 0, 10, 10)

	cases := []struct {
		algorithm AssociationAlgorithm
		expected  [2]int64
	}{
		// Greedy takes the first track above threshold for the first observation and swaps identities
		{AssociationGreedy, [2]int64{1, 2}},
		{AssociationBestFirst, [2]int64{2, 1}},
		{AssociationHungarian, [2]int64{2, 1}},
	}
	for _, tc := range cases {
		manager := NewManager[testMatch](0.5, 5, tc.algorithm, false)
		table, _, err := manager.Step(nil, []Observation{obsFromRect(boxOne), obsFromRect(boxTwo)})
		if err != nil {
			t.Fatalf("[%s] Frame 1 failed: %v", tc.algorithm, err)
		}
		// Observations come in reverse order
		_, assignments, err := manager.Step(table, []Observation{obsFromRect(boxTwo), obsFromRect(boxOne)})
		if err != nil {
			t.Fatalf("[%s] Frame 2 failed: %v", tc.algorithm, err)
		}
		for i := range assignments {
			if assignments[i].TrackID != tc.expected[i] {
				t.Errorf("[%s] Observation %d: expected track %d, got %d", tc.algorithm, i, tc.expected[i], assignments[i].TrackID)
			}
			if assignments[i].Status != AssignmentContinuing {
				t.Errorf("[%s] Observation %d: expected continuing, got %s", tc.algorithm, i, assignments[i].Status)
			}
		}
	}
}

func TestManagerTrackIsNotClaimedTwice(t *testing.T) {
	manager := NewManager[testMatch](0.5, 5, AssociationGreedy, false)
	table, _, err := manager.Step(nil, []Observation{obsFromRect(NewRect(0, 0, 100, 100))})
	if err != nil {
		t.Fatalf("Frame 1 failed: %v", err)
	}
	_, assignments, err := manager.Step(table, []Observation{
		obsFromRect(NewRect(0, 0, 100, 100)),
		obsFromRect(NewRect(2, 2, 100, 100)),
	})
	if err != nil {
		t.Fatalf("Frame 2 failed: %v", err)
	}
	if assignments[0].Status != AssignmentContinuing || assignments[0].TrackID != 1 {
		t.Errorf("First observation should continue track 1, got %+v", assignments[0])
	}
	if assignments[1].Status != AssignmentNew || assignments[1].TrackID != 2 {
		t.Errorf("Second observation should start track 2, got %+v", assignments[1])
	}
}

// bestAssignment enumerates every matching of pairs above threshold.
// Returns the highest number of pairs and the highest total IoU among matchings with that number of pairs
func bestAssignment(iouMatrix [][]float64, numObservations int, threshold float64) (int, float64) {
	usedObservations := make([]bool, numObservations)
	var walk func(row int) (int, float64)
	walk = func(row int) (int, float64) {
		if row == len(iouMatrix) {
			return 0, 0
		}
		bestCount, bestSum := walk(row + 1)
		for j := 0; j < numObservations; j++ {
			if usedObservations[j] || iouMatrix[row][j] <= threshold {
				continue
			}
			usedObservations[j] = true
			count, sum := walk(row + 1)
			usedObservations[j] = false
			count++
			sum += iouMatrix[row][j]
			if count > bestCount || (count == bestCount && sum > bestSum) {
				bestCount, bestSum = count, sum
			}
		}
		return bestCount, bestSum
	}
	return walk(0)
}

func TestMatchHungarianIsOptimal(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	threshold := 0.3
	for iter := 0; iter < 3000; iter++ {
		numTracks := 1 + rng.Intn(5)
		numObservations := 1 + rng.Intn(5)
		iouMatrix := make([][]float64, numTracks)
		for i := range iouMatrix {
			iouMatrix[i] = make([]float64, numObservations)
			for j := range iouMatrix[i] {
				if rng.Float64() < 0.3 {
					continue
				}
				iouMatrix[i][j] = rng.Float64()
			}
		}
		matches := matchHungarian(iouMatrix, numObservations, threshold)
		usedTracks := make(map[int]struct{})
		usedObservations := make(map[int]struct{})
		sum := 0.0
		for _, m := range matches {
			if iouMatrix[m[0]][m[1]] <= threshold {
				t.Fatalf("Iteration %d: pair %v is not above threshold in %v", iter, m, iouMatrix)
			}
			if _, ok := usedTracks[m[0]]; ok {
				t.Fatalf("Iteration %d: track %d matched twice in %v", iter, m[0], iouMatrix)
			}
			if _, ok := usedObservations[m[1]]; ok {
				t.Fatalf("Iteration %d: observation %d matched twice in %v", iter, m[1], iouMatrix)
			}
			usedTracks[m[0]] = struct{}{}
			usedObservations[m[1]] = struct{}{}
			sum += iouMatrix[m[0]][m[1]]
		}
		bestCount, bestSum := bestAssignment(iouMatrix, numObservations, threshold)
		if len(matches) != bestCount {
			t.Fatalf("Iteration %d: expected %d pairs, got %d (%v) in %v", iter, bestCount, len(matches), matches, iouMatrix)
		}
		if math.Abs(sum-bestSum) > 1e-9 {
			t.Fatalf("Iteration %d: expected total IoU %f, got %f (%v) in %v", iter, bestSum, sum, matches, iouMatrix)
		}
	}
}

func TestMatchHungarianKeepsEveryPossiblePair(t *testing.T) {
	iouMatrix := [][]float64{
		{0.826, 0.21, 0},
		{0.547, 0.925, 0},
		{0, 0.911, 0},
	}
	matches := matchHungarian(iouMatrix, 3, 0.5)
	expected := [][2]int{{0, 0}, {1, 1}}
	if len(matches) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, matches)
	}
	for i := range expected {
		if matches[i] != expected[i] {
			t.Errorf("Expected %v, got %v", expected, matches)
			break
		}
	}
}

func TestManagerHungarianReusesEveryIdentity(t *testing.T) {
	manager := NewDefaultManager[testMatch]()
	table, _, err := manager.Step(nil, []Observation{
		obsFromRect(NewRect(28, 8, 100, 139)),
		obsFromRect(NewRect(6, 2, 100, 139)),
		obsFromRect(NewRect(11, 35, 100, 139)),
	})
	if err != nil {
		t.Fatalf("Frame 1 failed: %v", err)
	}
	_, assignments, err := manager.Step(table, []Observation{
		obsFromRect(NewRect(32, 31, 100, 139)),
		obsFromRect(NewRect(24, 9, 100, 139)),
	})
	if err != nil {
		t.Fatalf("Frame 2 failed: %v", err)
	}
	// Both observations overlap free tracks above threshold, optimal pairing is 0->3 and 1->1
	expected := []int64{3, 1}
	for i, a := range assignments {
		if a.Status != AssignmentContinuing {
			t.Errorf("Observation %d: expected continuing, got %s", i, a.Status)
		}
		if a.TrackID != expected[i] {
			t.Errorf("Observation %d: expected track %d, got %d", i, expected[i], a.TrackID)
		}
	}
}

func TestTableSnapshot(t *testing.T) {
	manager := NewDefaultManager[testMatch]()
	table, assignments, err := manager.Step(nil, []Observation{obsFromRect(NewRect(0, 0, 50, 70))})
	if err != nil {
		t.Fatalf("Frame 1 failed: %v", err)
	}
	trk, _ := table.Get(assignments[0].TrackID)
	trk.SetMatch(testMatch{name: "Bulbasaur"})

	snaps := table.Snapshot()
	if len(snaps) != 1 {
		t.Fatalf("Expected 1 snapshot, got %d", len(snaps))
	}
	if snaps[0].State != TrackConfirmed {
		t.Errorf("Expected confirmed snapshot, got %s", snaps[0].State)
	}
	snaps[0].Polygon[0].X = 999
	snaps[0].Match.name = "changed"
	if trk.GetPolygon()[0].X == 999 {
		t.Error("Snapshot polygon should be a copy")
	}
	if trk.GetMatch().name != "Bulbasaur" {
		t.Error("Snapshot match should be a copy")
	}
}

func TestParseAssociationAlgorithm(t *testing.T) {
	for _, algorithm := range []AssociationAlgorithm{AssociationHungarian, AssociationBestFirst, AssociationGreedy} {
		parsed, ok := ParseAssociationAlgorithm(algorithm.String())
		if !ok || parsed != algorithm {
			t.Errorf("Can't parse %s back, got %s", algorithm, parsed)
		}
	}
	if _, ok := ParseAssociationAlgorithm("kalman"); ok {
		t.Error("Unknown algorithm should not be parsed")
	}
}
