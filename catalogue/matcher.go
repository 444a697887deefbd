package catalogue

import (
	"github.com/LdDl/tcg-scanner/fingerprint"
)

// MatchResult is the closest catalogue entry when it is within threshold
type MatchResult struct {
	Entry    Entry
	Distance int
	Found    bool
	// Rotated is true when the match came from the fingerprint of the card rotated by 180 degrees
	Rotated bool
}

// Description returns card label or empty string for unidentified result
func (r MatchResult) Description() string {
	if !r.Found {
		return ""
	}
	return r.Entry.Description()
}

// Matcher finds closest catalogue entry to a fingerprint.
// Implementations must never return Found result with distance not strictly below threshold,
// and must prefer the earliest catalogue entry among equally distant ones.
type Matcher interface {
	Match(fp string) MatchResult
}

// LinearMatcher scans the whole catalogue for every query
type LinearMatcher struct {
	catalogue *Catalogue
	threshold float64
}

// NewLinearMatcher creates LinearMatcher
func NewLinearMatcher(c *Catalogue, threshold float64) *LinearMatcher {
	return &LinearMatcher{
		catalogue: c,
		threshold: threshold,
	}
}

// Match implements Matcher
func (m *LinearMatcher) Match(fp string) MatchResult {
	if m.catalogue == nil || m.catalogue.Len() == 0 {
		return MatchResult{}
	}
	best := -1
	bestDist := 0
	for i := range m.catalogue.entries {
		d := Hamming(fp, m.catalogue.entries[i].Hash)
		if best < 0 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	if float64(bestDist) >= m.threshold {
		return MatchResult{}
	}
	return MatchResult{
		Entry:    m.catalogue.entries[best],
		Distance: bestDist,
		Found:    true,
	}
}

// MatchBoth matches both orientations. Lower distance wins and upright one wins ties
func MatchBoth(m Matcher, fp fingerprint.Fingerprint) MatchResult {
	upright := m.Match(fp.Upright)
	rotated := m.Match(fp.Rotated)
	if upright.Found && (!rotated.Found || upright.Distance <= rotated.Distance) {
		return upright
	}
	if rotated.Found {
		rotated.Rotated = true
		return rotated
	}
	return MatchResult{}
}
