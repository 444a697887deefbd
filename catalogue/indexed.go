package catalogue

import (
	"math"
	"math/bits"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Low bit of every nibble in a word
const nibbleMask = 0x1111111111111111

// Catalogues smaller than this are scanned by a single goroutine
const minShardSize = 2048

// IndexedMatcher keeps fingerprints packed as 4-bit nibbles in machine words and counts
// differing characters with popcount. Catalogue is split into shards scanned in parallel,
// candidates are abandoned as soon as they can not beat the best distance of their shard.
// Results are identical to LinearMatcher.
type IndexedMatcher struct {
	catalogue *Catalogue
	threshold float64
	// words per fingerprint
	stride int
	packed []uint64
	shards int
	linear *LinearMatcher
}

// NewIndexedMatcher packs catalogue fingerprints. Non-positive shards means GOMAXPROCS
func NewIndexedMatcher(c *Catalogue, threshold float64, shards int) *IndexedMatcher {
	if shards <= 0 {
		shards = runtime.GOMAXPROCS(0)
	}
	if maxShards := c.Len()/minShardSize + 1; shards > maxShards {
		shards = maxShards
	}
	stride := (c.HashLength() + 15) / 16
	packed := make([]uint64, stride*c.Len())
	for i := range c.entries {
		packHex(c.entries[i].Hash, packed[i*stride:(i+1)*stride])
	}
	return &IndexedMatcher{
		catalogue: c,
		threshold: threshold,
		stride:    stride,
		packed:    packed,
		shards:    shards,
		linear:    NewLinearMatcher(c, threshold),
	}
}

// Match implements Matcher
func (m *IndexedMatcher) Match(fp string) MatchResult {
	if m.catalogue.Len() == 0 {
		return MatchResult{}
	}
	if len(fp) != m.catalogue.HashLength() || !isHex(fp) {
		// Packed comparison only works for fingerprints of the catalogue shape
		return m.linear.Match(fp)
	}
	query := make([]uint64, m.stride)
	packHex(fp, query)

	// Anything at or above this distance is never accepted
	limit := int(math.Ceil(m.threshold))

	type candidate struct {
		idx  int
		dist int
	}
	results := make([]candidate, m.shards)
	n := m.catalogue.Len()
	shardSize := (n + m.shards - 1) / m.shards

	var eg errgroup.Group
	for s := 0; s < m.shards; s++ {
		from := s * shardSize
		to := from + shardSize
		if to > n {
			to = n
		}
		results[s] = candidate{idx: -1}
		if from >= to {
			continue
		}
		s := s
		eg.Go(func() error {
			bestIdx, bestDist := -1, limit
			for i := from; i < to; i++ {
				if d, ok := m.distanceBelow(query, i, bestDist); ok {
					bestIdx, bestDist = i, d
				}
			}
			results[s] = candidate{idx: bestIdx, dist: bestDist}
			return nil
		})
	}
	_ = eg.Wait()

	best := candidate{idx: -1}
	for _, r := range results {
		if r.idx < 0 {
			continue
		}
		if best.idx < 0 || r.dist < best.dist || (r.dist == best.dist && r.idx < best.idx) {
			best = r
		}
	}
	if best.idx < 0 || float64(best.dist) >= m.threshold {
		return MatchResult{}
	}
	return MatchResult{
		Entry:    m.catalogue.entries[best.idx],
		Distance: best.dist,
		Found:    true,
	}
}

// distanceBelow returns distance to entry idx if it is strictly lower than bound
func (m *IndexedMatcher) distanceBelow(query []uint64, idx int, bound int) (int, bool) {
	words := m.packed[idx*m.stride : (idx+1)*m.stride]
	dist := 0
	for w := range words {
		dist += differingNibbles(query[w] ^ words[w])
		if dist >= bound {
			return 0, false
		}
	}
	return dist, true
}

func differingNibbles(x uint64) int {
	x |= x >> 1
	x |= x >> 2
	return bits.OnesCount64(x & nibbleMask)
}

// packHex stores hex string into words, 16 characters per word. Unused tail nibbles stay zero
func packHex(s string, dst []uint64) {
	for i := 0; i < len(s); i++ {
		shift := uint(60 - 4*(i%16))
		dst[i/16] |= uint64(hexValue(s[i])) << shift
	}
}
