package catalogue

// Hamming counts positions where fingerprints have different characters.
// Characters past the end of the shorter string count as different.
func Hamming(a, b string) int {
	n := len(a)
	extra := len(b) - len(a)
	if len(b) < n {
		n = len(b)
		extra = len(a) - len(b)
	}
	dist := extra
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			dist++
		}
	}
	return dist
}

// ReferenceThreshold is acceptance threshold for 16x16 hashes
const ReferenceThreshold = 14 * 6.8

// Threshold scales reference acceptance threshold to the fingerprint length of the given hash size
func Threshold(hashSize int) float64 {
	return scaleThreshold(ReferenceThreshold, hashSize)
}

// ResolveThreshold returns acceptance threshold for the given hash size.
// Override is expressed for 16x16 hashes and scaled the same way as the reference one. Zero override means Threshold(hashSize)
func ResolveThreshold(override float64, hashSize int) float64 {
	if override <= 0 {
		return Threshold(hashSize)
	}
	return scaleThreshold(override, hashSize)
}

func scaleThreshold(threshold float64, hashSize int) float64 {
	return threshold * float64(hashSize*hashSize) / 256.0
}
