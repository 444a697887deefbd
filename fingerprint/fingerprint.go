// Package fingerprint computes orientation-aware perceptual fingerprints of rectified cards.
//
// Fingerprint string is a hex encoded difference hash followed by hex encoded DCT (perception) hash,
// both computed at the same hash size. Each hash has hashSize^2 bits, so the fingerprint has hashSize^2/2 characters.
package fingerprint

import (
	"fmt"
	"image"
	"strings"

	"github.com/corona10/goimagehash"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// DefaultHashSize is hash resolution which the default match threshold is calibrated for
const DefaultHashSize = 16

// ErrHashSize is returned for unsupported hash resolutions
var ErrHashSize = errors.New("hash size must be one of 8, 16, 32")

// Fingerprint is a pair of fingerprints: for the card as is and for the card rotated by 180 degrees
type Fingerprint struct {
	Upright string
	Rotated string
}

// Fingerprinter computes fingerprints at fixed hash size. It is safe for concurrent use
type Fingerprinter struct {
	hashSize int
}

// New creates Fingerprinter. Supported hash sizes are 8, 16 and 32
func New(hashSize int) (*Fingerprinter, error) {
	if !ValidHashSize(hashSize) {
		return nil, errors.Wrapf(ErrHashSize, "got %d", hashSize)
	}
	return &Fingerprinter{hashSize: hashSize}, nil
}

// ValidHashSize checks whether hash size is supported
func ValidHashSize(hashSize int) bool {
	switch hashSize {
	case 8, 16, 32:
		return true
	default:
		return false
	}
}

// Length returns number of characters in fingerprint string for the given hash size
func Length(hashSize int) int {
	return hashSize * hashSize / 2
}

// HashSize returns configured hash resolution
func (f *Fingerprinter) HashSize() int {
	return f.hashSize
}

// Length returns number of characters in produced fingerprint strings
func (f *Fingerprinter) Length() int {
	return Length(f.hashSize)
}

// Hash returns concatenation of difference hash and perception hash of the image
func (f *Fingerprinter) Hash(img image.Image) (string, error) {
	dhash, err := goimagehash.ExtDifferenceHash(img, f.hashSize, f.hashSize)
	if err != nil {
		return "", errors.Wrap(err, "Can't compute difference hash")
	}
	phash, err := goimagehash.ExtPerceptionHash(img, f.hashSize, f.hashSize)
	if err != nil {
		return "", errors.Wrap(err, "Can't compute perception hash")
	}
	var sb strings.Builder
	sb.Grow(f.Length())
	writeHex(&sb, dhash.GetHash())
	writeHex(&sb, phash.GetHash())
	return sb.String(), nil
}

// Compute fingerprints the card in both orientations
func (f *Fingerprinter) Compute(card image.Image) (Fingerprint, error) {
	upright, err := f.Hash(card)
	if err != nil {
		return Fingerprint{}, errors.Wrap(err, "Can't fingerprint upright card")
	}
	rotated, err := f.Hash(imaging.Rotate180(card))
	if err != nil {
		return Fingerprint{}, errors.Wrap(err, "Can't fingerprint rotated card")
	}
	return Fingerprint{Upright: upright, Rotated: rotated}, nil
}

func writeHex(sb *strings.Builder, words []uint64) {
	for _, w := range words {
		fmt.Fprintf(sb, "%016x", w)
	}
}
