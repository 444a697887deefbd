// Package catalogue holds the read-only reference table of known cards and matches fingerprints against it.
package catalogue

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrEmpty is returned when no entry with usable fingerprint is left after filtering
var ErrEmpty = errors.New("catalogue has no entries with usable fingerprint")

// Entry is one reference card
type Entry struct {
	ID      string `db:"id" json:"id"`
	LocalID string `db:"local_id" json:"local_id"`
	SetID   string `db:"set_id" json:"set_id"`
	SetName string `db:"set_name" json:"set_name"`
	Name    string `db:"name" json:"name"`
	Hash    string `db:"hash" json:"hash"`
}

// Description is human readable card label: name, set name and index within the set
func (e Entry) Description() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{e.Name, e.SetName, e.LocalID} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Catalogue is immutable set of entries having fingerprints of the same length.
// It is safe for concurrent reads.
type Catalogue struct {
	entries    []Entry
	hashLength int
}

// New filters out entries without usable fingerprint and builds catalogue.
// Fingerprint is usable when it is non-empty hex string of hashLength characters.
// When hashLength is not positive, it is taken from the first non-empty hex fingerprint.
// Returns number of dropped entries.
func New(entries []Entry, hashLength int) (*Catalogue, int, error) {
	if hashLength <= 0 {
		for _, e := range entries {
			h := normalizeHash(e.Hash)
			if h != "" && isHex(h) {
				hashLength = len(h)
				break
			}
		}
	}
	kept := make([]Entry, 0, len(entries))
	dropped := 0
	for _, e := range entries {
		e.Hash = normalizeHash(e.Hash)
		if len(e.Hash) == 0 || len(e.Hash) != hashLength || !isHex(e.Hash) {
			dropped++
			continue
		}
		kept = append(kept, e)
	}
	if len(kept) == 0 {
		return nil, dropped, ErrEmpty
	}
	return &Catalogue{entries: kept, hashLength: hashLength}, dropped, nil
}

// Len returns number of entries
func (c *Catalogue) Len() int {
	return len(c.entries)
}

// HashLength returns length of every fingerprint in the catalogue
func (c *Catalogue) HashLength() int {
	return c.hashLength
}

// Entries returns copy of entries in catalogue order
func (c *Catalogue) Entries() []Entry {
	cp := make([]Entry, len(c.entries))
	copy(cp, c.entries)
	return cp
}

// Entry returns entry by its position
func (c *Catalogue) Entry(idx int) Entry {
	return c.entries[idx]
}

func normalizeHash(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

// isHex accepts lowercase hex digits only
func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		if hexValue(s[i]) < 0 {
			return false
		}
	}
	return true
}

func hexValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	default:
		return -1
	}
}
