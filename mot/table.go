package mot

import "sort"

// Table is a set of tracks alive after a frame, ordered by identifier.
// It also carries identifier allocator, so identities keep growing monotonically across frames.
// Table is owned by whoever passes it to Manager.Step: once passed, previous table must not be used anymore.
type Table[M any] struct {
	tracks []*Track[M]
	nextID int64
}

// NewTable creates empty table. First allocated identifier is 1
func NewTable[M any]() *Table[M] {
	return &Table[M]{
		tracks: make([]*Track[M], 0),
		nextID: 1,
	}
}

// Len returns number of tracks
func (table *Table[M]) Len() int {
	if table == nil {
		return 0
	}
	return len(table.tracks)
}

// Tracks returns tracks ordered by identifier. Be careful: this is not copy of tracks, but references to them
func (table *Table[M]) Tracks() []*Track[M] {
	if table == nil {
		return nil
	}
	return table.tracks
}

// Get returns track by its identifier
func (table *Table[M]) Get(id int64) (*Track[M], bool) {
	if table == nil {
		return nil, false
	}
	idx := sort.Search(len(table.tracks), func(i int) bool {
		return table.tracks[i].id >= id
	})
	if idx < len(table.tracks) && table.tracks[idx].id == id {
		return table.tracks[idx], true
	}
	return nil, false
}

// NextID returns identifier which will be assigned to the next new track
func (table *Table[M]) NextID() int64 {
	if table == nil {
		return 1
	}
	return table.nextID
}

// Snapshot returns value copies of every track for concurrent readers (e.g. renderer)
func (table *Table[M]) Snapshot() []TrackSnapshot[M] {
	if table == nil {
		return []TrackSnapshot[M]{}
	}
	snaps := make([]TrackSnapshot[M], len(table.tracks))
	for i, t := range table.tracks {
		snaps[i] = t.snapshot()
	}
	return snaps
}

func (table *Table[M]) allocateID() int64 {
	id := table.nextID
	table.nextID++
	return id
}

func (table *Table[M]) sortByID() {
	sort.Slice(table.tracks, func(i, j int) bool {
		return table.tracks[i].id < table.tracks[j].id
	})
}
