package inodecache

// ringIndex is a ring-buffer-ish position that wraps to 0 after
// reaching max. On wrap, max resets to initialMax, deferring the
// physical shrink of any growth performed while the ring was full
// (see extend). Equality and ordering are defined purely on current,
// matching the upstream design: a freshly-wrapped index compares as
// "smaller" than one that is actually further ahead.
type ringIndex struct {
	current    int
	max        int
	initialMax int
}

func newRingIndex(max int) ringIndex {
	return ringIndex{current: 0, max: max, initialMax: max}
}

func (idx *ringIndex) inc() {
	if idx.current != idx.max {
		idx.current++
	} else {
		idx.current = 0
		idx.max = idx.initialMax
	}
}

func (idx *ringIndex) extend(additional int) {
	idx.max += additional
}

func (idx ringIndex) nb() int {
	return idx.current
}

func (idx ringIndex) equal(other ringIndex) bool {
	return idx.current == other.current
}

// isBackClose reports whether idx sits within PAD slots behind other,
// walking forward (with wraparound at idx.max).
func (idx ringIndex) isBackClose(other ringIndex) bool {
	if idx.current > other.current {
		return (idx.max-idx.current+1)+other.current <= pad
	}
	return other.current-idx.current <= pad
}
