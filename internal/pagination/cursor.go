package pagination

import "sync"

// Cursor hands out disjoint page ranges to workers and holds the discovered
// end of the document. It is the only state shared between workers besides
// the result list.
type Cursor struct {
	mu        sync.Mutex
	chunkSize int
	nextStart int
	stopAt    int
	stopSet   bool
}

// NewCursor returns a cursor positioned at page 1.
func NewCursor(chunkSize int) *Cursor {
	if chunkSize < 1 {
		chunkSize = 1
	}
	return &Cursor{chunkSize: chunkSize, nextStart: 1}
}

// Claim reserves the next range. The range end is clamped to the boundary when
// one is known. It returns false once the cursor has moved past the boundary.
func (c *Cursor) Claim() (Range, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopSet && c.nextStart > c.stopAt {
		return Range{}, false
	}
	r := Range{Start: c.nextStart, End: c.nextStart + c.chunkSize - 1}
	c.nextStart += c.chunkSize
	if c.stopSet && r.End > c.stopAt {
		r.End = c.stopAt
	}
	return r, true
}

// ProposeBoundary records candidate as the last page of the document unless a
// boundary is already set. The first proposal wins; later ones are discarded
// even when they are more accurate. It reports whether candidate was accepted.
func (c *Cursor) ProposeBoundary(candidate int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopSet {
		return false
	}
	c.stopAt = candidate
	c.stopSet = true
	return true
}

// Boundary returns the accepted stop page, if any.
func (c *Cursor) Boundary() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopAt, c.stopSet
}
