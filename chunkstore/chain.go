package chunkstore

// Segment is a single fixed-capacity storage unit within a chain.
type Segment struct {
	payload []byte
	next    *Segment
}

func newSegment(size int) *Segment {
	return &Segment{payload: make([]byte, size)}
}

// Size returns the number of bytes held by the segment.
func (seg *Segment) Size() int {
	return len(seg.payload)
}

// Next returns the following segment or nil at the end of the chain.
func (seg *Segment) Next() *Segment {
	return seg.next
}

// Chain is an owned, singly-linked sequence of segments backing the content of
// one file. Its capacity is fixed at allocation.
type Chain struct {
	head     *Segment
	capacity int
	segments int
	freed    bool
	store    *Store
}

// Head returns the first segment or nil for an empty or freed chain.
func (c *Chain) Head() *Segment {
	return c.head
}

// Capacity returns the total number of bytes the chain can hold.
func (c *Chain) Capacity() int {
	return c.capacity
}

// Len returns the number of segments in the chain.
func (c *Chain) Len() int {
	return c.segments
}

// Freed reports whether the chain has been released.
func (c *Chain) Freed() bool {
	return c.freed
}

// Release frees the chain through the store that allocated it.
func (c *Chain) Release() error {
	if c == nil || c.store == nil {
		return nil
	}
	return c.store.Free(c)
}
