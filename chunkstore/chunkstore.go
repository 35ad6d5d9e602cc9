// Package chunkstore provides a segmented in-memory store for file content.
//
// Content is held in a chain of fixed-size segments instead of one contiguous
// buffer, so that allocating very large content is a sequence of bounded
// requests. A chain is allocated for an exact byte length and freed as a unit;
// it is never grown, shrunk or compacted.
//
// # Layout
//
// A chain for n bytes with segment size S holds n/S full segments followed by
// one remainder segment of n%S bytes when that remainder is non-zero:
//
//	Allocate(12) with S=5:  [5] -> [5] -> [2]
//
// # Misuse
//
// Freeing a chain twice, or reading/writing a freed chain, returns a
// [kfs.ErrStaleHandle] error instead of touching released memory.
//
// A Store is not safe for concurrent use.
package chunkstore

import (
	"fmt"

	"github.com/brettbedarf/kfs"
	"github.com/zeebo/blake3"
)

// DefaultSegmentSize is the maximum size of a single segment (5MB)
const DefaultSegmentSize = 5 * 1024 * 1024

// Config holds configuration for creating a Store.
type Config struct {
	// SegmentSize is the maximum size of a segment in bytes (default: 5MB)
	SegmentSize int

	// MaxBytes caps the total bytes held by live chains; 0 means unlimited
	MaxBytes int
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		SegmentSize: DefaultSegmentSize,
	}
}

// Stats is a snapshot of a store's accounting.
type Stats struct {
	SegmentSize    int
	AllocatedBytes int
	LiveChains     int
}

// Store allocates, frees, reads and writes segment chains.
type Store struct {
	segmentSize int
	maxBytes    int
	allocated   int
	chains      int
}

// New creates a new Store with the given configuration.
// If cfg is nil, default values are used.
func New(cfg *Config) *Store {
	if cfg == nil {
		defaultCfg := DefaultConfig()
		cfg = &defaultCfg
	}

	s := &Store{
		segmentSize: cfg.SegmentSize,
		maxBytes:    cfg.MaxBytes,
	}
	if s.segmentSize <= 0 {
		s.segmentSize = DefaultSegmentSize
	}
	if s.maxBytes < 0 {
		s.maxBytes = 0
	}
	return s
}

// SegmentSize returns the maximum segment size of the store.
func (s *Store) SegmentSize() int {
	return s.segmentSize
}

// Stats returns the current accounting of the store.
func (s *Store) Stats() Stats {
	return Stats{
		SegmentSize:    s.segmentSize,
		AllocatedBytes: s.allocated,
		LiveChains:     s.chains,
	}
}

// Allocate creates a chain able to hold exactly size bytes.
//
// The chain is built completely before it is returned: either every segment is
// linked or nothing is accounted to the store.
func (s *Store) Allocate(size int) (*Chain, error) {
	if size < 0 {
		return nil, kfs.NewInvalidArgumentError(fmt.Sprintf("negative allocation size %d", size))
	}
	if s.maxBytes > 0 && s.allocated+size > s.maxBytes {
		return nil, kfs.NewAllocationFailureError(size, s.maxBytes-s.allocated)
	}

	full := size / s.segmentSize
	rest := size % s.segmentSize

	c := &Chain{store: s, capacity: size}
	var tail *Segment
	link := func(seg *Segment) {
		if tail == nil {
			c.head = seg
		} else {
			tail.next = seg
		}
		tail = seg
		c.segments++
	}
	for range full {
		link(newSegment(s.segmentSize))
	}
	if rest != 0 {
		link(newSegment(rest))
	}

	s.allocated += size
	s.chains++
	return c, nil
}

// Reallocate replaces old with a fresh chain of size bytes. The budget counts
// old's bytes as already returned, but old is only freed once the new chain
// fits: on failure old is left live and untouched.
func (s *Store) Reallocate(old *Chain, size int) (*Chain, error) {
	if err := s.check(old); err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, kfs.NewInvalidArgumentError(fmt.Sprintf("negative allocation size %d", size))
	}
	if avail := s.maxBytes - s.allocated + old.capacity; s.maxBytes > 0 && size > avail {
		return nil, kfs.NewAllocationFailureError(size, avail)
	}
	if err := s.Free(old); err != nil {
		return nil, err
	}
	return s.Allocate(size)
}

// Free releases every segment of the chain. Freeing an already freed chain
// fails with [kfs.ErrStaleHandle] and leaves the store unchanged.
func (s *Store) Free(c *Chain) error {
	if err := s.check(c); err != nil {
		return err
	}

	// unlink segment by segment so nothing stays reachable from a stale head
	seg := c.head
	for seg != nil {
		next := seg.next
		seg.next = nil
		seg.payload = nil
		seg = next
	}
	c.head = nil
	c.freed = true

	s.allocated -= c.capacity
	s.chains--
	return nil
}

// Read copies up to len(buf) bytes from the start of the chain into buf.
// It returns the number of bytes copied, which is less than len(buf) when the
// chain is shorter.
func (s *Store) Read(c *Chain, buf []byte) (int, error) {
	return s.ReadAt(c, 0, buf)
}

// Write copies up to len(data) bytes into the chain starting at its head.
// The chain is never grown: when data exceeds the chain's capacity only the
// capacity's worth of bytes is written and reported.
func (s *Store) Write(c *Chain, data []byte) (int, error) {
	return s.WriteAt(c, 0, data)
}

// ReadAt is like [Store.Read] but starts copying at byte offset off.
func (s *Store) ReadAt(c *Chain, off int, buf []byte) (int, error) {
	if err := s.check(c); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, kfs.NewInvalidArgumentError(fmt.Sprintf("negative offset %d", off))
	}

	copied := 0
	for seg := c.head; seg != nil && copied < len(buf); seg = seg.next {
		if off >= len(seg.payload) {
			off -= len(seg.payload)
			continue
		}
		copied += copy(buf[copied:], seg.payload[off:])
		off = 0
	}
	return copied, nil
}

// WriteAt is like [Store.Write] but starts copying at byte offset off.
func (s *Store) WriteAt(c *Chain, off int, data []byte) (int, error) {
	if err := s.check(c); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, kfs.NewInvalidArgumentError(fmt.Sprintf("negative offset %d", off))
	}

	copied := 0
	for seg := c.head; seg != nil && copied < len(data); seg = seg.next {
		if off >= len(seg.payload) {
			off -= len(seg.payload)
			continue
		}
		copied += copy(seg.payload[off:], data[copied:])
		off = 0
	}
	return copied, nil
}

// Digest returns the BLAKE3-256 digest of the chain's payload.
func (s *Store) Digest(c *Chain) ([]byte, error) {
	if err := s.check(c); err != nil {
		return nil, err
	}

	h := blake3.New()
	for seg := c.head; seg != nil; seg = seg.next {
		// hash.Hash writes never fail
		_, _ = h.Write(seg.payload)
	}
	return h.Sum(nil), nil
}

// check validates that c is a live chain owned by s
func (s *Store) check(c *Chain) error {
	if c == nil {
		return kfs.NewInvalidArgumentError("nil chain")
	}
	if c.store != s {
		return kfs.NewInvalidArgumentError("chain belongs to another store")
	}
	if c.freed {
		return kfs.NewStaleHandleError("chain already freed")
	}
	return nil
}
