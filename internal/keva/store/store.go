// Package store implements the segmented in-memory key-value store.
//
// The store partitions keys across a fixed array of segments, each with its
// own reader-writer lock and map. Two concurrent operations on different
// keys typically hit different segments and proceed in parallel; there is
// no global lock. Keys are routed with xxhash, a fast non-cryptographic
// 64-bit hash, masked down to the segment count (a power of two).
//
// Values are held through reference-counted entries (see Entry). The map
// owns one reference per key; Get hands out an extra reference that the
// caller must release. This keeps a value alive for a reader even while a
// concurrent writer deletes or replaces the key.
//
// Locks are held only long enough to touch the map and adjust refcounts.
// Producing replies from a value happens after the segment lock is
// released.
package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultSegmentCount is the segment count used when the host does not
// configure one.
const DefaultSegmentCount = 16

// MaxSegmentCount bounds the segment count to what the scan cursor can
// address (16 bits of segment index).
const MaxSegmentCount = 1 << 16

// Segment is one shard of the store: an independent lock and key map.
// Keys are owned copies; the caller's buffer is never retained.
type Segment struct {
	id      int
	mu      sync.RWMutex
	entries map[string]*Entry
}

// Store routes keys to segments and exposes the key-value operations the
// command handlers build on.
type Store struct {
	segments []*Segment
	mask     uint64
}

// New creates a store with the given number of segments. The count must be
// a power of two between 1 and MaxSegmentCount.
func New(segments int) (*Store, error) {
	if segments <= 0 || segments > MaxSegmentCount || segments&(segments-1) != 0 {
		return nil, fmt.Errorf("store: segment count %d is not a power of two in [1, %d]", segments, MaxSegmentCount)
	}

	s := &Store{
		segments: make([]*Segment, segments),
		mask:     uint64(segments - 1),
	}
	for i := range s.segments {
		s.segments[i] = &Segment{
			id:      i,
			entries: make(map[string]*Entry),
		}
	}
	return s, nil
}

// SegmentCount returns the number of segments.
func (s *Store) SegmentCount() int {
	return len(s.segments)
}

func (s *Store) segmentFor(key []byte) *Segment {
	return s.segments[xxhash.Sum64(key)&s.mask]
}

// Get looks the key up and returns a borrow of its entry. The borrow is
// taken under the segment's shared lock and must be released by the
// caller; failing to release it leaks the entry.
func (s *Store) Get(key []byte) (Borrow, bool) {
	seg := s.segmentFor(key)
	seg.mu.RLock()
	e, ok := seg.entries[string(key)]
	if !ok {
		seg.mu.RUnlock()
		return Borrow{}, false
	}
	b := e.Borrow()
	seg.mu.RUnlock()
	return b, true
}

// Put inserts a new entry holding a deep copy of v under an owned copy of
// key. A previous entry under the same key loses the map's reference; it
// is freed once any outstanding borrows release it.
func (s *Store) Put(key []byte, v Value) {
	e := NewEntry(v)
	owned := string(key)

	seg := s.segmentFor(key)
	seg.mu.Lock()
	prev := seg.entries[owned]
	seg.entries[owned] = e
	seg.mu.Unlock()

	if prev != nil {
		prev.release()
	}
}

// Del removes the key and releases the map's reference. Concurrent borrows
// keep the entry's value alive until they release.
func (s *Store) Del(key []byte) bool {
	seg := s.segmentFor(key)
	seg.mu.Lock()
	e, ok := seg.entries[string(key)]
	if ok {
		delete(seg.entries, string(key))
	}
	seg.mu.Unlock()

	if ok {
		e.release()
	}
	return ok
}

// Upsert returns a borrow of the entry for key, creating it from init when
// the key is absent. The second result reports whether the entry was
// created. Lookup, insertion, and the borrow happen under one exclusive
// segment lock, so read-modify-write command paths (APPEND, INCR) observe
// a single atomic insert.
func (s *Store) Upsert(key []byte, init func() Value) (Borrow, bool) {
	seg := s.segmentFor(key)
	seg.mu.Lock()
	e, ok := seg.entries[string(key)]
	if !ok {
		e = NewEntry(init())
		seg.entries[string(key)] = e
	}
	b := e.Borrow()
	seg.mu.Unlock()
	return b, !ok
}

// Len returns the total number of keys across all segments.
func (s *Store) Len() int {
	n := 0
	for _, seg := range s.segments {
		seg.mu.RLock()
		n += len(seg.entries)
		seg.mu.RUnlock()
	}
	return n
}

// sortedKeys returns the segment's keys in their scan order. Must be
// called with the segment lock held.
func (seg *Segment) sortedKeys() []string {
	keys := make([]string, 0, len(seg.entries))
	for k := range seg.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
