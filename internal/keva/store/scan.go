package store

// Scan cursor layout: a 48-bit value packed into a uint64.
//
//	bits 32..47  segment index
//	bits  0..31  offset into the segment's key order
//
// Cursor 0 starts at the first segment, first offset; a returned cursor of
// 0 means the iteration is complete. Clients treat cursors as opaque.
const (
	cursorSegmentShift = 32
	cursorSegmentMask  = 0xFFFF
	cursorOffsetMask   = 0xFFFFFFFF
)

func packCursor(segment int, offset uint32) uint64 {
	return uint64(segment&cursorSegmentMask)<<cursorSegmentShift | uint64(offset)
}

func unpackCursor(cursor uint64) (segment int, offset uint32) {
	return int(cursor >> cursorSegmentShift & cursorSegmentMask), uint32(cursor & cursorOffsetMask)
}

// Scan walks the store starting at the position encoded in cursor and
// produces at most count keys, returning copies of the ones accepted by
// match along with the cursor to resume from (0 when the walk is done).
//
// One call walks at most one segment: the segment is traversed in sorted
// key order under its exclusive lock, and the walk pauses either when
// count keys have been produced or when the segment is exhausted. The lock
// is released before returning, so no lock spans two calls.
//
// Keys inserted or deleted between calls may be returned more than once or
// missed entirely; the iteration itself always terminates because the
// cursor advances monotonically through segments.
func (s *Store) Scan(cursor uint64, count int, match func(key []byte) bool) ([][]byte, uint64) {
	if count <= 0 {
		count = 1
	}

	segment, offset := unpackCursor(cursor)
	if segment >= len(s.segments) {
		return nil, 0
	}

	seg := s.segments[segment]
	seg.mu.Lock()
	keys := seg.sortedKeys()

	var out [][]byte
	produced := 0
	for int(offset) < len(keys) && produced < count {
		k := keys[offset]
		offset++
		produced++
		if match == nil || match([]byte(k)) {
			out = append(out, []byte(k))
		}
	}
	exhausted := int(offset) >= len(keys)
	seg.mu.Unlock()

	if !exhausted {
		return out, packCursor(segment, offset)
	}
	if segment+1 >= len(s.segments) {
		return out, 0
	}
	return out, packCursor(segment+1, 0)
}
