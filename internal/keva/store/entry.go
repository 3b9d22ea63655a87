package store

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
)

var (
	// ErrNotInteger is returned when the INCR command family targets a
	// binary value. The message is the exact wire reply.
	ErrNotInteger = errors.New("cannot perform incr or decr operation on non-integer value")

	// ErrOverflow is returned when an increment would leave the int64
	// range. The message is the exact wire reply.
	ErrOverflow = errors.New("operation resulted in integer overflow")
)

// Entry owns one Value, a reader-writer lock serializing access to it, and
// a reference count.
//
// An entry is created with refcount 1 (the store's reference). Every
// Borrow adds a reference; every Release drops one. The value is freed
// only when the count reaches zero, so a borrowed entry always reads a
// live value even after the key has been deleted or overwritten in the
// map. All mutations go through the write side of the lock; reads take the
// shared side.
type Entry struct {
	mu   sync.RWMutex
	refs atomic.Int64
	val  Value
}

// NewEntry creates an entry holding a deep copy of v, with refcount 1.
func NewEntry(v Value) *Entry {
	e := &Entry{val: v.Clone()}
	e.refs.Store(1)
	return e
}

// Borrow takes an additional reference on the entry. The returned handle
// must be released exactly once.
func (e *Entry) Borrow() Borrow {
	e.retain()
	return Borrow{entry: e, acquired: true}
}

func (e *Entry) retain() {
	e.refs.Add(1)
}

func (e *Entry) release() {
	n := e.refs.Add(-1)
	switch {
	case n == 0:
		e.mu.Lock()
		e.val.free()
		e.mu.Unlock()
	case n < 0:
		panic("store: entry released more times than it was retained")
	}
}

// refCount returns the current reference count. Test hook.
func (e *Entry) refCount() int64 {
	return e.refs.Load()
}

// Set replaces the entry's value with a deep copy of v.
func (e *Entry) Set(v Value) {
	clone := v.Clone()
	e.mu.Lock()
	e.val = clone
	e.mu.Unlock()
}

// Append coerces the value to binary if necessary and concatenates b,
// returning the new length in bytes.
func (e *Entry) Append(b []byte) int {
	e.mu.Lock()
	n := e.val.appendBytes(b)
	e.mu.Unlock()
	return n
}

// IncrBy adds delta to an integer value and returns the result.
// Binary values yield ErrNotInteger; results outside the int64 range
// yield ErrOverflow and leave the value unchanged.
func (e *Entry) IncrBy(delta int64) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.val.Kind() != KindInt64 {
		return 0, ErrNotInteger
	}

	cur := e.val.Int64()
	if (delta > 0 && cur > math.MaxInt64-delta) ||
		(delta < 0 && cur < math.MinInt64-delta) {
		return 0, ErrOverflow
	}

	e.val.num = cur + delta
	return e.val.num, nil
}

// Value returns a deep copy of the current value, taken under the shared
// lock. Callers use the copy to produce replies after all locks are
// released.
func (e *Entry) Value() Value {
	e.mu.RLock()
	v := e.val.Clone()
	e.mu.RUnlock()
	return v
}

// View runs fn with a read-locked view of the value. fn must not retain
// the value or block on IO.
func (e *Entry) View(fn func(v Value)) {
	e.mu.RLock()
	fn(e.val)
	e.mu.RUnlock()
}

// Borrow is a counted reference to an Entry. The zero Borrow is inert:
// Release on it is a no-op, which lets callers unconditionally defer it.
type Borrow struct {
	entry    *Entry
	acquired bool
}

// Release drops the reference. Releasing twice is a no-op on the handle,
// so a borrow cannot be double-counted by accident.
func (b *Borrow) Release() {
	if !b.acquired {
		return
	}
	b.acquired = false
	b.entry.release()
}

// Entry returns the borrowed entry.
func (b Borrow) Entry() *Entry {
	return b.entry
}

// Value returns a deep copy of the borrowed entry's value.
func (b Borrow) Value() Value {
	return b.entry.Value()
}

// Set forwards to Entry.Set.
func (b Borrow) Set(v Value) {
	b.entry.Set(v)
}

// Append forwards to Entry.Append.
func (b Borrow) Append(data []byte) int {
	return b.entry.Append(data)
}

// IncrBy forwards to Entry.IncrBy.
func (b Borrow) IncrBy(delta int64) (int64, error) {
	return b.entry.IncrBy(delta)
}
