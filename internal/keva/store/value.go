package store

import "strconv"

// ValueKind discriminates the two shapes a stored value can take.
type ValueKind uint8

const (
	// KindInt64 is a 64-bit signed integer value, produced by the INCR
	// command family on absent keys.
	KindInt64 ValueKind = iota

	// KindBinary is an owned byte string, produced by SET and APPEND.
	KindBinary
)

// int64ReportedSize is the size reported for integer values. Integer
// entries carry no buffer, so this constant exists purely for size
// accounting.
const int64ReportedSize = 4

// Value is a tagged value: either an int64 or an owned byte string.
//
// The binary variant owns its buffer: constructors and Clone always copy,
// so a Value never aliases caller-owned memory. The zero Value is the
// integer 0.
type Value struct {
	kind ValueKind
	num  int64
	buf  []byte
}

// Int64Value returns an integer value.
func Int64Value(n int64) Value {
	return Value{kind: KindInt64, num: n}
}

// BinaryValue returns a binary value holding a copy of b. A nil b produces
// an empty (non-null) binary value.
func BinaryValue(b []byte) Value {
	buf := make([]byte, len(b))
	copy(buf, b)
	return Value{kind: KindBinary, buf: buf}
}

// Kind returns the value's variant tag.
func (v Value) Kind() ValueKind {
	return v.kind
}

// Int64 returns the integer payload. Only meaningful for KindInt64.
func (v Value) Int64() int64 {
	return v.num
}

// Bytes returns the binary payload. The slice is owned by the value;
// callers must not retain it past the entry borrow they read it through.
func (v Value) Bytes() []byte {
	return v.buf
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	if v.kind == KindBinary {
		return BinaryValue(v.buf)
	}
	return v
}

// LengthInBytes reports the value's size: the buffer length for binary
// values, a fixed constant for integers.
func (v Value) LengthInBytes() int {
	if v.kind == KindBinary {
		return len(v.buf)
	}
	return int64ReportedSize
}

// coerceToBinary rewrites an integer value as its decimal ASCII form.
// Binary values are left untouched. The inverse conversion does not exist.
func (v *Value) coerceToBinary() {
	if v.kind == KindBinary {
		return
	}
	v.buf = strconv.AppendInt(make([]byte, 0, 20), v.num, 10)
	v.kind = KindBinary
	v.num = 0
}

// appendBytes coerces v to binary if necessary and concatenates b.
// It returns the resulting length in bytes.
func (v *Value) appendBytes(b []byte) int {
	v.coerceToBinary()
	v.buf = append(v.buf, b...)
	return len(v.buf)
}

// free releases the value's buffer. Called once the owning entry's
// refcount reaches zero.
func (v *Value) free() {
	v.buf = nil
	v.num = 0
}
