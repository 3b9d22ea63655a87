package resp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReader(input string) *Reader {
	return NewReader(strings.NewReader(input))
}

func TestReadTypePrefix(t *testing.T) {
	tests := []struct {
		input string
		want  Kind
	}{
		{"+OK\r\n", KindSimpleString},
		{"-ERR\r\n", KindError},
		{":1\r\n", KindInteger},
		{"$3\r\n", KindBulkString},
		{"*2\r\n", KindArray},
	}
	for _, tt := range tests {
		r := newTestReader(tt.input)
		k, err := r.ReadTypePrefix()
		require.NoError(t, err)
		assert.Equal(t, tt.want, k)
	}

	r := newTestReader("?bogus\r\n")
	_, err := r.ReadTypePrefix()
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestReadString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []byte
		wantNil bool
	}{
		{"simple string", "+hello\r\n", []byte("hello"), false},
		{"empty simple string", "+\r\n", []byte{}, false},
		{"bulk string", "$5\r\nhello\r\n", []byte("hello"), false},
		{"empty bulk string", "$0\r\n\r\n", []byte{}, false},
		{"null bulk string", "$-1\r\n", nil, true},
		{"binary bulk string", "$3\r\na\r0\r\n", []byte("a\r0"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestReader(tt.input)
			got, err := r.ReadString()
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, got)
			} else {
				require.NotNil(t, got)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestReadStringErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		sentinel error
	}{
		{"error value rejected", "-ERR boom\r\n", ErrProtocol},
		{"integer rejected", ":5\r\n", ErrProtocol},
		{"array rejected", "*1\r\n", ErrProtocol},
		{"bulk missing CRLF", "$5\r\nhelloXX", ErrProtocol},
		{"bulk short body", "$5\r\nhel", ErrProtocol},
		{"LF without CR in simple", "+oops\n", ErrProtocol},
		{"bare LF after bulk length", "$3\nabc\r\n", ErrProtocol},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestReader(tt.input)
			_, err := r.ReadString()
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestReadStringSimpleOverflowKeepsFraming(t *testing.T) {
	long := strings.Repeat("a", 1025)
	r := newTestReader("+" + long + "\r\n+PONG\r\n")

	_, err := r.ReadString()
	require.ErrorIs(t, err, ErrInvalidValue)

	// The overflowing line was drained; the stream is still framed.
	got, err := r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, []byte("PONG"), got)
}

func TestSetMaxSimpleStringLength(t *testing.T) {
	r := newTestReader("+abcdef\r\n")
	r.SetMaxSimpleStringLength(3)

	_, err := r.ReadString()
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestReadI64(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{":0\r\n", 0},
		{":1\r\n", 1},
		{":-1\r\n", -1},
		{":+42\r\n", 42},
		{":123456789012345678\r\n", 123456789012345678},
		{":-123456789012345678\r\n", -123456789012345678},
	}
	for _, tt := range tests {
		r := newTestReader(tt.input)
		got, err := r.ReadI64()
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
	}
}

func TestReadI64Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		sentinel error
	}{
		{"nineteen digits", ":1234567890123456789\r\n", ErrInvalidValue},
		{"non-digit", ":12x4\r\n", ErrProtocol},
		{"no digits", ":\r\n", ErrProtocol},
		{"sign only", ":-\r\n", ErrProtocol},
		{"wrong prefix", "$2\r\n12\r\n", ErrProtocol},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestReader(tt.input)
			_, err := r.ReadI64()
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestReadI64OverflowKeepsFraming(t *testing.T) {
	r := newTestReader(":1234567890123456789\r\n:7\r\n")

	_, err := r.ReadI64()
	require.ErrorIs(t, err, ErrInvalidValue)
	assert.Contains(t, err.Error(), "int is outside of int64 range")

	got, err := r.ReadI64()
	require.NoError(t, err)
	assert.Equal(t, int64(7), got)
}

func TestReadI64String(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{":12\r\n", 12},
		{"+34\r\n", 34},
		{"$2\r\n56\r\n", 56},
		{"$3\r\n-78\r\n", -78},
		{"$3\r\n+90\r\n", 90},
	}
	for _, tt := range tests {
		r := newTestReader(tt.input)
		got, err := r.ReadI64String()
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
	}
}

func TestReadI64StringErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		sentinel error
	}{
		{"non-numeric bulk", "$3\r\nabc\r\n", ErrInvalidValue},
		{"null bulk", "$-1\r\n", ErrInvalidValue},
		{"empty bulk", "$0\r\n\r\n", ErrInvalidValue},
		{"nineteen digit bulk", "$19\r\n1234567890123456789\r\n", ErrInvalidValue},
		{"array prefix", "*1\r\n", ErrProtocol},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestReader(tt.input)
			_, err := r.ReadI64String()
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestReadArrayHeader(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"*3\r\n", 3},
		{"*0\r\n", 0},
		{"*-1\r\n", -1},
		{"*-5\r\n", -1}, // below -1 normalizes to null
	}
	for _, tt := range tests {
		r := newTestReader(tt.input)
		got, err := r.ReadArrayHeader()
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
	}

	r := newTestReader("+OK\r\n")
	_, err := r.ReadArrayHeader()
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestReadEnum(t *testing.T) {
	r := newTestReader("$7\r\nSetName\r\n")
	i, err := r.ReadEnum("id", "setname", "getname")
	require.NoError(t, err)
	assert.Equal(t, 1, i)

	r = newTestReader("+ID\r\n")
	i, err = r.ReadEnum("id", "setname")
	require.NoError(t, err)
	assert.Equal(t, 0, i)

	r = newTestReader("$5\r\nnosub\r\n")
	_, err = r.ReadEnum("id", "setname")
	assert.ErrorIs(t, err, ErrInvalidValue)

	r = newTestReader("$-1\r\n")
	_, err = r.ReadEnum("id")
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestDiscardValue(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"simple string", "+hello\r\n"},
		{"error", "-ERR nope\r\n"},
		{"integer", ":42\r\n"},
		{"bulk string", "$5\r\nhello\r\n"},
		{"null bulk string", "$-1\r\n"},
		{"flat array", "*3\r\n:1\r\n:2\r\n:3\r\n"},
		{"null array", "*-1\r\n"},
		{"nested array depth 4", "*1\r\n*1\r\n*1\r\n*1\r\n:1\r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestReader(tt.input + ":99\r\n")
			require.NoError(t, r.DiscardValue())

			// The next value is intact after the discard.
			n, err := r.ReadI64()
			require.NoError(t, err)
			assert.Equal(t, int64(99), n)
		})
	}
}

func TestDiscardValueRecursionLimit(t *testing.T) {
	r := newTestReader("*1\r\n*1\r\n*1\r\n*1\r\n*1\r\n:1\r\n")
	err := r.DiscardValue()
	assert.ErrorIs(t, err, ErrRecursionLimit)
}

func TestDiscardN(t *testing.T) {
	r := newTestReader(":1\r\n$2\r\nab\r\n+x\r\n:42\r\n")
	require.NoError(t, r.DiscardN(3))

	n, err := r.ReadI64()
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}

func TestBulkLengthLimit(t *testing.T) {
	r := newTestReader("$524288001\r\n")
	_, err := r.ReadString()
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestFramingAfterCommandSequence(t *testing.T) {
	// Two envelopes back to back: consuming the first leaves the reader at
	// the '*' of the second.
	r := newTestReader("*1\r\n$4\r\nPING\r\n*1\r\n$4\r\nPING\r\n")

	n, err := r.ReadArrayHeader()
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	name, err := r.ReadString()
	require.NoError(t, err)
	require.Equal(t, []byte("PING"), name)

	k, err := r.ReadTypePrefix()
	require.NoError(t, err)
	assert.Equal(t, KindArray, k)
}
