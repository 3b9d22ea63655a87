package resp

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterOutput(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer)
		want  string
	}{
		{"ok", func(w *Writer) { w.WriteOK() }, "+OK\r\n"},
		{"pong", func(w *Writer) { w.WriteSimpleString("PONG") }, "+PONG\r\n"},
		{"simple", func(w *Writer) { w.WriteSimpleString("hello") }, "+hello\r\n"},
		{"integer zero", func(w *Writer) { w.WriteInteger(0) }, ":0\r\n"},
		{"integer one", func(w *Writer) { w.WriteInteger(1) }, ":1\r\n"},
		{"integer negative", func(w *Writer) { w.WriteInteger(-42) }, ":-42\r\n"},
		{"bulk", func(w *Writer) { w.WriteBulkString([]byte("hello")) }, "$5\r\nhello\r\n"},
		{"empty bulk", func(w *Writer) { w.WriteBulkString([]byte{}) }, "$0\r\n\r\n"},
		{"null", func(w *Writer) { w.WriteNull() }, "$-1\r\n"},
		{"error", func(w *Writer) { w.WriteError("unknown command") }, "-unknown command\r\n"},
		{"array header", func(w *Writer) { w.WriteArrayHeader(3) }, "*3\r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := NewWriter(&buf)
			tt.write(w)
			require.NoError(t, w.Err())
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestWriterRepliedFlag(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	assert.False(t, w.Replied())
	w.WriteOK()
	assert.True(t, w.Replied())

	w.BeginCommand()
	assert.False(t, w.Replied())
}

type failingWriter struct{ err error }

func (f failingWriter) Write(p []byte) (int, error) { return 0, f.err }

func TestWriterLatchesFirstError(t *testing.T) {
	boom := errors.New("boom")
	w := NewWriter(failingWriter{err: boom})

	w.WriteOK()
	w.WriteInteger(5)

	assert.ErrorIs(t, w.Err(), boom)
}

func TestWriterBulkLengthCap(t *testing.T) {
	if testing.Short() {
		t.Skip("allocates a buffer past the 500MiB cap")
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)

	w.WriteBulkString(make([]byte, MaxBulkLength+1))

	assert.ErrorIs(t, w.Err(), ErrInvalidValue)
	assert.Zero(t, buf.Len())
}

// TestRoundTrip writes values and reads them back through the codec.
func TestRoundTrip(t *testing.T) {
	t.Run("bulk strings", func(t *testing.T) {
		for _, v := range [][]byte{
			{},
			[]byte("hello"),
			[]byte("with\r\nCRLF inside"),
			bytes.Repeat([]byte{0x00, 0xff}, 1000),
		} {
			var buf bytes.Buffer
			w := NewWriter(&buf)
			w.WriteBulkString(v)
			require.NoError(t, w.Err())

			got, err := NewReader(&buf).ReadString()
			require.NoError(t, err)
			assert.Equal(t, v, got)
		}
	})

	t.Run("integers", func(t *testing.T) {
		for _, v := range []int64{0, 1, -1, 42, -42, 1e18, -1e18} {
			var buf bytes.Buffer
			w := NewWriter(&buf)
			w.WriteInteger(v)
			require.NoError(t, w.Err())

			got, err := NewReader(&buf).ReadI64()
			require.NoError(t, err)
			assert.Equal(t, v, got)
		}
	})

	t.Run("null", func(t *testing.T) {
		var buf bytes.Buffer
		w := NewWriter(&buf)
		w.WriteNull()

		got, err := NewReader(&buf).ReadString()
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("nested arrays", func(t *testing.T) {
		var buf bytes.Buffer
		w := NewWriter(&buf)
		w.WriteArrayHeader(2)
		w.WriteArrayHeader(2)
		w.WriteInteger(1)
		w.WriteBulkString([]byte("two"))
		w.WriteArrayHeader(1)
		w.WriteSimpleString("three")
		require.NoError(t, w.Err())

		r := NewReader(&buf)
		n, err := r.ReadArrayHeader()
		require.NoError(t, err)
		require.Equal(t, int64(2), n)

		n, err = r.ReadArrayHeader()
		require.NoError(t, err)
		require.Equal(t, int64(2), n)
		i, err := r.ReadI64()
		require.NoError(t, err)
		assert.Equal(t, int64(1), i)
		s, err := r.ReadString()
		require.NoError(t, err)
		assert.Equal(t, []byte("two"), s)

		n, err = r.ReadArrayHeader()
		require.NoError(t, err)
		require.Equal(t, int64(1), n)
		s, err = r.ReadString()
		require.NoError(t, err)
		assert.Equal(t, []byte("three"), s)
	})
}
