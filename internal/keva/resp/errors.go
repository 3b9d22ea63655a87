package resp

import "errors"

// Error taxonomy for the codec. Callers classify with errors.Is:
//
//   - ErrProtocol: the wire format was violated and the stream can no
//     longer be framed (bad CRLF, bad prefix, short bulk string). The
//     session must close.
//   - ErrInvalidValue: the bytes were grammatically valid and have been
//     fully consumed, but the value is rejected (integer out of range,
//     null where non-null is required, unrecognized enum). The stream is
//     still framed and the session may continue.
//   - ErrRecursionLimit: array nesting exceeded the discard depth bound.
//   - ErrInvalidParams: a ReadParameters specification was violated by
//     the input.
//
// IO failures from the underlying connection are returned as-is (or
// wrapped with %w), never folded into the sentinels above.
var (
	ErrProtocol       = errors.New("resp: protocol error")
	ErrInvalidValue   = errors.New("resp: invalid value")
	ErrRecursionLimit = errors.New("resp: recursion limit exceeded")
	ErrInvalidParams  = errors.New("resp: invalid parameters")
)

// Consumed reports whether a failed read left the stream framed: the
// erroneous value was fully consumed and the next read starts at a value
// boundary. True exactly for ErrInvalidValue and ErrInvalidParams.
func Consumed(err error) bool {
	return errors.Is(err, ErrInvalidValue) || errors.Is(err, ErrInvalidParams)
}
