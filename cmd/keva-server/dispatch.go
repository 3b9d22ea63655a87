// dispatch.go frames command envelopes and routes them to handlers.
//
// Every client command is a RESP array whose first element is a bulk
// string naming the command. The dispatcher reads the header, lowercases
// the name in place, and looks it up in a map populated once at startup.
// The handler then consumes its arguments directly from the reader through
// a commandContext, which counts what has been read so the dispatcher can
// drain anything a handler leaves behind and keep the stream framed.

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"keva.lopezb.com/internal/keva/resp"
	"keva.lopezb.com/internal/keva/store"
)

// errQuit signals cooperative session termination from the QUIT handler.
var errQuit = errors.New("client quit")

// handlerFunc is the signature of a command handler. A handler either
// consumes exactly its declared arguments or leaves the rest for the
// dispatcher to discard. A non-nil return is classified by the dispatcher:
// errQuit closes cleanly, consumed value errors keep the session alive,
// anything else tears it down.
type handlerFunc func(c *commandContext) error

// Router maps lowercased command names to handlers.
type Router struct {
	handlers map[string]handlerFunc
}

func newRouter() *Router {
	return &Router{handlers: make(map[string]handlerFunc)}
}

func (r *Router) handle(name string, h handlerFunc) {
	r.handlers[strings.ToLower(name)] = h
}

func (r *Router) lookup(name string) (handlerFunc, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// commandNames returns the registered command names in sorted order.
func (r *Router) commandNames() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// commandContext binds one command invocation: the codec ends of the
// connection, the shared state, the client identity, and the argument
// accounting.
type commandContext struct {
	app    *application
	reader *resp.Reader
	writer *resp.Writer
	store  *store.Store
	client *Client
	logger *slog.Logger

	name     string // lowercased command name
	argCount int    // arguments declared by the envelope, after the name
	read     int    // arguments consumed so far
	aborted  bool   // handler bailed out on purpose, skip the drain warning
}

func (c *commandContext) remaining() int {
	return c.argCount - c.read
}

// note counts an argument as consumed when the read either succeeded or
// failed with the value fully drained from the stream.
func (c *commandContext) note(err error) error {
	if err == nil || resp.Consumed(err) {
		c.read++
	}
	return err
}

func (c *commandContext) readString() ([]byte, error) {
	b, err := c.reader.ReadString()
	return b, c.note(err)
}

func (c *commandContext) readI64() (int64, error) {
	n, err := c.reader.ReadI64()
	return n, c.note(err)
}

func (c *commandContext) readI64String() (int64, error) {
	n, err := c.reader.ReadI64String()
	return n, c.note(err)
}

func (c *commandContext) readEnum(variants ...string) (int, error) {
	i, err := c.reader.ReadEnum(variants...)
	return i, c.note(err)
}

func (c *commandContext) readParameters(positionals []resp.Positional, flags []resp.Flag) (*resp.Params, error) {
	p, err := c.reader.ReadParameters(c.remaining(), positionals, flags)
	if p != nil {
		c.read += p.Consumed
	}
	return p, err
}

// discardRemaining skips every argument the handler has not consumed.
func (c *commandContext) discardRemaining() error {
	n := c.remaining()
	if n <= 0 {
		return nil
	}
	if err := c.reader.DiscardN(n); err != nil {
		return err
	}
	c.read = c.argCount
	return nil
}

// exactArgs checks the declared argument count. On mismatch it writes the
// wrong-arity reply and returns false; the handler is expected to return
// nil and let the dispatcher drain.
func (c *commandContext) exactArgs(n int) bool {
	if c.argCount == n {
		return true
	}
	c.wrongArity()
	return false
}

func (c *commandContext) minArgs(n int) bool {
	if c.argCount >= n {
		return true
	}
	c.wrongArity()
	return false
}

func (c *commandContext) maxArgs(n int) bool {
	if c.argCount <= n {
		return true
	}
	c.wrongArity()
	return false
}

func (c *commandContext) wrongArity() {
	c.writer.WriteError(fmt.Sprintf("wrong number of arguments for '%s' command", c.name))
	c.aborted = true
}

// fail maps a read error to its session outcome: consumed value errors
// produce the given reply and keep the session alive; everything else
// propagates and closes it.
func (c *commandContext) fail(err error, msg string) error {
	if resp.Consumed(err) {
		c.writer.WriteError(msg)
		c.aborted = true
		return nil
	}
	return err
}

// dispatchCommand reads one command envelope and runs its handler. The
// returned error is nil to continue the session, errQuit to close it
// cleanly, or anything else to tear it down.
func (app *application) dispatchCommand(sess *session) error {
	n, err := sess.reader.ReadArrayHeader()
	if err != nil {
		return err
	}
	if n <= 0 {
		return fmt.Errorf("%w: empty command envelope", resp.ErrProtocol)
	}

	name, err := sess.reader.ReadString()
	if err != nil {
		return err
	}
	if name == nil {
		return fmt.Errorf("%w: null command name", resp.ErrProtocol)
	}
	lowerInPlace(name)

	app.metrics.TotalCommands.Add(1)
	sess.writer.BeginCommand()

	c := &commandContext{
		app:      app,
		reader:   sess.reader,
		writer:   sess.writer,
		store:    app.store,
		client:   sess.client,
		logger:   app.logger,
		name:     string(name),
		argCount: int(n - 1),
	}

	h, ok := app.router.lookup(c.name)
	if !ok {
		c.writer.WriteError("unknown command")
		return c.discardRemaining()
	}

	err = h(c)

	// Argument discipline: whatever the handler left unread is drained
	// here so the next byte on the stream is the next envelope. A handler
	// that succeeded but under-read is a bug worth a log line.
	if c.remaining() > 0 && (err == nil || resp.Consumed(err)) {
		if err == nil && !c.aborted {
			app.logger.Warn("handler returned with unread arguments",
				"command", c.name, "unread", c.remaining())
		}
		if derr := c.discardRemaining(); derr != nil {
			return derr
		}
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, errQuit):
		return errQuit
	case resp.Consumed(err):
		if !sess.writer.Replied() {
			sess.writer.WriteError(userMessage(err))
		}
		return nil
	default:
		return err
	}
}

// lowerInPlace ASCII-lowercases b without allocating.
func lowerInPlace(b []byte) {
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
}

// userMessage strips the codec sentinel prefixes so wire replies stay in
// the lowercase message style. Value errors reply with their detail alone;
// protocol errors keep the "protocol error" lead-in.
func userMessage(err error) string {
	msg := err.Error()
	for _, prefix := range []string{
		resp.ErrInvalidValue.Error() + ": ",
		resp.ErrInvalidParams.Error() + ": ",
	} {
		if strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	return strings.TrimPrefix(msg, "resp: ")
}
