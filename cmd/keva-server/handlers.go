// handlers.go implements the server-level commands: PING, QUIT, CLIENT,
// COMMAND, INFO, and SCAN.

package main

import (
	"fmt"
	"strings"

	"keva.lopezb.com/internal/keva/glob"
	"keva.lopezb.com/internal/keva/resp"
)

// handlePing handles the PING command.
// Syntax: PING
//
// This is a standard liveness check used by clients to verify that the
// server connection is active and responsive.
func (app *application) handlePing(c *commandContext) error {
	if !c.exactArgs(0) {
		return nil
	}
	c.writer.WriteSimpleString("PONG")
	return nil
}

// handleQuit handles the QUIT command.
// Syntax: QUIT
//
// The reply is flushed and then the dispatcher closes the connection
// cleanly.
func (app *application) handleQuit(c *commandContext) error {
	if !c.exactArgs(0) {
		return nil
	}
	c.writer.WriteOK()
	return errQuit
}

// handleCommand handles the COMMAND command.
// Syntax: COMMAND [subcommand ...]
//
// Replies with the registered command names. Subcommand arguments are
// accepted and ignored.
func (app *application) handleCommand(c *commandContext) error {
	if err := c.discardRemaining(); err != nil {
		return err
	}

	names := app.router.commandNames()
	c.writer.WriteArrayHeader(int64(len(names)))
	for _, name := range names {
		c.writer.WriteBulkString([]byte(name))
	}
	return nil
}

// handleClient handles the CLIENT command.
// Syntax: CLIENT ID | CLIENT SETNAME name | CLIENT GETNAME
func (app *application) handleClient(c *commandContext) error {
	if !c.minArgs(1) {
		return nil
	}

	sub, err := c.readEnum("id", "setname", "getname")
	if err != nil {
		return c.fail(err, fmt.Sprintf("unknown subcommand for '%s' command", c.name))
	}

	switch sub {
	case 0: // id
		if !c.exactArgs(1) {
			return nil
		}
		c.writer.WriteInteger(c.client.ID())

	case 1: // setname
		if !c.exactArgs(2) {
			return nil
		}
		name, err := c.readString()
		if err != nil {
			return c.fail(err, "client name is not valid")
		}
		c.client.SetName(name)
		c.writer.WriteOK()

	case 2: // getname
		if !c.exactArgs(1) {
			return nil
		}
		if name := c.client.Name(); name != nil {
			c.writer.WriteBulkString(name)
		} else {
			c.writer.WriteNull()
		}
	}
	return nil
}

// handleInfo handles the INFO command.
// Syntax: INFO
//
// Replies with a text report of the server's counters in the standard
// "key:value" section format.
func (app *application) handleInfo(c *commandContext) error {
	if !c.exactArgs(0) {
		return nil
	}

	totalConns := app.metrics.TotalConnections.Load()
	activeConns := app.metrics.ActiveConnections.Load()
	totalCmds := app.metrics.TotalCommands.Load()

	var b strings.Builder
	b.WriteString("# Server\r\n")
	fmt.Fprintf(&b, "connections_total:%d\r\n", totalConns)
	fmt.Fprintf(&b, "connections_active:%d\r\n", activeConns)
	fmt.Fprintf(&b, "commands_processed_total:%d\r\n", totalCmds)
	b.WriteString("# Keyspace\r\n")
	fmt.Fprintf(&b, "keys_total:%d\r\n", c.store.Len())

	c.writer.WriteBulkString([]byte(b.String()))
	return nil
}

// scanDefaultCount is the number of keys SCAN walks when no COUNT flag is
// given.
const scanDefaultCount = 10

// handleScan handles the SCAN command.
// Syntax: SCAN [cursor] [MATCH pattern] [COUNT n]
//
// The reply is a two element array: the cursor to resume from (0 when the
// iteration is complete) and the matched keys. Keys are filtered against
// the glob pattern after being counted, so COUNT bounds work per call, not
// reply size.
func (app *application) handleScan(c *commandContext) error {
	if !c.maxArgs(5) {
		return nil
	}

	params, err := c.readParameters(
		[]resp.Positional{{Name: "cursor", Kind: resp.ParamI64, Optional: true}},
		[]resp.Flag{
			{Name: "match", Kind: resp.ParamBytes},
			{Name: "count", Kind: resp.ParamI64},
		},
	)
	if err != nil {
		return c.fail(err, userMessage(err))
	}

	cursor, _ := params.I64("cursor")
	if cursor < 0 {
		cursor = 0
	}

	count, ok := params.I64("count")
	if !ok || count < 1 {
		count = scanDefaultCount
	}

	pattern, ok := params.Bytes("match")
	if !ok {
		pattern = []byte("*")
	}

	keys, next := c.store.Scan(uint64(cursor), int(count), func(key []byte) bool {
		return glob.Match(pattern, key)
	})

	c.writer.WriteArrayHeader(2)
	c.writer.WriteInteger(int64(next))
	c.writer.WriteArrayHeader(int64(len(keys)))
	for _, key := range keys {
		c.writer.WriteBulkString(key)
	}
	return nil
}
