// handlers_string.go implements the string key-value commands: GET, SET,
// APPEND, DEL, EXISTS, and the INCR family.
//
// Values live in the store as tagged entries: SET and APPEND produce
// binary entries, INCR on an absent key produces an integer entry, and
// APPEND coerces an integer entry to its decimal form. GET replies with
// the shape it finds: bulk string for binary, integer for integers.
//
// Every read-modify-write path goes through Store.Upsert, which resolves
// lookup and insertion under one segment lock, and then mutates through
// the entry's own writer lock. Replies are produced from value copies
// after all locks are released.

package main

import (
	"errors"

	"keva.lopezb.com/internal/keva/store"
)

// handleGet handles the GET command.
// Syntax: GET key
//
// Returns the value of key, or nil when the key does not exist.
func (app *application) handleGet(c *commandContext) error {
	if !c.exactArgs(1) {
		return nil
	}

	key, err := c.readString()
	if err != nil {
		return c.fail(err, "key is not valid")
	}
	if key == nil {
		c.writer.WriteError("key must not be null")
		return nil
	}

	b, ok := c.store.Get(key)
	if !ok {
		c.writer.WriteNull()
		return nil
	}
	v := b.Value()
	b.Release()

	if v.Kind() == store.KindInt64 {
		c.writer.WriteInteger(v.Int64())
	} else {
		c.writer.WriteBulkString(v.Bytes())
	}
	return nil
}

// handleSet handles the SET command.
// Syntax: SET key value [options]
//
// Stores value under key, overwriting any previous entry in place so
// concurrent readers holding a borrow observe the new value. A null value
// deletes the key. Options beyond key and value are accepted and ignored.
func (app *application) handleSet(c *commandContext) error {
	if !c.minArgs(2) {
		return nil
	}

	key, err := c.readString()
	if err != nil {
		return c.fail(err, "key is not valid")
	}
	if key == nil {
		c.writer.WriteError("key must not be null")
		return nil
	}

	value, err := c.readString()
	if err != nil {
		return c.fail(err, "value is not valid")
	}

	if value == nil {
		c.store.Del(key)
	} else {
		b, created := c.store.Upsert(key, func() store.Value {
			return store.BinaryValue(value)
		})
		if !created {
			b.Set(store.BinaryValue(value))
		}
		b.Release()
	}

	if err := c.discardRemaining(); err != nil {
		return err
	}
	c.writer.WriteOK()
	return nil
}

// handleAppend handles the APPEND command.
// Syntax: APPEND key value
//
// Concatenates value to the key's current contents, creating the key when
// absent, and replies with the resulting length in bytes. An integer entry
// is first rewritten as its decimal form. A null value modifies nothing
// and replies with the current length (0 for a missing key).
func (app *application) handleAppend(c *commandContext) error {
	if !c.minArgs(2) {
		return nil
	}

	key, err := c.readString()
	if err != nil {
		return c.fail(err, "key is not valid")
	}
	if key == nil {
		c.writer.WriteError("key must not be null")
		return nil
	}

	value, err := c.readString()
	if err != nil {
		return c.fail(err, "value is not valid")
	}

	if value == nil {
		n := 0
		if b, ok := c.store.Get(key); ok {
			n = b.Value().LengthInBytes()
			b.Release()
		}
		c.writer.WriteInteger(int64(n))
		return nil
	}

	b, _ := c.store.Upsert(key, func() store.Value {
		return store.BinaryValue(nil)
	})
	n := b.Append(value)
	b.Release()

	c.writer.WriteInteger(int64(n))
	return nil
}

// handleDel handles the DEL command.
// Syntax: DEL key [key ...]
//
// Removes the given keys and replies with the number actually removed.
func (app *application) handleDel(c *commandContext) error {
	if !c.minArgs(1) {
		return nil
	}

	deleted := int64(0)
	for c.remaining() > 0 {
		key, err := c.readString()
		if err != nil {
			return c.fail(err, "key is not valid")
		}
		if key != nil && c.store.Del(key) {
			deleted++
		}
	}

	c.writer.WriteInteger(deleted)
	return nil
}

// handleExists handles the EXISTS command.
// Syntax: EXISTS key [key ...]
//
// Replies with the number of the given keys that are present.
func (app *application) handleExists(c *commandContext) error {
	if !c.minArgs(1) {
		return nil
	}

	present := int64(0)
	for c.remaining() > 0 {
		key, err := c.readString()
		if err != nil {
			return c.fail(err, "key is not valid")
		}
		if key == nil {
			continue
		}
		if b, ok := c.store.Get(key); ok {
			b.Release()
			present++
		}
	}

	c.writer.WriteInteger(present)
	return nil
}

// handleIncr handles the INCR command.
// Syntax: INCR key
//
// Increments the integer value of key by one. An absent key is created
// holding the delta.
func (app *application) handleIncr(c *commandContext) error {
	if !c.exactArgs(1) {
		return nil
	}
	return app.incrByGeneric(c, 1)
}

// handleDecr handles the DECR command.
// Syntax: DECR key
func (app *application) handleDecr(c *commandContext) error {
	if !c.exactArgs(1) {
		return nil
	}
	return app.incrByGeneric(c, -1)
}

// handleIncrBy handles the INCRBY command.
// Syntax: INCRBY key delta
func (app *application) handleIncrBy(c *commandContext) error {
	if !c.exactArgs(2) {
		return nil
	}
	return app.incrByWithDelta(c, 1)
}

// handleDecrBy handles the DECRBY command.
// Syntax: DECRBY key delta
func (app *application) handleDecrBy(c *commandContext) error {
	if !c.exactArgs(2) {
		return nil
	}
	return app.incrByWithDelta(c, -1)
}

// incrByWithDelta reads the key then the delta argument and applies
// sign * delta. DECRBY of a negative delta increments.
func (app *application) incrByWithDelta(c *commandContext, sign int64) error {
	key, err := c.readString()
	if err != nil {
		return c.fail(err, "key is not valid")
	}
	if key == nil {
		c.writer.WriteError("key must not be null")
		return nil
	}

	delta, err := c.readI64String()
	if err != nil {
		return c.fail(err, "value is not an integer or out of range")
	}

	// The reader's digit cap keeps |delta| well under MinInt64, so the
	// sign flip cannot overflow.
	return app.applyIncr(c, key, sign*delta)
}

// incrByGeneric reads the key and applies a fixed delta (INCR, DECR).
func (app *application) incrByGeneric(c *commandContext, delta int64) error {
	key, err := c.readString()
	if err != nil {
		return c.fail(err, "key is not valid")
	}
	if key == nil {
		c.writer.WriteError("key must not be null")
		return nil
	}
	return app.applyIncr(c, key, delta)
}

// applyIncr performs the shared increment: the key is created holding the
// integer 0 when absent, then adjusted under the entry's writer lock with
// overflow and type checks.
func (app *application) applyIncr(c *commandContext, key []byte, delta int64) error {
	b, _ := c.store.Upsert(key, func() store.Value {
		return store.Int64Value(0)
	})
	result, err := b.IncrBy(delta)
	b.Release()

	if err != nil {
		if errors.Is(err, store.ErrNotInteger) || errors.Is(err, store.ErrOverflow) {
			c.writer.WriteError(err.Error())
			return nil
		}
		return err
	}

	c.writer.WriteInteger(result)
	return nil
}
