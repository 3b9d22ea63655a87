// clients.go implements the client registry: per-connection identity with
// monotonic ids and reference-counted lifetimes.
//
// The registry holds one reference per registered client and each active
// connection holds another, so a client's metadata survives until both the
// registry entry is dropped and the connection's reference is released.

package main

import (
	"sync"
	"sync/atomic"
	"time"
)

// Client is one connection's identity: a monotonically assigned id, an
// optional name set via CLIENT SETNAME, and the creation timestamp in
// Unix milliseconds.
type Client struct {
	id        int64
	createdAt int64

	mu   sync.Mutex
	name []byte

	refs atomic.Int64
}

func newClient(id int64) *Client {
	c := &Client{
		id:        id,
		createdAt: time.Now().UnixMilli(),
	}
	c.refs.Store(1)
	return c
}

// ID returns the client's id.
func (c *Client) ID() int64 {
	return c.id
}

// CreatedAt returns the creation timestamp in Unix milliseconds.
func (c *Client) CreatedAt() int64 {
	return c.createdAt
}

// Name returns a copy of the client's name, or nil when unset.
func (c *Client) Name() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.name == nil {
		return nil
	}
	out := make([]byte, len(c.name))
	copy(out, c.name)
	return out
}

// SetName stores a copy of name. A nil or empty name clears it.
func (c *Client) SetName(name []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(name) == 0 {
		c.name = nil
		return
	}
	c.name = make([]byte, len(name))
	copy(c.name, name)
}

// Retain adds a reference.
func (c *Client) Retain() {
	c.refs.Add(1)
}

// Release drops a reference. The last release clears the metadata.
func (c *Client) Release() {
	n := c.refs.Add(-1)
	switch {
	case n == 0:
		c.mu.Lock()
		c.name = nil
		c.mu.Unlock()
	case n < 0:
		panic("clients: client released more times than it was retained")
	}
}

// ClientRegistry issues client ids and owns the id to client mapping.
// A single lock suffices: registration and teardown are rare next to
// command traffic.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[int64]*Client
	nextID  atomic.Int64
}

// NewClientRegistry creates an empty registry.
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[int64]*Client),
	}
}

// RegisterConnection allocates a client with the next id, stores the
// registry's reference, and returns an additional retained reference for
// the connection. The caller releases it when the connection ends.
func (r *ClientRegistry) RegisterConnection() *Client {
	c := newClient(r.nextID.Add(1))
	c.Retain()

	r.mu.Lock()
	r.clients[c.id] = c
	r.mu.Unlock()

	return c
}

// DropConnection removes the client from the registry and releases the
// registry's reference.
func (r *ClientRegistry) DropConnection(id int64) {
	r.mu.Lock()
	c, ok := r.clients[id]
	if ok {
		delete(r.clients, id)
	}
	r.mu.Unlock()

	if ok {
		c.Release()
	}
}

// Lookup returns the client for id, if registered.
func (r *ClientRegistry) Lookup(id int64) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	return c, ok
}

// Len returns the number of registered clients.
func (r *ClientRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
