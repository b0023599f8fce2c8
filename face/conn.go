package face

import (
	"fmt"
	"sync"

	"github.com/lci-net/lcifwd/fwerr"
	"github.com/lci-net/lcifwd/wire"
)

// Connection is the integer-identified adjacency of spec.md §3: an
// up/down state, a reference to its transport, and a counter of FIB
// next-hops referencing it. A connection may not be deleted while that
// counter is nonzero; routes must be withdrawn first.
type Connection struct {
	id        uint64
	transport Transport
	nexthops  int
}

// ID returns the connection's integer identifier.
func (c *Connection) ID() uint64 { return c.id }

// Transport returns the underlying transport adapter.
func (c *Connection) Transport() Transport { return c.transport }

// Up reports whether the underlying transport is still running.
func (c *Connection) Up() bool { return c.transport.IsRunning() }

// NextHopRefs returns the number of FIB next-hops currently
// referencing this connection.
func (c *Connection) NextHopRefs() int { return c.nexthops }

// Send transmits a fully-framed packet, a thin pass-through to the
// transport kept here so callers never need to reach into Transport
// directly.
func (c *Connection) Send(frame []byte) { c.transport.SendFrame(frame) }

// String identifies the connection for log messages, in the style of
// the teacher's transport String() methods.
func (c *Connection) String() string {
	return fmt.Sprintf("connection(id=%d remote=%s)", c.id, c.transport.RemoteAddr())
}

// ConnFrameHandler is invoked for every frame arriving on any
// connection in the table, identifying which connection it arrived
// on. It runs on that connection's receive goroutine; the forwarder
// passes its inbound ring's push here, not Dispatch.
type ConnFrameHandler func(connID uint64, frame []byte)

// ConnTable allocates connection ids, tracks their up/down state, and
// enforces the FIB-nexthop refcount invariant of spec.md §3.
type ConnTable struct {
	mu      sync.RWMutex
	conns   map[uint64]*Connection
	nextID  uint64
	onFrame ConnFrameHandler
	onClose func(id uint64)
}

// NewConnTable constructs an empty table. onFrame is invoked for every
// frame received on every connection added afterward, on that
// connection's receive goroutine. onClose is invoked once a
// connection's transport goes down on its own (peer disconnect, write
// failure) so the forwarder can withdraw its routes (spec.md §7); it
// is not invoked for an explicit Remove, whose caller already knows.
func NewConnTable(onFrame ConnFrameHandler, onClose func(id uint64)) *ConnTable {
	return &ConnTable{conns: make(map[uint64]*Connection), nextID: 1, onFrame: onFrame, onClose: onClose}
}

// Add registers a transport as a new connection, allocates its id, and
// starts its receive loop in a new goroutine.
func (t *ConnTable) Add(tr Transport) *Connection {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	c := &Connection{id: id, transport: tr}
	t.conns[id] = c
	t.mu.Unlock()

	go func() {
		tr.RunReceive(func(frame []byte) {
			if t.onFrame != nil {
				t.onFrame(id, frame)
			}
		})
		// RunReceive only returns once the transport has gone down.
		t.mu.Lock()
		_, stillPresent := t.conns[id]
		delete(t.conns, id)
		t.mu.Unlock()
		if stillPresent && t.onClose != nil {
			t.onClose(id)
		}
	}()
	return c
}

// Get returns the connection with the given id.
func (t *ConnTable) Get(id uint64) (*Connection, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.conns[id]
	return c, ok
}

// IncRef and DecRef maintain the FIB-nexthop reference count invariant
// of spec.md §3 as routes are added and removed.
func (t *ConnTable) IncRef(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.conns[id]; ok {
		c.nexthops++
	}
}

func (t *ConnTable) DecRef(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.conns[id]; ok && c.nexthops > 0 {
		c.nexthops--
	}
}

// Remove deletes a connection, refusing if it still has FIB next-hops
// referencing it (spec.md §3's deletion invariant).
func (t *ConnTable) Remove(id uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.conns[id]
	if !ok {
		return wire.ErrNotFound{Key: fmt.Sprintf("connection %d", id)}
	}
	if c.nexthops > 0 {
		return &fwerr.PolicyError{Reason: "connection still has FIB next-hops; withdraw routes first"}
	}
	delete(t.conns, id)
	c.transport.Close()
	return nil
}

// RemoveForce tears a connection down unconditionally, bypassing the
// next-hop-refcount check. It returns nothing and leaves the FIB as it
// is; the caller withdraws the connection's routes with
// Fib.RemoveConnection. Used when the transport itself has already
// failed (spec.md §7 "Transport errors tear down the affected
// connection").
func (t *ConnTable) RemoveForce(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.conns[id]; ok {
		delete(t.conns, id)
		c.transport.Close()
	}
}

// Len returns the number of live connections.
func (t *ConnTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.conns)
}

// All returns every connection, for mgmt's ListConnections verb.
func (t *ConnTable) All() []*Connection {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Connection, 0, len(t.conns))
	for _, c := range t.conns {
		out = append(out, c)
	}
	return out
}
