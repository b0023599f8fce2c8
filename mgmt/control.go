// Package mgmt implements the management control plane of spec.md §6:
// dispatching decoded Control messages to the forwarder's tables, a
// durable RIB snapshot for statically configured routes, and a
// read-only HTTP status surface. It is kept separate from package
// core so the packet-forwarding path never depends on the management
// surface — core.Forwarder only calls a narrow ControlHandler function
// this package installs.
package mgmt

import (
	"fmt"
	"strings"

	"github.com/lci-net/lcifwd/core"
	"github.com/lci-net/lcifwd/face"
	"github.com/lci-net/lcifwd/fwerr"
	"github.com/lci-net/lcifwd/table"
	"github.com/lci-net/lcifwd/wire"
)

// Control dispatches Control messages by ControlOp to the forwarder's
// Fib, Pit, Cs, and ConnTable, grounded on the teacher's mgmt.Thread
// verb-dispatch pattern (fw/mgmt/fib.go's add-nexthop/remove-nexthop/
// list switch), adapted to this repo's single typed ControlRequest
// instead of NDN management Interests.
type Control struct {
	fw  *core.Forwarder
	rib *RibStore
}

// NewControl builds a Control plane bound to fw, and installs itself as
// fw's ControlHandler so Control messages arriving on the data ring
// are dispatched here.
func NewControl(fw *core.Forwarder, rib *RibStore) *Control {
	c := &Control{fw: fw, rib: rib}
	fw.ControlHandler = c.Handle
	return c
}

func (c *Control) String() string { return "mgmt-control" }

// Handle processes one decoded ControlRequest and returns the Ack to
// send back, per spec.md §6's "matching Acknowledgement carrying the
// same [sequence] number and one of {ACK, NACK(reason)}".
func (c *Control) Handle(req *wire.ControlRequest) *wire.ControlAck {
	switch req.Op {
	case wire.OpAddRoute:
		return c.addRoute(req)
	case wire.OpRemoveRoute:
		return c.removeRoute(req)
	case wire.OpAddConnection:
		return c.addConnection(req)
	case wire.OpRemoveConnection:
		return c.removeConnection(req)
	case wire.OpListRoutes:
		return c.listRoutes(req)
	case wire.OpListConnections:
		return c.listConnections(req)
	case wire.OpCacheStoreOn:
		c.fw.Cs.SetStoring(true)
		return ack(req.Seq)
	case wire.OpCacheStoreOff:
		c.fw.Cs.SetStoring(false)
		return ack(req.Seq)
	case wire.OpCacheServeOn:
		c.fw.Cs.SetServing(true)
		return ack(req.Seq)
	case wire.OpCacheServeOff:
		c.fw.Cs.SetServing(false)
		return ack(req.Seq)
	case wire.OpCacheClear:
		c.fw.Cs.Clear()
		return ack(req.Seq)
	case wire.OpFlush:
		c.fw.Cs.Clear()
		return ack(req.Seq)
	default:
		return nack(req.Seq, fmt.Sprintf("unknown control op %d", req.Op))
	}
}

func (c *Control) addRoute(req *wire.ControlRequest) *wire.ControlAck {
	p := req.Params
	if p.Name == nil {
		return nack(req.Seq, "AddRoute requires Name")
	}
	if _, ok := c.fw.Conns.Get(p.ConnID); !ok {
		return nack(req.Seq, "no such connection")
	}
	// Only a next-hop that did not exist before counts as a new
	// reference; a duplicate add or a weight update does not.
	newNextHop := true
	if e, ok := c.fw.Fib.Lookup(p.Name); ok && e.Name().Equal(p.Name) {
		for _, nh := range e.NextHops() {
			if nh.ConnID == p.ConnID {
				newNextHop = false
			}
		}
	}
	err := c.fw.Fib.Insert(p.Name, p.ConnID, p.Weight, table.RouteOrigin(p.Origin))
	if err != nil && err != fwerr.ErrAlreadyExists {
		return nack(req.Seq, err.Error())
	}
	if p.Flags != 0 {
		if err := c.fw.Fib.SetFlags(p.Name, p.ConnID, table.RouteFlag(p.Flags)); err != nil {
			core.Log.Warn(c, "failed to set route flags", "name", p.Name.String(), "err", err)
		}
	}
	if newNextHop {
		c.fw.Conns.IncRef(p.ConnID)
	}
	if c.rib != nil && table.RouteOrigin(p.Origin) == table.OriginStatic {
		if err := c.rib.Save(p.Name, p.ConnID, p.Weight); err != nil {
			core.Log.Warn(c, "failed to persist static route", "name", p.Name.String(), "err", err)
		}
	}
	return ack(req.Seq)
}

func (c *Control) removeRoute(req *wire.ControlRequest) *wire.ControlAck {
	p := req.Params
	if p.Name == nil {
		return nack(req.Seq, "RemoveRoute requires Name")
	}
	if err := c.fw.Fib.Remove(p.Name, p.ConnID); err != nil {
		return nack(req.Seq, err.Error())
	}
	c.fw.Conns.DecRef(p.ConnID)
	if c.rib != nil {
		if err := c.rib.Delete(p.Name, p.ConnID); err != nil {
			core.Log.Warn(c, "failed to remove persisted route", "name", p.Name.String(), "err", err)
		}
	}
	return ack(req.Seq)
}

func (c *Control) addConnection(req *wire.ControlRequest) *wire.ControlAck {
	p := req.Params
	if p.Addr == "" {
		return nack(req.Seq, "AddConnection requires Addr")
	}
	tr, err := face.Dial(p.Addr)
	if err != nil {
		return nack(req.Seq, err.Error())
	}
	conn := c.fw.AddConnection(tr)
	return &wire.ControlAck{Seq: req.Seq, Status: wire.StatusAck, Reason: fmt.Sprintf("connection-id=%d", conn.ID())}
}

func (c *Control) removeConnection(req *wire.ControlRequest) *wire.ControlAck {
	if err := c.fw.Conns.Remove(req.Params.ConnID); err != nil {
		return nack(req.Seq, err.Error())
	}
	return ack(req.Seq)
}

func (c *Control) listRoutes(req *wire.ControlRequest) *wire.ControlAck {
	// The wire protocol's Ack carries only a Reason string, so routes
	// are rendered as one "name conn=C weight=W" entry per line; a richer list
	// reply (e.g. a repeated TLV) is future work noted in DESIGN.md.
	var b strings.Builder
	for _, name := range c.fw.Fib.Names() {
		entry, ok := c.fw.Fib.Lookup(name)
		if !ok || entry.Virtual() {
			continue
		}
		for _, nh := range entry.NextHops() {
			fmt.Fprintf(&b, "%s conn=%d weight=%d\n", name.String(), nh.ConnID, nh.Weight)
		}
	}
	return &wire.ControlAck{Seq: req.Seq, Status: wire.StatusAck, Reason: b.String()}
}

func (c *Control) listConnections(req *wire.ControlRequest) *wire.ControlAck {
	var b strings.Builder
	for _, conn := range c.fw.Conns.All() {
		fmt.Fprintf(&b, "id=%d remote=%s nexthops=%d\n", conn.ID(), conn.Transport().RemoteAddr(), conn.NextHopRefs())
	}
	return &wire.ControlAck{Seq: req.Seq, Status: wire.StatusAck, Reason: b.String()}
}

func ack(seq uint64) *wire.ControlAck {
	return &wire.ControlAck{Seq: seq, Status: wire.StatusAck}
}

func nack(seq uint64, reason string) *wire.ControlAck {
	return &wire.ControlAck{Seq: seq, Status: wire.StatusNack, Reason: reason}
}
