package core

import (
	"time"

	"github.com/lci-net/lcifwd/table"
	"github.com/lci-net/lcifwd/wire"
)

// Dispatch processes one raw frame received on connID, per the
// per-packet flows of spec.md §4.5. It is called only from Run's
// single consumer loop — never directly from a connection's receive
// goroutine — so it may freely mutate Fib, Pit, Cs, and Conns without
// additional locking.
func (f *Forwarder) Dispatch(connID uint64, frame []byte) {
	if len(frame) < wire.FixedHeaderLen {
		f.metrics.DropsDecode++
		return
	}
	fh, err := wire.ParseFixedHeader(frame[:wire.FixedHeaderLen])
	if err != nil {
		f.metrics.DropsDecode++
		Log.Debug(f, "dropping frame with bad fixed header", "conn", connID, "err", err)
		return
	}
	// The frame must hold the declared packet_length; anything past it
	// is ignored. The per-hop options block (header_length - 8 bytes)
	// is skipped, so the body starts at header_length.
	if int(fh.PacketLength) > len(frame) || int(fh.HeaderLength) > int(fh.PacketLength) {
		f.metrics.DropsDecode++
		Log.Debug(f, "dropping frame with inconsistent lengths", "conn", connID, "len", len(frame), "packet_length", fh.PacketLength, "header_length", fh.HeaderLength)
		return
	}
	body := frame[fh.HeaderLength:fh.PacketLength]

	switch fh.Type {
	case wire.PacketInterest:
		f.dispatchInterest(connID, fh, body)
	case wire.PacketData:
		f.dispatchContentObject(connID, fh, body)
	case wire.PacketControl:
		f.dispatchControl(connID, body)
	default:
		f.metrics.DropsDecode++
		Log.Debug(f, "dropping frame with unknown packet type", "conn", connID, "type", fh.Type)
	}
}

func (f *Forwarder) dispatchInterest(connID uint64, fh wire.FixedHeader, body []byte) {
	view := wire.NewBufferView(body)
	it, err := wire.DecodeInterest(&view)
	if err != nil {
		f.metrics.DropsDecode++
		Log.Debug(f, "dropping malformed Interest", "conn", connID, "err", err)
		return
	}

	if fh.HopLimit == 0 {
		f.metrics.DropsPolicy++
		return
	}

	now := time.Now()

	if co, ok := f.Cs.Lookup(it, now); ok {
		f.replyFromCache(connID, co, fh.HopLimit)
		return
	}

	if _, aggregated := f.Pit.OnInterest(it, connID, now); aggregated {
		return
	}

	entry, ok := f.Fib.Lookup(it.Name)
	if !ok {
		f.metrics.DropsPolicy++
		return
	}

	egress := egressFor(entry, connID)
	if len(egress) == 0 {
		f.metrics.DropsPolicy++
		return
	}

	if _, err := f.Pit.Insert(it, connID, egress, now); err != nil {
		f.metrics.DropsCapacity++
		Log.Debug(f, "pit full, dropping interest", "conn", connID, "name", it.Name.String())
		return
	}

	w, err := wire.EncodeInterest(it, fh.HopLimit-1)
	if err != nil {
		f.metrics.DropsDecode++
		return
	}
	out := w.Join()
	for _, c := range egress {
		f.sendFrame(c, out)
	}
}

// egressFor computes FIB-nexthops \ {ingress}, the split-horizon rule
// of spec.md §4.5.
func egressFor(entry *table.Entry, ingress uint64) []uint64 {
	nhs := entry.NextHops()
	out := make([]uint64, 0, len(nhs))
	for _, nh := range nhs {
		if nh.ConnID != ingress {
			out = append(out, nh.ConnID)
		}
	}
	return out
}

// replyFromCache re-serializes a cached Content Object and transmits
// it back to the connection whose Interest hit the CS, without
// touching the PIT (spec.md §4.5 step 3).
func (f *Forwarder) replyFromCache(connID uint64, co *wire.ContentObject, hopLimit byte) {
	w, err := wire.EncodeContentObject(co, hopLimit, nil)
	if err != nil {
		f.metrics.DropsDecode++
		return
	}
	f.sendFrame(connID, w.Join())
}

func (f *Forwarder) dispatchContentObject(connID uint64, fh wire.FixedHeader, body []byte) {
	view := wire.NewBufferView(body)
	co, err := wire.DecodeContentObject(&view)
	if err != nil {
		f.metrics.DropsDecode++
		Log.Debug(f, "dropping malformed Content Object", "conn", connID, "err", err)
		return
	}

	now := time.Now()
	egress, ok := f.Pit.OnContentObject(co, now)
	if !ok {
		// Unsolicited: no PIT entry matches any of the three keys.
		f.metrics.DropsPolicy++
		return
	}

	f.Cs.Insert(co, now)

	// Content Objects retain the hop_limit they arrived with: spec.md
	// §4.5 only decrements on Interest forwarding, reflecting that data
	// simply retraces the reverse path a PIT entry already bounded.
	w, err := wire.EncodeContentObject(co, fh.HopLimit, nil)
	if err != nil {
		f.metrics.DropsDecode++
		return
	}
	out := w.Join()

	if f.csStore != nil {
		if err := f.csStore.Put(co.Name, out); err != nil {
			Log.Warn(f, "failed to persist content object", "name", co.Name.String(), "err", err)
		}
	}

	for _, c := range egress {
		f.sendFrame(c, out)
	}
}

// dispatchControl decodes a Control message and replies with an Ack on
// the ingress connection, implementing the "same ring, distinguished
// message type" requirement of spec.md §5 for management mutations.
// The actual ControlOp handling is delegated to ControlHandler, kept
// outside package core so the forwarder's core packet path never
// depends on the management layer.
func (f *Forwarder) dispatchControl(connID uint64, body []byte) {
	view := wire.NewBufferView(body)
	req, err := wire.DecodeControlRequest(&view)
	if err != nil {
		f.metrics.DropsDecode++
		Log.Debug(f, "dropping malformed Control request", "conn", connID, "err", err)
		return
	}

	var ack *wire.ControlAck
	if f.ControlHandler != nil {
		ack = f.ControlHandler(req)
	} else {
		ack = &wire.ControlAck{Seq: req.Seq, Status: wire.StatusNack, Reason: "no control handler configured"}
	}

	w, err := wire.EncodeControlAck(ack)
	if err != nil {
		Log.Warn(f, "failed to encode control ack", "err", err)
		return
	}
	f.sendFrame(connID, w.Join())
}

// sendFrame transmits a fully-framed packet on a live connection,
// silently dropping it if the connection has since gone away (a race
// inherent to async transport teardown, not a protocol error).
func (f *Forwarder) sendFrame(connID uint64, frame []byte) {
	c, ok := f.Conns.Get(connID)
	if !ok {
		return
	}
	c.Send(frame)
}
