// Package face implements connections (adjacencies to neighbors or
// local applications) and the transport adapters that carry framed
// packets over them, ported from the teacher's fw/face package.
package face

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/lci-net/lcifwd/wire"
)

// FrameHandler is invoked once per decoded frame a Transport receives;
// ConnTable.Add passes a closure that tags the frame with the
// connection id and hands it to the table's ConnFrameHandler.
type FrameHandler func(frame []byte)

// Transport is the interface every face type implements (ported from
// the teacher's fw/face/transport.go unexported `transport` interface,
// made exported since this package has no internal forwarder to hide
// it from).
type Transport interface {
	String() string

	// LocalAddr and RemoteAddr describe the transport endpoint.
	LocalAddr() string
	RemoteAddr() string

	// SendFrame transmits a fully-framed packet (header + body).
	SendFrame(frame []byte)
	// RunReceive reads frames in a loop, calling onFrame for each one,
	// until the transport is closed or the connection drops.
	RunReceive(onFrame FrameHandler)
	// SendQueueSize reports the depth of the kernel/userspace send
	// queue, for congestion-aware strategies.
	SendQueueSize() uint64
	// IsRunning reports whether the transport is still accepting sends.
	IsRunning() bool
	// Close tears the transport down; RunReceive returns afterward.
	Close()

	NInBytes() uint64
	NOutBytes() uint64
}

// transportBase provides the bookkeeping common to every Transport
// implementation (ported from the teacher's transportBase).
type transportBase struct {
	running    atomic.Bool
	localAddr  string
	remoteAddr string
	mtu        int

	nInBytes  atomic.Uint64
	nOutBytes atomic.Uint64
}

func (t *transportBase) init(local, remote string, mtu int) {
	t.localAddr, t.remoteAddr, t.mtu = local, remote, mtu
	t.running.Store(true)
}

func (t *transportBase) LocalAddr() string  { return t.localAddr }
func (t *transportBase) RemoteAddr() string { return t.remoteAddr }
func (t *transportBase) IsRunning() bool    { return t.running.Load() }
func (t *transportBase) NInBytes() uint64   { return t.nInBytes.Load() }
func (t *transportBase) NOutBytes() uint64  { return t.nOutBytes.Load() }

// readFrames reads length-prefixed frames from r, per the 8-byte fixed
// header of wire.FixedHeader (whose PacketLength field includes the
// header itself), invoking onFrame with each complete frame until r
// returns an error or onFrame is never called again (EOF).
func readFrames(r io.Reader, onFrame func([]byte)) error {
	header := make([]byte, wire.FixedHeaderLen)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			return err
		}
		fh, err := wire.ParseFixedHeader(header)
		if err != nil {
			return fmt.Errorf("bad frame header: %w", err)
		}
		body := make([]byte, int(fh.PacketLength)-wire.FixedHeaderLen)
		if len(body) > 0 {
			if _, err := io.ReadFull(r, body); err != nil {
				return err
			}
		}
		frame := append(header[:len(header):len(header)], body...)
		onFrame(frame)
	}
}
