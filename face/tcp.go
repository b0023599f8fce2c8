package face

import (
	"fmt"
	"net"

	fwlog "github.com/lci-net/lcifwd/std/log"
)

// MaxFrameSize bounds a single TLV frame, matching the codec's 16-bit
// packet_length field (spec.md §6).
const MaxFrameSize = 65535

// TCPTransport is a point-to-point stream transport, ported from the
// teacher's tcp-listener.go/unicast pattern (the teacher keeps TCP
// accept in a listener and delegates the resulting net.Conn to a
// stream transport, which is what this type models directly).
type TCPTransport struct {
	transportBase
	conn net.Conn
}

// NewTCPTransport wraps an already-accepted or already-dialed TCP
// connection as a Transport.
func NewTCPTransport(conn net.Conn) *TCPTransport {
	t := &TCPTransport{conn: conn}
	t.init(conn.LocalAddr().String(), conn.RemoteAddr().String(), MaxFrameSize)
	return t
}

// DialTCP connects outbound to addr and wraps the resulting connection.
func DialTCP(addr string) (*TCPTransport, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial tcp %s: %w", addr, err)
	}
	return NewTCPTransport(conn), nil
}

func (t *TCPTransport) String() string {
	return fmt.Sprintf("tcp-transport (remote=%s local=%s)", t.remoteAddr, t.localAddr)
}

// SendQueueSize reports the kernel send-queue depth via SIOCOUTQ.
func (t *TCPTransport) SendQueueSize() uint64 {
	return sendQueueSize(t.conn)
}

// SendFrame writes a fully-framed packet, closing the transport on
// write failure (mirrors the teacher's "Face DOWN" handling).
func (t *TCPTransport) SendFrame(frame []byte) {
	if !t.running.Load() {
		return
	}
	if len(frame) > t.mtu {
		fwlog.Log.Warn(t, "attempted to send frame larger than MTU", "size", len(frame), "mtu", t.mtu)
		return
	}
	if _, err := t.conn.Write(frame); err != nil {
		fwlog.Log.Warn(t, "unable to send on socket - face down", "err", err)
		t.Close()
		return
	}
	t.nOutBytes.Add(uint64(len(frame)))
}

// RunReceive reads framed packets in a loop until the connection closes.
func (t *TCPTransport) RunReceive(onFrame FrameHandler) {
	defer t.Close()
	err := readFrames(t.conn, func(b []byte) {
		t.nInBytes.Add(uint64(len(b)))
		onFrame(b)
	})
	if err != nil && t.running.Load() {
		fwlog.Log.Warn(t, "unable to read from socket - face down", "err", err)
	}
}

// Close tears down the connection.
func (t *TCPTransport) Close() {
	if t.running.Swap(false) {
		t.conn.Close()
	}
}

// TCPListener accepts inbound TCP connections and hands each one to
// the supplied accept callback as a new Transport, per spec.md §6's
// "allocates connection ids on accept" contract.
type TCPListener struct {
	ln net.Listener
}

// ListenTCP binds a TCP listener at addr.
func ListenTCP(addr string) (*TCPListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &TCPListener{ln: ln}, nil
}

// Serve accepts connections until the listener is closed, invoking
// accept with each new Transport.
func (l *TCPListener) Serve(accept func(Transport)) error {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			return err
		}
		accept(NewTCPTransport(conn))
	}
}

// Close stops accepting new connections.
func (l *TCPListener) Close() error { return l.ln.Close() }
