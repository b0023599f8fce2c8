package face

import (
	"fmt"
	"net"

	fwlog "github.com/lci-net/lcifwd/std/log"
)

// UnixTransport is a Unix domain stream transport for local
// applications, ported from the teacher's unix-stream-transport.go.
type UnixTransport struct {
	transportBase
	conn *net.UnixConn
}

// NewUnixTransport wraps an already-accepted Unix domain connection.
func NewUnixTransport(conn *net.UnixConn) *UnixTransport {
	t := &UnixTransport{conn: conn}
	t.init(conn.LocalAddr().String(), conn.RemoteAddr().String(), MaxFrameSize)
	return t
}

func (t *UnixTransport) String() string {
	return fmt.Sprintf("unix-transport (local=%s)", t.localAddr)
}

// SendQueueSize reports the kernel send-queue depth via SIOCOUTQ.
func (t *UnixTransport) SendQueueSize() uint64 {
	return sendQueueSize(t.conn)
}

// SendFrame writes a fully-framed packet.
func (t *UnixTransport) SendFrame(frame []byte) {
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

// RunReceive reads framed packets until the connection closes.
func (t *UnixTransport) RunReceive(onFrame FrameHandler) {
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
func (t *UnixTransport) Close() {
	if t.running.Swap(false) {
		t.conn.Close()
	}
}

// UnixListener accepts local application connections over a Unix
// domain socket.
type UnixListener struct {
	ln *net.UnixListener
}

// dialUnix connects to a Unix domain socket at path, for Dial's
// "unix://" scheme.
func dialUnix(path string) (*net.UnixConn, error) {
	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, err
	}
	return net.DialUnix("unix", nil, addr)
}

// ListenUnix binds a Unix domain socket at path.
func ListenUnix(path string) (*UnixListener, error) {
	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, err
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, err
	}
	return &UnixListener{ln: ln}, nil
}

// Serve accepts connections until the listener is closed.
func (l *UnixListener) Serve(accept func(Transport)) error {
	for {
		conn, err := l.ln.AcceptUnix()
		if err != nil {
			return err
		}
		accept(NewUnixTransport(conn))
	}
}

// Close stops accepting new connections.
func (l *UnixListener) Close() error { return l.ln.Close() }
