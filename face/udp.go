package face

import (
	"fmt"
	"net"
	"strings"

	fwlog "github.com/lci-net/lcifwd/std/log"
)

// UDPTransport is a connectionless datagram transport, covering both
// the unicast case (ported from the teacher's
// unicast-udp-transport.go) and the multicast case (ported from
// multicast-udp-transport.go): multicast differs only in that its one
// socket comes from net.ListenMulticastUDP, joined to the group.
type UDPTransport struct {
	transportBase
	conn      *net.UDPConn
	multicast bool
}

// DialUDP opens a unicast UDP "connection" to addr.
func DialUDP(addr string) (*UDPTransport, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve udp addr %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("dial udp %s: %w", addr, err)
	}
	t := &UDPTransport{conn: conn}
	t.init(conn.LocalAddr().String(), conn.RemoteAddr().String(), MaxFrameSize)
	return t, nil
}

// ListenMulticastUDP joins the multicast group at groupAddr on the
// system-chosen interface. localAddr is only recorded as the
// transport's local address label; it does not select an interface.
func ListenMulticastUDP(groupAddr, localAddr string) (*UDPTransport, error) {
	gaddr, err := net.ResolveUDPAddr("udp", groupAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve multicast group %s: %w", groupAddr, err)
	}
	conn, err := net.ListenMulticastUDP("udp", nil, gaddr)
	if err != nil {
		return nil, fmt.Errorf("join multicast group %s: %w", groupAddr, err)
	}
	t := &UDPTransport{conn: conn, multicast: true}
	t.init(localAddr, gaddr.String(), MaxFrameSize)
	return t, nil
}

func (t *UDPTransport) String() string {
	kind := "unicast"
	if t.multicast {
		kind = "multicast"
	}
	return fmt.Sprintf("udp-%s-transport (remote=%s local=%s)", kind, t.remoteAddr, t.localAddr)
}

// SendQueueSize reports the kernel send-queue depth via SIOCOUTQ.
func (t *UDPTransport) SendQueueSize() uint64 {
	return sendQueueSize(t.conn)
}

// SendFrame writes a datagram, closing the transport on write failure.
func (t *UDPTransport) SendFrame(frame []byte) {
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

// RunReceive reads datagrams until the connection closes. Unlike TCP,
// a "connection refused" ICMP error from a unicast peer is ignored
// (UDP is connectionless, so it does not mean the face is down).
func (t *UDPTransport) RunReceive(onFrame FrameHandler) {
	defer t.Close()
	buf := make([]byte, MaxFrameSize)
	for t.running.Load() {
		n, err := t.conn.Read(buf)
		if err != nil {
			if strings.Contains(err.Error(), "connection refused") {
				continue
			}
			if t.running.Load() {
				fwlog.Log.Warn(t, "unable to read from socket - face down", "err", err)
			}
			return
		}
		t.nInBytes.Add(uint64(n))
		frame := make([]byte, n)
		copy(frame, buf[:n])
		onFrame(frame)
	}
}

// Close tears down the connection.
func (t *UDPTransport) Close() {
	if t.running.Swap(false) {
		t.conn.Close()
	}
}
