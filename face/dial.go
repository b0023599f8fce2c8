package face

import (
	"fmt"
	"strings"
)

// Dial creates an outgoing Transport to addr, which carries a scheme
// prefix identifying which transport to use (tcp://, udp://, unix://),
// the same URI convention the teacher's management layer uses to turn
// a FaceUri into a concrete transport. It is the client-side
// counterpart to the Listener types, used by mgmt's AddConnection verb
// (spec.md §6) to create a connection to a named remote peer.
func Dial(addr string) (Transport, error) {
	scheme, rest, ok := strings.Cut(addr, "://")
	if !ok {
		return nil, fmt.Errorf("face: address %q has no scheme", addr)
	}
	switch scheme {
	case "tcp":
		return DialTCP(rest)
	case "udp":
		return DialUDP(rest)
	case "unix":
		conn, err := dialUnix(rest)
		if err != nil {
			return nil, err
		}
		return NewUnixTransport(conn), nil
	default:
		return nil, fmt.Errorf("face: unsupported scheme %q (websocket/quic connections are inbound-only in this forwarder)", scheme)
	}
}
