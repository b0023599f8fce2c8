package face

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	"github.com/quic-go/webtransport-go"

	fwlog "github.com/lci-net/lcifwd/std/log"
)

// QuicTransport carries one frame per unreliable WebTransport
// datagram, ported from the teacher's http3-transport.go.
type QuicTransport struct {
	transportBase
	session *webtransport.Session
}

// NewQuicTransport wraps an upgraded WebTransport session as a
// Transport.
func NewQuicTransport(local, remote string, session *webtransport.Session) *QuicTransport {
	t := &QuicTransport{session: session}
	t.init(local, remote, 1000)
	t.running.Store(true)
	return t
}

func (t *QuicTransport) String() string {
	return fmt.Sprintf("quic-transport (remote=%s local=%s)", t.remoteAddr, t.localAddr)
}

// SendQueueSize is always zero: WebTransport datagrams expose no
// queue depth, matching the teacher's own constant-zero implementation.
func (t *QuicTransport) SendQueueSize() uint64 { return 0 }

// SendFrame transmits frame as a single unreliable datagram. Unlike
// the stream transports, a QUIC datagram carries no length prefix of
// its own: the datagram boundary IS the frame boundary.
func (t *QuicTransport) SendFrame(frame []byte) {
	if !t.running.Load() {
		return
	}
	if len(frame) > t.mtu {
		fwlog.Log.Warn(t, "attempted to send frame larger than MTU", "size", len(frame), "mtu", t.mtu)
		return
	}
	if err := t.session.SendDatagram(frame); err != nil {
		fwlog.Log.Warn(t, "unable to send on socket - face down", "err", err)
		t.Close()
		return
	}
	t.nOutBytes.Add(uint64(len(frame)))
}

// RunReceive reads datagrams until the session closes.
func (t *QuicTransport) RunReceive(onFrame FrameHandler) {
	defer t.Close()
	for {
		message, err := t.session.ReceiveDatagram(t.session.Context())
		if err != nil {
			if t.running.Load() {
				fwlog.Log.Warn(t, "unable to read from webtransport session - face down", "err", err)
			}
			return
		}
		if len(message) > t.mtu {
			fwlog.Log.Warn(t, "received too much data without valid tlv block", "size", len(message))
			continue
		}
		t.nInBytes.Add(uint64(len(message)))
		onFrame(message)
	}
}

// Close tears down the WebTransport session.
func (t *QuicTransport) Close() {
	if t.running.Swap(false) {
		t.session.CloseWithError(0, "")
	}
}

// QuicListenerConfig configures a QuicListener.
type QuicListenerConfig struct {
	Bind    string
	Port    uint16
	TLSCert string
	TLSKey  string
}

func (cfg QuicListenerConfig) addr() string {
	return net.JoinHostPort(cfg.Bind, fmt.Sprintf("%d", cfg.Port))
}

// QuicListener accepts incoming HTTP/3 WebTransport sessions, ported
// from the teacher's http3-listener.go.
type QuicListener struct {
	mux    *http.ServeMux
	server *webtransport.Server
	accept func(Transport)
}

// NewQuicListener builds a listener bound to cfg.addr() serving
// WebTransport sessions at the "/ndn" path.
func NewQuicListener(cfg QuicListenerConfig) (*QuicListener, error) {
	cert, err := tls.LoadX509KeyPair(cfg.TLSCert, cfg.TLSKey)
	if err != nil {
		return nil, fmt.Errorf("load tls keypair %s %s: %w", cfg.TLSCert, cfg.TLSKey, err)
	}

	l := &QuicListener{mux: http.NewServeMux()}
	l.mux.HandleFunc("/ndn", l.handler)

	l.server = &webtransport.Server{
		H3: http3.Server{
			Addr: cfg.addr(),
			TLSConfig: &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			},
			QUICConfig: &quic.Config{
				MaxIdleTimeout:          60 * time.Second,
				KeepAlivePeriod:         30 * time.Second,
				DisablePathMTUDiscovery: true,
			},
			Handler: l.mux,
		},
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	return l, nil
}

func (l *QuicListener) String() string { return "quic-webtransport-listener" }

// Serve blocks accepting WebTransport sessions, handing each one to
// accept as a new Transport.
func (l *QuicListener) Serve(accept func(Transport)) error {
	l.accept = accept
	err := l.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (l *QuicListener) handler(w http.ResponseWriter, r *http.Request) {
	session, err := l.server.Upgrade(w, r)
	if err != nil {
		return
	}
	local := ""
	if la, ok := r.Context().Value(http.LocalAddrContextKey).(net.Addr); ok {
		local = la.String()
	}
	t := NewQuicTransport(local, r.RemoteAddr, session)
	fwlog.Log.Info(l, "accepting new quic webtransport face", "remote", r.RemoteAddr)
	l.accept(t)
}

// Close shuts down the underlying HTTP/3 server.
func (l *QuicListener) Close() error { return l.server.Close() }
