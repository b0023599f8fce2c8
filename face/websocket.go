package face

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	fwlog "github.com/lci-net/lcifwd/std/log"
)

// WebSocketTransport communicates with web applications (browser JS
// clients) via WebSocket, ported from the teacher's
// web-socket-transport.go.
type WebSocketTransport struct {
	transportBase
	conn *websocket.Conn
}

// NewWebSocketTransport wraps an already-upgraded WebSocket
// connection as a Transport.
func NewWebSocketTransport(conn *websocket.Conn) *WebSocketTransport {
	t := &WebSocketTransport{conn: conn}
	t.init(conn.LocalAddr().String(), conn.RemoteAddr().String(), MaxFrameSize)
	t.running.Store(true)
	return t
}

func (t *WebSocketTransport) String() string {
	return fmt.Sprintf("web-socket-transport (remote=%s local=%s)", t.remoteAddr, t.localAddr)
}

// SendQueueSize is always zero: gorilla/websocket exposes no queue
// depth, matching the teacher's own constant-zero implementation.
func (t *WebSocketTransport) SendQueueSize() uint64 { return 0 }

// SendFrame writes a single binary WebSocket message.
func (t *WebSocketTransport) SendFrame(frame []byte) {
	if !t.running.Load() {
		return
	}
	if len(frame) > t.mtu {
		fwlog.Log.Warn(t, "attempted to send frame larger than MTU", "size", len(frame), "mtu", t.mtu)
		return
	}
	if err := t.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		fwlog.Log.Warn(t, "unable to send on socket - face down", "err", err)
		t.Close()
		return
	}
	t.nOutBytes.Add(uint64(len(frame)))
}

// RunReceive reads binary WebSocket messages until the connection
// closes, discarding any non-binary message.
func (t *WebSocketTransport) RunReceive(onFrame FrameHandler) {
	defer t.Close()
	for {
		mt, message, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			if t.running.Load() {
				fwlog.Log.Warn(t, "unable to read from websocket - face down", "err", err)
			}
			return
		}
		if mt != websocket.BinaryMessage {
			fwlog.Log.Warn(t, "ignored non-binary websocket message")
			continue
		}
		if len(message) > t.mtu {
			fwlog.Log.Warn(t, "received too much data without valid tlv block", "size", len(message))
			continue
		}
		t.nInBytes.Add(uint64(len(message)))
		onFrame(message)
	}
}

// Close tears down the WebSocket connection.
func (t *WebSocketTransport) Close() {
	if t.running.Swap(false) {
		t.conn.Close()
	}
}

// WebSocketListenerConfig configures a WebSocketListener.
type WebSocketListenerConfig struct {
	Bind       string
	Port       uint16
	TLSEnabled bool
	TLSCert    string
	TLSKey     string
}

func (cfg WebSocketListenerConfig) addr() string {
	return net.JoinHostPort(cfg.Bind, fmt.Sprintf("%d", cfg.Port))
}

// WebSocketListener accepts WebSocket connections from web
// applications, ported from the teacher's web-socket-listener.go.
type WebSocketListener struct {
	server   http.Server
	upgrader websocket.Upgrader
	accept   func(Transport)
}

// NewWebSocketListener builds a listener from cfg; it does not start
// serving until Serve is called.
func NewWebSocketListener(cfg WebSocketListenerConfig) (*WebSocketListener, error) {
	l := &WebSocketListener{
		server: http.Server{Addr: cfg.addr()},
		upgrader: websocket.Upgrader{
			WriteBufferPool: &sync.Pool{},
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	if cfg.TLSEnabled {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return nil, fmt.Errorf("load tls keypair %s %s: %w", cfg.TLSCert, cfg.TLSKey, err)
		}
		l.server.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}
	return l, nil
}

func (l *WebSocketListener) String() string { return fmt.Sprintf("web-socket-listener(addr=%s)", l.server.Addr) }

// Serve blocks accepting WebSocket connections, handing each one to
// accept as a new Transport.
func (l *WebSocketListener) Serve(accept func(Transport)) error {
	l.accept = accept
	l.server.Handler = http.HandlerFunc(l.handler)

	var err error
	if l.server.TLSConfig == nil {
		err = l.server.ListenAndServe()
	} else {
		err = l.server.ListenAndServeTLS("", "")
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (l *WebSocketListener) handler(w http.ResponseWriter, r *http.Request) {
	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	t := NewWebSocketTransport(conn)
	fwlog.Log.Info(l, "accepting new websocket face", "remote", t.RemoteAddr())
	l.accept(t)
}

// Close gracefully shuts down the listener.
func (l *WebSocketListener) Close() error {
	return l.server.Shutdown(context.Background())
}
