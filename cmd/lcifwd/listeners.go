package main

import (
	"strconv"

	"github.com/lci-net/lcifwd/core"
	"github.com/lci-net/lcifwd/face"
)

// serveable is the common shape of every listener type in face:
// accept connections until closed, handing each new Transport to a
// callback.
type serveable interface {
	Serve(accept func(face.Transport)) error
}

// startListeners binds every enabled transport in cfg.Listeners and
// runs each one's accept loop in its own goroutine, registering every
// accepted Transport with fw. Mirrors the teacher's yanfd.go, which
// starts one goroutine per configured face system.
func startListeners(fw *core.Forwarder, cfg *core.Config) {
	if cfg.Listeners.TCP.Enabled {
		addr := listenAddr(cfg.Listeners.TCP)
		ln, err := face.ListenTCP(addr)
		if err != nil {
			core.Log.Error(fw, "failed to start tcp listener", "addr", addr, "err", err)
		} else {
			serve(fw, ln, "tcp", addr)
		}
	}

	if cfg.Listeners.Unix.Enabled {
		ln, err := face.ListenUnix(cfg.Listeners.Unix.Path)
		if err != nil {
			core.Log.Error(fw, "failed to start unix listener", "path", cfg.Listeners.Unix.Path, "err", err)
		} else {
			serve(fw, ln, "unix", cfg.Listeners.Unix.Path)
		}
	}

	if cfg.Listeners.WebSocket.Enabled {
		wcfg := face.WebSocketListenerConfig{
			Bind:       cfg.Listeners.WebSocket.Address,
			Port:       cfg.Listeners.WebSocket.Port,
			TLSEnabled: cfg.Listeners.WebSocket.TLSCert != "",
			TLSCert:    cfg.Listeners.WebSocket.TLSCert,
			TLSKey:     cfg.Listeners.WebSocket.TLSKey,
		}
		ln, err := face.NewWebSocketListener(wcfg)
		if err != nil {
			core.Log.Error(fw, "failed to start websocket listener", "err", err)
		} else {
			serve(fw, ln, "websocket", listenAddr(cfg.Listeners.WebSocket))
		}
	}

	if cfg.Listeners.QUIC.Enabled {
		if cfg.Listeners.QUIC.TLSCert == "" || cfg.Listeners.QUIC.TLSKey == "" {
			core.Log.Warn(fw, "quic listener enabled but no tls_cert/tls_key configured, skipping")
		} else {
			qcfg := face.QuicListenerConfig{
				Bind:    cfg.Listeners.QUIC.Address,
				Port:    cfg.Listeners.QUIC.Port,
				TLSCert: cfg.Listeners.QUIC.TLSCert,
				TLSKey:  cfg.Listeners.QUIC.TLSKey,
			}
			ln, err := face.NewQuicListener(qcfg)
			if err != nil {
				core.Log.Error(fw, "failed to start quic listener", "err", err)
			} else {
				serve(fw, ln, "quic", listenAddr(cfg.Listeners.QUIC))
			}
		}
	}

	// UDP has no connection-oriented accept loop of its own in this
	// implementation (face.DialUDP/ListenMulticastUDP are the only
	// constructors); a unicast UDP server face is out of scope until a
	// demultiplexing UDPTransport is added, so Listeners.UDP is not
	// consulted here or anywhere else.
}

func serve(fw *core.Forwarder, ln serveable, kind, addr string) {
	go func() {
		err := ln.Serve(func(tr face.Transport) {
			conn := fw.AddConnection(tr)
			core.Log.Info(fw, "accepted connection", "kind", kind, "conn", conn.ID(), "remote", tr.RemoteAddr())
		})
		if err != nil {
			core.Log.Warn(fw, "listener stopped", "kind", kind, "addr", addr, "err", err)
		}
	}()
}

func listenAddr(lc core.ListenerConfig) string {
	return lc.Address + ":" + strconv.Itoa(int(lc.Port))
}
