package core

import (
	"time"

	"github.com/lci-net/lcifwd/face"
	"github.com/lci-net/lcifwd/table"
	"github.com/lci-net/lcifwd/wire"
)

// Forwarder aggregates the FIB, PIT, CS, and connection table behind a
// single explicit value (DESIGN NOTES §9, "Global state"): there is no
// package-level singleton, so a process — or a single test — may hold
// as many independent Forwarders as it likes.
type Forwarder struct {
	Config *Config
	Fib    *table.Fib
	Pit    *table.Pit
	Cs     *table.Cs
	Conns  *face.ConnTable

	csStore *table.CsStore
	ring    *inboundRing

	// ControlHandler processes a decoded Control message and returns
	// the Ack to send back on the ingress connection. It is left nil
	// by NewForwarder and wired by the management layer, which owns
	// the actual ControlOp dispatch; Dispatch itself only decodes and
	// replies, keeping core free of a dependency on that package.
	ControlHandler func(*wire.ControlRequest) *wire.ControlAck

	metrics Metrics
}

// Metrics is the counter family of spec.md §7: every drop and
// lifecycle event the forwarder observes is reflected here, exposed
// read-only by mgmt/httpstatus.go.
type Metrics struct {
	DropsDecode      uint64
	DropsPolicy      uint64
	DropsCapacity    uint64
	RouteWithdrawals uint64
	PitExpirations   uint64
}

// NewForwarder builds a Forwarder from cfg. The connection table's
// onFrame callback enqueues onto the forwarder's single inbound ring
// rather than calling Dispatch directly — spec.md §5 requires every
// mutation of FIB/PIT/CS/ConnTable to happen on one cooperative
// dispatch thread, and connections each run their own receive
// goroutine. Run drains that ring. The onClose callback triggers
// implicit route withdrawal (spec.md §7).
func NewForwarder(cfg *Config) *Forwarder {
	f := &Forwarder{
		Config: cfg,
		Fib:    table.NewFib(int(cfg.FibCapacity), cfg.HashAlgorithm()),
		Pit:    table.NewPit(int(cfg.PitCapacity)),
		Cs:     table.NewCs(int(cfg.CsCapacity), cfg.CsEnabled),
		ring:   newInboundRing(),
	}
	f.Conns = face.NewConnTable(f.ring.push, f.onConnectionClosed)

	if cfg.CsStorePath != "" {
		store, err := table.OpenCsStore(cfg.CsStorePath)
		if err != nil {
			Log.Warn(f, "unable to open content store persistence, continuing memory-only", "path", cfg.CsStorePath, "err", err)
		} else {
			f.csStore = store
		}
	}
	return f
}

// Run is the single cooperative dispatch loop of spec.md §5: it drains
// the inbound ring, calling Dispatch for each frame in arrival order,
// and blocks only while the ring is empty — waking either on a new
// arrival or at the next pending PIT expiry, whichever comes first.
// It returns when stop is closed.
func (f *Forwarder) Run(stop <-chan struct{}) {
	for {
		for {
			ifr, ok := f.ring.pop()
			if !ok {
				break
			}
			f.Dispatch(ifr.connID, ifr.frame)
		}

		wait := f.idleWait()
		timer := time.NewTimer(wait)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-f.ring.notify():
			timer.Stop()
		case <-timer.C:
			if n := f.Pit.Sweep(time.Now()); n > 0 {
				f.metrics.PitExpirations += uint64(n)
			}
		}
	}
}

// idleWait sizes the dispatch loop's suspension per spec.md §5: bounded
// by the next pending PIT expiry, capped to a short default when the
// PIT is empty so the loop still wakes periodically.
func (f *Forwarder) idleWait() time.Duration {
	const maxIdle = time.Second
	next, ok := f.Pit.NextExpiry()
	if !ok {
		return maxIdle
	}
	d := time.Until(next)
	if d <= 0 {
		return time.Millisecond
	}
	if d > maxIdle {
		return maxIdle
	}
	return d
}

func (f *Forwarder) String() string { return "forwarder" }

// AddConnection registers tr as a new connection and returns it. Frames
// received on it are queued for Dispatch with their true ingress id.
func (f *Forwarder) AddConnection(tr face.Transport) *face.Connection {
	return f.Conns.Add(tr)
}

// onConnectionClosed implements the implicit route withdrawal of
// spec.md §7: when a transport goes down on its own, every FIB entry
// whose only next-hop was that connection is removed.
func (f *Forwarder) onConnectionClosed(connID uint64) {
	withdrawn := f.Fib.RemoveConnection(connID)
	f.metrics.RouteWithdrawals += uint64(len(withdrawn))
	for _, name := range withdrawn {
		Log.Info(f, "withdrew route on connection loss", "name", name.String(), "conn", connID)
	}
}

// MetricsSnapshot returns a snapshot of the forwarder's counter family.
func (f *Forwarder) MetricsSnapshot() Metrics { return f.metrics }

// CsStore returns the optional persistent content-store backing, or
// nil if none is configured.
func (f *Forwarder) CsStore() *table.CsStore { return f.csStore }

// Close releases the forwarder's persistent resources.
func (f *Forwarder) Close() {
	if f.csStore != nil {
		f.csStore.Close()
	}
}
