package face

import (
	"sync"

	fwlog "github.com/lci-net/lcifwd/std/log"
)

// NullTransport discards every frame sent to it and never produces
// one, ported from the teacher's null-transport.go. It is used for
// internal faces (loopback to the management plane, or connections
// whose peer has gone away but whose FIB entries have not yet been
// withdrawn).
type NullTransport struct {
	transportBase
	closeOnce sync.Once
	done      chan struct{}
}

// NewNullTransport creates a transport that is always up but never
// moves data.
func NewNullTransport() *NullTransport {
	t := &NullTransport{done: make(chan struct{})}
	t.init("null", "null", MaxFrameSize)
	t.running.Store(true)
	return t
}

func (t *NullTransport) String() string { return "null-transport" }

func (t *NullTransport) SendQueueSize() uint64 { return 0 }

func (t *NullTransport) SendFrame(frame []byte) {
	fwlog.Log.Trace(t, "discarding frame sent to null transport", "size", len(frame))
}

// RunReceive blocks until the transport is closed; a null transport
// never receives anything.
func (t *NullTransport) RunReceive(onFrame FrameHandler) {
	<-t.done
}

func (t *NullTransport) Close() {
	if t.running.Swap(false) {
		t.closeOnce.Do(func() { close(t.done) })
	}
}
