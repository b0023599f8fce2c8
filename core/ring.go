package core

import "github.com/lci-net/lcifwd/std/types/lockfree"

// ingressFrame is one raw frame plus the connection it arrived on,
// queued between a connection's receive goroutine and the single
// dispatch loop that owns the FIB/PIT/CS/ConnTable state (spec.md §5).
type ingressFrame struct {
	connID uint64
	frame  []byte
}

// inboundRing is the hand-off of spec.md §5's dispatch pipeline. It is
// not bounded: YiQueue is a linked list, so push never blocks or drops
// and the number of queued frames has no limit. Every connection's
// receive goroutine is a producer,
// the dispatch loop is the single consumer. The teacher's own
// lockfree.Queue doc comment calls this shape "single consumer,
// multiple producers" (MPSC), which is exactly our case here — many
// connections, one dispatch goroutine — not the SPSC a single ring
// between one listener and one core would be.
type inboundRing struct {
	q *lockfree.YiQueue[ingressFrame]
}

func newInboundRing() *inboundRing {
	return &inboundRing{q: lockfree.NewYiQueue[ingressFrame]()}
}

// push enqueues a received frame. Called from a connection's own
// receive goroutine (face.ConnFrameHandler), never from the dispatch
// loop itself.
func (r *inboundRing) push(connID uint64, frame []byte) {
	r.q.Push(ingressFrame{connID: connID, frame: frame})
}

// pop dequeues one frame, non-blocking.
func (r *inboundRing) pop() (ingressFrame, bool) {
	return r.q.Pop()
}

// notify is the channel the dispatch loop selects on when the ring is
// empty: Push signals it exactly once per empty-to-nonempty
// transition, so a blocked consumer wakes without polling.
func (r *inboundRing) notify() <-chan struct{} {
	return r.q.Notify
}
