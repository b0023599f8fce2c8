// Package table implements the three forwarding tables of the core: the
// FIB (longest-prefix next-hop index), the PIT (pending Interest
// aggregation and expiry), and the CS (optional content cache).
package table

import (
	"sync"

	"github.com/lci-net/lcifwd/fwerr"
	"github.com/lci-net/lcifwd/wire"
)

// MaxNextHops bounds the fixed-capacity next-hop list of a FIB entry
// (spec.md §3's "fixed-capacity list of next-hops").
const MaxNextHops = 16

// NextHop is a (connection-id, weight) pair attached to a FIB entry.
type NextHop struct {
	ConnID uint64
	Weight uint32
	Flags  RouteFlag
}

// RouteFlag supplements a FIB next-hop with the registration-shadowing
// metadata of the teacher's mgmt_2022 route flags (dropped by the
// distillation). Like RouteOrigin, it is metadata only: it never
// changes the longest-prefix-match algorithm of spec.md §4.2, only
// what mgmt reports back to a caller inspecting ListRoutes.
type RouteFlag uint64

const (
	// FlagChildInherit lets a more specific registration under this
	// prefix still also match Interests for this exact name.
	FlagChildInherit RouteFlag = 1 << iota
	// FlagCapture makes this registration shadow any more specific
	// one a descendant prefix might otherwise install.
	FlagCapture
)

// RouteOrigin tags who installed a FIB next-hop, supplementing spec.md's
// FIB entry with the origin metadata carried by the original CCNx/NFD
// forwarders (ported from the teacher's mgmt_2022 route-origin enum).
// It is metadata only: it never changes the longest-prefix-match result.
type RouteOrigin byte

const (
	OriginApp RouteOrigin = iota
	OriginStatic
	OriginNLSR
	OriginPrefixAnn
	OriginClient
	OriginAutoreg
	OriginAutoconf
)

// fibEntry is attached to one specific name prefix.
type fibEntry struct {
	name          wire.Name
	nexthops      []taggedNextHop
	virtual       bool
	refcount      int
	maxComponents int
}

type taggedNextHop struct {
	NextHop
	origin RouteOrigin
}

// Name returns the prefix this entry is anchored at.
func (e *fibEntry) Name() wire.Name { return e.name }

// Virtual reports whether the entry exists only to anchor descendants.
func (e *fibEntry) Virtual() bool { return e.virtual }

// Refcount returns 1 + the number of real (non-virtual) descendant
// FIB entries.
func (e *fibEntry) Refcount() int { return e.refcount }

// MaxComponents returns the depth of the deepest descendant entry
// rooted here (monotonic: never decremented after insertion, per the
// Open Question resolved in DESIGN.md).
func (e *fibEntry) MaxComponents() int { return e.maxComponents }

// NextHops returns a copy of the entry's next-hop list.
func (e *fibEntry) NextHops() []NextHop {
	ret := make([]NextHop, len(e.nexthops))
	for i, nh := range e.nexthops {
		ret[i] = nh.NextHop
	}
	return ret
}

// Origins returns the registration origin tagged on each next-hop, in
// the same order as NextHops.
func (e *fibEntry) Origins() []RouteOrigin {
	ret := make([]RouteOrigin, len(e.nexthops))
	for i, nh := range e.nexthops {
		ret[i] = nh.origin
	}
	return ret
}

// Entry is the read-only view of a FIB entry returned by Lookup.
type Entry = fibEntry

// Fib is the hash table described in spec.md §4.2: one entry per
// distinct prefix (including virtual anchors), keyed by prefix-hash
// with byte-equality collision resolution. A single writer mutates the
// table; many readers may look up concurrently.
type Fib struct {
	mu       sync.RWMutex
	buckets  map[uint64][]*fibEntry
	def      *fibEntry
	hashAlgo wire.HashAlgo
}

// NewFib constructs an empty Fib with the given next-hop-table capacity
// hint (used only to size the initial bucket map) and prefix-hash
// algorithm.
func NewFib(capacityHint int, algo wire.HashAlgo) *Fib {
	return &Fib{
		buckets:  make(map[uint64][]*fibEntry, capacityHint),
		hashAlgo: algo,
	}
}

// SetDefault installs or replaces the default entry consulted when no
// prefix matches (spec.md §4.2 step 1).
func (f *Fib) SetDefault(connID uint64, weight uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.def == nil {
		f.def = &fibEntry{name: wire.Name{}}
	}
	f.def.nexthops = []taggedNextHop{{NextHop: NextHop{ConnID: connID, Weight: weight}}}
}

// ClearDefault removes the default entry.
func (f *Fib) ClearDefault() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.def = nil
}

// Lookup returns the longest non-virtual matching entry for name, or
// the default entry if no prefix matches and one exists, per the
// algorithm of spec.md §4.2.
func (f *Fib) Lookup(name wire.Name) (*Entry, bool) {
	ph := name.PrefixHashWith(f.hashAlgo)

	f.mu.RLock()
	defer f.mu.RUnlock()

	var result *fibEntry
	if f.def != nil {
		result = f.def
	}
	for i := 1; i <= len(name); i++ {
		e := f.probe(ph[i], name.Prefix(i))
		if e == nil {
			break // no deeper match can exist
		}
		if !e.virtual {
			result = e
		}
	}
	if result == nil {
		return nil, false
	}
	return result, true
}

// probe returns the entry at exactly prefix (by hash then byte
// equality), or nil if no entry is anchored there.
func (f *Fib) probe(h uint64, prefix wire.Name) *fibEntry {
	for _, e := range f.buckets[h] {
		if e.name.Equal(prefix) {
			return e
		}
	}
	return nil
}

// Insert adds or updates a (prefix, next-hop, weight) route, creating
// virtual ancestor entries as needed (spec.md §4.2 insertion algorithm).
// Returns fwerr.ErrAlreadyExists if the next-hop already exists at this
// weight, a *fwerr.CapacityError if the next-hop list is full, or
// wire.ErrPfxCompLimit if the prefix is too deep.
func (f *Fib) Insert(prefix wire.Name, connID uint64, weight uint32, origin RouteOrigin) error {
	if len(prefix) > wire.MaxNameComponents {
		return wire.ErrPfxCompLimit
	}
	if len(prefix) == 0 {
		return wire.ErrFormat{Msg: "cannot insert a route at the empty prefix; use SetDefault"}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	ph := prefix.PrefixHashWith(f.hashAlgo)

	// chain[i] holds the entry anchored at the first i components, for
	// i = 1..len(prefix). chain[0] is unused: the empty prefix is never
	// itself a tracked entry.
	chain := make([]*fibEntry, len(prefix)+1)
	rolledBack := make([]uint64, 0, len(prefix))
	for i := 1; i <= len(prefix); i++ {
		p := prefix.Prefix(i)
		e := f.probe(ph[i], p)
		if e == nil {
			e = &fibEntry{name: p.Clone(), virtual: true, refcount: 1, maxComponents: i}
			f.buckets[ph[i]] = append(f.buckets[ph[i]], e)
			rolledBack = append(rolledBack, ph[i])
		}
		chain[i] = e
	}

	target := chain[len(prefix)]
	transitionsToReal := target.virtual

	existingIdx := -1
	for i, nh := range target.nexthops {
		if nh.ConnID == connID {
			existingIdx = i
			break
		}
	}
	if existingIdx >= 0 {
		if target.nexthops[existingIdx].Weight == weight {
			// Atomic insert (DESIGN NOTES §9): nothing changed, so roll
			// back any virtual levels this call alone would have created.
			f.rollback(rolledBack, target)
			return fwerr.ErrAlreadyExists
		}
		target.nexthops[existingIdx].Weight = weight
		target.nexthops[existingIdx].origin = origin
	} else {
		if len(target.nexthops) >= MaxNextHops {
			f.rollback(rolledBack, target)
			return &fwerr.CapacityError{Resource: "fib-nexthops"}
		}
		target.nexthops = append(target.nexthops, taggedNextHop{
			NextHop: NextHop{ConnID: connID, Weight: weight},
			origin:  origin,
		})
	}
	target.virtual = false

	if transitionsToReal {
		for i := 1; i < len(prefix); i++ {
			chain[i].refcount++
		}
	}
	for i := 1; i <= len(prefix); i++ {
		if chain[i].maxComponents < len(prefix) {
			chain[i].maxComponents = len(prefix)
		}
	}
	return nil
}

// rollback removes the virtual levels a failed Insert call created,
// implementing the atomic-insert resolution of DESIGN NOTES §9: either
// every level of an insert succeeds, or none of its new virtual nodes
// are left behind.
func (f *Fib) rollback(hashes []uint64, target *fibEntry) {
	for _, h := range hashes {
		bucket := f.buckets[h]
		for i, e := range bucket {
			if e.virtual && e.refcount == 1 && len(e.nexthops) == 0 {
				f.buckets[h] = append(bucket[:i], bucket[i+1:]...)
				break
			}
		}
		if len(f.buckets[h]) == 0 {
			delete(f.buckets, h)
		}
	}
	_ = target
}

// Remove deletes a (prefix, next-hop) route. If other next-hops remain
// at prefix the entry survives; otherwise it is deleted or demoted to
// virtual, and ancestors are garbage-collected per spec.md §4.2.
func (f *Fib) Remove(prefix wire.Name, connID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.removeLocked(prefix, connID)
}

func (f *Fib) removeLocked(prefix wire.Name, connID uint64) error {
	if len(prefix) == 0 {
		return wire.ErrNotFound{Key: "/"}
	}
	ph := prefix.PrefixHashWith(f.hashAlgo)
	chain := make([]*fibEntry, len(prefix)+1)
	for i := 1; i <= len(prefix); i++ {
		chain[i] = f.probe(ph[i], prefix.Prefix(i))
		if chain[i] == nil {
			return wire.ErrNotFound{Key: prefix.String()}
		}
	}

	target := chain[len(prefix)]
	idx := -1
	for i, nh := range target.nexthops {
		if nh.ConnID == connID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return wire.ErrNotFound{Key: prefix.String()}
	}
	target.nexthops = append(target.nexthops[:idx], target.nexthops[idx+1:]...)
	if len(target.nexthops) > 0 {
		return nil
	}

	if target.refcount > 1 {
		target.virtual = true
	} else {
		f.deleteEntry(ph[len(prefix)], target)
	}

	for i := 1; i < len(prefix); i++ {
		chain[i].refcount--
	}
	for i := len(prefix) - 1; i >= 1; i-- {
		anc := chain[i]
		if anc.virtual && anc.refcount <= 1 {
			f.deleteEntry(ph[i], anc)
		}
	}
	return nil
}

func (f *Fib) deleteEntry(h uint64, e *fibEntry) {
	bucket := f.buckets[h]
	for i, c := range bucket {
		if c == e {
			f.buckets[h] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(f.buckets[h]) == 0 {
		delete(f.buckets, h)
	}
}

// SetFlags updates the RouteFlag metadata on an existing (prefix,
// next-hop) route, installed separately from Insert since flags are
// orthogonal to the weight/origin an AddRoute call already carries.
func (f *Fib) SetFlags(prefix wire.Name, connID uint64, flags RouteFlag) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	ph := prefix.PrefixHashWith(f.hashAlgo)
	e := f.probe(ph[len(prefix)], prefix)
	if e == nil {
		return wire.ErrNotFound{Key: prefix.String()}
	}
	for i, nh := range e.nexthops {
		if nh.ConnID == connID {
			e.nexthops[i].Flags = flags
			return nil
		}
	}
	return wire.ErrNotFound{Key: prefix.String()}
}

// RemoveConnection withdraws every route whose only next-hop is connID,
// implementing the implicit route withdrawal of spec.md §7's Transport
// error handling (and the end-to-end scenario of spec.md §8 #6).
func (f *Fib) RemoveConnection(connID uint64) []wire.Name {
	f.mu.Lock()
	defer f.mu.Unlock()

	var targets []wire.Name
	for _, bucket := range f.buckets {
		for _, e := range bucket {
			if e.virtual {
				continue
			}
			for _, nh := range e.nexthops {
				if nh.ConnID == connID {
					targets = append(targets, e.name.Clone())
					break
				}
			}
		}
	}
	for _, name := range targets {
		_ = f.removeLocked(name, connID)
	}
	return targets
}

// Names returns the name of every real (non-virtual) entry, for
// mgmt's ListRoutes verb.
func (f *Fib) Names() []wire.Name {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []wire.Name
	for _, bucket := range f.buckets {
		for _, e := range bucket {
			if !e.virtual {
				out = append(out, e.name.Clone())
			}
		}
	}
	return out
}

// Len returns the number of entries in the table, including virtual
// anchors, for test assertions.
func (f *Fib) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := 0
	for _, b := range f.buckets {
		n += len(b)
	}
	return n
}
