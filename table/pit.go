package table

import (
	"time"

	"github.com/lci-net/lcifwd/fwerr"
	"github.com/lci-net/lcifwd/std/types/priority_queue"
	"github.com/lci-net/lcifwd/wire"
)

// DefaultPitLifetime is used when an Interest carries no LifetimeMs.
const DefaultPitLifetime = 4 * time.Second

// restrictionKind distinguishes the three PIT keying tuples of
// spec.md §4.3: a bare name, a name plus a signer key-id restriction,
// or a name plus a content-object-hash restriction.
type restrictionKind byte

const (
	restrictionNone restrictionKind = iota
	restrictionKeyID
	restrictionHash
)

// pitKey is the PIT's lookup key: (name, kind-of-restriction, restriction-bytes).
type pitKey struct {
	name string // wire.Name.Bytes() as a string, for use as a map key
	kind restrictionKind
	rest string
}

func keyFor(n wire.Name, kind restrictionKind, restriction []byte) pitKey {
	return pitKey{name: string(n.Bytes()), kind: kind, rest: string(restriction)}
}

// interestKeys returns the PIT keys an incoming Interest should be
// looked up and inserted under: the bare name when it carries no
// restriction, otherwise one restricted key for each restriction it
// carries, so a restricted Interest never aggregates with an
// unrestricted one.
func interestKeys(it *wire.Interest) []pitKey {
	var keys []pitKey
	if len(it.KeyIdRestriction) > 0 {
		keys = append(keys, keyFor(it.Name, restrictionKeyID, it.KeyIdRestriction))
	}
	if len(it.ContentObjectHashRestrict) > 0 {
		keys = append(keys, keyFor(it.Name, restrictionHash, it.ContentObjectHashRestrict))
	}
	if len(keys) == 0 {
		keys = append(keys, keyFor(it.Name, restrictionNone, nil))
	}
	return keys
}

// contentKeys returns the three lookup keys a Content Object is
// checked against on arrival (spec.md §4.3 "Consumption on Content
// Object"): the bare name, (name, hash=digest), and (name, keyid=K).
func contentKeys(co *wire.ContentObject) []pitKey {
	return []pitKey{
		keyFor(co.Name, restrictionNone, nil),
		keyFor(co.Name, restrictionHash, co.Digest()),
		keyFor(co.Name, restrictionKeyID, co.KeyID),
	}
}

// PitEntry is a pending Interest: its reverse path, the egress set it
// was forwarded on, and its expiry.
type PitEntry struct {
	name     wire.Name
	keys     []pitKey // every key this entry is registered under
	ingress  map[uint64]struct{}
	egress   []uint64
	expireAt time.Time
	removed  bool // true once removeEntry has run; guards the stale heap pop
	heapItem *priority_queue.Item[*PitEntry, int64]
}

// Name returns the Interest name this entry is keyed on.
func (e *PitEntry) Name() wire.Name { return e.name }

// Ingress returns the set of connections that sent a matching Interest.
func (e *PitEntry) Ingress() []uint64 {
	out := make([]uint64, 0, len(e.ingress))
	for c := range e.ingress {
		out = append(out, c)
	}
	return out
}

// Egress returns the connections the Interest was forwarded to.
func (e *PitEntry) Egress() []uint64 { return e.egress }

// ExpireAt returns the entry's current expiry deadline.
func (e *PitEntry) ExpireAt() time.Time { return e.expireAt }

// Pit is the pending-Interest table of spec.md §4.3: aggregation by
// (name, restriction) key, reverse-path tracking, and expiry via a
// min-heap ordered on expiry tick, reusing the teacher's generic
// priority_queue unmodified as the expiry scheduler.
type Pit struct {
	capacity int
	entries  map[pitKey]*PitEntry
	expiry   priority_queue.Queue[*PitEntry, int64]
}

// NewPit constructs an empty Pit bounded at capacity entries (0 means
// unbounded).
func NewPit(capacity int) *Pit {
	return &Pit{
		capacity: capacity,
		entries:  make(map[pitKey]*PitEntry),
		expiry:   priority_queue.New[*PitEntry, int64](),
	}
}

// Len returns the number of registered PIT keys: one per entry, or two
// for an entry whose Interest carries both restrictions.
func (p *Pit) Len() int { return len(p.entries) }

// Lookup finds the Interest's primary (bare-name) PIT entry, for
// policy checks that only need to know whether an aggregation target
// exists. Most callers should use OnInterest instead.
func (p *Pit) Lookup(it *wire.Interest) (*PitEntry, bool) {
	e, ok := p.entries[keyFor(it.Name, restrictionNone, nil)]
	return e, ok
}

// OnInterest implements the aggregation contract of spec.md §4.3: if a
// live entry already exists for any of the Interest's keys, the
// ingress connection is added to its reverse path and its expiry is
// extended (never shortened), and aggregated=true is returned so the
// caller does not forward again. Otherwise the caller is expected to
// compute an egress set via FIB and call Insert.
func (p *Pit) OnInterest(it *wire.Interest, ingress uint64, now time.Time) (entry *PitEntry, aggregated bool) {
	p.evictExpired(now)
	newExpiry := now.Add(lifetimeOf(it))

	for _, k := range interestKeys(it) {
		if e, ok := p.entries[k]; ok {
			e.ingress[ingress] = struct{}{}
			if newExpiry.After(e.expireAt) {
				e.expireAt = newExpiry
				p.expiry.UpdatePriority(e.heapItem, newExpiry.UnixNano())
			}
			return e, true
		}
	}
	return nil, false
}

// Insert creates a new PIT entry for a freshly forwarded Interest, with
// the chosen egress set and an expiry derived from the Interest's
// lifetime (or DefaultPitLifetime if unset). Returns a *fwerr.CapacityError
// if the table is full.
func (p *Pit) Insert(it *wire.Interest, ingress uint64, egress []uint64, now time.Time) (*PitEntry, error) {
	if p.capacity > 0 && len(p.entries) >= p.capacity {
		return nil, &fwerr.CapacityError{Resource: "pit-entries"}
	}
	expireAt := now.Add(lifetimeOf(it))

	e := &PitEntry{
		name:     it.Name.Clone(),
		keys:     interestKeys(it),
		ingress:  map[uint64]struct{}{ingress: {}},
		egress:   append([]uint64(nil), egress...),
		expireAt: expireAt,
	}
	e.heapItem = p.expiry.Push(e, expireAt.UnixNano())
	for _, k := range e.keys {
		p.entries[k] = e
	}
	return e, nil
}

// OnContentObject implements spec.md §4.3's consumption algorithm: it
// checks the three lookup keys, unions every matched entry's ingress
// set into the returned egress set, and deletes the matched entries.
// An empty, ok=false result means the Content Object is unsolicited.
func (p *Pit) OnContentObject(co *wire.ContentObject, now time.Time) (egress []uint64, ok bool) {
	p.evictExpired(now)
	seen := make(map[uint64]struct{})
	consumed := make(map[*PitEntry]struct{})
	for _, k := range contentKeys(co) {
		e, present := p.entries[k]
		if !present {
			continue
		}
		consumed[e] = struct{}{}
		for c := range e.ingress {
			seen[c] = struct{}{}
		}
	}
	if len(consumed) == 0 {
		return nil, false
	}
	for e := range consumed {
		p.removeEntry(e)
	}
	out := make([]uint64, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	return out, true
}

// removeEntry deletes e from every key it is registered under and
// marks it removed. Its entry in the expiry heap is left in place and
// skipped lazily by evictExpired (keyed by entry identity, not by
// pitKey, so a stale pop can never land on a different entry that
// happens to share the same key), avoiding an O(n) heap search on
// every consumption.
func (p *Pit) removeEntry(e *PitEntry) {
	if e.removed {
		return
	}
	e.removed = true
	for _, k := range e.keys {
		if cur, ok := p.entries[k]; ok && cur == e {
			delete(p.entries, k)
		}
	}
}

// evictExpired pops every entry whose expiry has passed, per spec.md
// §4.3: evicted entries silently disappear, no NACK is generated. It
// returns the number of entries actually removed, for the caller's
// metrics.
func (p *Pit) evictExpired(now time.Time) int {
	nowNano := now.UnixNano()
	n := 0
	for p.expiry.Len() > 0 && p.expiry.PeekPriority() <= nowNano {
		e := p.expiry.Pop()
		if e.removed {
			continue
		}
		p.removeEntry(e)
		n++
	}
	return n
}

// Sweep evicts every entry whose expiry has passed as of now and
// returns how many were removed. The dispatch loop calls this once
// per idle wakeup (spec.md §5's "bounded wait with timeout equal to
// the next pending PIT expiry"), in addition to the lazy eviction
// OnInterest/OnContentObject already do on every packet.
func (p *Pit) Sweep(now time.Time) int { return p.evictExpired(now) }

// NextExpiry returns the earliest expiry time still in the expiry
// heap, for the dispatch loop to size its idle wait. That heap item may
// belong to an entry already consumed, since removeEntry leaves heap
// items in place until evictExpired pops them.
func (p *Pit) NextExpiry() (time.Time, bool) {
	if p.expiry.Len() == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, p.expiry.PeekPriority()), true
}

func lifetimeOf(it *wire.Interest) time.Duration {
	if it.LifetimeMs == 0 {
		return DefaultPitLifetime
	}
	return time.Duration(it.LifetimeMs) * time.Millisecond
}
