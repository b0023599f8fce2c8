package table

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lci-net/lcifwd/wire"
)

// csKey mirrors a PIT key: a Content Store entry is addressable by its
// bare name or by (name, hash), per spec.md §4.4.
type csKey = pitKey

// CsEntry is one cached Content Object plus the wall-clock time it
// becomes stale.
type CsEntry struct {
	Object    *wire.ContentObject
	StaleTime time.Time
}

func (e *CsEntry) expired(now time.Time) bool {
	return !e.StaleTime.IsZero() && now.After(e.StaleTime)
}

// Cs is the optional Content Store of spec.md §4.4: an approximate-LRU
// cache of recent Content Objects, bounded by entry count, with TTL
// derived from each object's expiry field. The LRU policy itself is
// delegated to hashicorp/golang-lru rather than hand-rolled, matching
// the pack's approach to bounded caches.
//
// storing and serving are independent switches matching mgmt's two
// distinct control verbs (§6): CacheStore(on|off) governs whether
// arriving Content Objects are admitted, CacheServe(on|off) governs
// whether a cached hit is ever returned to a new Interest. A store
// that is off but still serving drains to empty as entries expire; a
// store that is on but not serving keeps warming silently (useful for
// priming a cache before cutting traffic over to it).
type Cs struct {
	storing bool
	serving bool
	cache   *lru.Cache[csKey, *CsEntry]
}

// NewCs constructs a Content Store with room for capacity entries.
// enabled=false disables both storing and serving, implementing the
// cs_enabled configuration flag of spec.md §6.
func NewCs(capacity int, enabled bool) *Cs {
	if capacity <= 0 {
		capacity = 1
	}
	c, _ := lru.New[csKey, *CsEntry](capacity)
	return &Cs{storing: enabled, serving: enabled, cache: c}
}

// Enabled reports whether the store currently admits new entries.
func (c *Cs) Enabled() bool { return c.storing }

// SetStoring toggles whether Insert admits new Content Objects,
// implementing OpCacheStoreOn/Off.
func (c *Cs) SetStoring(on bool) { c.storing = on }

// SetServing toggles whether Lookup ever returns a hit, implementing
// OpCacheServeOn/Off without discarding cached content.
func (c *Cs) SetServing(on bool) { c.serving = on }

// Lookup returns the cached object matching an Interest's name and any
// restriction it carries, per spec.md §4.4: consulted before the PIT,
// and a hit means no PIT entry should be created. Insert indexes only
// by name and by (name, hash), so an Interest carrying a KeyId
// restriction never hits.
func (c *Cs) Lookup(it *wire.Interest, now time.Time) (*wire.ContentObject, bool) {
	if !c.serving {
		return nil, false
	}
	for _, k := range interestKeys(it) {
		e, ok := c.cache.Get(k)
		if !ok {
			continue
		}
		if e.expired(now) {
			c.cache.Remove(k)
			continue
		}
		return e.Object, true
	}
	return nil, false
}

// Insert caches a Content Object keyed by name and by (name, hash), per
// spec.md §4.4. A no-op if storing is disabled.
func (c *Cs) Insert(co *wire.ContentObject, now time.Time) {
	if !c.storing {
		return
	}
	var stale time.Time
	if co.ExpiryMs > 0 {
		stale = time.UnixMilli(int64(co.ExpiryMs))
	}
	entry := &CsEntry{Object: co, StaleTime: stale}
	c.cache.Add(keyFor(co.Name, restrictionNone, nil), entry)
	c.cache.Add(keyFor(co.Name, restrictionHash, co.Digest()), entry)
}

// Clear empties the store, implementing OpCacheClear.
func (c *Cs) Clear() { c.cache.Purge() }

// Len returns the number of cache slots currently occupied (note: an
// object stored under two keys occupies two slots, matching the
// underlying LRU's own accounting).
func (c *Cs) Len() int { return c.cache.Len() }
