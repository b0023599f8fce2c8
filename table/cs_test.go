package table

import (
	"testing"
	"time"

	"github.com/lci-net/lcifwd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A cached object is returned on lookup by name.
func TestCsLookupHit(t *testing.T) {
	cs := NewCs(10, true)
	co := &wire.ContentObject{Name: mustName(t, "/foo"), Payload: wire.Wire{[]byte("x")}}
	cs.Insert(co, time.Now())

	got, ok := cs.Lookup(&wire.Interest{Name: mustName(t, "/foo")}, time.Now())
	require.True(t, ok)
	assert.True(t, got.Name.Equal(co.Name))
}

// A store constructed with enabled=false never serves hits.
func TestCsDisabledNeverHits(t *testing.T) {
	cs := NewCs(10, false)
	co := &wire.ContentObject{Name: mustName(t, "/foo")}
	cs.Insert(co, time.Now())
	_, ok := cs.Lookup(&wire.Interest{Name: mustName(t, "/foo")}, time.Now())
	assert.False(t, ok)
}

// ExpiryMs is milliseconds since the Unix epoch (an absolute
// timestamp), not a duration relative to insertion: an entry is stale
// once wall-clock time passes that timestamp.
func TestCsEntryExpires(t *testing.T) {
	cs := NewCs(10, true)
	now := time.Now()
	co := &wire.ContentObject{Name: mustName(t, "/foo"), ExpiryMs: uint64(now.Add(10 * time.Millisecond).UnixMilli())}
	cs.Insert(co, now)

	_, ok := cs.Lookup(&wire.Interest{Name: mustName(t, "/foo")}, now.Add(50*time.Millisecond))
	assert.False(t, ok)
}

// An entry whose absolute expiry timestamp is still in the future
// remains a hit.
func TestCsEntryNotYetExpired(t *testing.T) {
	cs := NewCs(10, true)
	now := time.Now()
	co := &wire.ContentObject{Name: mustName(t, "/foo"), ExpiryMs: uint64(now.Add(time.Hour).UnixMilli())}
	cs.Insert(co, now)

	_, ok := cs.Lookup(&wire.Interest{Name: mustName(t, "/foo")}, now.Add(50*time.Millisecond))
	assert.True(t, ok)
}

// Clear empties the store.
func TestCsClear(t *testing.T) {
	cs := NewCs(10, true)
	co := &wire.ContentObject{Name: mustName(t, "/foo")}
	cs.Insert(co, time.Now())
	require.Greater(t, cs.Len(), 0)
	cs.Clear()
	assert.Equal(t, 0, cs.Len())
}

// Storing and serving toggle independently: a store that keeps
// admitting objects while not serving them holds onto warm content
// without handing it out, and vice versa.
func TestCsStoringAndServingAreIndependent(t *testing.T) {
	cs := NewCs(10, true)
	cs.SetServing(false)
	co := &wire.ContentObject{Name: mustName(t, "/foo")}
	cs.Insert(co, time.Now())
	_, ok := cs.Lookup(&wire.Interest{Name: mustName(t, "/foo")}, time.Now())
	assert.False(t, ok, "serving is off, a warm entry must not be returned")

	cs.SetServing(true)
	got, ok := cs.Lookup(&wire.Interest{Name: mustName(t, "/foo")}, time.Now())
	require.True(t, ok, "the entry stored while serving was off must still be present")
	assert.True(t, got.Name.Equal(co.Name))

	cs.SetStoring(false)
	co2 := &wire.ContentObject{Name: mustName(t, "/bar")}
	cs.Insert(co2, time.Now())
	_, ok = cs.Lookup(&wire.Interest{Name: mustName(t, "/bar")}, time.Now())
	assert.False(t, ok, "storing is off, a newly arrived object must not be admitted")
}

func mustName(t *testing.T, s string) wire.Name {
	t.Helper()
	n, err := wire.ParseName(s)
	require.NoError(t, err)
	return n
}
