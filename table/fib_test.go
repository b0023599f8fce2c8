package table

import (
	"testing"

	"github.com/lci-net/lcifwd/fwerr"
	"github.com/lci-net/lcifwd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func name(t *testing.T, s string) wire.Name {
	t.Helper()
	n, err := wire.ParseName(s)
	require.NoError(t, err)
	return n
}

// A single insert is found by lookup, and Remove leaves the table empty.
func TestFibInsertLookupRemove(t *testing.T) {
	f := NewFib(0, wire.HashXXHash)
	n := name(t, "/foo")
	require.NoError(t, f.Insert(n, 10, 1, OriginApp))

	e, ok := f.Lookup(n)
	require.True(t, ok)
	assert.False(t, e.Virtual())
	assert.Equal(t, []NextHop{{ConnID: 10, Weight: 1}}, e.NextHops())

	require.NoError(t, f.Remove(n, 10))
	assert.Equal(t, 0, f.Len())
	_, ok = f.Lookup(n)
	assert.False(t, ok)
}

// Lookup returns the longest matching non-virtual prefix.
func TestFibLongestPrefixMatch(t *testing.T) {
	f := NewFib(0, wire.HashXXHash)
	require.NoError(t, f.Insert(name(t, "/a"), 1, 1, OriginApp))
	require.NoError(t, f.Insert(name(t, "/a/b"), 2, 1, OriginApp))

	e, ok := f.Lookup(name(t, "/a/b/c"))
	require.True(t, ok)
	assert.True(t, e.Name().Equal(name(t, "/a/b")))

	e, ok = f.Lookup(name(t, "/a/x"))
	require.True(t, ok)
	assert.True(t, e.Name().Equal(name(t, "/a")))

	_, ok = f.Lookup(name(t, "/z"))
	assert.False(t, ok)
}

// With no prefix match, the default route is used if one is set.
func TestFibDefaultRoute(t *testing.T) {
	f := NewFib(0, wire.HashXXHash)
	f.SetDefault(99, 1)
	e, ok := f.Lookup(name(t, "/unrouted"))
	require.True(t, ok)
	assert.Equal(t, []NextHop{{ConnID: 99, Weight: 1}}, e.NextHops())

	require.NoError(t, f.Insert(name(t, "/unrouted"), 1, 1, OriginApp))
	e, ok = f.Lookup(name(t, "/unrouted"))
	require.True(t, ok)
	assert.Equal(t, []NextHop{{ConnID: 1, Weight: 1}}, e.NextHops())

	f.ClearDefault()
	_, ok = f.Lookup(name(t, "/other"))
	assert.False(t, ok)
}

// Two next-hops accumulate on the same entry, and removing one leaves
// the other.
func TestFibMultipleNextHopsSamePrefix(t *testing.T) {
	f := NewFib(0, wire.HashXXHash)
	n := name(t, "/foo")
	require.NoError(t, f.Insert(n, 10, 1, OriginApp))
	require.NoError(t, f.Insert(n, 11, 1, OriginApp))

	e, ok := f.Lookup(n)
	require.True(t, ok)
	assert.Len(t, e.NextHops(), 2)
	assert.Equal(t, 1, e.Refcount()) // no descendants

	require.NoError(t, f.Remove(n, 10))
	e, ok = f.Lookup(n)
	require.True(t, ok)
	assert.Equal(t, []NextHop{{ConnID: 11, Weight: 1}}, e.NextHops())
}

// Virtual-node creation and GC: spec.md §8 scenario 3. Inserting
// /a/b/c creates virtual entries at /a and /a/b with refcount 2, and a
// real entry at /a/b/c with refcount 1; removing it deletes all three.
func TestFibVirtualNodeCreationAndGC(t *testing.T) {
	f := NewFib(0, wire.HashXXHash)
	require.NoError(t, f.Insert(name(t, "/a/b/c"), 7, 1, OriginApp))
	require.Equal(t, 3, f.Len())

	// /a is virtual and there is no default route, so Lookup reports no match.
	_, ok := f.Lookup(name(t, "/a"))
	assert.False(t, ok)

	ea := probeEntry(t, f, "/a")
	require.NotNil(t, ea)
	assert.True(t, ea.Virtual())
	assert.Equal(t, 2, ea.Refcount())

	eab := probeEntry(t, f, "/a/b")
	require.NotNil(t, eab)
	assert.True(t, eab.Virtual())
	assert.Equal(t, 2, eab.Refcount())

	eabc := probeEntry(t, f, "/a/b/c")
	require.NotNil(t, eabc)
	assert.False(t, eabc.Virtual())
	assert.Equal(t, 1, eabc.Refcount())

	require.NoError(t, f.Remove(name(t, "/a/b/c"), 7))
	assert.Equal(t, 0, f.Len())
}

// A virtual ancestor shared by two real descendants survives the
// removal of one of them, with its refcount adjusted down by one.
func TestFibVirtualAncestorSurvivesSiblingRemoval(t *testing.T) {
	f := NewFib(0, wire.HashXXHash)
	require.NoError(t, f.Insert(name(t, "/a/b/c"), 1, 1, OriginApp))
	require.NoError(t, f.Insert(name(t, "/a/d"), 2, 1, OriginApp))

	ea := probeEntry(t, f, "/a")
	require.NotNil(t, ea)
	assert.Equal(t, 3, ea.Refcount()) // 1 + 2 real descendants

	require.NoError(t, f.Remove(name(t, "/a/b/c"), 1))

	ea = probeEntry(t, f, "/a")
	require.NotNil(t, ea)
	assert.Equal(t, 2, ea.Refcount()) // 1 + 1 remaining real descendant
	assert.Nil(t, probeEntry(t, f, "/a/b"))
	assert.NotNil(t, probeEntry(t, f, "/a/d"))
}

// Idempotence per spec.md §8: a duplicate add is rejected with
// ErrAlreadyExists and leaves the table unchanged; a duplicate remove
// is rejected with ErrNotFound and leaves the table unchanged.
func TestFibIdempotentAddRemove(t *testing.T) {
	f := NewFib(0, wire.HashXXHash)
	n := name(t, "/x")
	require.NoError(t, f.Insert(n, 1, 5, OriginApp))
	err := f.Insert(n, 1, 5, OriginApp)
	assert.ErrorIs(t, err, fwerr.ErrAlreadyExists)
	assert.Equal(t, 1, f.Len())

	require.NoError(t, f.Remove(n, 1))
	var notFound wire.ErrNotFound
	err = f.Remove(n, 1)
	assert.ErrorAs(t, err, &notFound)
}

// Re-adding the same next-hop at a new weight updates it in place
// rather than erroring.
func TestFibInsertUpdatesWeight(t *testing.T) {
	f := NewFib(0, wire.HashXXHash)
	n := name(t, "/x")
	require.NoError(t, f.Insert(n, 1, 5, OriginApp))
	require.NoError(t, f.Insert(n, 1, 9, OriginApp))
	e, ok := f.Lookup(n)
	require.True(t, ok)
	assert.Equal(t, []NextHop{{ConnID: 1, Weight: 9}}, e.NextHops())
}

// The next-hop list is bounded; the (MaxNextHops+1)th add on a prefix
// fails with a CapacityError and leaves the existing next-hops intact.
func TestFibNextHopCapacity(t *testing.T) {
	f := NewFib(0, wire.HashXXHash)
	n := name(t, "/x")
	for i := 0; i < MaxNextHops; i++ {
		require.NoError(t, f.Insert(n, uint64(i), 1, OriginApp))
	}
	err := f.Insert(n, uint64(MaxNextHops), 1, OriginApp)
	var capErr *fwerr.CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "fib-nexthops", capErr.Resource)

	e, ok := f.Lookup(n)
	require.True(t, ok)
	assert.Len(t, e.NextHops(), MaxNextHops)
}

// A prefix deeper than MaxNameComponents is rejected before any
// mutation occurs.
func TestFibInsertDepthLimit(t *testing.T) {
	f := NewFib(0, wire.HashXXHash)
	s := ""
	for i := 0; i <= wire.MaxNameComponents; i++ {
		s += "/c"
	}
	n, err := wire.ParseName(s)
	if err != nil {
		// ParseName itself may already reject depths beyond the limit;
		// exercise Fib.Insert's own guard directly in that case.
		n = make(wire.Name, wire.MaxNameComponents+1)
		for i := range n {
			n[i] = wire.Component{Typ: wire.LabelName, Val: []byte("c")}
		}
	}
	err = f.Insert(n, 1, 1, OriginApp)
	assert.ErrorIs(t, err, wire.ErrPfxCompLimit)
	assert.Equal(t, 0, f.Len())
}

// max_components is monotonic: it records the deepest descendant ever
// inserted and does not shrink when that descendant is later removed
// (the Open Question resolved in DESIGN.md).
func TestFibMaxComponentsMonotonic(t *testing.T) {
	f := NewFib(0, wire.HashXXHash)
	require.NoError(t, f.Insert(name(t, "/a/b/c/d"), 1, 1, OriginApp))
	ea := probeEntry(t, f, "/a")
	require.NotNil(t, ea)
	assert.Equal(t, 4, ea.MaxComponents())

	require.NoError(t, f.Remove(name(t, "/a/b/c/d"), 1))
	// /a is now gone entirely (no surviving descendants), so there is
	// nothing left to assert monotonicity on; insert a sibling to keep
	// /a alive and check its max_components does not shrink back to 2.
	require.NoError(t, f.Insert(name(t, "/a/b"), 2, 1, OriginApp))
	require.NoError(t, f.Insert(name(t, "/a/b/c/d"), 3, 1, OriginApp))
	require.NoError(t, f.Remove(name(t, "/a/b/c/d"), 3))
	ea = probeEntry(t, f, "/a")
	require.NotNil(t, ea)
	assert.Equal(t, 4, ea.MaxComponents())
}

// RemoveConnection withdraws every route whose only next-hop is the
// closed connection, per spec.md §8 scenario 6.
func TestFibRemoveConnectionWithdrawsRoutes(t *testing.T) {
	f := NewFib(0, wire.HashXXHash)
	require.NoError(t, f.Insert(name(t, "/z"), 42, 1, OriginApp))
	require.NoError(t, f.Insert(name(t, "/w"), 42, 1, OriginApp))
	require.NoError(t, f.Insert(name(t, "/w"), 43, 1, OriginApp))

	withdrawn := f.RemoveConnection(42)
	assert.Len(t, withdrawn, 2)

	_, ok := f.Lookup(name(t, "/z"))
	assert.False(t, ok)
	e, ok := f.Lookup(name(t, "/w"))
	require.True(t, ok)
	assert.Equal(t, []NextHop{{ConnID: 43, Weight: 1}}, e.NextHops())
}

// probeEntry looks an exact prefix up directly in the bucket map,
// bypassing Lookup's longest-match/virtual-skipping behavior, so tests
// can assert on virtual entries too.
func probeEntry(t *testing.T, f *Fib, s string) *Entry {
	t.Helper()
	n := name(t, s)
	ph := n.PrefixHashWith(f.hashAlgo)
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.probe(ph[len(n)], n)
}
