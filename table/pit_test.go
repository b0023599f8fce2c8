package table

import (
	"testing"
	"time"

	"github.com/lci-net/lcifwd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func interest(t *testing.T, s string) *wire.Interest {
	t.Helper()
	n, err := wire.ParseName(s)
	require.NoError(t, err)
	return &wire.Interest{Name: n}
}

// PIT aggregation per spec.md §8 scenario 4: a second Interest for the
// same name while the entry is live is aggregated, not forwarded
// again, and the union of ingress connections is delivered on match.
func TestPitAggregationScenario(t *testing.T) {
	p := NewPit(0)
	now := time.Now()

	it := interest(t, "/x")
	_, aggregated := p.OnInterest(it, 1, now)
	require.False(t, aggregated)
	_, err := p.Insert(it, 1, []uint64{99}, now)
	require.NoError(t, err)

	entry, aggregated := p.OnInterest(it, 2, now)
	require.True(t, aggregated)
	assert.ElementsMatch(t, []uint64{1, 2}, entry.Ingress())

	co := &wire.ContentObject{Name: it.Name}
	egress, ok := p.OnContentObject(co, now)
	require.True(t, ok)
	assert.ElementsMatch(t, []uint64{1, 2}, egress)
	assert.Equal(t, 0, p.Len())
}

// A Content Object arriving with no matching PIT entry is unsolicited.
func TestPitUnsolicitedContentObject(t *testing.T) {
	p := NewPit(0)
	n, _ := wire.ParseName("/nothing/pending")
	_, ok := p.OnContentObject(&wire.ContentObject{Name: n}, time.Now())
	assert.False(t, ok)
}

// An entry with a longer new lifetime has its expiry extended, never
// shortened, on aggregation.
func TestPitAggregationExtendsLifetimeOnly(t *testing.T) {
	p := NewPit(0)
	now := time.Now()
	it := interest(t, "/x")
	it.LifetimeMs = 1000
	_, err := p.Insert(it, 1, []uint64{99}, now)
	require.NoError(t, err)
	firstExpiry := p.entries[interestKeys(it)[0]].ExpireAt()

	short := interest(t, "/x")
	short.LifetimeMs = 10
	entry, aggregated := p.OnInterest(short, 2, now)
	require.True(t, aggregated)
	assert.Equal(t, firstExpiry, entry.ExpireAt())

	long := interest(t, "/x")
	long.LifetimeMs = 5000
	entry, aggregated = p.OnInterest(long, 3, now)
	require.True(t, aggregated)
	assert.True(t, entry.ExpireAt().After(firstExpiry))
}

// Entries past their expiry are evicted silently and no longer match.
func TestPitExpiry(t *testing.T) {
	p := NewPit(0)
	now := time.Now()
	it := interest(t, "/x")
	it.LifetimeMs = 10
	_, err := p.Insert(it, 1, []uint64{99}, now)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Len())

	later := now.Add(50 * time.Millisecond)
	_, aggregated := p.OnInterest(it, 2, later)
	assert.False(t, aggregated)
	assert.Equal(t, 0, p.Len())
}

// A stale heap entry left behind by an already-satisfied Interest must
// never evict the unrelated, later entry that happens to reuse the
// same key: satisfy an entry well before its expiry, insert a fresh
// entry for the same name, then let the original (stale) expiry tick
// pass — the fresh entry must still be live.
func TestPitStaleHeapEntryDoesNotEvictReinsertedEntry(t *testing.T) {
	p := NewPit(0)
	now := time.Now()

	first := interest(t, "/x")
	first.LifetimeMs = 4000
	_, err := p.Insert(first, 1, []uint64{99}, now)
	require.NoError(t, err)

	satisfyAt := now.Add(100 * time.Millisecond)
	_, ok := p.OnContentObject(&wire.ContentObject{Name: first.Name}, satisfyAt)
	require.True(t, ok)
	assert.Equal(t, 0, p.Len())

	reinsertAt := now.Add(1 * time.Second)
	second := interest(t, "/x")
	second.LifetimeMs = 4000
	_, err = p.Insert(second, 2, []uint64{99}, reinsertAt)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Len())

	// The first entry's original expiry (now+4s) fires here, well
	// before the second entry's real expiry (reinsertAt+4s).
	pastFirstExpiry := now.Add(4*time.Second + time.Millisecond)
	assert.Equal(t, 1, p.Len())
	_, aggregated := p.OnInterest(second, 3, pastFirstExpiry)
	require.True(t, aggregated)
	assert.Equal(t, 1, p.Len())
}

// A restricted Interest (KeyIdRestriction) is tracked under a separate
// key from the bare name and satisfied independently.
func TestPitRestrictionKeying(t *testing.T) {
	p := NewPit(0)
	now := time.Now()

	bare := interest(t, "/x")
	_, err := p.Insert(bare, 1, []uint64{99}, now)
	require.NoError(t, err)

	restricted := interest(t, "/x")
	restricted.KeyIdRestriction = []byte("key-A")
	_, aggregated := p.OnInterest(restricted, 2, now)
	assert.False(t, aggregated) // distinct key: not aggregated into the bare entry

	_, err = p.Insert(restricted, 2, []uint64{99}, now)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Len())

	co := &wire.ContentObject{Name: bare.Name, KeyID: []byte("key-A")}
	egress, ok := p.OnContentObject(co, now)
	require.True(t, ok)
	assert.ElementsMatch(t, []uint64{1, 2}, egress) // matches both the bare and the keyid-restricted entry
	assert.Equal(t, 0, p.Len())
}
