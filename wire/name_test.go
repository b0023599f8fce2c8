package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Parses a plain textual name and checks that the implicit NAME label
// is applied to every component.
func TestParseNamePlain(t *testing.T) {
	n, err := ParseName("/foo/bar")
	require.NoError(t, err)
	require.Len(t, n, 2)
	assert.Equal(t, LabelName, n[0].Typ)
	assert.Equal(t, []byte("foo"), n[0].Val)
	assert.Equal(t, []byte("bar"), n[1].Val)
}

// A leading NAME=0 label is equivalent to the elided default form.
func TestParseNameExplicitLabelEqualsDefault(t *testing.T) {
	a, err := ParseName("/foo/bar")
	require.NoError(t, err)
	b, err := ParseName("/0=foo/0=bar")
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
}

// Hex-prefixed label types parse the same as their decimal equivalent.
func TestParseNameHexLabel(t *testing.T) {
	a, err := ParseName("/1=chunk")
	require.NoError(t, err)
	b, err := ParseName("/0x1=chunk")
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
}

// Round-trips a name with percent-escaped bytes through String/ParseName.
func TestNameStringRoundTrip(t *testing.T) {
	n := Name{
		Component{Typ: LabelName, Val: []byte("a/b")},
		Component{Typ: LabelName, Val: []byte{0x00, 0xff}},
	}
	s := n.String()
	back, err := ParseName(s)
	require.NoError(t, err)
	assert.True(t, n.Equal(back))
}

// A name deeper than MaxNameComponents is rejected with ErrPfxCompLimit.
func TestParseNameDepthLimit(t *testing.T) {
	s := ""
	for i := 0; i <= MaxNameComponents; i++ {
		s += "/c"
	}
	_, err := ParseName(s)
	assert.ErrorIs(t, err, ErrPfxCompLimit)
}

// A name of exactly MaxNameComponents is accepted.
func TestParseNameAtDepthLimit(t *testing.T) {
	s := ""
	for i := 0; i < MaxNameComponents; i++ {
		s += "/c"
	}
	_, err := ParseName(s)
	assert.NoError(t, err)
}

// The prefix-hash vector has k+1 entries for a k-component name, and
// ret[i] is reproducible from hashing the first i components directly.
func TestPrefixHashVectorLength(t *testing.T) {
	n, err := ParseName("/a/b/c")
	require.NoError(t, err)
	ph := n.PrefixHash()
	require.Len(t, ph, 4)
	assert.Equal(t, n.Prefix(2).Hash(), ph[2])
	assert.Equal(t, n.Hash(), ph[3])
}

// Two equal-length names with the same components hash identically.
func TestPrefixHashDeterministic(t *testing.T) {
	a, _ := ParseName("/foo/bar")
	b, _ := ParseName("/foo/bar")
	assert.Equal(t, a.PrefixHash(), b.PrefixHash())
}

// IsPrefix matches spec.md §3's definition: shorter-or-equal length and
// a matching run of components.
func TestNameIsPrefix(t *testing.T) {
	a, _ := ParseName("/foo")
	b, _ := ParseName("/foo/bar/baz")
	assert.True(t, a.IsPrefix(b))
	assert.False(t, b.IsPrefix(a))
	assert.True(t, a.IsPrefix(a))
}
