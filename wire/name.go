package wire

import (
	"bytes"
	"hash"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash"
	"golang.org/x/crypto/blake2b"
)

// Label types for name segments (spec.md §3, §6). NAME is the implicit
// default label and the only one a textual name may omit.
const (
	LabelName      TLNum = 0
	LabelChunk     TLNum = 1
	LabelVersion   TLNum = 2
	LabelMeta      TLNum = 3
	LabelKeyID     TLNum = 4
	LabelSigValue  TLNum = 5
	LabelImpDigest TLNum = 6
)

const TypeName TLNum = 0x07

// MaxNameComponents bounds name depth per spec.md §3 (PFX_COMP_LIMIT).
const MaxNameComponents = 17

// MaxComponentValue bounds the size of a single segment's opaque value.
const MaxComponentValue = 8800

// Component is one labelled segment of a Name: a 16-bit label type and
// an opaque byte value.
type Component struct {
	Typ TLNum
	Val []byte
}

// Equal reports whether two components carry the same label and bytes.
func (c Component) Equal(rhs Component) bool {
	return c.Typ == rhs.Typ && bytes.Equal(c.Val, rhs.Val)
}

// Compare orders components first by label, then by value length, then
// by byte value. The FIB resolves hash collisions with Equal, not with
// this order, and the PIT keys on encoded name bytes.
func (c Component) Compare(rhs Component) int {
	if c.Typ != rhs.Typ {
		if c.Typ < rhs.Typ {
			return -1
		}
		return 1
	}
	if len(c.Val) != len(rhs.Val) {
		if len(c.Val) < len(rhs.Val) {
			return -1
		}
		return 1
	}
	return bytes.Compare(c.Val, rhs.Val)
}

// EncodingLength is the wire size of the component (type + length + value).
func (c Component) EncodingLength() int {
	l := len(c.Val)
	return c.Typ.EncodingLength() + Nat(l).EncodingLength() + l
}

// EncodeInto writes the component's TLV encoding into buf.
func (c Component) EncodeInto(buf Buffer) int {
	p1 := c.Typ.EncodeInto(buf)
	p2 := Nat(len(c.Val)).EncodeInto(buf[p1:])
	copy(buf[p1+p2:], c.Val)
	return p1 + p2 + len(c.Val)
}

// Bytes returns the component's standalone TLV encoding.
func (c Component) Bytes() []byte {
	buf := make([]byte, c.EncodingLength())
	c.EncodeInto(buf)
	return buf
}

// NumberVal interprets the component's value as a big-endian integer.
func (c Component) NumberVal() uint64 {
	v := uint64(0)
	for _, b := range c.Val {
		v = (v << 8) | uint64(b)
	}
	return v
}

// ParseComponent decodes one component from the front of buf, returning
// the component and the total bytes consumed.
func ParseComponent(buf Buffer) (Component, int) {
	typ, p1 := ParseTLNum(buf)
	l, p2 := ParseTLNum(buf[p1:])
	start := p1 + p2
	end := start + int(l)
	return Component{Typ: typ, Val: buf[start:end]}, end
}

// ReadComponent reads one component from r.
func ReadComponent(r ParseReader) (Component, error) {
	typ, err := ReadTLNum(r)
	if err != nil {
		return Component{}, err
	}
	l, err := ReadTLNum(r)
	if err != nil {
		return Component{}, err
	}
	val, err := r.ReadBuf(int(l))
	if err != nil {
		return Component{}, err
	}
	return Component{Typ: typ, Val: val}, nil
}

// Name is an ordered, immutable sequence of labelled components.
// Canonical form is byte-for-byte: two names are Equal iff they carry
// the same length and every component compares equal.
type Name []Component

// String renders the textual form of spec.md §6: "lci:/T=V/T=V/...",
// with a leading NAME label (0) elided.
func (n Name) String() string {
	sb := strings.Builder{}
	sb.WriteString("lci:")
	if len(n) == 0 {
		sb.WriteByte('/')
		return sb.String()
	}
	for _, c := range n {
		sb.WriteByte('/')
		if c.Typ != LabelName {
			sb.WriteString(strconv.FormatUint(uint64(c.Typ), 10))
			sb.WriteByte('=')
		}
		writeEscaped(c.Val, &sb)
	}
	return sb.String()
}

func writeEscaped(val []byte, sb *strings.Builder) {
	for _, b := range val {
		if isLegalNameByte(b) {
			sb.WriteByte(b)
		} else {
			sb.WriteByte('%')
			sb.WriteByte(hexUpper[b>>4])
			sb.WriteByte(hexUpper[b&0x0f])
		}
	}
}

const hexUpper = "0123456789ABCDEF"

func isLegalNameByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') ||
		b == '-' || b == '_' || b == '.' || b == '~'
}

// ParseName parses the textual form of spec.md §6 into a Name. The
// "lci:" scheme prefix is optional on input.
func ParseName(s string) (Name, error) {
	s = strings.TrimPrefix(s, "lci:")
	if s == "/" || s == "" {
		return Name{}, nil
	}
	s = strings.TrimPrefix(s, "/")
	s = strings.TrimSuffix(s, "/")
	if s == "" {
		return Name{}, nil
	}
	parts := strings.Split(s, "/")
	if len(parts) > MaxNameComponents {
		return nil, ErrPfxCompLimit
	}
	ret := make(Name, len(parts))
	for i, p := range parts {
		c, err := parseComponentStr(p)
		if err != nil {
			return nil, err
		}
		ret[i] = c
	}
	return ret, nil
}

func parseComponentStr(s string) (Component, error) {
	typ := LabelName
	val := s
	if idx := strings.IndexByte(s, '='); idx >= 0 {
		tstr := s[:idx]
		var t uint64
		var err error
		if strings.HasPrefix(tstr, "0x") || strings.HasPrefix(tstr, "0X") {
			t, err = strconv.ParseUint(tstr[2:], 16, 16)
		} else {
			t, err = strconv.ParseUint(tstr, 10, 16)
		}
		if err == nil {
			typ = TLNum(t)
			val = s[idx+1:]
		}
	}
	unescaped, err := unescapeValue(val)
	if err != nil {
		return Component{}, err
	}
	return Component{Typ: typ, Val: unescaped}, nil
}

func unescapeValue(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); {
		if s[i] == '%' {
			if i+2 >= len(s) {
				return nil, ErrFormat{"truncated percent-escape in name component: " + s}
			}
			v, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
			if err != nil {
				return nil, ErrFormat{"invalid percent-escape in name component: " + s}
			}
			out = append(out, byte(v))
			i += 3
			continue
		}
		out = append(out, s[i])
		i++
	}
	return out, nil
}

// Equal reports whether two names have the same length and all
// components compare equal.
func (n Name) Equal(rhs Name) bool {
	if len(n) != len(rhs) {
		return false
	}
	for i := range n {
		if !n[i].Equal(rhs[i]) {
			return false
		}
	}
	return true
}

// Compare orders names lexicographically by component, shorter-is-less
// on a common prefix.
func (n Name) Compare(rhs Name) int {
	for i := 0; i < min(len(n), len(rhs)); i++ {
		if c := n[i].Compare(rhs[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(n) < len(rhs):
		return -1
	case len(n) > len(rhs):
		return 1
	default:
		return 0
	}
}

// IsPrefix reports whether n is a prefix of rhs: len(n) <= len(rhs) and
// every component of n compares equal to the corresponding one in rhs.
func (n Name) IsPrefix(rhs Name) bool {
	if len(n) > len(rhs) {
		return false
	}
	for i := range n {
		if !n[i].Equal(rhs[i]) {
			return false
		}
	}
	return true
}

// Prefix returns the first i components of n. A negative i counts from
// the end.
func (n Name) Prefix(i int) Name {
	if i < 0 {
		i = len(n) + i
	}
	if i <= 0 {
		return Name{}
	}
	if i >= len(n) {
		return n
	}
	return n[:i]
}

// Clone makes an independent deep copy of n.
func (n Name) Clone() Name {
	ret := make(Name, len(n))
	for i, c := range n {
		ret[i] = Component{Typ: c.Typ, Val: append([]byte(nil), c.Val...)}
	}
	return ret
}

// EncodingLength is the wire size of n excluding the outer Name TLV header.
func (n Name) EncodingLength() int {
	l := 0
	for _, c := range n {
		l += c.EncodingLength()
	}
	return l
}

// EncodeInto writes n's components (no outer TL) into buf.
func (n Name) EncodeInto(buf Buffer) int {
	pos := 0
	for _, c := range n {
		pos += c.EncodeInto(buf[pos:])
	}
	return pos
}

// Bytes returns the fully-framed Name TLV (including the outer type/length).
func (n Name) Bytes() []byte {
	l := n.EncodingLength()
	buf := make([]byte, TypeName.EncodingLength()+Nat(l).EncodingLength()+l)
	p1 := TypeName.EncodeInto(buf)
	p2 := Nat(l).EncodeInto(buf[p1:])
	n.EncodeInto(buf[p1+p2:])
	return buf
}

// ReadName reads components until r is exhausted (used inside a
// Name TLV's already-delegated sub-reader).
func ReadName(r ParseReader) (Name, error) {
	ret := make(Name, 0, 8)
	for {
		c, err := ReadComponent(r)
		if err != nil {
			break
		}
		ret = append(ret, c)
	}
	if len(ret) > MaxNameComponents {
		return nil, ErrPfxCompLimit
	}
	return ret, nil
}

// HashAlgo selects the hash function used to build the prefix-hash
// vector (spec.md §3's "must be deterministic"; collisions are always
// resolved by key comparison, so any deterministic hash is safe here).
type HashAlgo int

const (
	HashXXHash HashAlgo = iota
	HashBlake2b
)

func newHasher(algo HashAlgo) hash.Hash64 {
	switch algo {
	case HashBlake2b:
		h, err := blake2b.New64(nil)
		if err != nil {
			panic(err) // nil key is always valid for blake2b.New64
		}
		return h
	default:
		return xxhash.New()
	}
}

// hasherPool recycles xxhash.Digest instances for HashWith/
// PrefixHashWith's default-algorithm path, the one exercised on every
// single incoming packet's name-hash precomputation (spec.md §4.1).
// Only xxhash goes through the pool: blake2b is the uncommon,
// operator-opted-in alternative and isn't worth pooling.
var hasherPool = sync.Pool{
	New: func() any { return newHasher(HashXXHash) },
}

func acquireHasher(algo HashAlgo) hash.Hash64 {
	if algo == HashXXHash {
		return hasherPool.Get().(hash.Hash64)
	}
	return newHasher(algo)
}

func releaseHasher(algo HashAlgo, h hash.Hash64) {
	if algo == HashXXHash {
		h.Reset()
		hasherPool.Put(h)
	}
}

// Hash returns the hash of n under the default algorithm (xxhash). The
// FIB looks up by PrefixHashWith and the PIT by encoded name bytes;
// neither calls Hash.
func (n Name) Hash() uint64 {
	return n.HashWith(HashXXHash)
}

// HashWith hashes n under the given algorithm.
func (n Name) HashWith(algo HashAlgo) uint64 {
	h := acquireHasher(algo)
	defer releaseHasher(algo, h)
	buf := make([]byte, n.EncodingLength())
	n.EncodeInto(buf)
	h.Write(buf)
	return h.Sum64()
}

// PrefixHash returns the precomputed prefix-hash vector of spec.md §3:
// a name of k components yields k+1 hashes, where ret[i] is the hash
// of the first i components. It is computed once per incoming packet
// and reused at every lookup depth without rehashing.
func (n Name) PrefixHash() []uint64 {
	return n.PrefixHashWith(HashXXHash)
}

// PrefixHashWith computes the prefix-hash vector under the given algorithm.
func (n Name) PrefixHashWith(algo HashAlgo) []uint64 {
	h := acquireHasher(algo)
	defer releaseHasher(algo, h)
	ret := make([]uint64, len(n)+1)
	ret[0] = h.Sum64()
	for i := range n {
		buf := make([]byte, n[i].EncodingLength())
		n[i].EncodeInto(buf)
		h.Write(buf)
		ret[i+1] = h.Sum64()
	}
	return ret
}
