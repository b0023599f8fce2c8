package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Encoding and decoding an Interest with a payload reproduces every field.
func TestInterestRoundTrip(t *testing.T) {
	n, err := ParseName("/foo/bar")
	require.NoError(t, err)
	it := &Interest{
		Name:             n,
		KeyIdRestriction: []byte{1, 2, 3},
		Payload:          Wire{[]byte("hello")},
		LifetimeMs:       4000,
		Nonce:            0xdeadbeef,
	}
	w, err := EncodeInterest(it, 32)
	require.NoError(t, err)

	hdr, err := ParseFixedHeader(w.Join()[:FixedHeaderLen])
	require.NoError(t, err)
	assert.EqualValues(t, PacketInterest, hdr.Type)
	assert.Equal(t, byte(32), hdr.HopLimit)

	body := w.Join()[FixedHeaderLen:]
	r := NewBufferView(body)
	got, err := DecodeInterest(&r)
	require.NoError(t, err)
	assert.True(t, got.Name.Equal(n))
	assert.Equal(t, it.KeyIdRestriction, got.KeyIdRestriction)
	assert.Equal(t, []byte("hello"), got.Payload.Join())
	assert.Equal(t, it.LifetimeMs, got.LifetimeMs)
	assert.Equal(t, it.Nonce, got.Nonce)
}

// A ContentObjectHashRestriction must be exactly 32 bytes.
func TestInterestHashRestrictionLengthEnforced(t *testing.T) {
	n, _ := ParseName("/foo")
	it := &Interest{Name: n, ContentObjectHashRestrict: make([]byte, 10)}
	w, err := EncodeInterest(it, 32)
	require.NoError(t, err)
	body := w.Join()[FixedHeaderLen:]
	r := NewBufferView(body)
	_, err = DecodeInterest(&r)
	assert.Error(t, err)
}

// A name missing from the Interest body fails to decode.
func TestDecodeInterestMissingName(t *testing.T) {
	var body []byte
	body = appendTLV(body, TypePayload, []byte("x"))
	outer := make([]byte, TypeInterestV1.EncodingLength()+Nat(len(body)).EncodingLength())
	p := TypeInterestV1.EncodeInto(outer)
	Nat(len(body)).EncodeInto(outer[p:])
	outer = append(outer, body...)

	r := NewBufferView(outer)
	_, err := DecodeInterest(&r)
	assert.Error(t, err)
}

// Encoding and decoding a ContentObject (with a signer invoked lazily
// over the protected region) reproduces the name, payload, and key id.
func TestContentObjectRoundTrip(t *testing.T) {
	n, err := ParseName("/foo/bar")
	require.NoError(t, err)
	co := &ContentObject{
		Name:     n,
		Payload:  Wire{[]byte("payload-bytes")},
		ExpiryMs: 1000,
	}
	signer := &fakeSigner{keyID: []byte("key-1")}
	w, err := EncodeContentObject(co, 32, signer)
	require.NoError(t, err)
	assert.True(t, signer.called)

	body := w.Join()[FixedHeaderLen:]
	r := NewBufferView(body)
	got, err := DecodeContentObject(&r)
	require.NoError(t, err)
	assert.True(t, got.Name.Equal(n))
	assert.Equal(t, []byte("payload-bytes"), got.Payload.Join())
	assert.Equal(t, []byte("key-1"), got.KeyID)
	assert.Equal(t, uint64(1000), got.ExpiryMs)
	assert.NotEmpty(t, got.SigValue)
}

// Digest is stable across repeated calls and reflects only the payload.
func TestContentObjectDigest(t *testing.T) {
	n, _ := ParseName("/foo")
	a := &ContentObject{Name: n, Payload: Wire{[]byte("x")}}
	b := &ContentObject{Name: n, Payload: Wire{[]byte("x")}}
	assert.Equal(t, a.Digest(), b.Digest())
	assert.Equal(t, a.Digest(), a.Digest())
}

// A ControlRequest/ControlAck pair round-trips its sequence number,
// operation, and parameters through the wire.
func TestControlRoundTrip(t *testing.T) {
	n, _ := ParseName("/foo")
	req := &ControlRequest{
		Seq: 42,
		Op:  OpAddRoute,
		Params: ControlParams{
			Name:   n,
			ConnID: 7,
			Weight: 10,
		},
	}
	w, err := EncodeControlRequest(req)
	require.NoError(t, err)
	body := w.Join()[FixedHeaderLen:]
	r := NewBufferView(body)
	got, err := DecodeControlRequest(&r)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), got.Seq)
	assert.Equal(t, OpAddRoute, got.Op)
	assert.Equal(t, uint64(7), got.Params.ConnID)
	assert.Equal(t, uint32(10), got.Params.Weight)
	assert.True(t, got.Params.Name.Equal(n))

	ack := &ControlAck{Seq: 42, Status: StatusNack, Reason: "face does not exist"}
	aw, err := EncodeControlAck(ack)
	require.NoError(t, err)
	abody := aw.Join()[FixedHeaderLen:]
	ar := NewBufferView(abody)
	gotAck, err := DecodeControlAck(&ar)
	require.NoError(t, err)
	assert.Equal(t, ack.Seq, gotAck.Seq)
	assert.Equal(t, ack.Status, gotAck.Status)
	assert.Equal(t, ack.Reason, gotAck.Reason)
}

type fakeSigner struct {
	keyID  []byte
	called bool
}

func (f *fakeSigner) Sign(protected Wire) ([]byte, error) {
	f.called = true
	return []byte("signature"), nil
}

func (f *fakeSigner) KeyID() []byte { return f.keyID }
