package wire

import (
	"crypto/sha256"
	"encoding/binary"
)

// Packet type numbers for the outer TLV body (spec.md §4.1).
const (
	TypeInterestV1      TLNum = 0x01
	TypeContentObjectV1 TLNum = 0x02
	TypeControlV1       TLNum = 0x03
)

// Inner Interest body TLVs.
const (
	TypeKeyIdRestriction         TLNum = 0x12
	TypeContentObjectHashRestric TLNum = 0x13
	TypePayload                  TLNum = 0x14
	TypeLifetime                 TLNum = 0x19
	TypeNonce                    TLNum = 0x1a
)

// Inner Content Object body TLVs.
const (
	TypeSignatureInfo  TLNum = 0x15
	TypeSignatureValue TLNum = 0x16
	TypeExpiryTime     TLNum = 0x17
	TypeKeyID          TLNum = 0x18
)

// FixedHeaderLen is the size of the frame header preceding the body TLV.
const FixedHeaderLen = 8

const WireVersion = 1

// PacketType distinguishes the three outer message kinds of spec.md §4.1.
type PacketType byte

const (
	PacketInterest PacketType = 1
	PacketData     PacketType = 2
	PacketControl  PacketType = 3
)

// Flags bits in the fixed header.
const (
	FlagNone byte = 0
)

// FixedHeader is the 8-byte frame header preceding every packet's body.
type FixedHeader struct {
	Version      byte
	Type         PacketType
	PacketLength uint16
	HopLimit     byte
	Reserved     byte
	Flags        byte
	HeaderLength byte
}

// EncodeInto writes the fixed header in network byte order.
func (h FixedHeader) EncodeInto(buf []byte) {
	buf[0] = h.Version
	buf[1] = byte(h.Type)
	binary.BigEndian.PutUint16(buf[2:4], h.PacketLength)
	buf[4] = h.HopLimit
	buf[5] = h.Reserved
	buf[6] = h.Flags
	buf[7] = h.HeaderLength
}

// ParseFixedHeader decodes the 8-byte frame header from buf.
func ParseFixedHeader(buf []byte) (FixedHeader, error) {
	if len(buf) < FixedHeaderLen {
		return FixedHeader{}, &DecodeError{Offset: 0, Err: ErrFormat{"buffer shorter than fixed header"}}
	}
	h := FixedHeader{
		Version:      buf[0],
		Type:         PacketType(buf[1]),
		PacketLength: binary.BigEndian.Uint16(buf[2:4]),
		HopLimit:     buf[4],
		Reserved:     buf[5],
		Flags:        buf[6],
		HeaderLength: buf[7],
	}
	if h.Version != WireVersion {
		return h, &DecodeError{Offset: 0, Err: ErrFormat{"unsupported wire version"}}
	}
	if h.HeaderLength < FixedHeaderLen {
		return h, &DecodeError{Offset: 7, Err: ErrFormat{"header_length shorter than fixed header"}}
	}
	if h.PacketLength < FixedHeaderLen {
		return h, &DecodeError{Offset: 2, Err: ErrFormat{"packet_length shorter than fixed header"}}
	}
	return h, nil
}

// Interest is the in-memory representation of a request for named content.
type Interest struct {
	Name                       Name
	KeyIdRestriction           []byte
	ContentObjectHashRestrict  []byte
	Payload                    Wire
	HopLimit                   byte
	LifetimeMs                 uint32
	Nonce                      uint32
	Unknown                    []Component // opaque TLVs preserved for forwarding transparency
	prefixHash                 []uint64
}

// PrefixHash returns (computing once) the prefix-hash vector for the
// Interest's name, per spec.md §4.1's "name-hash precomputation".
func (i *Interest) PrefixHash() []uint64 {
	if i.prefixHash == nil {
		i.prefixHash = i.Name.PrefixHash()
	}
	return i.prefixHash
}

// ContentObject is the in-memory representation of named, signed data.
type ContentObject struct {
	Name        Name
	KeyID       []byte
	ExpiryMs    uint64 // milliseconds since epoch; 0 means no declared expiry
	Payload     Wire
	SigValue    []byte
	Unknown     []Component
	prefixHash  []uint64
	digest      []byte
}

// PrefixHash returns the precomputed prefix-hash vector for Name.
func (c *ContentObject) PrefixHash() []uint64 {
	if c.prefixHash == nil {
		c.prefixHash = c.Name.PrefixHash()
	}
	return c.prefixHash
}

// Digest returns the SHA-256 digest of the object's Payload, used for
// the ContentObjectHashRestriction PIT key (spec.md §6).
func (c *ContentObject) Digest() []byte {
	if c.digest == nil {
		h := sha256.New()
		for _, b := range c.Payload {
			h.Write(b)
		}
		c.digest = h.Sum(nil)
	}
	return c.digest
}

// Signer lazily signs a protected byte range during encoding (spec.md
// §4.1's "lazy signing"). The core never implements a concrete signer;
// it only invokes this narrow contract.
type Signer interface {
	// Sign returns the signature over the concatenation of protected.
	Sign(protected Wire) ([]byte, error)
	KeyID() []byte
}

// EncodeInterest serializes an Interest into a complete framed packet.
func EncodeInterest(i *Interest, hopLimit byte) (Wire, error) {
	nameBytes := i.Name.Bytes()

	innerLen := len(nameBytes)
	if len(i.KeyIdRestriction) > 0 {
		innerLen += tlvLen(TypeKeyIdRestriction, len(i.KeyIdRestriction))
	}
	if len(i.ContentObjectHashRestrict) > 0 {
		innerLen += tlvLen(TypeContentObjectHashRestric, len(i.ContentObjectHashRestrict))
	}
	if i.LifetimeMs > 0 {
		innerLen += tlvLen(TypeLifetime, len(Nat(i.LifetimeMs).Bytes()))
	}
	if i.Nonce > 0 {
		innerLen += tlvLen(TypeNonce, len(Nat(i.Nonce).Bytes()))
	}
	payloadLen := i.Payload.Length()
	if payloadLen > 0 {
		innerLen += TypePayload.EncodingLength() + Nat(payloadLen).EncodingLength() + payloadLen
	}

	outerHeader := make([]byte, TypeInterestV1.EncodingLength()+Nat(innerLen).EncodingLength())
	p := TypeInterestV1.EncodeInto(outerHeader)
	Nat(innerLen).EncodeInto(outerHeader[p:])

	head := make([]byte, 0, len(outerHeader)+len(nameBytes)+64)
	head = append(head, outerHeader...)
	head = append(head, nameBytes...)
	if len(i.KeyIdRestriction) > 0 {
		head = appendTLV(head, TypeKeyIdRestriction, i.KeyIdRestriction)
	}
	if len(i.ContentObjectHashRestrict) > 0 {
		head = appendTLV(head, TypeContentObjectHashRestric, i.ContentObjectHashRestrict)
	}
	if i.LifetimeMs > 0 {
		head = appendTLV(head, TypeLifetime, Nat(i.LifetimeMs).Bytes())
	}
	if i.Nonce > 0 {
		head = appendTLV(head, TypeNonce, Nat(i.Nonce).Bytes())
	}
	if payloadLen > 0 {
		plHeader := make([]byte, TypePayload.EncodingLength()+Nat(payloadLen).EncodingLength())
		pp := TypePayload.EncodeInto(plHeader)
		Nat(payloadLen).EncodeInto(plHeader[pp:])
		head = append(head, plHeader...)
	}

	body := Wire{head}
	body = append(body, i.Payload...)

	return frame(PacketInterest, hopLimit, body)
}

// DecodeInterest parses a framed packet's body into an Interest. The
// caller has already validated and truncated the buffer to the fixed
// header's declared packet_length (spec.md §4.1 decoding contract).
func DecodeInterest(r ParseReader) (*Interest, error) {
	outerTyp, err := ReadTLNum(r)
	if err != nil {
		return nil, &DecodeError{Offset: r.Pos(), Err: err}
	}
	if outerTyp != TypeInterestV1 {
		return nil, &DecodeError{Offset: r.Pos(), Err: ErrFormat{"not an Interest body"}}
	}
	outerLen, err := ReadTLNum(r)
	if err != nil {
		return nil, &DecodeError{Offset: r.Pos(), Err: err}
	}
	inner := r.Delegate(int(outerLen))

	it := &Interest{}
	sawName := false
	sawKeyID := false
	sawHash := false
	sawPayload := false
	sawLifetime := false
	sawNonce := false
	for inner.Pos() < inner.Length() {
		typ, l, err := peekTL(inner)
		if err != nil {
			return nil, &DecodeError{Offset: inner.Pos(), Err: err}
		}
		switch typ {
		case TypeName:
			if sawName {
				return nil, &DecodeError{Offset: inner.Pos(), Err: ErrDuplicateField{TypeNum: typ}}
			}
			sawName = true
			sub := inner.Delegate(l)
			name, err := ReadName(sub)
			if err != nil {
				return nil, &DecodeError{Offset: inner.Pos(), Err: err}
			}
			it.Name = name
		case TypeKeyIdRestriction:
			if sawKeyID {
				return nil, &DecodeError{Offset: inner.Pos(), Err: ErrDuplicateField{TypeNum: typ}}
			}
			sawKeyID = true
			v, err := inner.ReadBuf(l)
			if err != nil {
				return nil, &DecodeError{Offset: inner.Pos(), Err: err}
			}
			it.KeyIdRestriction = v
		case TypeContentObjectHashRestric:
			if sawHash {
				return nil, &DecodeError{Offset: inner.Pos(), Err: ErrDuplicateField{TypeNum: typ}}
			}
			sawHash = true
			v, err := inner.ReadBuf(l)
			if err != nil {
				return nil, &DecodeError{Offset: inner.Pos(), Err: err}
			}
			if len(v) != 32 {
				return nil, &DecodeError{Offset: inner.Pos(), Err: ErrFormat{"content object hash restriction must be 32 bytes"}}
			}
			it.ContentObjectHashRestrict = v
		case TypeLifetime:
			if sawLifetime {
				return nil, &DecodeError{Offset: inner.Pos(), Err: ErrDuplicateField{TypeNum: typ}}
			}
			sawLifetime = true
			v, err := inner.ReadBuf(l)
			if err != nil {
				return nil, &DecodeError{Offset: inner.Pos(), Err: err}
			}
			n, err := ParseNat(v)
			if err != nil {
				return nil, &DecodeError{Offset: inner.Pos(), Err: err}
			}
			it.LifetimeMs = uint32(n)
		case TypeNonce:
			if sawNonce {
				return nil, &DecodeError{Offset: inner.Pos(), Err: ErrDuplicateField{TypeNum: typ}}
			}
			sawNonce = true
			v, err := inner.ReadBuf(l)
			if err != nil {
				return nil, &DecodeError{Offset: inner.Pos(), Err: err}
			}
			n, err := ParseNat(v)
			if err != nil {
				return nil, &DecodeError{Offset: inner.Pos(), Err: err}
			}
			it.Nonce = uint32(n)
		case TypePayload:
			if sawPayload {
				return nil, &DecodeError{Offset: inner.Pos(), Err: ErrDuplicateField{TypeNum: typ}}
			}
			sawPayload = true
			w, err := inner.ReadWire(l)
			if err != nil {
				return nil, &DecodeError{Offset: inner.Pos(), Err: err}
			}
			it.Payload = w
		default:
			v, err := inner.ReadBuf(l)
			if err != nil {
				return nil, &DecodeError{Offset: inner.Pos(), Err: err}
			}
			it.Unknown = append(it.Unknown, Component{Typ: typ, Val: v})
		}
	}
	if !sawName {
		return nil, &DecodeError{Offset: 0, Err: ErrMissingField{Name: "Name", TypeNum: TypeName}}
	}
	return it, nil
}

// EncodeContentObject serializes a ContentObject into a framed packet.
// If signer is non-nil it is invoked over the name+payload range (the
// "protected region") to produce SigValue before framing.
func EncodeContentObject(c *ContentObject, hopLimit byte, signer Signer) (Wire, error) {
	nameBytes := c.Name.Bytes()
	payloadLen := c.Payload.Length()

	if signer != nil {
		protected := Wire{nameBytes}
		protected = append(protected, c.Payload...)
		sig, err := signer.Sign(protected)
		if err != nil {
			return nil, err
		}
		c.SigValue = sig
		c.KeyID = signer.KeyID()
	}

	innerLen := len(nameBytes)
	if payloadLen > 0 {
		innerLen += TypePayload.EncodingLength() + Nat(payloadLen).EncodingLength() + payloadLen
	}
	if len(c.KeyID) > 0 {
		innerLen += tlvLen(TypeKeyID, len(c.KeyID))
	}
	if c.ExpiryMs > 0 {
		expBytes := Nat(c.ExpiryMs).Bytes()
		innerLen += tlvLen(TypeExpiryTime, len(expBytes))
	}
	if len(c.SigValue) > 0 {
		innerLen += tlvLen(TypeSignatureValue, len(c.SigValue))
	}

	outerHeader := make([]byte, TypeContentObjectV1.EncodingLength()+Nat(innerLen).EncodingLength())
	p := TypeContentObjectV1.EncodeInto(outerHeader)
	Nat(innerLen).EncodeInto(outerHeader[p:])

	head := append([]byte(nil), outerHeader...)
	head = append(head, nameBytes...)
	if len(c.KeyID) > 0 {
		head = appendTLV(head, TypeKeyID, c.KeyID)
	}
	if c.ExpiryMs > 0 {
		head = appendTLV(head, TypeExpiryTime, Nat(c.ExpiryMs).Bytes())
	}
	if len(c.SigValue) > 0 {
		head = appendTLV(head, TypeSignatureValue, c.SigValue)
	}
	if payloadLen > 0 {
		plHeader := make([]byte, TypePayload.EncodingLength()+Nat(payloadLen).EncodingLength())
		pp := TypePayload.EncodeInto(plHeader)
		Nat(payloadLen).EncodeInto(plHeader[pp:])
		head = append(head, plHeader...)
	}

	body := Wire{head}
	body = append(body, c.Payload...)

	return frame(PacketData, hopLimit, body)
}

// DecodeContentObject parses a framed packet's body into a ContentObject.
func DecodeContentObject(r ParseReader) (*ContentObject, error) {
	outerTyp, err := ReadTLNum(r)
	if err != nil {
		return nil, &DecodeError{Offset: r.Pos(), Err: err}
	}
	if outerTyp != TypeContentObjectV1 {
		return nil, &DecodeError{Offset: r.Pos(), Err: ErrFormat{"not a ContentObject body"}}
	}
	outerLen, err := ReadTLNum(r)
	if err != nil {
		return nil, &DecodeError{Offset: r.Pos(), Err: err}
	}
	inner := r.Delegate(int(outerLen))

	co := &ContentObject{}
	sawName := false
	for inner.Pos() < inner.Length() {
		typ, l, err := peekTL(inner)
		if err != nil {
			return nil, &DecodeError{Offset: inner.Pos(), Err: err}
		}
		switch typ {
		case TypeName:
			if sawName {
				return nil, &DecodeError{Offset: inner.Pos(), Err: ErrDuplicateField{TypeNum: typ}}
			}
			sawName = true
			sub := inner.Delegate(l)
			name, err := ReadName(sub)
			if err != nil {
				return nil, &DecodeError{Offset: inner.Pos(), Err: err}
			}
			co.Name = name
		case TypeKeyID:
			v, err := inner.ReadBuf(l)
			if err != nil {
				return nil, &DecodeError{Offset: inner.Pos(), Err: err}
			}
			co.KeyID = v
		case TypeExpiryTime:
			v, err := inner.ReadBuf(l)
			if err != nil {
				return nil, &DecodeError{Offset: inner.Pos(), Err: err}
			}
			n, err := ParseNat(v)
			if err != nil {
				return nil, &DecodeError{Offset: inner.Pos(), Err: err}
			}
			co.ExpiryMs = uint64(n)
		case TypeSignatureValue:
			v, err := inner.ReadBuf(l)
			if err != nil {
				return nil, &DecodeError{Offset: inner.Pos(), Err: err}
			}
			co.SigValue = v
		case TypePayload:
			w, err := inner.ReadWire(l)
			if err != nil {
				return nil, &DecodeError{Offset: inner.Pos(), Err: err}
			}
			co.Payload = w
		default:
			v, err := inner.ReadBuf(l)
			if err != nil {
				return nil, &DecodeError{Offset: inner.Pos(), Err: err}
			}
			co.Unknown = append(co.Unknown, Component{Typ: typ, Val: v})
		}
	}
	if !sawName {
		return nil, &DecodeError{Offset: 0, Err: ErrMissingField{Name: "Name", TypeNum: TypeName}}
	}
	return co, nil
}

// frame wraps a pre-built body Wire with the 8-byte fixed header.
func frame(typ PacketType, hopLimit byte, body Wire) (Wire, error) {
	total := FixedHeaderLen + body.Length()
	if total > 0xffff {
		return nil, ErrFormat{"packet exceeds maximum length of 65535 bytes"}
	}
	header := make([]byte, FixedHeaderLen)
	FixedHeader{
		Version:      WireVersion,
		Type:         typ,
		PacketLength: uint16(total),
		HopLimit:     hopLimit,
		HeaderLength: FixedHeaderLen,
	}.EncodeInto(header)

	out := make(Wire, 0, len(body)+1)
	out = append(out, header)
	out = append(out, body...)
	return out, nil
}

func tlvLen(typ TLNum, valLen int) int {
	return typ.EncodingLength() + Nat(valLen).EncodingLength() + valLen
}

func appendTLV(buf []byte, typ TLNum, val []byte) []byte {
	header := make([]byte, tlvLen(typ, len(val))-len(val))
	p := typ.EncodeInto(header)
	Nat(len(val)).EncodeInto(header[p:])
	buf = append(buf, header...)
	buf = append(buf, val...)
	return buf
}

// peekTL reads a TL pair without consuming the value, returning the
// type, the value length, and leaving r positioned at the value.
func peekTL(r ParseReader) (TLNum, int, error) {
	typ, err := ReadTLNum(r)
	if err != nil {
		return 0, 0, err
	}
	l, err := ReadTLNum(r)
	if err != nil {
		return 0, 0, err
	}
	return typ, int(l), nil
}
