package wire

import "encoding/binary"

// TLNum is a TLV Type or Length number, encoded per NDN's variable-length
// scheme: values <= 0xfc take one byte, <= 0xffff take three (0xfd prefix),
// <= 0xffffffff take five (0xfe prefix), else nine (0xff prefix).
type TLNum uint64

// Nat is a TLV-encoded natural number, used for numeric component values:
// 1/2/4/8 bytes big-endian depending on magnitude, no marker byte.
type Nat uint64

// EncodingLength returns the number of bytes EncodeInto will write.
func (v TLNum) EncodingLength() int {
	switch x := uint64(v); {
	case x <= 0xfc:
		return 1
	case x <= 0xffff:
		return 3
	case x <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

// EncodeInto writes v into buf and returns the number of bytes written.
func (v TLNum) EncodeInto(buf Buffer) int {
	switch x := uint64(v); {
	case x <= 0xfc:
		buf[0] = byte(x)
		return 1
	case x <= 0xffff:
		buf[0] = 0xfd
		binary.BigEndian.PutUint16(buf[1:], uint16(x))
		return 3
	case x <= 0xffffffff:
		buf[0] = 0xfe
		binary.BigEndian.PutUint32(buf[1:], uint32(x))
		return 5
	default:
		buf[0] = 0xff
		binary.BigEndian.PutUint64(buf[1:], uint64(x))
		return 9
	}
}

// ParseTLNum parses a TLNum from the front of buf. Internal use only:
// it indexes without bounds checks and panics on a truncated buffer.
func ParseTLNum(buf Buffer) (val TLNum, pos int) {
	switch x := buf[0]; {
	case x <= 0xfc:
		return TLNum(x), 1
	case x == 0xfd:
		return TLNum(binary.BigEndian.Uint16(buf[1:3])), 3
	case x == 0xfe:
		return TLNum(binary.BigEndian.Uint32(buf[1:5])), 5
	default:
		return TLNum(binary.BigEndian.Uint64(buf[1:9])), 9
	}
}

// ReadTLNum reads a TLNum from a ParseReader.
func ReadTLNum(r ParseReader) (val TLNum, err error) {
	x, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	l := 0
	switch {
	case x <= 0xfc:
		return TLNum(x), nil
	case x == 0xfd:
		l = 2
	case x == 0xfe:
		l = 4
	case x == 0xff:
		l = 8
	}
	for i := 0; i < l; i++ {
		if x, err = r.ReadByte(); err != nil {
			return 0, err
		}
		val = (val << 8) | TLNum(x)
	}
	return val, nil
}

// EncodingLength returns the number of bytes EncodeInto will write for v.
func (v Nat) EncodingLength() int {
	switch x := uint64(v); {
	case x <= 0xff:
		return 1
	case x <= 0xffff:
		return 2
	case x <= 0xffffffff:
		return 4
	default:
		return 8
	}
}

// EncodeInto writes v into buf using the minimal 1/2/4/8-byte width.
func (v Nat) EncodeInto(buf Buffer) int {
	switch x := uint64(v); {
	case x <= 0xff:
		buf[0] = byte(x)
		return 1
	case x <= 0xffff:
		binary.BigEndian.PutUint16(buf, uint16(x))
		return 2
	case x <= 0xffffffff:
		binary.BigEndian.PutUint32(buf, uint32(x))
		return 4
	default:
		binary.BigEndian.PutUint64(buf, uint64(x))
		return 8
	}
}

// Bytes returns the minimal-width encoding of v as a new slice.
func (v Nat) Bytes() []byte {
	buf := make([]byte, v.EncodingLength())
	v.EncodeInto(buf)
	return buf
}

// ParseNat decodes a natural number whose width (1, 2, 4, or 8 bytes)
// is implied by len(buf), per the TLV Length of its enclosing field.
func ParseNat(buf Buffer) (Nat, error) {
	switch len(buf) {
	case 1:
		return Nat(buf[0]), nil
	case 2:
		return Nat(binary.BigEndian.Uint16(buf)), nil
	case 4:
		return Nat(binary.BigEndian.Uint32(buf)), nil
	case 8:
		return Nat(binary.BigEndian.Uint64(buf)), nil
	default:
		return 0, ErrFormat{"natural number length is not 1, 2, 4 or 8"}
	}
}
