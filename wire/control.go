package wire

import "encoding/binary"

// ControlOp enumerates the management verbs of spec.md §6.
type ControlOp byte

const (
	OpAddRoute ControlOp = iota + 1
	OpRemoveRoute
	OpAddConnection
	OpRemoveConnection
	OpListRoutes
	OpListConnections
	OpCacheStoreOn
	OpCacheStoreOff
	OpCacheServeOn
	OpCacheServeOff
	OpCacheClear
	OpFlush
)

// Inner Control body TLVs.
const (
	TypeCtrlSeq     TLNum = 0x20
	TypeCtrlOp      TLNum = 0x21
	TypeCtrlName    TLNum = 0x22 // reuses TypeName framing internally
	TypeCtrlConnID  TLNum = 0x23
	TypeCtrlWeight  TLNum = 0x24
	TypeCtrlOrigin  TLNum = 0x25
	TypeCtrlFlags   TLNum = 0x26
	TypeCtrlAddr    TLNum = 0x27
	TypeCtrlStatus  TLNum = 0x28
	TypeCtrlReason  TLNum = 0x29
)

// AckStatus is the outcome of a Control request.
type AckStatus byte

const (
	StatusAck AckStatus = iota
	StatusNack
)

// ControlParams carries the optional, op-dependent arguments of a
// ControlRequest: a route's name/connection/weight/origin/flags, or a
// connection's transport address.
type ControlParams struct {
	Name     Name
	ConnID   uint64
	Weight   uint32
	Origin   byte
	Flags    uint64
	Addr     string
}

// ControlRequest is the nested request object of spec.md §6, identified
// by a 64-bit sequence number the forwarder echoes back in its ack.
type ControlRequest struct {
	Seq    uint64
	Op     ControlOp
	Params ControlParams
}

// ControlAck is the forwarder's reply to a ControlRequest.
type ControlAck struct {
	Seq    uint64
	Status AckStatus
	Reason string
}

// EncodeControlRequest serializes a ControlRequest into a framed packet.
func EncodeControlRequest(req *ControlRequest) (Wire, error) {
	var body []byte
	body = appendTLV(body, TypeCtrlSeq, encodeU64(req.Seq))
	body = appendTLV(body, TypeCtrlOp, []byte{byte(req.Op)})
	if req.Params.Name != nil {
		body = append(body, req.Params.Name.Bytes()...)
	}
	if req.Params.ConnID != 0 {
		body = appendTLV(body, TypeCtrlConnID, encodeU64(req.Params.ConnID))
	}
	if req.Params.Weight != 0 {
		body = appendTLV(body, TypeCtrlWeight, Nat(req.Params.Weight).Bytes())
	}
	if req.Params.Origin != 0 {
		body = appendTLV(body, TypeCtrlOrigin, []byte{req.Params.Origin})
	}
	if req.Params.Flags != 0 {
		body = appendTLV(body, TypeCtrlFlags, encodeU64(req.Params.Flags))
	}
	if req.Params.Addr != "" {
		body = appendTLV(body, TypeCtrlAddr, []byte(req.Params.Addr))
	}

	outerHeader := make([]byte, TypeControlV1.EncodingLength()+Nat(len(body)).EncodingLength())
	p := TypeControlV1.EncodeInto(outerHeader)
	Nat(len(body)).EncodeInto(outerHeader[p:])

	head := append(outerHeader, body...)
	return frame(PacketControl, 0, Wire{head})
}

// DecodeControlRequest parses a framed packet's body into a ControlRequest.
func DecodeControlRequest(r ParseReader) (*ControlRequest, error) {
	outerTyp, err := ReadTLNum(r)
	if err != nil {
		return nil, &DecodeError{Offset: r.Pos(), Err: err}
	}
	if outerTyp != TypeControlV1 {
		return nil, &DecodeError{Offset: r.Pos(), Err: ErrFormat{"not a Control body"}}
	}
	outerLen, err := ReadTLNum(r)
	if err != nil {
		return nil, &DecodeError{Offset: r.Pos(), Err: err}
	}
	inner := r.Delegate(int(outerLen))

	req := &ControlRequest{}
	for inner.Pos() < inner.Length() {
		typ, l, err := peekTL(inner)
		if err != nil {
			return nil, &DecodeError{Offset: inner.Pos(), Err: err}
		}
		switch typ {
		case TypeCtrlSeq:
			v, err := inner.ReadBuf(l)
			if err != nil {
				return nil, &DecodeError{Offset: inner.Pos(), Err: err}
			}
			req.Seq = decodeU64(v)
		case TypeCtrlOp:
			v, err := inner.ReadBuf(l)
			if err != nil || len(v) != 1 {
				return nil, &DecodeError{Offset: inner.Pos(), Err: ErrFormat{"bad control op"}}
			}
			req.Op = ControlOp(v[0])
		case TypeName:
			sub := inner.Delegate(l)
			name, err := ReadName(sub)
			if err != nil {
				return nil, &DecodeError{Offset: inner.Pos(), Err: err}
			}
			req.Params.Name = name
		case TypeCtrlConnID:
			v, err := inner.ReadBuf(l)
			if err != nil {
				return nil, &DecodeError{Offset: inner.Pos(), Err: err}
			}
			req.Params.ConnID = decodeU64(v)
		case TypeCtrlWeight:
			v, err := inner.ReadBuf(l)
			if err != nil {
				return nil, &DecodeError{Offset: inner.Pos(), Err: err}
			}
			n, err := ParseNat(v)
			if err != nil {
				return nil, &DecodeError{Offset: inner.Pos(), Err: err}
			}
			req.Params.Weight = uint32(n)
		case TypeCtrlOrigin:
			v, err := inner.ReadBuf(l)
			if err != nil || len(v) != 1 {
				return nil, &DecodeError{Offset: inner.Pos(), Err: ErrFormat{"bad control origin"}}
			}
			req.Params.Origin = v[0]
		case TypeCtrlFlags:
			v, err := inner.ReadBuf(l)
			if err != nil {
				return nil, &DecodeError{Offset: inner.Pos(), Err: err}
			}
			req.Params.Flags = decodeU64(v)
		case TypeCtrlAddr:
			v, err := inner.ReadBuf(l)
			if err != nil {
				return nil, &DecodeError{Offset: inner.Pos(), Err: err}
			}
			req.Params.Addr = string(v)
		default:
			if _, err := inner.ReadBuf(l); err != nil {
				return nil, &DecodeError{Offset: inner.Pos(), Err: err}
			}
		}
	}
	return req, nil
}

// EncodeControlAck serializes a ControlAck into a framed packet.
func EncodeControlAck(ack *ControlAck) (Wire, error) {
	var body []byte
	body = appendTLV(body, TypeCtrlSeq, encodeU64(ack.Seq))
	body = appendTLV(body, TypeCtrlStatus, []byte{byte(ack.Status)})
	if ack.Reason != "" {
		body = appendTLV(body, TypeCtrlReason, []byte(ack.Reason))
	}

	outerHeader := make([]byte, TypeControlV1.EncodingLength()+Nat(len(body)).EncodingLength())
	p := TypeControlV1.EncodeInto(outerHeader)
	Nat(len(body)).EncodeInto(outerHeader[p:])

	head := append(outerHeader, body...)
	return frame(PacketControl, 0, Wire{head})
}

// DecodeControlAck parses a framed packet's body into a ControlAck.
func DecodeControlAck(r ParseReader) (*ControlAck, error) {
	outerTyp, err := ReadTLNum(r)
	if err != nil {
		return nil, &DecodeError{Offset: r.Pos(), Err: err}
	}
	if outerTyp != TypeControlV1 {
		return nil, &DecodeError{Offset: r.Pos(), Err: ErrFormat{"not a Control body"}}
	}
	outerLen, err := ReadTLNum(r)
	if err != nil {
		return nil, &DecodeError{Offset: r.Pos(), Err: err}
	}
	inner := r.Delegate(int(outerLen))

	ack := &ControlAck{}
	for inner.Pos() < inner.Length() {
		typ, l, err := peekTL(inner)
		if err != nil {
			return nil, &DecodeError{Offset: inner.Pos(), Err: err}
		}
		switch typ {
		case TypeCtrlSeq:
			v, err := inner.ReadBuf(l)
			if err != nil {
				return nil, &DecodeError{Offset: inner.Pos(), Err: err}
			}
			ack.Seq = decodeU64(v)
		case TypeCtrlStatus:
			v, err := inner.ReadBuf(l)
			if err != nil || len(v) != 1 {
				return nil, &DecodeError{Offset: inner.Pos(), Err: ErrFormat{"bad ack status"}}
			}
			ack.Status = AckStatus(v[0])
		case TypeCtrlReason:
			v, err := inner.ReadBuf(l)
			if err != nil {
				return nil, &DecodeError{Offset: inner.Pos(), Err: err}
			}
			ack.Reason = string(v)
		default:
			if _, err := inner.ReadBuf(l); err != nil {
				return nil, &DecodeError{Offset: inner.Pos(), Err: err}
			}
		}
	}
	return ack, nil
}

func encodeU64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func decodeU64(buf []byte) uint64 {
	var padded [8]byte
	copy(padded[8-len(buf):], buf)
	return binary.BigEndian.Uint64(padded[:])
}
