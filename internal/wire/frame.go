package wire

import "encoding/binary"

// EtherCATHeaderLen is the 2-byte EtherCAT frame header: an 11-bit length
// field counting the bytes occupied by all PDUs, a reserved bit, and a
// 4-bit frame type (1 = PDU).
const EtherCATHeaderLen = 2

// FrameTypePDU is the only frame type this module emits or accepts.
const FrameTypePDU = 1

const lengthMask = 0x07FF

// Frame is a view over an EtherCAT frame: the 2-byte EtherCAT header
// followed by zero or more PDUs, all written into a caller-owned buffer
// that sits right after the Ethernet header. Frame never allocates; it
// only indexes into buf.
type Frame []byte

// NewFrameUnchecked wraps buf as a Frame without validating its contents.
// Callers must Init() a freshly zeroed buffer, or trust that buf already
// holds a well-formed frame before calling IterPDU.
func NewFrameUnchecked(buf []byte) Frame {
	return Frame(buf)
}

// Init zeroes the frame header and sets the frame type to PDU.
func (f Frame) Init() {
	f[0] = 0
	f[1] = 0
	f.setHeader(0, FrameTypePDU)
}

// Length is the number of bytes occupied by the PDUs following the header.
func (f Frame) Length() uint16 {
	v := binary.LittleEndian.Uint16(f[0:2])
	return v & lengthMask
}

// Type is the 4-bit frame type; this module only ever produces and
// consumes FrameTypePDU.
func (f Frame) Type() uint8 {
	v := binary.LittleEndian.Uint16(f[0:2])
	return uint8(v >> 12)
}

func (f Frame) setHeader(length uint16, typ uint8) {
	v := (length & lengthMask) | (uint16(typ) << 12)
	binary.LittleEndian.PutUint16(f[0:2], v)
}

// SetLength overwrites the frame's PDU-region length field, leaving the
// frame type untouched. Callers that copy pre-encoded PDU bytes
// directly into the frame (rather than going through AddCommand) use
// this to finalize the header afterward.
func (f Frame) SetLength(length uint16) {
	f.setHeader(length, f.Type())
}

// AddCommand appends one PDU to the frame: header, a copy of payload,
// and a zeroed WKC trailer. It returns false, leaving the frame
// unmodified, if buf cannot hold the PDU.
func (f Frame) AddCommand(cmdType CommandType, adp, ado uint16, payload []byte, index uint8) bool {
	offset := EtherCATHeaderLen + int(f.Length())
	total := PDUHeaderLen + len(payload) + WKCLen
	if offset+total > len(f) {
		return false
	}

	pdu := NewPDUUnchecked(f[offset : offset+total])
	pdu.SetCommandType(cmdType)
	pdu.SetIndex(index)
	pdu.SetADP(adp)
	pdu.SetADO(ado)
	pdu.SetLength(uint16(len(payload)))
	pdu.SetMoreFollows(false)
	pdu.SetRoundTrip(false)
	copy(pdu.Data(), payload)
	pdu.SetWKC(0)

	f.setHeader(uint16(offset+total-EtherCATHeaderLen), FrameTypePDU)
	return true
}

// IterPDU returns every PDU currently held in the frame, in wire order.
func (f Frame) IterPDU() []PDU {
	var pdus []PDU
	offset := EtherCATHeaderLen
	end := EtherCATHeaderLen + int(f.Length())
	for offset < end {
		hdrLen := binary.LittleEndian.Uint16(f[offset+6 : offset+8])
		length := int(hdrLen & lengthMask)
		total := PDUHeaderLen + length + WKCLen
		if offset+total > len(f) {
			break
		}
		pdus = append(pdus, NewPDUUnchecked(f[offset:offset+total]))
		offset += total
	}
	return pdus
}
