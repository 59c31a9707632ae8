package wire

import "encoding/binary"

// CommandType is the command kind carried in byte 0 of a PDU header.
type CommandType uint8

const (
	NOP  CommandType = 0x00
	APRD CommandType = 0x01
	APWR CommandType = 0x02
	APRW CommandType = 0x03
	FPRD CommandType = 0x04
	FPWR CommandType = 0x05
	FPRW CommandType = 0x06
	BRD  CommandType = 0x07
	BWR  CommandType = 0x08
	BRW  CommandType = 0x09
	LRD  CommandType = 0x0A
	LWR  CommandType = 0x0B
	LRW  CommandType = 0x0C
	ARMW CommandType = 0x0D
	FRMW CommandType = 0x0E
)

func (c CommandType) String() string {
	switch c {
	case NOP:
		return "NOP"
	case APRD:
		return "APRD"
	case APWR:
		return "APWR"
	case APRW:
		return "APRW"
	case FPRD:
		return "FPRD"
	case FPWR:
		return "FPWR"
	case FPRW:
		return "FPRW"
	case BRD:
		return "BRD"
	case BWR:
		return "BWR"
	case BRW:
		return "BRW"
	case LRD:
		return "LRD"
	case LWR:
		return "LWR"
	case LRW:
		return "LRW"
	case ARMW:
		return "ARMW"
	case FRMW:
		return "FRMW"
	default:
		return "UNKNOWN"
	}
}

// PDUHeaderLen is the 10-byte PDU header: command type, index, ADP, ADO,
// length+flags, IRQ.
const PDUHeaderLen = 10

// WKCLen is the 2-byte working-counter trailer appended after a PDU's
// payload.
const WKCLen = 2

// PDU is a view over one header+payload+WKC slice inside a Frame.
type PDU []byte

// NewPDUUnchecked wraps buf, which must be at least PDUHeaderLen+WKCLen
// bytes, as a PDU view.
func NewPDUUnchecked(buf []byte) PDU {
	return PDU(buf)
}

func (p PDU) CommandType() CommandType { return CommandType(p[0]) }
func (p PDU) SetCommandType(c CommandType) { p[0] = byte(c) }

func (p PDU) Index() uint8     { return p[1] }
func (p PDU) SetIndex(i uint8) { p[1] = i }

func (p PDU) ADP() uint16      { return binary.LittleEndian.Uint16(p[2:4]) }
func (p PDU) SetADP(adp uint16) { binary.LittleEndian.PutUint16(p[2:4], adp) }

func (p PDU) ADO() uint16      { return binary.LittleEndian.Uint16(p[4:6]) }
func (p PDU) SetADO(ado uint16) { binary.LittleEndian.PutUint16(p[4:6], ado) }

// Length is the payload length in bytes (bits 0-10 of bytes 6-7).
func (p PDU) Length() uint16 {
	v := binary.LittleEndian.Uint16(p[6:8])
	return v & lengthMask
}

func (p PDU) SetLength(length uint16) {
	v := binary.LittleEndian.Uint16(p[6:8])
	v = (v &^ lengthMask) | (length & lengthMask)
	binary.LittleEndian.PutUint16(p[6:8], v)
}

// MoreFollows (bit 14) signals additional PDUs follow in the same frame.
func (p PDU) MoreFollows() bool {
	v := binary.LittleEndian.Uint16(p[6:8])
	return v&(1<<14) != 0
}

func (p PDU) SetMoreFollows(set bool) {
	v := binary.LittleEndian.Uint16(p[6:8])
	if set {
		v |= 1 << 14
	} else {
		v &^= 1 << 14
	}
	binary.LittleEndian.PutUint16(p[6:8], v)
}

// RoundTrip (bit 15) is the circulating-frame indicator.
func (p PDU) RoundTrip() bool {
	v := binary.LittleEndian.Uint16(p[6:8])
	return v&(1<<15) != 0
}

func (p PDU) SetRoundTrip(set bool) {
	v := binary.LittleEndian.Uint16(p[6:8])
	if set {
		v |= 1 << 15
	} else {
		v &^= 1 << 15
	}
	binary.LittleEndian.PutUint16(p[6:8], v)
}

func (p PDU) IRQ() uint16      { return binary.LittleEndian.Uint16(p[8:10]) }
func (p PDU) SetIRQ(irq uint16) { binary.LittleEndian.PutUint16(p[8:10], irq) }

// Data is the payload slice, sized from the header's length field.
func (p PDU) Data() []byte {
	n := p.Length()
	return p[PDUHeaderLen : PDUHeaderLen+int(n)]
}

// WKC is the working counter trailing the payload.
func (p PDU) WKC() uint16 {
	n := PDUHeaderLen + int(p.Length())
	return binary.LittleEndian.Uint16(p[n : n+2])
}

func (p PDU) SetWKC(wkc uint16) {
	n := PDUHeaderLen + int(p.Length())
	binary.LittleEndian.PutUint16(p[n:n+2], wkc)
}
