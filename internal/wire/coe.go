package wire

import "encoding/binary"

// CoeServiceType occupies the high nibble of the 2-byte CoE header.
type CoeServiceType uint8

const (
	CoeServiceEmergency  CoeServiceType = 1
	CoeServiceSdoReq     CoeServiceType = 2
	CoeServiceSdoRes     CoeServiceType = 3
	CoeServiceTxPDO      CoeServiceType = 4
	CoeServiceRxPDO      CoeServiceType = 5
	CoeServiceTxPDORemot CoeServiceType = 6
	CoeServiceRxPDORemot CoeServiceType = 7
	CoeServiceSdoInfo    CoeServiceType = 8
)

// CoEHeaderLen is the 2-byte CoE header preceding every CoE mailbox
// payload.
const CoEHeaderLen = 2

// CoEHeader is a view over the 2-byte CoE header: a 9-bit number field
// (unused by this module, always written zero) and a 4-bit service type
// in the high nibble.
type CoEHeader []byte

func NewCoEHeaderUnchecked(buf []byte) CoEHeader { return CoEHeader(buf) }

func (h CoEHeader) ServiceType() CoeServiceType {
	v := binary.LittleEndian.Uint16(h[0:2])
	return CoeServiceType(v >> 12)
}

func (h CoEHeader) SetServiceType(t CoeServiceType) {
	v := binary.LittleEndian.Uint16(h[0:2])
	v = (v & 0x0FFF) | (uint16(t) << 12)
	binary.LittleEndian.PutUint16(h[0:2], v)
}

// SDO command specifiers, as used in the download/upload state machines.
const (
	SdoCommandDownloadSegment = 0
	SdoCommandDownloadRequest = 1
	SdoCommandUploadRequest   = 2
	SdoCommandUploadResponse  = 2
	SdoCommandDownloadResponse = 3
	SdoCommandAbort           = 4
	SdoCommandUploadSegment   = 0
)

// SdoHeaderLen is the 4-byte SDO header: one flags byte, a 2-byte object
// index, and a 1-byte sub-index.
const SdoHeaderLen = 4

// SdoDownloadNormalExtraLen is the extra complete-size field appended to
// the SDO header on a normal (non-expedited) download request.
const SdoDownloadNormalExtraLen = 4

// SdoHeader is a view over the 4-byte SDO header described in spec.md §6:
// flags byte (size-indicator, transfer-type, data-set-size, a bit shared
// between complete-access on initiate frames and toggle on segment
// frames, and the 3-bit command specifier), followed by a little-endian
// object index and a sub-index byte.
type SdoHeader []byte

func NewSdoHeaderUnchecked(buf []byte) SdoHeader { return SdoHeader(buf) }

func (h SdoHeader) CommandSpecifier() uint8 { return h[0] >> 5 }
func (h SdoHeader) SetCommandSpecifier(cs uint8) {
	h[0] = (h[0] & 0x1F) | ((cs & 0x07) << 5)
}

func (h SdoHeader) CompleteAccess() bool   { return h[0]&0x10 != 0 }
func (h SdoHeader) Toggle() bool           { return h[0]&0x10 != 0 }
func (h SdoHeader) setSharedBit(set bool) {
	if set {
		h[0] |= 0x10
	} else {
		h[0] &^= 0x10
	}
}
func (h SdoHeader) SetCompleteAccess(set bool) { h.setSharedBit(set) }
func (h SdoHeader) SetToggle(set bool)         { h.setSharedBit(set) }

func (h SdoHeader) DataSetSize() uint8 { return (h[0] >> 2) & 0x03 }
func (h SdoHeader) SetDataSetSize(n uint8) {
	h[0] = (h[0] &^ 0x0C) | ((n & 0x03) << 2)
}

func (h SdoHeader) TransferType() bool { return h[0]&0x02 != 0 }
func (h SdoHeader) SetTransferType(expedited bool) {
	if expedited {
		h[0] |= 0x02
	} else {
		h[0] &^= 0x02
	}
}

func (h SdoHeader) SizeIndicator() bool { return h[0]&0x01 != 0 }
func (h SdoHeader) SetSizeIndicator(set bool) {
	if set {
		h[0] |= 0x01
	} else {
		h[0] &^= 0x01
	}
}

func (h SdoHeader) Index() uint16      { return binary.LittleEndian.Uint16(h[1:3]) }
func (h SdoHeader) SetIndex(idx uint16) { binary.LittleEndian.PutUint16(h[1:3], idx) }

func (h SdoHeader) SubIndex() uint8      { return h[3] }
func (h SdoHeader) SetSubIndex(sub uint8) { h[3] = sub }

// SdoDownloadNormalHeader is the 4-byte complete-size extension appended
// after SdoHeader on a normal (non-expedited) download request.
type SdoDownloadNormalHeader []byte

func NewSdoDownloadNormalHeaderUnchecked(buf []byte) SdoDownloadNormalHeader {
	return SdoDownloadNormalHeader(buf)
}

func (h SdoDownloadNormalHeader) CompleteSize() uint32 {
	return binary.LittleEndian.Uint32(h[0:4])
}

func (h SdoDownloadNormalHeader) SetCompleteSize(n uint32) {
	binary.LittleEndian.PutUint32(h[0:4], n)
}
