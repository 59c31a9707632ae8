// Package wire decodes and encodes the byte layouts this module puts on
// the wire: the Ethernet/EtherCAT frame headers, PDU headers, mailbox
// headers and CoE/SDO headers. Each type is a thin byte-offset view with
// typed accessor methods over a caller-owned slice, rather than a
// reflection-based or generated codec.
package wire

import "encoding/binary"

// EthernetHeaderLen is the length of an Ethernet II header: dest MAC,
// source MAC, EtherType.
const EthernetHeaderLen = 14

// EtherCATEtherType is the EtherType value identifying an EtherCAT frame.
const EtherCATEtherType = 0x88A4

// EthernetHeader is a fixed 14-byte view over an Ethernet II header.
type EthernetHeader []byte

func NewEthernetHeaderUnchecked(buf []byte) EthernetHeader {
	return EthernetHeader(buf)
}

func (h EthernetHeader) Destination() [6]byte {
	var mac [6]byte
	copy(mac[:], h[0:6])
	return mac
}

func (h EthernetHeader) SetDestination(mac [6]byte) {
	copy(h[0:6], mac[:])
}

func (h EthernetHeader) Source() [6]byte {
	var mac [6]byte
	copy(mac[:], h[6:12])
	return mac
}

func (h EthernetHeader) SetSource(mac [6]byte) {
	copy(h[6:12], mac[:])
}

func (h EthernetHeader) EtherType() uint16 {
	return binary.BigEndian.Uint16(h[12:14])
}

func (h EthernetHeader) SetEtherType(et uint16) {
	binary.BigEndian.PutUint16(h[12:14], et)
}
