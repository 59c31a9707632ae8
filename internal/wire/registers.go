package wire

import "encoding/binary"

// ESC register addresses used by the unit state machines. Addresses
// match the EtherCAT slave controller register map (ETG.1000.4).
const (
	RegAlControl     uint16 = 0x0120
	RegAlStatus      uint16 = 0x0130
	RegAlStatusCode  uint16 = 0x0134
	RegSiiAccess     uint16 = 0x0500
	RegSiiControl    uint16 = 0x0502
	RegSiiAddress    uint16 = 0x0504
	RegSiiData       uint16 = 0x0508
	RegFMMU0         uint16 = 0x0600
	RegSM0           uint16 = 0x0800
	RegSM0Status     uint16 = 0x0805
	RegSM1Data       uint16 = 0x0808
	RegSM1Status     uint16 = 0x080D
	RegDLStatus      uint16 = 0x0110
	RegDCRecvTime0   uint16 = 0x0900
	RegDCSystemTime  uint16 = 0x0910
	RegDCSysTimeDiff uint16 = 0x092C
)

// AlControlLen, AlStatusLen, SiiAccessLen are the register widths the
// AL-state-transfer unit reads and writes.
const (
	AlControlLen = 2
	AlStatusLen  = 4
	SiiAccessLen = 2
)

// AlControl is a view over the 2-byte AL Control register.
type AlControl []byte

func NewAlControlUnchecked(buf []byte) AlControl { return AlControl(buf) }

func (r AlControl) State() uint8 { return r[0] & 0x0f }
func (r AlControl) SetState(state uint8) {
	r[0] = (r[0] &^ 0x0f) | (state & 0x0f)
}

func (r AlControl) Acknowledge() bool { return r[0]&0x10 != 0 }
func (r AlControl) SetAcknowledge(ack bool) {
	if ack {
		r[0] |= 0x10
	} else {
		r[0] &^= 0x10
	}
}

// AlStatus is a view over the 4-byte AL Status register (state byte,
// reserved byte, 2-byte status code).
type AlStatus []byte

func NewAlStatusUnchecked(buf []byte) AlStatus { return AlStatus(buf) }

func (r AlStatus) State() uint8 { return r[0] & 0x0f }

// ChangeErr reports the Error/Change bit (bit 4) indicating the AL
// control request was refused.
func (r AlStatus) ChangeErr() bool { return r[0]&0x10 != 0 }

func (r AlStatus) StatusCode() uint16 { return binary.LittleEndian.Uint16(r[2:4]) }

// SiiAccess is a view over the 2-byte SII Access register.
type SiiAccess []byte

func NewSiiAccessUnchecked(buf []byte) SiiAccess { return SiiAccess(buf) }

func (r SiiAccess) Owner() bool { return r[0]&0x01 != 0 }
func (r SiiAccess) SetOwner(owner bool) {
	if owner {
		r[0] |= 0x01
	} else {
		r[0] &^= 0x01
	}
}

func (r SiiAccess) SetResetAccess(reset bool) {
	if reset {
		r[0] |= 0x02
	} else {
		r[0] &^= 0x02
	}
}

// SMStatusLen is the 2-byte sync manager PDI control/status register
// this module reads to learn whether a mailbox sync manager is empty
// (SM0, outgoing) or full (SM1, incoming).
const SMStatusLen = 2

// SMStatus is a view over a sync manager's 2-byte PDI control/status
// register: byte 0 bit 3 is the mailbox full/empty flag, byte 1 bit 0
// is the sync manager enable flag.
type SMStatus []byte

func NewSMStatusUnchecked(buf []byte) SMStatus { return SMStatus(buf) }

func (r SMStatus) MailboxFull() bool { return r[0]&0x08 != 0 }
func (r SMStatus) Enabled() bool     { return r[1]&0x01 != 0 }
