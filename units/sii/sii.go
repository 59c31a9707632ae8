// Package sii reads a slave's Slave Information Interface (SII), the
// on-slave EEPROM holding vendor/product identification and sync
// manager/FMMU configuration, via the SII address/control/data
// registers.
package sii

import (
	"encoding/binary"

	"github.com/runzeroinc/ecmaster"
	"github.com/runzeroinc/ecmaster/ecerr"
	"github.com/runzeroinc/ecmaster/engine"
	"github.com/runzeroinc/ecmaster/internal/wire"
	"github.com/runzeroinc/ecmaster/network"
)

// Word addresses of the SII categories this reader pulls into a slave
// record. The general category's fixed fields start at word 0x0008;
// vendor ID, product code and revision number occupy the first three
// 4-byte words of it.
const (
	wordVendorID      uint16 = 0x0008
	wordProductCode   uint16 = 0x000A
	wordRevisionNumber uint16 = 0x000C
)

type state int

const (
	stateIdle state = iota
	stateSetAddress
	stateStartRead
	statePollBusy
	stateReadData
	stateComplete
	stateError
)

// Reader reads a sequence of 4-byte SII words from a slave and
// assembles them into its vendor ID, product code and revision number.
type Reader struct {
	st       state
	station  uint16
	words    []uint16
	wordIdx  int
	results  []uint32
	err      error
}

func New() *Reader {
	return &Reader{st: stateIdle}
}

// Start begins reading the vendor ID, product code and revision number
// words for the slave at station address station.
func (r *Reader) Start(station uint16) {
	r.station = station
	r.words = []uint16{wordVendorID, wordProductCode, wordRevisionNumber}
	r.wordIdx = 0
	r.results = nil
	r.err = nil
	r.st = stateSetAddress
}

// Wait reports whether the read sequence finished, and on success
// returns (vendorID, productCode, revisionNumber).
func (r *Reader) Wait() (done bool, vendorID, productCode, revisionNumber uint32, err error) {
	if r.st != stateComplete {
		if r.st == stateError {
			return true, 0, 0, 0, r.err
		}
		return false, 0, 0, 0, nil
	}
	return true, r.results[0], r.results[1], r.results[2], nil
}

func (r *Reader) NextCommand(tbl *network.Table, sysTime ecmaster.SystemTime) (wire.CommandType, uint16, uint16, []byte, bool) {
	switch r.st {
	case stateSetAddress:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(r.words[r.wordIdx]))
		return wire.FPWR, r.station, wire.RegSiiAddress, buf, true

	case stateStartRead:
		buf := make([]byte, wire.SiiAccessLen)
		access := wire.NewSiiAccessUnchecked(buf)
		access.SetResetAccess(true)
		return wire.FPWR, r.station, wire.RegSiiControl, buf, true

	case statePollBusy:
		return wire.FPRD, r.station, wire.RegSiiControl, make([]byte, wire.SiiAccessLen), true

	case stateReadData:
		return wire.FPRD, r.station, wire.RegSiiData, make([]byte, 4), true

	default:
		return 0, 0, 0, nil, false
	}
}

func (r *Reader) ReceiveAndProcess(recv *engine.ReceivedData, tbl *network.Table, sysTime ecmaster.SystemTime) bool {
	if recv == nil && r.st != stateIdle && r.st != stateComplete && r.st != stateError {
		r.st, r.err = stateError, &ecerr.LostCommand{}
		return false
	}

	switch r.st {
	case stateSetAddress:
		if recv.WKC != 1 {
			r.st, r.err = stateError, &ecerr.UnexpectedWKC{Expected: 1, Got: recv.WKC}
			return true
		}
		r.st = stateStartRead

	case stateStartRead:
		if recv.WKC != 1 {
			r.st, r.err = stateError, &ecerr.UnexpectedWKC{Expected: 1, Got: recv.WKC}
			return true
		}
		r.st = statePollBusy

	case statePollBusy:
		if recv.WKC != 1 {
			r.st, r.err = stateError, &ecerr.UnexpectedWKC{Expected: 1, Got: recv.WKC}
			return true
		}
		access := wire.NewSiiAccessUnchecked(recv.Data)
		if !access.Owner() {
			r.st = stateReadData
		}

	case stateReadData:
		if recv.WKC != 1 {
			r.st, r.err = stateError, &ecerr.UnexpectedWKC{Expected: 1, Got: recv.WKC}
			return true
		}
		value := binary.LittleEndian.Uint32(recv.Data)
		r.results = append(r.results, value)
		r.wordIdx++
		if r.wordIdx >= len(r.words) {
			r.st = stateComplete
		} else {
			r.st = stateSetAddress
		}
	}
	return false
}
