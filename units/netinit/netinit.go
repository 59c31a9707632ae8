// Package netinit discovers the slaves present on the bus and assigns
// each one a fixed station address, populating the network.Table that
// every later unit consults.
package netinit

import (
	"encoding/binary"

	"github.com/runzeroinc/ecmaster"
	"github.com/runzeroinc/ecmaster/ecerr"
	"github.com/runzeroinc/ecmaster/engine"
	"github.com/runzeroinc/ecmaster/internal/wire"
	"github.com/runzeroinc/ecmaster/network"
	"github.com/runzeroinc/ecmaster/units/sii"
)

// firstStationAddress is the fixed address handed to the first slave in
// ring order; later slaves get firstStationAddress+1, +2, and so on.
const firstStationAddress uint16 = 0x1000

// regFixedStationAddress is the ESC register the auto-increment walk
// writes to assign each slave, in ring order, its fixed station address.
const regFixedStationAddress uint16 = 0x0010

type state int

const (
	stateIdle state = iota
	stateCountSlaves
	stateAssignNext
	stateReadSii
	stateComplete
	stateError
)

// Initializer counts the slaves on the bus with a broadcast read, then
// walks the ring assigning each one a fixed station address via
// auto-increment addressing (ADP counts down from 0 as each frame
// passes a slave that has not yet been configured), reading its SII
// identification words before moving on to the next one.
type Initializer struct {
	st        state
	count     int
	assigned  int
	reader    *sii.Reader
	err       error
}

func New() *Initializer {
	return &Initializer{st: stateIdle, reader: sii.New()}
}

// Start begins discovery.
func (i *Initializer) Start() {
	i.st = stateCountSlaves
	i.count = 0
	i.assigned = 0
	i.err = nil
}

// Wait reports whether discovery finished, and the resulting slave
// count on success.
func (i *Initializer) Wait() (done bool, count int, err error) {
	switch i.st {
	case stateComplete:
		return true, i.count, nil
	case stateError:
		return true, 0, i.err
	default:
		return false, 0, nil
	}
}

func (i *Initializer) NextCommand(tbl *network.Table, sysTime ecmaster.SystemTime) (wire.CommandType, uint16, uint16, []byte, bool) {
	switch i.st {
	case stateCountSlaves:
		return wire.BRD, 0, wire.RegAlStatus, make([]byte, wire.AlStatusLen), true

	case stateAssignNext:
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, firstStationAddress+uint16(i.assigned))
		// Auto-increment addressing: ADP is the two's complement of
		// the number of slaves already configured, so the frame
		// reaches the next unconfigured slave first.
		adp := uint16(0) - uint16(i.assigned)
		return wire.APWR, adp, regFixedStationAddress, buf, true

	case stateReadSii:
		return i.reader.NextCommand(tbl, sysTime)

	default:
		return 0, 0, 0, nil, false
	}
}

func (i *Initializer) ReceiveAndProcess(recv *engine.ReceivedData, tbl *network.Table, sysTime ecmaster.SystemTime) bool {
	switch i.st {
	case stateCountSlaves:
		if recv == nil {
			i.st, i.err = stateError, &ecerr.LostCommand{}
			return false
		}
		i.count = int(recv.WKC)
		if i.count == 0 {
			i.st = stateComplete
			return false
		}
		i.st = stateAssignNext

	case stateAssignNext:
		if recv == nil {
			i.st, i.err = stateError, &ecerr.LostCommand{}
			return false
		}
		if recv.WKC != 1 {
			i.st, i.err = stateError, &ecerr.UnexpectedWKC{Expected: 1, Got: recv.WKC}
			return true
		}
		station := firstStationAddress + uint16(i.assigned)
		tbl.Add(network.NewSlave(station))
		i.reader.Start(station)
		i.st = stateReadSii

	case stateReadSii:
		mismatch := i.reader.ReceiveAndProcess(recv, tbl, sysTime)
		done, vendorID, productCode, revisionNumber, err := i.reader.Wait()
		if !done {
			return mismatch
		}
		if err != nil {
			i.st, i.err = stateError, err
			return mismatch
		}
		slave := tbl.Get(i.assigned)
		slave.VendorID = vendorID
		slave.ProductCode = productCode
		slave.RevisionNumber = revisionNumber

		i.assigned++
		if i.assigned >= i.count {
			i.st = stateComplete
		} else {
			i.st = stateAssignNext
		}
		return mismatch
	}
	return false
}
