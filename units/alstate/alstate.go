// Package alstate drives a slave, or all slaves via broadcast, through
// a requested AL (Application Layer) state transition.
package alstate

import (
	"time"

	"github.com/runzeroinc/ecmaster"
	"github.com/runzeroinc/ecmaster/ecerr"
	"github.com/runzeroinc/ecmaster/engine"
	"github.com/runzeroinc/ecmaster/internal/wire"
	"github.com/runzeroinc/ecmaster/network"
)

type state int

const (
	stateIdle state = iota
	stateRead
	stateResetError
	stateOffAck
	stateResetSiiOwnership
	stateRequest
	statePoll
	stateComplete
	stateError
)

// Target selects a single addressed slave or a broadcast to every
// discovered slave.
type Target struct {
	// Single, if true, addresses StationAddress directly (FPRD/FPWR).
	// Otherwise the unit broadcasts (BRD/BWR) and expects ExpectedCount
	// replies.
	Single         bool
	StationAddress uint16
	ExpectedCount  uint16
}

// Transfer drives one AL-state transition to completion or error.
// Callers create one, call Start, and feed it to an engine.Engine as a
// Unit until Wait reports done.
type Transfer struct {
	st           state
	target       Target
	targetAl     network.AlState
	currentAl    network.AlState
	lastCmdType  wire.CommandType
	lastADO      uint16
	timerStart   ecmaster.SystemTime
	timeoutMs    uint32
	err          error
}

func New() *Transfer {
	return &Transfer{st: stateIdle}
}

// Start begins a transition toward targetState for target, resetting
// any previous error.
func (t *Transfer) Start(target Target, targetState network.AlState) {
	t.target = target
	t.targetAl = targetState
	t.st = stateRead
	t.err = nil
}

// Wait returns done=true once the transfer has reached a terminal state
// (Complete, with a nil err, or Error); done=false and a nil err while
// still in progress. al is the AL state last read from the slave(s).
func (t *Transfer) Wait() (done bool, al network.AlState, err error) {
	switch t.st {
	case stateComplete:
		return true, t.currentAl, nil
	case stateError:
		return true, t.currentAl, t.err
	default:
		return false, t.currentAl, nil
	}
}

func (t *Transfer) readCommand() (wire.CommandType, uint16, uint16) {
	if t.target.Single {
		return wire.FPRD, t.target.StationAddress, wire.RegAlStatus
	}
	return wire.BRD, 0, wire.RegAlStatus
}

func (t *Transfer) writeCommand(reg uint16) (wire.CommandType, uint16, uint16) {
	if t.target.Single {
		return wire.FPWR, t.target.StationAddress, reg
	}
	return wire.BWR, 0, reg
}

func (t *Transfer) NextCommand(tbl *network.Table, sysTime ecmaster.SystemTime) (wire.CommandType, uint16, uint16, []byte, bool) {
	switch t.st {
	case stateRead, statePoll:
		cmdType, adp, ado := t.readCommand()
		t.lastCmdType, t.lastADO = cmdType, ado
		return cmdType, adp, ado, make([]byte, wire.AlStatusLen), true

	case stateResetError:
		cmdType, adp, ado := t.writeCommand(wire.RegAlControl)
		t.lastCmdType, t.lastADO = cmdType, ado
		buf := make([]byte, wire.AlControlLen)
		ctrl := wire.NewAlControlUnchecked(buf)
		ctrl.SetState(uint8(t.currentAl))
		ctrl.SetAcknowledge(true)
		return cmdType, adp, ado, buf, true

	case stateOffAck:
		cmdType, adp, ado := t.writeCommand(wire.RegAlControl)
		t.lastCmdType, t.lastADO = cmdType, ado
		buf := make([]byte, wire.AlControlLen)
		ctrl := wire.NewAlControlUnchecked(buf)
		ctrl.SetState(uint8(t.currentAl))
		ctrl.SetAcknowledge(false)
		return cmdType, adp, ado, buf, true

	case stateResetSiiOwnership:
		cmdType, adp, ado := t.writeCommand(wire.RegSiiAccess)
		t.lastCmdType, t.lastADO = cmdType, ado
		buf := make([]byte, wire.SiiAccessLen)
		sii := wire.NewSiiAccessUnchecked(buf)
		sii.SetOwner(true)
		sii.SetResetAccess(false)
		return cmdType, adp, ado, buf, true

	case stateRequest:
		cmdType, adp, ado := t.writeCommand(wire.RegAlControl)
		t.lastCmdType, t.lastADO = cmdType, ado
		buf := make([]byte, wire.AlControlLen)
		ctrl := wire.NewAlControlUnchecked(buf)
		ctrl.SetState(uint8(t.targetAl))
		t.timeoutMs = transitionTimeoutMs(t.currentAl, t.targetAl)
		return cmdType, adp, ado, buf, true

	default:
		return 0, 0, 0, nil, false
	}
}

func transitionTimeoutMs(current, target network.AlState) uint32 {
	switch {
	case target == network.AlStateOperational, current == network.AlStatePreOperational && target == network.AlStateSafeOperational:
		return 10000
	case target == network.AlStatePreOperational, target == network.AlStateBootstrap:
		return 3000
	case target == network.AlStateInit:
		return 5000
	case target == network.AlStateSafeOperational:
		return 200
	default:
		return 10000
	}
}

func (t *Transfer) ReceiveAndProcess(recv *engine.ReceivedData, tbl *network.Table, sysTime ecmaster.SystemTime) bool {
	if t.st == stateIdle || t.st == stateComplete || t.st == stateError {
		return false
	}

	if recv == nil {
		t.st = stateError
		t.err = &ecerr.LostCommand{}
		return false
	}

	if recv.Command != t.lastCmdType || recv.ADO != t.lastADO {
		t.st = stateError
		t.err = &ecerr.UnexpectedCommand{Expected: t.lastCmdType.String(), Got: recv.Command.String()}
		return false
	}

	expectedWKC := uint16(1)
	if !t.target.Single {
		expectedWKC = t.target.ExpectedCount
	}
	if recv.WKC != expectedWKC {
		t.st = stateError
		t.err = &ecerr.UnexpectedWKC{Expected: expectedWKC, Got: recv.WKC}
		return true
	}

	switch t.st {
	case stateRead:
		status := wire.NewAlStatusUnchecked(recv.Data)
		al := network.AlStateFromByte(status.State())
		t.currentAl = al
		switch {
		case al == t.targetAl:
			t.st = stateComplete
		case status.ChangeErr():
			if al == network.AlStateInvalid {
				al = network.AlStateInit
			}
			t.currentAl = al
			t.st = stateResetError
		default:
			t.st = stateResetSiiOwnership
		}

	case stateResetError:
		t.st = stateOffAck

	case stateOffAck:
		t.st = stateRead

	case stateResetSiiOwnership:
		t.st = stateRequest

	case stateRequest:
		t.timerStart = sysTime
		t.st = statePoll

	case statePoll:
		status := wire.NewAlStatusUnchecked(recv.Data)
		al := network.AlStateFromByte(status.State())
		t.currentAl = al
		switch {
		case al == t.targetAl:
			t.st = stateComplete
		case status.ChangeErr():
			t.st = stateError
			t.err = &ecerr.AlStatusCode{State: al, Code: status.StatusCode()}
		case sysTime.Sub(t.timerStart) > time.Duration(t.timeoutMs)*time.Millisecond:
			t.st = stateError
			t.err = &ecerr.TimeoutMs{Stage: "poll", Elapsed: int64(t.timeoutMs)}
		}
	}
	return false
}
