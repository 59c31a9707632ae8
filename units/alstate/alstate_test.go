package alstate

import (
	"testing"

	"github.com/runzeroinc/ecmaster/ecerr"
	"github.com/runzeroinc/ecmaster/engine"
	"github.com/runzeroinc/ecmaster/internal/wire"
	"github.com/runzeroinc/ecmaster/network"
)

func alStatusBytes(state uint8, changeErr bool) []byte {
	buf := make([]byte, wire.AlStatusLen)
	buf[0] = state & 0x0f
	if changeErr {
		buf[0] |= 0x10
	}
	return buf
}

func step(t *testing.T, tr *Transfer, tbl *network.Table, data []byte, wkc uint16) {
	t.Helper()
	cmdType, _, ado, _, ok := tr.NextCommand(tbl, 0)
	if !ok {
		t.Fatal("NextCommand returned ok=false mid-transfer")
	}
	tr.ReceiveAndProcess(&engine.ReceivedData{Command: cmdType, ADO: ado, Data: data, WKC: wkc}, tbl, 0)
}

func TestTransfer_InitToPreOperational(t *testing.T) {
	tbl := network.NewTable()
	tr := New()
	tr.Start(Target{Single: true, StationAddress: 0x1000}, network.AlStatePreOperational)

	// stateRead: slave reports Init, not yet at target, no error bit.
	step(t, tr, tbl, alStatusBytes(uint8(network.AlStateInit), false), 1)
	if done, _, _ := tr.Wait(); done {
		t.Fatal("Wait() done after first read, want still in progress")
	}

	// stateResetSiiOwnership
	step(t, tr, tbl, nil, 1)
	// stateRequest
	step(t, tr, tbl, nil, 1)
	// statePoll: slave now reports PreOperational.
	step(t, tr, tbl, alStatusBytes(uint8(network.AlStatePreOperational), false), 1)

	done, al, err := tr.Wait()
	if !done || err != nil || al != network.AlStatePreOperational {
		t.Fatalf("Wait() = (%v, %v, %v), want (true, PreOperational, nil)", done, al, err)
	}
}

func TestTransfer_WKCMismatchIsError(t *testing.T) {
	tbl := network.NewTable()
	tr := New()
	tr.Start(Target{Single: true, StationAddress: 0x1000}, network.AlStatePreOperational)

	cmdType, _, ado, _, ok := tr.NextCommand(tbl, 0)
	if !ok {
		t.Fatal("NextCommand returned ok=false")
	}
	tr.ReceiveAndProcess(&engine.ReceivedData{Command: cmdType, ADO: ado, Data: alStatusBytes(uint8(network.AlStateInit), false), WKC: 0}, tbl, 0)

	done, _, err := tr.Wait()
	if !done || err == nil {
		t.Fatalf("Wait() = (%v, err=%v), want (true, non-nil)", done, err)
	}
	wkcErr, ok2 := err.(*ecerr.UnexpectedWKC)
	if !ok2 {
		t.Fatalf("Wait() err type = %T, want *ecerr.UnexpectedWKC", err)
	}
	if wkcErr.Expected != 1 || wkcErr.Got != 0 {
		t.Errorf("UnexpectedWKC = %+v, want {Expected:1 Got:0}", wkcErr)
	}
}

func TestTransfer_ChangeErrTriggersResetSequence(t *testing.T) {
	tbl := network.NewTable()
	tr := New()
	tr.Start(Target{Single: true, StationAddress: 0x1000}, network.AlStatePreOperational)

	// stateRead reports a refused request (ChangeErr set).
	step(t, tr, tbl, alStatusBytes(uint8(network.AlStateInit), true), 1)

	// stateResetError: write AL control with acknowledge set.
	cmdType, _, ado, payload, ok := tr.NextCommand(tbl, 0)
	if !ok || cmdType != wire.FPWR || ado != wire.RegAlControl {
		t.Fatalf("stateResetError NextCommand = (%v, 0x%x)", cmdType, ado)
	}
	ctrl := wire.NewAlControlUnchecked(payload)
	if !ctrl.Acknowledge() {
		t.Error("stateResetError did not set Acknowledge bit")
	}
	tr.ReceiveAndProcess(&engine.ReceivedData{Command: cmdType, ADO: ado, WKC: 1}, tbl, 0)

	// stateOffAck: write AL control with acknowledge cleared.
	cmdType, _, ado, payload, ok = tr.NextCommand(tbl, 0)
	if !ok || cmdType != wire.FPWR || ado != wire.RegAlControl {
		t.Fatalf("stateOffAck NextCommand = (%v, 0x%x)", cmdType, ado)
	}
	ctrl = wire.NewAlControlUnchecked(payload)
	if ctrl.Acknowledge() {
		t.Error("stateOffAck left Acknowledge bit set")
	}
	tr.ReceiveAndProcess(&engine.ReceivedData{Command: cmdType, ADO: ado, WKC: 1}, tbl, 0)

	if done, _, _ := tr.Wait(); done {
		t.Fatal("Wait() done after offAck, want back to stateRead")
	}
}
