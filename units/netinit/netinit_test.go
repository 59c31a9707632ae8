package netinit

import (
	"encoding/binary"
	"testing"

	"github.com/runzeroinc/ecmaster/engine"
	"github.com/runzeroinc/ecmaster/internal/wire"
	"github.com/runzeroinc/ecmaster/network"
)

func wordReply(v uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return buf
}

// runSiiRead drives one slave's SII reader sub-unit through its full
// set-address/start-read/poll-busy/read-data sequence for all three
// identification words.
func runSiiRead(t *testing.T, init *Initializer, tbl *network.Table, words [3]uint32) {
	t.Helper()
	for _, v := range words {
		cmdType, _, ado, _, ok := init.NextCommand(tbl, 0)
		if !ok || cmdType != wire.FPWR || ado != wire.RegSiiAddress {
			t.Fatalf("stateSetAddress NextCommand = (%v, 0x%x)", cmdType, ado)
		}
		init.ReceiveAndProcess(&engine.ReceivedData{WKC: 1}, tbl, 0)

		cmdType, _, ado, _, ok = init.NextCommand(tbl, 0)
		if !ok || cmdType != wire.FPWR || ado != wire.RegSiiControl {
			t.Fatalf("stateStartRead NextCommand = (%v, 0x%x)", cmdType, ado)
		}
		init.ReceiveAndProcess(&engine.ReceivedData{WKC: 1}, tbl, 0)

		cmdType, _, ado, _, ok = init.NextCommand(tbl, 0)
		if !ok || cmdType != wire.FPRD || ado != wire.RegSiiControl {
			t.Fatalf("statePollBusy NextCommand = (%v, 0x%x)", cmdType, ado)
		}
		init.ReceiveAndProcess(&engine.ReceivedData{WKC: 1, Data: make([]byte, wire.SiiAccessLen)}, tbl, 0)

		cmdType, _, ado, _, ok = init.NextCommand(tbl, 0)
		if !ok || cmdType != wire.FPRD || ado != wire.RegSiiData {
			t.Fatalf("stateReadData NextCommand = (%v, 0x%x)", cmdType, ado)
		}
		init.ReceiveAndProcess(&engine.ReceivedData{WKC: 1, Data: wordReply(v)}, tbl, 0)
	}
}

func TestInitializer_DiscoversAndAssignsThreeSlaves(t *testing.T) {
	tbl := network.NewTable()
	init := New()
	init.Start()

	cmdType, _, ado, _, ok := init.NextCommand(tbl, 0)
	if !ok || cmdType != wire.BRD || ado != wire.RegAlStatus {
		t.Fatalf("first NextCommand = (%v, ado=0x%x, ok=%v), want BRD/RegAlStatus/true", cmdType, ado, ok)
	}
	init.ReceiveAndProcess(&engine.ReceivedData{WKC: 3}, tbl, 0)

	if done, _, _ := init.Wait(); done {
		t.Fatal("Wait() reported done immediately after counting slaves")
	}

	siiWords := [3][3]uint32{
		{0x00000002, 0x10000001, 0x00000001},
		{0x00000003, 0x10000002, 0x00000001},
		{0x00000004, 0x10000003, 0x00000002},
	}

	for i := 0; i < 3; i++ {
		cmdType, adp, ado, _, ok := init.NextCommand(tbl, 0)
		if !ok || cmdType != wire.APWR || ado != regFixedStationAddress {
			t.Fatalf("assign NextCommand(%d) = (%v, ado=0x%x), want APWR/regFixedStationAddress", i, cmdType, ado)
		}
		wantADP := uint16(0) - uint16(i)
		if adp != wantADP {
			t.Errorf("assign NextCommand(%d) ADP = 0x%04x, want 0x%04x", i, adp, wantADP)
		}
		init.ReceiveAndProcess(&engine.ReceivedData{WKC: 1}, tbl, 0)

		runSiiRead(t, init, tbl, siiWords[i])
	}

	done, count, err := init.Wait()
	if !done || err != nil || count != 3 {
		t.Fatalf("Wait() = (%v, %d, %v), want (true, 3, nil)", done, count, err)
	}
	if tbl.Len() != 3 {
		t.Fatalf("Table.Len() = %d, want 3", tbl.Len())
	}
	for i := 0; i < 3; i++ {
		slave := tbl.Get(i)
		want := firstStationAddress + uint16(i)
		if slave.StationAddress != want {
			t.Errorf("slave %d StationAddress = 0x%04x, want 0x%04x", i, slave.StationAddress, want)
		}
		if slave.VendorID != siiWords[i][0] || slave.ProductCode != siiWords[i][1] || slave.RevisionNumber != siiWords[i][2] {
			t.Errorf("slave %d SII fields = (0x%x, 0x%x, 0x%x), want (0x%x, 0x%x, 0x%x)",
				i, slave.VendorID, slave.ProductCode, slave.RevisionNumber,
				siiWords[i][0], siiWords[i][1], siiWords[i][2])
		}
	}
}

func TestInitializer_NoSlavesFound(t *testing.T) {
	tbl := network.NewTable()
	init := New()
	init.Start()

	init.NextCommand(tbl, 0)
	init.ReceiveAndProcess(&engine.ReceivedData{WKC: 0}, tbl, 0)

	done, count, err := init.Wait()
	if !done || err != nil || count != 0 {
		t.Fatalf("Wait() = (%v, %d, %v), want (true, 0, nil)", done, count, err)
	}
}

func TestInitializer_LostCommandIsError(t *testing.T) {
	tbl := network.NewTable()
	init := New()
	init.Start()

	init.NextCommand(tbl, 0)
	init.ReceiveAndProcess(nil, tbl, 0)

	done, _, err := init.Wait()
	if !done || err == nil {
		t.Fatalf("Wait() = (%v, err=%v), want (true, non-nil)", done, err)
	}
}

func TestInitializer_UnexpectedWKCDuringAssignIsError(t *testing.T) {
	tbl := network.NewTable()
	init := New()
	init.Start()

	init.NextCommand(tbl, 0)
	init.ReceiveAndProcess(&engine.ReceivedData{WKC: 1}, tbl, 0)

	init.NextCommand(tbl, 0)
	init.ReceiveAndProcess(&engine.ReceivedData{WKC: 0}, tbl, 0)

	done, _, err := init.Wait()
	if !done || err == nil {
		t.Fatalf("Wait() = (%v, err=%v), want (true, non-nil)", done, err)
	}
}
