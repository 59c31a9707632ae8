package sdodownload

import (
	"testing"

	"github.com/runzeroinc/ecmaster/ecerr"
	"github.com/runzeroinc/ecmaster/engine"
	"github.com/runzeroinc/ecmaster/internal/wire"
	"github.com/runzeroinc/ecmaster/network"
)

func smStatus(full, enabled bool) []byte {
	buf := make([]byte, wire.SMStatusLen)
	if full {
		buf[0] |= 0x08
	}
	if enabled {
		buf[1] |= 0x01
	}
	return buf
}

func downloadResponseBytes(commandSpecifier uint8, extra []byte) []byte {
	buf := make([]byte, wire.MailboxHeaderLen+wire.CoEHeaderLen+wire.SdoHeaderLen+len(extra))
	sdo := wire.NewSdoHeaderUnchecked(buf[wire.MailboxHeaderLen+wire.CoEHeaderLen:])
	sdo.SetCommandSpecifier(commandSpecifier)
	copy(buf[wire.MailboxHeaderLen+wire.CoEHeaderLen+wire.SdoHeaderLen:], extra)
	return buf
}

func runUntilMailboxWriteStarts(t *testing.T, d *Download, tbl *network.Table) {
	t.Helper()
	cmdType, _, ado, _, ok := d.NextCommand(tbl, 0)
	if !ok || cmdType != wire.FPRD || ado != wire.RegSM0Status {
		t.Fatalf("stateCheckMailboxEmpty NextCommand = (%v, 0x%x)", cmdType, ado)
	}
	d.ReceiveAndProcess(&engine.ReceivedData{WKC: 1, Data: smStatus(false, true)}, tbl, 0)
}

func TestDownload_Success(t *testing.T) {
	tbl := network.NewTable()
	idx := tbl.Add(network.NewSlave(0x1000))
	d := New()
	d.Start(idx, 0x1000, 0x6060, 0x00, []byte{0x08})

	runUntilMailboxWriteStarts(t, d, tbl)

	cmdType, _, ado, _, ok := d.NextCommand(tbl, 0)
	if !ok || cmdType != wire.FPWR || ado != wire.RegSM0 {
		t.Fatalf("stateWriteDownloadRequest NextCommand = (%v, 0x%x)", cmdType, ado)
	}
	d.ReceiveAndProcess(&engine.ReceivedData{WKC: 1}, tbl, 0)

	cmdType, _, ado, _, ok = d.NextCommand(tbl, 0)
	if !ok || cmdType != wire.FPRD || ado != wire.RegSM1Status {
		t.Fatalf("stateReadDownloadResponse NextCommand = (%v, 0x%x)", cmdType, ado)
	}
	d.ReceiveAndProcess(&engine.ReceivedData{WKC: 1, Data: smStatus(true, true)}, tbl, 0)

	cmdType, _, ado, _, ok = d.NextCommand(tbl, 0)
	if !ok || cmdType != wire.FPRD || ado != wire.RegSM1Data {
		t.Fatalf("read data NextCommand = (%v, 0x%x)", cmdType, ado)
	}
	d.ReceiveAndProcess(&engine.ReceivedData{WKC: 1, Data: downloadResponseBytes(wire.SdoCommandDownloadResponse, nil)}, tbl, 0)

	done, err := d.Wait()
	if !done || err != nil {
		t.Fatalf("Wait() = (%v, %v), want (true, nil)", done, err)
	}
}

func TestDownload_AbortResponseDecodesCode(t *testing.T) {
	tbl := network.NewTable()
	idx := tbl.Add(network.NewSlave(0x1000))
	d := New()
	d.Start(idx, 0x1000, 0x6060, 0x00, []byte{0x08})

	runUntilMailboxWriteStarts(t, d, tbl)
	d.NextCommand(tbl, 0)
	d.ReceiveAndProcess(&engine.ReceivedData{WKC: 1}, tbl, 0)
	d.NextCommand(tbl, 0)
	d.ReceiveAndProcess(&engine.ReceivedData{WKC: 1, Data: smStatus(true, true)}, tbl, 0)
	d.NextCommand(tbl, 0)

	abortBytes := []byte{0x05, 0x03, 0x00, 0x06}
	d.ReceiveAndProcess(&engine.ReceivedData{WKC: 1, Data: downloadResponseBytes(wire.SdoCommandAbort, abortBytes)}, tbl, 0)

	done, err := d.Wait()
	if !done {
		t.Fatal("Wait() reported not done after abort response")
	}
	abortErr, ok := err.(*ecerr.AbortCode)
	if !ok {
		t.Fatalf("Wait() err type = %T, want *ecerr.AbortCode", err)
	}
	if abortErr.Code != 0x06000305 {
		t.Errorf("AbortCode.Code = 0x%08x, want 0x06000305", abortErr.Code)
	}
}

func TestDownload_WriteRetryAfterWouldBlockReusesDatagram(t *testing.T) {
	tbl := network.NewTable()
	idx := tbl.Add(network.NewSlave(0x1000))
	d := New()
	d.Start(idx, 0x1000, 0x6060, 0x00, []byte{0x08})

	runUntilMailboxWriteStarts(t, d, tbl)

	cmdType, _, ado, firstPayload, ok := d.NextCommand(tbl, 0)
	if !ok || cmdType != wire.FPWR || ado != wire.RegSM0 {
		t.Fatalf("first write attempt = (%v, 0x%x)", cmdType, ado)
	}
	// WKC mismatch: sync manager wasn't ready, Writer reports WouldBlock.
	d.ReceiveAndProcess(&engine.ReceivedData{WKC: 0}, tbl, 0)

	if done, _ := d.Wait(); done {
		t.Fatal("Wait() reported done after a WouldBlock retry, want still pending")
	}

	cmdType, _, ado, secondPayload, ok := d.NextCommand(tbl, 0)
	if !ok || cmdType != wire.FPWR || ado != wire.RegSM0 {
		t.Fatalf("retry write attempt = (%v, 0x%x), want a fresh FPWR to RegSM0", cmdType, ado)
	}
	if string(firstPayload) != string(secondPayload) {
		t.Fatalf("retry payload = %x, want identical to first attempt %x", secondPayload, firstPayload)
	}
}

func TestDownload_ReadResponseSurvivesMultipleNotFullCycles(t *testing.T) {
	tbl := network.NewTable()
	idx := tbl.Add(network.NewSlave(0x1000))
	d := New()
	d.Start(idx, 0x1000, 0x6060, 0x00, []byte{0x08})

	runUntilMailboxWriteStarts(t, d, tbl)
	d.NextCommand(tbl, 0)
	d.ReceiveAndProcess(&engine.ReceivedData{WKC: 1}, tbl, 0)

	// SM1 reports not-full for a couple of cycles before filling; the
	// Reader sub-unit must keep polling rather than get rebuilt and
	// re-enter the check-full stage forever.
	for i := 0; i < 3; i++ {
		cmdType, _, ado, _, ok := d.NextCommand(tbl, 0)
		if !ok || cmdType != wire.FPRD || ado != wire.RegSM1Status {
			t.Fatalf("cycle %d: NextCommand = (%v, 0x%x), want FPRD/RegSM1Status", i, cmdType, ado)
		}
		d.ReceiveAndProcess(&engine.ReceivedData{WKC: 1, Data: smStatus(false, true)}, tbl, 0)
		if done, _ := d.Wait(); done {
			t.Fatalf("cycle %d: Wait() reported done while still polling for full", i)
		}
	}

	cmdType, _, ado, _, ok := d.NextCommand(tbl, 0)
	if !ok || cmdType != wire.FPRD || ado != wire.RegSM1Status {
		t.Fatalf("final poll NextCommand = (%v, 0x%x), want FPRD/RegSM1Status", cmdType, ado)
	}
	d.ReceiveAndProcess(&engine.ReceivedData{WKC: 1, Data: smStatus(true, true)}, tbl, 0)

	cmdType, _, ado, _, ok = d.NextCommand(tbl, 0)
	if !ok || cmdType != wire.FPRD || ado != wire.RegSM1Data {
		t.Fatalf("read data NextCommand = (%v, 0x%x), want FPRD/RegSM1Data", cmdType, ado)
	}
	d.ReceiveAndProcess(&engine.ReceivedData{WKC: 1, Data: downloadResponseBytes(wire.SdoCommandDownloadResponse, nil)}, tbl, 0)

	done, err := d.Wait()
	if !done || err != nil {
		t.Fatalf("Wait() = (%v, %v), want (true, nil)", done, err)
	}
}

func TestDownload_MailboxAlreadyFullIsError(t *testing.T) {
	tbl := network.NewTable()
	idx := tbl.Add(network.NewSlave(0x1000))
	d := New()
	d.Start(idx, 0x1000, 0x6060, 0x00, []byte{0x08})

	d.NextCommand(tbl, 0)
	d.ReceiveAndProcess(&engine.ReceivedData{WKC: 1, Data: smStatus(true, true)}, tbl, 0)

	done, err := d.Wait()
	if !done || err == nil {
		t.Fatalf("Wait() = (%v, %v), want (true, non-nil MailboxAlreadyExisted)", done, err)
	}
	if _, ok := err.(*ecerr.MailboxAlreadyExisted); !ok {
		t.Errorf("Wait() err type = %T, want *ecerr.MailboxAlreadyExisted", err)
	}
}
