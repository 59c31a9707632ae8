// Package mailbox implements the sub-units the mailbox protocol units
// (CoE SDO download and upload) are built on: polling a slave's SM0
// for empty, writing a request into it, and reading a response back out
// of SM1. Higher-level units like units/sdodownload embed these rather
// than talking to the sync manager registers directly.
package mailbox

import (
	"github.com/runzeroinc/ecmaster"
	"github.com/runzeroinc/ecmaster/ecerr"
	"github.com/runzeroinc/ecmaster/engine"
	"github.com/runzeroinc/ecmaster/internal/wire"
	"github.com/runzeroinc/ecmaster/network"
)

// EmptyPollResult is what a completed EmptyPoll reports.
type EmptyPollResult int

const (
	ResultPending EmptyPollResult = iota
	ResultMailboxEmpty
	ResultMailboxFull
)

// EmptyPoll is a one-shot check of a slave's SM0 (outgoing mailbox)
// empty/full status.
type EmptyPoll struct {
	station uint16
	done    bool
	result  EmptyPollResult
	err     error
}

func NewEmptyPoll(station uint16) *EmptyPoll {
	return &EmptyPoll{station: station}
}

func (p *EmptyPoll) Done() (bool, EmptyPollResult, error) {
	return p.done, p.result, p.err
}

func (p *EmptyPoll) NextCommand(tbl *network.Table, sysTime ecmaster.SystemTime) (wire.CommandType, uint16, uint16, []byte, bool) {
	if p.done {
		return 0, 0, 0, nil, false
	}
	return wire.FPRD, p.station, wire.RegSM0Status, make([]byte, wire.SMStatusLen), true
}

func (p *EmptyPoll) ReceiveAndProcess(recv *engine.ReceivedData, tbl *network.Table, sysTime ecmaster.SystemTime) bool {
	if p.done {
		return false
	}
	if recv == nil {
		p.done, p.err = true, &ecerr.LostCommand{}
		return false
	}
	if recv.WKC != 1 {
		p.done, p.err = true, &ecerr.UnexpectedWKC{Expected: 1, Got: recv.WKC}
		return true
	}
	status := wire.NewSMStatusUnchecked(recv.Data)
	if !status.Enabled() {
		p.done, p.err = true, &ecerr.UnexpectedResponse{Detail: "mailbox sync manager disabled"}
		return false
	}
	p.done = true
	if status.MailboxFull() {
		p.result = ResultMailboxFull
	} else {
		p.result = ResultMailboxEmpty
	}
	return false
}

// Writer writes one request datagram (mailbox header followed by
// protocol payload, already assembled by the caller) into a slave's
// SM0. A WKC mismatch is reported as WouldBlock rather than an error:
// the sync manager was not yet ready to accept the write, and the
// caller should retry without reassembling the datagram.
type Writer struct {
	station   uint16
	datagram  []byte
	done      bool
	wouldBlock bool
	err       error
}

func NewWriter(station uint16, datagram []byte) *Writer {
	return &Writer{station: station, datagram: datagram}
}

func (w *Writer) Done() (done, wouldBlock bool, err error) {
	return w.done, w.wouldBlock, w.err
}

func (w *Writer) NextCommand(tbl *network.Table, sysTime ecmaster.SystemTime) (wire.CommandType, uint16, uint16, []byte, bool) {
	if w.done {
		return 0, 0, 0, nil, false
	}
	return wire.FPWR, w.station, wire.RegSM0, w.datagram, true
}

// A WKC mismatch here resolves to WouldBlock, an expected and routine
// outcome of racing the sync manager rather than a protocol anomaly,
// so it is not reported through the wkcMismatch return value.
func (w *Writer) ReceiveAndProcess(recv *engine.ReceivedData, tbl *network.Table, sysTime ecmaster.SystemTime) bool {
	if w.done {
		return false
	}
	if recv == nil {
		w.done, w.wouldBlock = true, true
		return false
	}
	if recv.WKC != 1 {
		w.done, w.wouldBlock = true, true
		return false
	}
	w.done = true
	return false
}

// Reader waits for SM1 to report full, then reads up to len(buf) bytes
// of the mailbox response into buf.
type Reader struct {
	station uint16
	buf     []byte
	stage   int
	done    bool
	n       int
	err     error
}

const (
	readerStageCheckFull = iota
	readerStageReadData
)

func NewReader(station uint16, buf []byte) *Reader {
	return &Reader{station: station, buf: buf}
}

func (r *Reader) Done() (done bool, data []byte, err error) {
	if !r.done {
		return false, nil, nil
	}
	return true, r.buf[:r.n], r.err
}

func (r *Reader) NextCommand(tbl *network.Table, sysTime ecmaster.SystemTime) (wire.CommandType, uint16, uint16, []byte, bool) {
	if r.done {
		return 0, 0, 0, nil, false
	}
	switch r.stage {
	case readerStageCheckFull:
		return wire.FPRD, r.station, wire.RegSM1Status, make([]byte, wire.SMStatusLen), true
	default:
		return wire.FPRD, r.station, wire.RegSM1Data, make([]byte, len(r.buf)), true
	}
}

func (r *Reader) ReceiveAndProcess(recv *engine.ReceivedData, tbl *network.Table, sysTime ecmaster.SystemTime) bool {
	if r.done {
		return false
	}
	if recv == nil {
		r.done, r.err = true, &ecerr.LostCommand{}
		return false
	}
	if recv.WKC != 1 {
		r.done, r.err = true, &ecerr.UnexpectedWKC{Expected: 1, Got: recv.WKC}
		return true
	}

	switch r.stage {
	case readerStageCheckFull:
		status := wire.NewSMStatusUnchecked(recv.Data)
		if !status.Enabled() {
			r.done, r.err = true, &ecerr.UnexpectedResponse{Detail: "mailbox sync manager disabled"}
			return false
		}
		if status.MailboxFull() {
			r.stage = readerStageReadData
		}
	default:
		r.n = copy(r.buf, recv.Data)
		r.done = true
	}
	return false
}
