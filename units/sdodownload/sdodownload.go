// Package sdodownload implements CoE SDO download: writing an object
// dictionary entry on a slave via the mailbox protocol.
package sdodownload

import (
	"github.com/runzeroinc/ecmaster"
	"github.com/runzeroinc/ecmaster/ecerr"
	"github.com/runzeroinc/ecmaster/engine"
	"github.com/runzeroinc/ecmaster/internal/wire"
	"github.com/runzeroinc/ecmaster/network"
	"github.com/runzeroinc/ecmaster/units/mailbox"
)

const responseBufferLen = 256

type state int

const (
	stateIdle state = iota
	stateCheckMailboxEmpty
	stateWriteDownloadRequest
	stateReadDownloadResponse
	stateComplete
	stateError
)

// Download drives one SDO download to completion or error.
type Download struct {
	st        state
	station   uint16
	slaveIdx  int
	header    [wire.SdoHeaderLen + wire.SdoDownloadNormalExtraLen + wire.CoEHeaderLen]byte
	data      []byte
	mbLength  int

	poll         *mailbox.EmptyPoll
	writer       *mailbox.Writer
	writeBuf     []byte
	reader       *mailbox.Reader
	firstEntry   bool

	err error
}

func New() *Download {
	return &Download{st: stateIdle}
}

// Start begins a download of data to index:subIndex on the slave at
// slaveIdx (its position in the network table) with station address
// station.
func (d *Download) Start(slaveIdx int, station uint16, index uint16, subIndex uint8, data []byte) {
	coe := wire.NewCoEHeaderUnchecked(d.header[0:wire.CoEHeaderLen])
	coe.SetServiceType(wire.CoeServiceSdoReq)

	sdo := wire.NewSdoHeaderUnchecked(d.header[wire.CoEHeaderLen : wire.CoEHeaderLen+wire.SdoHeaderLen])
	sdo.SetCompleteAccess(false)
	sdo.SetDataSetSize(0)
	sdo.SetCommandSpecifier(wire.SdoCommandDownloadRequest)
	sdo.SetTransferType(false)
	sdo.SetSizeIndicator(true)
	sdo.SetIndex(index)
	sdo.SetSubIndex(subIndex)

	complete := wire.NewSdoDownloadNormalHeaderUnchecked(d.header[wire.CoEHeaderLen+wire.SdoHeaderLen:])
	complete.SetCompleteSize(uint32(len(data)))

	d.data = data
	d.mbLength = len(d.header) + len(data)
	d.station = station
	d.slaveIdx = slaveIdx
	d.err = nil
	d.st = stateCheckMailboxEmpty
	d.poll = mailbox.NewEmptyPoll(station)
}

// Wait reports whether the download has finished, and the error (if
// any) it finished with.
func (d *Download) Wait() (done bool, err error) {
	switch d.st {
	case stateComplete:
		return true, nil
	case stateError:
		return true, d.err
	default:
		return false, nil
	}
}

func (d *Download) datagram() []byte {
	buf := make([]byte, wire.MailboxHeaderLen+d.mbLength)
	n := copy(buf[wire.MailboxHeaderLen:], d.header[:])
	copy(buf[wire.MailboxHeaderLen+n:], d.data)
	return buf
}

func (d *Download) NextCommand(tbl *network.Table, sysTime ecmaster.SystemTime) (wire.CommandType, uint16, uint16, []byte, bool) {
	switch d.st {
	case stateCheckMailboxEmpty:
		return d.poll.NextCommand(tbl, sysTime)

	case stateWriteDownloadRequest:
		if d.firstEntry {
			slave := tbl.Get(d.slaveIdx)
			if slave == nil {
				d.st = stateError
				d.err = ecerr.ErrNoSlave
				return 0, 0, 0, nil, false
			}
			slave.MailboxCount = wire.NextMailboxCount(slave.MailboxCount)

			datagram := d.datagram()
			hdr := wire.NewMailboxHeaderUnchecked(datagram)
			hdr.SetLength(uint16(d.mbLength))
			hdr.SetAddress(0)
			hdr.SetChannelPriority(0, 0)
			hdr.SetMailboxTypeCount(wire.MailboxCoE, slave.MailboxCount)
			d.writeBuf = datagram
			// Build the datagram (and advance the counter) only once, so a
			// repeated NextCommand before the reply returns the same bytes.
			d.firstEntry = false
		}
		// A Writer completes (success or WouldBlock) within a single
		// cycle, so retries need a fresh one over the same datagram.
		d.writer = mailbox.NewWriter(d.station, d.writeBuf)
		return d.writer.NextCommand(tbl, sysTime)

	case stateReadDownloadResponse:
		if d.firstEntry {
			d.reader = mailbox.NewReader(d.station, make([]byte, responseBufferLen))
			// Unlike Writer, Reader is a multi-cycle state machine: it
			// must survive across calls while it waits for the mailbox
			// to fill, so it's built once on entry and never again.
			d.firstEntry = false
		}
		return d.reader.NextCommand(tbl, sysTime)

	default:
		return 0, 0, 0, nil, false
	}
}

func (d *Download) ReceiveAndProcess(recv *engine.ReceivedData, tbl *network.Table, sysTime ecmaster.SystemTime) bool {
	switch d.st {
	case stateCheckMailboxEmpty:
		mismatch := d.poll.ReceiveAndProcess(recv, tbl, sysTime)
		done, result, err := d.poll.Done()
		if !done {
			return mismatch
		}
		switch {
		case err != nil:
			d.st, d.err = stateError, err
		case result == mailbox.ResultMailboxFull:
			d.st, d.err = stateError, &ecerr.MailboxAlreadyExisted{}
		default:
			d.st = stateWriteDownloadRequest
			d.firstEntry = true
		}
		return mismatch

	case stateWriteDownloadRequest:
		mismatch := d.writer.ReceiveAndProcess(recv, tbl, sysTime)
		done, wouldBlock, err := d.writer.Done()
		if !done {
			return mismatch
		}
		switch {
		case wouldBlock:
			d.st, d.firstEntry = stateWriteDownloadRequest, false
		case err != nil:
			d.st, d.err = stateError, err
		default:
			d.st, d.firstEntry = stateReadDownloadResponse, true
		}
		return mismatch

	case stateReadDownloadResponse:
		mismatch := d.reader.ReceiveAndProcess(recv, tbl, sysTime)
		done, data, err := d.reader.Done()
		if !done {
			return mismatch
		}
		if err != nil {
			d.st, d.err = stateError, err
			return mismatch
		}
		if len(data) < wire.MailboxHeaderLen+wire.SdoHeaderLen {
			d.st, d.err = stateError, &ecerr.UnexpectedResponse{Detail: "short SDO download response"}
			return mismatch
		}
		sdo := wire.NewSdoHeaderUnchecked(data[wire.MailboxHeaderLen+wire.CoEHeaderLen:])
		switch sdo.CommandSpecifier() {
		case wire.SdoCommandDownloadResponse:
			d.st = stateComplete
		case wire.SdoCommandAbort:
			abortBytes := data[wire.MailboxHeaderLen+wire.CoEHeaderLen+wire.SdoHeaderLen:]
			code := uint32(abortBytes[0]) | uint32(abortBytes[1])<<8 | uint32(abortBytes[2])<<16 | uint32(abortBytes[3])<<24
			d.st, d.err = stateError, &ecerr.AbortCode{Code: code}
		default:
			d.st, d.err = stateError, &ecerr.UnexpectedResponse{Detail: "unexpected SDO command specifier in download response"}
		}
		return mismatch
	}
	return false
}
