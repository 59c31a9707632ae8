// Package sdoupload implements CoE SDO upload: reading an object
// dictionary entry from a slave via the mailbox protocol.
package sdoupload

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
	stateWriteUploadRequest
	stateReadUploadResponse
	stateComplete
	stateError
)

// Upload drives one SDO upload to completion or error. Unlike a
// download, an upload does not need the mailbox drained first: the
// request itself is the first thing written to SM0.
type Upload struct {
	st       state
	station  uint16
	slaveIdx int
	header   [wire.CoEHeaderLen + wire.SdoHeaderLen]byte

	writer   *mailbox.Writer
	writeBuf []byte
	reader   *mailbox.Reader

	firstEntry bool
	data       []byte
	err        error
}

func New() *Upload {
	return &Upload{st: stateIdle}
}

// Start begins an upload of index:subIndex from the slave at slaveIdx
// with station address station.
func (u *Upload) Start(slaveIdx int, station uint16, index uint16, subIndex uint8) {
	coe := wire.NewCoEHeaderUnchecked(u.header[0:wire.CoEHeaderLen])
	coe.SetServiceType(wire.CoeServiceSdoReq)

	sdo := wire.NewSdoHeaderUnchecked(u.header[wire.CoEHeaderLen:])
	sdo.SetCompleteAccess(false)
	sdo.SetDataSetSize(0)
	sdo.SetCommandSpecifier(wire.SdoCommandUploadRequest)
	sdo.SetTransferType(false)
	sdo.SetSizeIndicator(false)
	sdo.SetIndex(index)
	sdo.SetSubIndex(subIndex)

	u.station = station
	u.slaveIdx = slaveIdx
	u.err = nil
	u.data = nil
	u.st = stateWriteUploadRequest
	u.firstEntry = true
}

// Wait reports whether the upload finished, the data it read (valid
// only once done with no error), and any error it finished with.
func (u *Upload) Wait() (done bool, data []byte, err error) {
	switch u.st {
	case stateComplete:
		return true, u.data, nil
	case stateError:
		return true, nil, u.err
	default:
		return false, nil, nil
	}
}

func (u *Upload) NextCommand(tbl *network.Table, sysTime ecmaster.SystemTime) (wire.CommandType, uint16, uint16, []byte, bool) {
	switch u.st {
	case stateWriteUploadRequest:
		if u.firstEntry {
			slave := tbl.Get(u.slaveIdx)
			if slave == nil {
				u.st = stateError
				u.err = ecerr.ErrNoSlave
				return 0, 0, 0, nil, false
			}
			slave.MailboxCount = wire.NextMailboxCount(slave.MailboxCount)

			datagram := make([]byte, wire.MailboxHeaderLen+len(u.header))
			hdr := wire.NewMailboxHeaderUnchecked(datagram)
			hdr.SetLength(uint16(len(u.header)))
			hdr.SetAddress(0)
			hdr.SetChannelPriority(0, 0)
			hdr.SetMailboxTypeCount(wire.MailboxCoE, slave.MailboxCount)
			copy(datagram[wire.MailboxHeaderLen:], u.header[:])
			u.writeBuf = datagram
			// Build the datagram (and advance the counter) only once, so a
			// repeated NextCommand before the reply returns the same bytes.
			u.firstEntry = false
		}
		u.writer = mailbox.NewWriter(u.station, u.writeBuf)
		return u.writer.NextCommand(tbl, sysTime)

	case stateReadUploadResponse:
		if u.firstEntry {
			u.reader = mailbox.NewReader(u.station, make([]byte, responseBufferLen))
			// Unlike Writer, Reader is a multi-cycle state machine: it
			// must survive across calls while it waits for the mailbox
			// to fill, so it's built once on entry and never again.
			u.firstEntry = false
		}
		return u.reader.NextCommand(tbl, sysTime)

	default:
		return 0, 0, 0, nil, false
	}
}

func (u *Upload) ReceiveAndProcess(recv *engine.ReceivedData, tbl *network.Table, sysTime ecmaster.SystemTime) bool {
	switch u.st {
	case stateWriteUploadRequest:
		mismatch := u.writer.ReceiveAndProcess(recv, tbl, sysTime)
		done, wouldBlock, err := u.writer.Done()
		if !done {
			return mismatch
		}
		switch {
		case wouldBlock:
			u.st, u.firstEntry = stateWriteUploadRequest, false
		case err != nil:
			u.st, u.err = stateError, err
		default:
			u.st, u.firstEntry = stateReadUploadResponse, true
		}
		return mismatch

	case stateReadUploadResponse:
		mismatch := u.reader.ReceiveAndProcess(recv, tbl, sysTime)
		done, data, err := u.reader.Done()
		if !done {
			return mismatch
		}
		if err != nil {
			u.st, u.err = stateError, err
			return mismatch
		}
		if len(data) < wire.MailboxHeaderLen+wire.SdoHeaderLen {
			u.st, u.err = stateError, &ecerr.UnexpectedResponse{Detail: "short SDO upload response"}
			return mismatch
		}
		sdo := wire.NewSdoHeaderUnchecked(data[wire.MailboxHeaderLen+wire.CoEHeaderLen:])
		switch sdo.CommandSpecifier() {
		case wire.SdoCommandUploadResponse:
			payload := data[wire.MailboxHeaderLen+wire.CoEHeaderLen+wire.SdoHeaderLen:]
			u.data = append([]byte(nil), payload...)
			u.st = stateComplete
		case wire.SdoCommandAbort:
			abortBytes := data[wire.MailboxHeaderLen+wire.CoEHeaderLen+wire.SdoHeaderLen:]
			code := uint32(abortBytes[0]) | uint32(abortBytes[1])<<8 | uint32(abortBytes[2])<<16 | uint32(abortBytes[3])<<24
			u.st, u.err = stateError, &ecerr.AbortCode{Code: code}
		default:
			u.st, u.err = stateError, &ecerr.UnexpectedResponse{Detail: "unexpected SDO command specifier in upload response"}
		}
		return mismatch
	}
	return false
}
