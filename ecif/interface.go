/**
 * Copyright (c) 2022, Xerra Earth Observation Institute.
 * Copyright (c) 2025, Simeon Miteff.
 *
 * See LICENSE.TXT in the root directory of this source tree.
 */

// Package ecif packs PDUs into EtherCAT frames, hands them to a
// devnet.Device for transmission, and reassembles the PDUs that come
// back into a single contiguous buffer for the engine to walk.
package ecif

import (
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/runzeroinc/ecmaster/devnet"
	"github.com/runzeroinc/ecmaster/ecerr"
	"github.com/runzeroinc/ecmaster/internal/wire"
)

// FrameMetricsSink receives per-frame counter updates. metrics.EngineCollector
// satisfies this.
type FrameMetricsSink interface {
	ObserveFrameTransmitted()
	ObserveFrameReceived()
}

// Interface is not safe for concurrent use; one engine drives one
// Interface from one goroutine per poll cycle.
type Interface struct {
	dev     devnet.Device
	timer   devnet.Timer
	log     *logrus.Entry
	buffer  []byte
	size    int
	metrics FrameMetricsSink

	shouldRecvFrames int
}

func New(dev devnet.Device, timer devnet.Timer, log *logrus.Entry) *Interface {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Interface{
		dev:    dev,
		timer:  timer,
		log:    log,
		buffer: make([]byte, dev.MaxTransmissionUnit()*4),
	}
}

// SetMetricsSink attaches a metrics sink; pass nil to detach.
func (ifc *Interface) SetMetricsSink(sink FrameMetricsSink) {
	ifc.metrics = sink
}

// RemainingCapacity is the number of payload bytes that can still be
// queued with AddCommand before the interface's scratch buffer is full.
func (ifc *Interface) RemainingCapacity() int {
	return len(ifc.buffer) - ifc.size - wire.PDUHeaderLen - wire.WKCLen
}

// AddCommand appends one command to the interface's pending-command
// buffer. It does not transmit; ConsumeCommands/Poll do that. write
// fills the payload region in place.
func (ifc *Interface) AddCommand(index uint8, cmdType wire.CommandType, adp, ado uint16, payloadLen int, write func([]byte)) error {
	total := wire.PDUHeaderLen + payloadLen + wire.WKCLen
	if ifc.size+total > len(ifc.buffer) {
		return ecerr.ErrBufferExhausted
	}

	maxPayload := ifc.dev.MaxTransmissionUnit() - (wire.EthernetHeaderLen + wire.EtherCATHeaderLen + wire.PDUHeaderLen + wire.WKCLen)
	if payloadLen > maxPayload {
		return ecerr.ErrBufferExhausted
	}

	pdu := wire.NewPDUUnchecked(ifc.buffer[ifc.size : ifc.size+total])
	pdu.SetCommandType(cmdType)
	pdu.SetIndex(index)
	pdu.SetADP(adp)
	pdu.SetADO(ado)
	pdu.SetLength(uint16(payloadLen))
	write(pdu.Data())
	pdu.SetWKC(0)

	ifc.size += total
	return nil
}

// ConsumeCommands returns every PDU queued since the last call, as raw
// views into the interface's buffer, and resets the queue.
func (ifc *Interface) ConsumeCommands() []wire.PDU {
	var pdus []wire.PDU
	offset := 0
	for offset < ifc.size {
		hdr := wire.NewPDUUnchecked(ifc.buffer[offset:])
		total := wire.PDUHeaderLen + int(hdr.Length()) + wire.WKCLen
		pdus = append(pdus, wire.NewPDUUnchecked(ifc.buffer[offset:offset+total]))
		offset += total
	}
	ifc.size = 0
	return pdus
}

// Poll transmits every queued command, greedily packed into as many
// MTU-sized Ethernet frames as needed, then waits up to recvTimeout for
// all of them to come back around the wire before returning. The PDUs
// of every received frame are copied back into the buffer from its
// start, in arrival order, so ConsumeCommands sees only the replies
// that came back; PDUs whose frame was lost are absent.
func (ifc *Interface) Poll(recvTimeout time.Duration) error {
	cid := xid.New().String()
	log := ifc.log.WithField("poll_id", cid)

	if !ifc.transmit(log) {
		return ecerr.ErrDeviceTx
	}
	ifc.timer.Start(recvTimeout)
	return ifc.receive(log)
}

func (ifc *Interface) transmit(log *logrus.Entry) bool {
	buf := ifc.buffer[:ifc.size]
	mtu := ifc.dev.MaxTransmissionUnit()

	sent := 0
	for sent < ifc.size {
		end := sent
		for end < ifc.size {
			hdr := wire.NewPDUUnchecked(buf[end:])
			pduLen := wire.PDUHeaderLen + int(hdr.Length()) + wire.WKCLen
			if end-sent+pduLen > mtu-(wire.EthernetHeaderLen+wire.EtherCATHeaderLen) {
				break
			}
			end += pduLen
		}
		if end == sent {
			log.Error("single PDU exceeds device MTU")
			return false
		}

		chunk := buf[sent:end]
		frameLen := wire.EthernetHeaderLen + wire.EtherCATHeaderLen + len(chunk)
		ok := ifc.dev.Send(frameLen, func(tx []byte) bool {
			eth := wire.NewEthernetHeaderUnchecked(tx[:wire.EthernetHeaderLen])
			hw := ifc.dev.HardwareAddr()
			eth.SetSource(hw)
			eth.SetDestination([6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff})
			eth.SetEtherType(wire.EtherCATEtherType)

			frame := wire.NewFrameUnchecked(tx[wire.EthernetHeaderLen:])
			frame.Init()
			copy(tx[wire.EthernetHeaderLen+wire.EtherCATHeaderLen:], chunk)
			frame.SetLength(uint16(len(chunk)))
			return true
		})
		if !ok {
			log.WithField("bytes", frameLen).Warn("device transmit failed")
			return false
		}
		if ifc.metrics != nil {
			ifc.metrics.ObserveFrameTransmitted()
		}
		ifc.shouldRecvFrames++
		sent = end
	}
	return true
}

func (ifc *Interface) receive(log *logrus.Entry) error {
	received := 0
	for ifc.shouldRecvFrames > 0 {
		got := ifc.dev.Recv(func(frame []byte) bool {
			if len(frame) < wire.EthernetHeaderLen+wire.EtherCATHeaderLen {
				return false
			}
			eth := wire.NewEthernetHeaderUnchecked(frame[:wire.EthernetHeaderLen])
			if eth.Source() == ifc.dev.HardwareAddr() || eth.EtherType() != wire.EtherCATEtherType {
				return false
			}

			ecFrame := wire.NewFrameUnchecked(frame[wire.EthernetHeaderLen:])
			for _, pdu := range ecFrame.IterPDU() {
				n := len(pdu)
				copy(ifc.buffer[received:received+n], pdu)
				received += n
			}
			ifc.shouldRecvFrames--
			if ifc.metrics != nil {
				ifc.metrics.ObserveFrameReceived()
			}
			return true
		})
		if !got {
			switch res, err := ifc.timer.Wait(); {
			case err != nil:
				ifc.size = received
				return fmt.Errorf("ecif: %w", err)
			case res == devnet.Ready:
				// Whatever arrived before the deadline stays valid;
				// the rest of the queued region must not be replayed
				// as if it were a reply, or a unit would see its own
				// unmodified request echoed back as a successful one.
				ifc.size = received
				ifc.shouldRecvFrames = 0
				return ecerr.ErrReceiveTimeout
			default:
				continue
			}
		}
	}
	ifc.size = received
	return nil
}
