// Package engine runs the cooperative cyclic scheduler that drives
// every unit (AL-state transfer, SDO transfers, mailbox I/O, network
// init) through one shared Interface, one poll cycle at a time.
package engine

import (
	"errors"
	"time"

	"github.com/runzeroinc/ecmaster"
	"github.com/runzeroinc/ecmaster/ecerr"
	"github.com/runzeroinc/ecmaster/ecif"
	"github.com/runzeroinc/ecmaster/internal/wire"
	"github.com/runzeroinc/ecmaster/network"
)

// ReceivedData is what a Unit sees in ReceiveAndProcess for the
// command it issued last cycle, or nil if that command was lost.
type ReceivedData struct {
	Command wire.CommandType
	ADP     uint16
	ADO     uint16
	Data    []byte
	WKC     uint16
}

// Unit is one cooperative state machine: AL-state transfer, an SDO
// transfer, a mailbox reader/writer, network/DC initialization, or an
// SII read. NextCommand is called once per cycle until the unit has a
// command ready; ReceiveAndProcess is called once per cycle with that
// command's result (or nil if it never came back).
// ReceiveAndProcess reports wkcMismatch when the reply's working
// counter did not match what the unit expected for the command it
// issued, so the engine can surface it as a metric without needing to
// know each command's expected working counter itself.
type Unit interface {
	NextCommand(tbl *network.Table, sysTime ecmaster.SystemTime) (cmdType wire.CommandType, adp, ado uint16, payload []byte, ok bool)
	ReceiveAndProcess(recv *ReceivedData, tbl *network.Table, sysTime ecmaster.SystemTime) (wkcMismatch bool)
}

const defaultCapacity = 10

type slot struct {
	unit Unit
	// free holds the index of the next free slot when this slot is
	// unoccupied; occupied is false in that case.
	free     int
	occupied bool
	sent     bool
}

// MetricsSink receives cycle-level counter updates from an Engine.
// metrics.EngineCollector satisfies this; it is kept as a small local
// interface rather than an import so the engine and the Prometheus
// wiring stay decoupled.
type MetricsSink interface {
	ObservePollCycle()
	ObservePDULost()
	ObserveWKCMismatch()
	SetUnitsActive(n int)
}

// Engine is the fixed-capacity unit scheduler. Handle values returned
// by AddUnit stay valid until the corresponding RemoveUnit, even as
// other units are added and removed.
type Engine struct {
	iface    *ecif.Interface
	slots    []slot
	freeHead int
	metrics  MetricsSink
}

// SetMetricsSink attaches a metrics sink; pass nil to detach.
func (e *Engine) SetMetricsSink(sink MetricsSink) {
	e.metrics = sink
}

// Handle identifies a unit previously registered with AddUnit.
type Handle int

// New creates an Engine with the default slot capacity (10).
func New(iface *ecif.Interface) *Engine {
	return NewWithCapacity(iface, defaultCapacity)
}

func NewWithCapacity(iface *ecif.Interface, capacity int) *Engine {
	return &Engine{
		iface:    iface,
		slots:    make([]slot, 0, capacity),
		freeHead: 0,
	}
}

// AddUnit registers unit in the next free slot, growing the pool if
// every existing slot is occupied. It returns false if the pool has
// reached its configured capacity.
func (e *Engine) AddUnit(unit Unit) (Handle, bool) {
	if e.freeHead < len(e.slots) {
		idx := e.freeHead
		e.freeHead = e.slots[idx].free
		e.slots[idx] = slot{unit: unit, occupied: true}
		return Handle(idx), true
	}

	if len(e.slots) == cap(e.slots) {
		return 0, false
	}

	idx := len(e.slots)
	e.slots = append(e.slots, slot{unit: unit, occupied: true})
	e.freeHead = idx + 1
	return Handle(idx), true
}

// RemoveUnit frees h's slot for reuse and returns the unit that
// occupied it, or nil if h was already free.
func (e *Engine) RemoveUnit(h Handle) Unit {
	idx := int(h)
	if idx < 0 || idx >= len(e.slots) || !e.slots[idx].occupied {
		return nil
	}
	unit := e.slots[idx].unit
	e.slots[idx] = slot{occupied: false, free: e.freeHead}
	e.freeHead = idx
	return unit
}

func (e *Engine) GetUnit(h Handle) Unit {
	idx := int(h)
	if idx < 0 || idx >= len(e.slots) || !e.slots[idx].occupied {
		return nil
	}
	return e.slots[idx].unit
}

// Poll runs one full scheduling round: it keeps enqueuing commands and
// dispatching replies until every occupied slot with a command ready
// has had it queued, which may take more than one Interface.Poll if the
// buffer fills up partway through the unit list.
func (e *Engine) Poll(tbl *network.Table, sysTime ecmaster.SystemTime, recvTimeout time.Duration) error {
	if e.metrics != nil {
		e.metrics.ObservePollCycle()
		e.metrics.SetUnitsActive(e.occupiedCount())
	}
	for {
		allEnqueued, err := e.enqueueCommands(tbl, sysTime)
		if err != nil {
			return err
		}
		if err := e.dispatch(tbl, sysTime, recvTimeout); err != nil {
			return err
		}
		if allEnqueued {
			return nil
		}
	}
}

func (e *Engine) occupiedCount() int {
	n := 0
	for i := range e.slots {
		if e.slots[i].occupied {
			n++
		}
	}
	return n
}

func (e *Engine) enqueueCommands(tbl *network.Table, sysTime ecmaster.SystemTime) (bool, error) {
	complete := true
	for i := range e.slots {
		s := &e.slots[i]
		if !s.occupied || s.sent {
			continue
		}
		cmdType, adp, ado, payload, ok := s.unit.NextCommand(tbl, sysTime)
		if !ok {
			continue
		}
		if e.iface.RemainingCapacity() < len(payload) {
			complete = false
			break
		}
		if err := e.iface.AddCommand(uint8(i), cmdType, adp, ado, len(payload), func(buf []byte) {
			copy(buf, payload)
		}); err != nil {
			return false, err
		}
		s.sent = true
	}
	return complete, nil
}

func (e *Engine) dispatch(tbl *network.Table, sysTime ecmaster.SystemTime, recvTimeout time.Duration) error {
	// A receive timeout still leaves any PDUs that did arrive in the
	// buffer; fall through and dispatch what we have, letting each
	// unit's own lost-command path handle the rest.
	if err := e.iface.Poll(recvTimeout); err != nil && !errors.Is(err, ecerr.ErrReceiveTimeout) {
		return err
	}

	pdus := e.iface.ConsumeCommands()
	lastIndex := 0
	for _, pdu := range pdus {
		index := int(pdu.Index())
		for j := lastIndex; j < index; j++ {
			e.deliverLost(j, tbl, sysTime)
		}
		if index >= 0 && index < len(e.slots) {
			s := &e.slots[index]
			if s.occupied && s.sent {
				recv := &ReceivedData{
					Command: pdu.CommandType(),
					ADP:     pdu.ADP(),
					ADO:     pdu.ADO(),
					Data:    pdu.Data(),
					WKC:     pdu.WKC(),
				}
				if s.unit.ReceiveAndProcess(recv, tbl, sysTime) && e.metrics != nil {
					e.metrics.ObserveWKCMismatch()
				}
				s.sent = false
			}
		}
		lastIndex = index + 1
	}
	for j := lastIndex; j < len(e.slots); j++ {
		e.deliverLost(j, tbl, sysTime)
	}
	return nil
}

func (e *Engine) deliverLost(index int, tbl *network.Table, sysTime ecmaster.SystemTime) {
	if index < 0 || index >= len(e.slots) {
		return
	}
	s := &e.slots[index]
	if s.occupied && s.sent {
		s.unit.ReceiveAndProcess(nil, tbl, sysTime)
		s.sent = false
		if e.metrics != nil {
			e.metrics.ObservePDULost()
		}
	}
}
