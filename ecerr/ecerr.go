// Package ecerr defines the error taxonomy shared by the interface,
// engine and unit packages: sentinel errors for conditions with no
// useful payload, and typed errors for conditions that carry data a
// caller might want to inspect with errors.As.
package ecerr

import (
	"errors"
	"fmt"

	"github.com/runzeroinc/ecmaster/network"
)

var (
	// ErrDeviceTx is returned when the underlying Device rejects or
	// fails a transmit.
	ErrDeviceTx = errors.New("ecerr: device transmit failed")

	// ErrDeviceRx names a hard receive failure of the underlying Device.
	// No code in this module returns it: ecif treats every false from
	// Device.Recv as "no frame yet" and keeps waiting until the timer
	// fires, so a failing receive surfaces as ErrReceiveTimeout.
	ErrDeviceRx = errors.New("ecerr: device receive failed")

	// ErrReceiveTimeout is returned when the countdown timer expires
	// before every outstanding frame sent this poll has been received.
	ErrReceiveTimeout = errors.New("ecerr: timed out waiting for frame round trip")

	// ErrBufferExhausted is returned when a command cannot be queued
	// because it would overflow the interface's buffer or exceed the
	// device MTU.
	ErrBufferExhausted = errors.New("ecerr: command buffer exhausted")

	// ErrMailboxEmpty reports that a slave's mailbox holds nothing to
	// read. No unit in this module returns it; mailbox.EmptyPoll reports
	// an empty mailbox as ResultMailboxEmpty instead.
	ErrMailboxEmpty = errors.New("ecerr: mailbox empty")

	// ErrNoSlave is returned when an operation names a slave index
	// outside the discovered network table.
	ErrNoSlave = errors.New("ecerr: no such slave")
)

// UnexpectedWKC reports that a PDU's working counter did not match what
// the caller expected for that command type.
type UnexpectedWKC struct {
	Expected uint16
	Got      uint16
}

func (e *UnexpectedWKC) Error() string {
	return fmt.Sprintf("ecerr: unexpected working counter: want %d, got %d", e.Expected, e.Got)
}

// UnexpectedCommand reports that a reply PDU's command type did not
// match the request it was correlated against.
type UnexpectedCommand struct {
	Expected string
	Got      string
}

func (e *UnexpectedCommand) Error() string {
	return fmt.Sprintf("ecerr: unexpected command type: want %s, got %s", e.Expected, e.Got)
}

// LostCommand reports that a unit's outstanding command was not found
// among the PDUs consumed this poll.
type LostCommand struct {
	Index uint8
}

func (e *LostCommand) Error() string {
	return fmt.Sprintf("ecerr: lost command with index %d", e.Index)
}

// AlStatusCode reports a nonzero AL status code returned by a slave
// during a state transition, along with the AL state it was reported
// against.
type AlStatusCode struct {
	State network.AlState
	Code  uint16
}

func (e *AlStatusCode) Error() string {
	return fmt.Sprintf("ecerr: AL status code 0x%04x in state %s", e.Code, e.State)
}

// AbortCode reports a CoE SDO abort code returned in place of an
// expected upload or download response.
type AbortCode struct {
	Code uint32
}

func (e *AbortCode) Error() string {
	return fmt.Sprintf("ecerr: SDO abort code 0x%08x", e.Code)
}

// MailboxAlreadyExisted reports that a mailbox write was attempted
// while the previous request was still outstanding.
type MailboxAlreadyExisted struct {
	Channel uint8
}

func (e *MailboxAlreadyExisted) Error() string {
	return fmt.Sprintf("ecerr: mailbox request already outstanding on channel %d", e.Channel)
}

// UnexpectedResponse reports that a mailbox response carried a service
// type or command specifier the caller's state machine was not
// expecting.
type UnexpectedResponse struct {
	Detail string
}

func (e *UnexpectedResponse) Error() string {
	return fmt.Sprintf("ecerr: unexpected mailbox response: %s", e.Detail)
}

// TimeoutMs reports that a unit's own per-transition timeout, measured
// in milliseconds, elapsed before the expected reply arrived.
type TimeoutMs struct {
	Stage   string
	Elapsed int64
}

func (e *TimeoutMs) Error() string {
	return fmt.Sprintf("ecerr: timeout after %dms in stage %s", e.Elapsed, e.Stage)
}
