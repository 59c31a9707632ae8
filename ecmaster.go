// Package ecmaster implements the cooperative cyclic engine of an EtherCAT
// master: a scheduler of stateful protocol units that share one pre-sized
// Ethernet transmit buffer, take turns contributing PDUs to each outgoing
// frame, and receive their matching replies dispatched back by PDU index.
//
// Subpackages layer the individual protocol state machines (units/...) and
// the interface/device plumbing (ecif, devnet) on top of the scheduler in
// package engine. This root package only carries the handful of
// session-wide constants and the EtherCAT epoch time type that every layer
// shares.
package ecmaster

import "time"

// Protocol-wide retry/timeout defaults, as specified by the EtherCAT
// mailbox protocol.
const (
	MailboxRequestRetryTimeoutDefault  = 100 * time.Millisecond
	MailboxResponseRetryTimeoutDefault = 2000 * time.Millisecond
)

// LogicalStartAddress is the first logical address handed out to FMMU
// mappings during network initialization.
const LogicalStartAddress uint32 = 0

// SystemTime is EtherCAT system time: nanoseconds elapsed since
// 2000-01-01 00:00:00 UTC. It is monotone non-decreasing within one
// session and is always supplied by the caller of Engine.Poll — no
// engine or unit code reads the wall clock itself.
type SystemTime uint64

// ethercatEpoch is 2000-01-01 00:00:00 UTC expressed as a Unix timestamp,
// used only by FromTime/helpers for callers that keep wall-clock time.
const ethercatEpoch = 946684800

// FromTime converts a wall-clock time.Time into SystemTime, assuming t is
// not before the EtherCAT epoch.
func FromTime(t time.Time) SystemTime {
	return SystemTime(t.UnixNano() - ethercatEpoch*int64(time.Second))
}

// Sub returns the elapsed duration between two SystemTime values,
// saturating at zero rather than wrapping when t is before s (a unit
// observing a decrease would otherwise indicate a broken timebase).
func (t SystemTime) Sub(s SystemTime) time.Duration {
	if t < s {
		return 0
	}
	return time.Duration(t - s)
}
