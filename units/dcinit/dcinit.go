// Package dcinit computes each slave's distributed-clock propagation
// delay and system-time offset from the DC receive-timestamp registers
// latched as a sync frame passes through the ring.
//
// The source this is grounded on keeps a RefCell<DCContext> inside each
// slave record so a slave can read its parent's recorded timestamps
// while updating its own. Go has no equivalent safe aliasing trick for
// two mutable borrows into the same slice, so this is re-architected as
// free functions taking explicit table and index arguments: the caller
// picks out (self, parent) by index, and Propagate performs the split
// borrow itself via network.Table.Pair.
package dcinit

import (
	"github.com/runzeroinc/ecmaster/network"
)

// Propagate computes selfIdx's propagation delay relative to parentIdx
// using both slaves' recorded port receive timestamps, and stores the
// result in selfIdx's DC state. It is a no-op when selfIdx is the root,
// which callers signal with parentIdx < 0.
func Propagate(tbl *network.Table, selfIdx, parentIdx int) {
	if parentIdx < 0 {
		return
	}
	self, parent := tbl.Pair(selfIdx, parentIdx)
	if self == nil || parent == nil {
		return
	}

	selfPort := self.DC.CurrentPort
	parentPort := self.DC.ParentPort

	selfTime := self.DC.ReceivedPortTime[selfPort]
	parentOutTime := parent.DC.ReceivedPortTime[parentPort]

	// The propagation delay is half the round-trip time measured
	// between the parent's egress timestamp and this slave's own
	// ingress timestamp on the port facing it, accumulated with
	// whatever delay the parent already measured upstream of it.
	delta := selfTime - parentOutTime
	self.DC.Delay = parent.DC.Delay + delta/2
}

// Offset computes selfIdx's system-time offset relative to the
// reference clock's reading refTime, given selfIdx's own receive time
// selfTime and its already-computed propagation delay.
func Offset(tbl *network.Table, selfIdx int, refTime, selfTime uint64) {
	self := tbl.Get(selfIdx)
	if self == nil {
		return
	}
	self.DC.ReceiveTime = selfTime
	self.DC.Offset = int64(selfTime) - int64(refTime) - int64(self.DC.Delay)
}
