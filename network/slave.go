// Package network holds the discovered-network model: one Table of
// Slave records built during network initialization and consulted (and
// updated) by every later unit.
package network

// AlState is a slave's application-layer state, read from and written
// to the AL status/control registers.
type AlState uint8

const (
	AlStateInit            AlState = 0x1
	AlStatePreOperational  AlState = 0x2
	AlStateBootstrap       AlState = 0x3
	AlStateSafeOperational AlState = 0x4
	AlStateOperational     AlState = 0x8
	AlStateInvalid         AlState = 0xff
)

func AlStateFromByte(v uint8) AlState {
	switch v {
	case uint8(AlStateInit), uint8(AlStatePreOperational), uint8(AlStateBootstrap),
		uint8(AlStateSafeOperational), uint8(AlStateOperational):
		return AlState(v)
	default:
		return AlStateInvalid
	}
}

func (s AlState) String() string {
	switch s {
	case AlStateInit:
		return "Init"
	case AlStatePreOperational:
		return "PreOperational"
	case AlStateBootstrap:
		return "Bootstrap"
	case AlStateSafeOperational:
		return "SafeOperational"
	case AlStateOperational:
		return "Operational"
	default:
		return "Invalid"
	}
}

// SlaveError records a fault observed on a slave outside the normal
// state-transition flow.
type SlaveError uint8

const (
	SlaveErrorNone SlaveError = iota
	SlaveErrorPDINotOperational
	SlaveErrorUnexpectedAlState
	SlaveErrorSyncManagerSettingsIncorrect
	SlaveErrorWatchdogTimeout
	SlaveErrorPDOState
	SlaveErrorPDOControl
	SlaveErrorPDOToggle
	SlaveErrorEarlySyncManagerEvent
	SlaveErrorSyncManagerEventJitter
	SlaveErrorSyncManagerEventNotReceived
	SlaveErrorOutputCalcNotFinished
	SlaveErrorSync0NotReceived
	SlaveErrorSync1NotReceived
	SlaveErrorSyncEventNotDetected
)

// PortPhysics describes the physical layer detected on one of a
// slave's four ports, read from the DL status register.
type PortPhysics uint8

const (
	PortPhysicsNotImplemented PortPhysics = iota
	PortPhysicsEBus
	PortPhysicsFastEthernet
)

// SyncManagerKind distinguishes how a sync manager channel is used.
type SyncManagerKind uint8

const (
	SyncManagerUnused SyncManagerKind = iota
	SyncManagerMailboxOut
	SyncManagerMailboxIn
	SyncManagerProcessDataOut
	SyncManagerProcessDataIn
)

// SyncManager is one of a slave's four configurable sync manager
// channels.
type SyncManager struct {
	Kind         SyncManagerKind
	StartAddress uint16
	Length       uint16
}

// PDOEntry is one object mapped into a process data image.
type PDOEntry struct {
	Index      uint16
	SubIndex   uint8
	BitLength  uint8
	ByteOffset uint16
}

// PDOMapping is one PDO assignment, made up of one or more entries.
type PDOMapping struct {
	Index   uint16
	Entries []PDOEntry
}

// Slave is everything the master has learned and negotiated about one
// discovered device.
type Slave struct {
	StationAddress uint16

	VendorID       uint32
	ProductCode    uint32
	RevisionNumber uint32

	Ports      [4]PortPhysics
	LinkedPort [4]bool
	RamSizeKB  uint8

	NumberOfFMMU uint8
	NumberOfSM   uint8

	SM [4]SyncManager

	SupportsDC                bool
	DCSupports64Bit           bool
	SupportsFMMUBitOperations bool
	SupportsLRW               bool
	SupportsRW                bool
	SupportsCoE               bool

	AlState AlState
	Error   SlaveError

	MailboxCount uint8

	RxPDOMapping []PDOMapping
	TxPDOMapping []PDOMapping

	DC DCState
}

// DCState is the Distributed Clocks bookkeeping for one slave, updated
// across the propagation-delay and offset-compensation passes of
// network initialization. The split between Table and per-slave index
// lets those passes read a slave's parent without aliasing: every
// function that needs both a slave and its parent takes the Table plus
// two indices rather than holding two *Slave references at once.
type DCState struct {
	ParentIndex      int
	ParentPort       uint8
	HasParent        bool
	CurrentPort      uint8
	ReceivedPortTime [4]uint32
	Delay            uint32
	ReceiveTime      uint64
	Offset           int64
}

func NewSlave(stationAddress uint16) *Slave {
	return &Slave{
		StationAddress: stationAddress,
		AlState:        AlStateInvalid,
		MailboxCount:   1,
		DC:             DCState{ParentIndex: -1},
	}
}
